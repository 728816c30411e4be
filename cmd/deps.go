package cmd

import (
	"bufio"
	"fmt"
	"os"
	"os/exec"
	"runtime"
	"strings"
)

type dependency struct {
	name       string
	binary     string
	installCmd map[string]string // GOOS -> install command
}

var adbDependency = dependency{
	name:   "ADB (Android Debug Bridge)",
	binary: "adb",
	installCmd: map[string]string{
		"darwin":  "brew install android-platform-tools",
		"linux":   "sudo apt install android-tools-adb",
		"windows": "winget install Google.PlatformTools",
	},
}

// checkDeps verifies that adb is installed, offering to install it.
// A custom adbPath from the config is only looked up, never installed.
func checkDeps(adbPath string) error {
	dep := adbDependency
	if adbPath != "" {
		dep.binary = adbPath
	}
	if _, err := exec.LookPath(dep.binary); err == nil {
		return nil
	}
	if dep.binary != adbDependency.binary {
		return fmt.Errorf("adb not found at %s (check adb_path in config)", dep.binary)
	}

	fmt.Printf("adbdetect requires %s (%s), which is not installed.\n\n", dep.name, dep.binary)

	cmd, ok := dep.installCmd[runtime.GOOS]
	if !ok {
		return fmt.Errorf("please install %s manually and try again", dep.name)
	}

	fmt.Printf("Install %s with: %s\n", dep.name, cmd)
	fmt.Print("Run now? [Y/n] ")
	answer, _ := bufio.NewReader(os.Stdin).ReadString('\n')
	answer = strings.TrimSpace(strings.ToLower(answer))
	if answer != "" && answer != "y" && answer != "yes" {
		return fmt.Errorf("%s is required but not installed", dep.binary)
	}

	fmt.Printf("Running: %s\n", cmd)
	parts := strings.Fields(cmd)
	install := exec.Command(parts[0], parts[1:]...)
	install.Stdout = os.Stdout
	install.Stderr = os.Stderr
	install.Stdin = os.Stdin
	if err := install.Run(); err != nil {
		return fmt.Errorf("install %s: %w", dep.name, err)
	}

	// Re-check after install attempt
	if _, err := exec.LookPath(dep.binary); err != nil {
		return fmt.Errorf("%s is required but not installed", dep.binary)
	}
	fmt.Printf("%s installed successfully.\n\n", dep.name)
	return nil
}
