package cmd

import (
	"fmt"
	"os"

	"github.com/FluidXR/adbdetect/internal/probe"

	"github.com/spf13/cobra"
)

var (
	checkPort     bool
	checkExitCode bool
)

var checkCmd = &cobra.Command{
	Use:               "check",
	Short:             "Check once whether USB debugging is active",
	PersistentPreRunE: requireDeps(),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := newSession()
		if err != nil {
			return err
		}
		ctx := cmd.Context()
		s.connect(ctx)
		checker := probe.NewChecker(s.client, s.serial)

		enabled := checker.IsDebugEnabled(ctx)
		connected := checker.IsUSBConnected(ctx)
		active := enabled && connected

		target := s.serial
		if target == "" {
			target = "(default device)"
		}
		fmt.Printf("Device:          %s\n", s.label(target))
		fmt.Printf("USB debugging:   %s\n", onOff(enabled))
		fmt.Printf("USB connected:   %s\n", yesNo(connected))
		if checkPort {
			res := checker.ProbePort(ctx)
			if res.Open {
				fmt.Printf("ADB TCP port:    open (%s)\n", res.Raw)
			} else {
				fmt.Printf("ADB TCP port:    closed\n")
			}
		}
		fmt.Printf("Active:          %s\n", yesNo(active))

		if checkExitCode && !active {
			os.Exit(1)
		}
		return nil
	},
}

func onOff(b bool) string {
	if b {
		return "enabled"
	}
	return "disabled"
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}

func init() {
	checkCmd.Flags().BoolVar(&checkPort, "port", false, "Also probe whether adbd listens on a TCP port")
	checkCmd.Flags().BoolVar(&checkExitCode, "exit-code", false, "Exit with status 1 when USB debugging is not active")
	rootCmd.AddCommand(checkCmd)
}
