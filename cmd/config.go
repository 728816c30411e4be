package cmd

import (
	"fmt"
	"time"

	"github.com/FluidXR/adbdetect/internal/config"

	"github.com/spf13/cobra"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage adbdetect configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}
		fmt.Printf("Config file: %s\n\n", config.ConfigPath())
		device := cfg.Device
		if device == "" {
			device = "(only attached device)"
		}
		fmt.Printf("Default device:  %s\n", device)
		fmt.Printf("adb binary:      %s\n", cfg.ADBPath)
		fmt.Printf("Poll interval:   %s\n", cfg.PollInterval)
		fmt.Printf("Command timeout: %s\n", cfg.CommandTimeout)
		fmt.Printf("\nDevices:\n")
		if len(cfg.Devices) == 0 {
			fmt.Println("  (none configured)")
		}
		for serial, dc := range cfg.Devices {
			fmt.Printf("  - %s", serial)
			if dc.Nickname != "" {
				fmt.Printf(" (%s)", dc.Nickname)
			}
			fmt.Println()
		}
		return nil
	},
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Create default config file",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.DefaultConfig()
		if err := config.Save(cfg); err != nil {
			return err
		}
		fmt.Printf("Config created at %s\n", config.ConfigPath())
		return nil
	},
}

var configNicknameCmd = &cobra.Command{
	Use:   "nickname <serial> <name>",
	Short: "Set a nickname for a device",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		serial := args[0]
		name := args[1]

		return updateConfig(func(cfg *config.Config) error {
			dc := cfg.Devices[serial]
			dc.Nickname = name
			cfg.Devices[serial] = dc
			fmt.Printf("Set nickname for %s: %s\n", serial, name)
			return nil
		})
	},
}

var configSetDeviceCmd = &cobra.Command{
	Use:   "set-device <serial>",
	Short: "Set the default device (empty string clears it)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return updateConfig(func(cfg *config.Config) error {
			cfg.Device = args[0]
			fmt.Printf("Default device: %s\n", displaySerial(args[0]))
			return nil
		})
	},
}

var configSetIntervalCmd = &cobra.Command{
	Use:   "set-interval <duration>",
	Short: "Set the watch poll interval, e.g. 500ms or 5s",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		d, err := time.ParseDuration(args[0])
		if err != nil {
			return fmt.Errorf("parse interval: %w", err)
		}
		if d <= 0 {
			return fmt.Errorf("interval must be positive")
		}
		return updateConfig(func(cfg *config.Config) error {
			cfg.PollInterval = d
			fmt.Printf("Poll interval: %s\n", d)
			return nil
		})
	},
}

func updateConfig(fn func(cfg *config.Config) error) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if err := fn(cfg); err != nil {
		return err
	}
	return config.Save(cfg)
}

func init() {
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configNicknameCmd)
	configCmd.AddCommand(configSetDeviceCmd)
	configCmd.AddCommand(configSetIntervalCmd)
	rootCmd.AddCommand(configCmd)
}
