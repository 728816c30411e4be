package cmd

import (
	"fmt"

	"github.com/FluidXR/adbdetect/internal/config"
	"github.com/FluidXR/adbdetect/internal/history"

	"github.com/spf13/cobra"
)

var devicesCmd = &cobra.Command{
	Use:               "devices",
	Short:             "List attached devices and their last recorded state",
	PersistentPreRunE: requireDeps(),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := newSession()
		if err != nil {
			return err
		}

		devices, err := s.client.Devices(cmd.Context())
		if err != nil {
			return err
		}

		if len(devices) == 0 {
			fmt.Println("No devices connected.")
			return nil
		}

		db, err := history.Open(config.ConfigDir())
		if err != nil {
			return fmt.Errorf("open history: %w", err)
		}
		defer db.Close()

		for _, d := range devices {
			nickname := ""
			if nick := s.cfg.Nickname(d.Serial); nick != "" {
				nickname = fmt.Sprintf(" (%s)", nick)
			}

			status := d.State
			if !d.IsOnline() {
				status = "OFFLINE"
			}

			fmt.Printf("%-20s %s  [%s] [%s]%s\n",
				d.Serial, d.Model, d.ConnType, status, nickname)

			last, err := db.Last(d.Serial)
			if err != nil || last == nil {
				continue
			}
			stats, err := db.GetStats(d.Serial)
			if err != nil {
				continue
			}
			fmt.Printf("  Last seen %s: %s | Activations: %d | Deactivations: %d\n",
				last.At.Local().Format("2006-01-02 15:04:05"), last.Kind,
				stats.Activations, stats.Deactivations)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(devicesCmd)
}
