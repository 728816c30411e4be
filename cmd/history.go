package cmd

import (
	"fmt"

	"github.com/FluidXR/adbdetect/internal/config"
	"github.com/FluidXR/adbdetect/internal/history"

	"github.com/spf13/cobra"
)

var historyLimit int

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show recorded USB debugging transitions",
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := newSession()
		if err != nil {
			return err
		}
		db, err := history.Open(config.ConfigDir())
		if err != nil {
			return fmt.Errorf("open history: %w", err)
		}
		defer db.Close()

		// only filter when asked; the config default device is not a filter
		events, err := db.Recent(deviceFlag, historyLimit)
		if err != nil {
			return err
		}
		if len(events) == 0 {
			fmt.Println("No history recorded.")
			return nil
		}
		for _, e := range events {
			fmt.Printf("%s  %-20s %-12s enabled=%t connected=%t\n",
				e.At.Local().Format("2006-01-02 15:04:05"),
				s.label(displaySerial(e.DeviceSerial)), e.Kind, e.Enabled, e.Connected)
		}
		return nil
	},
}

func init() {
	historyCmd.Flags().IntVarP(&historyLimit, "limit", "n", 20, "Number of events to show")
	rootCmd.AddCommand(historyCmd)
}
