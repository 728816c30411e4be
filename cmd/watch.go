package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/FluidXR/adbdetect/internal/config"
	"github.com/FluidXR/adbdetect/internal/history"
	"github.com/FluidXR/adbdetect/internal/notifier"
	"github.com/FluidXR/adbdetect/internal/probe"
	"github.com/FluidXR/adbdetect/internal/watch"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var (
	watchNoHistory bool
	watchInterval  time.Duration
)

var watchCmd = &cobra.Command{
	Use:               "watch",
	Short:             "Report each time USB debugging becomes active or inactive",
	PersistentPreRunE: requireDeps(),
	Long: `Watches the device until interrupted. The debugging setting is polled,
the cable state follows adb's device tracking. Only changes are printed
and recorded in the history database.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := newSession()
		if err != nil {
			return err
		}
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		s.connect(ctx)
		serial := s.serial
		if serial == "" {
			if d, err := s.client.Resolve(ctx, ""); err == nil {
				serial = d.Serial
			} else {
				log.WithError(err).Warn("no default device yet, watching whichever attaches")
			}
		}

		interval := s.cfg.PollInterval
		if watchInterval > 0 {
			interval = watchInterval
		}

		n := notifier.New()
		checker := probe.NewChecker(s.client, serial)
		w := watch.New(n, checker, s.client, interval)

		rec := &recorder{sessionID: uuid.Must(uuid.NewV7()).String(), serial: serial, n: n}
		if !watchNoHistory {
			db, err := history.Open(config.ConfigDir())
			if err != nil {
				return fmt.Errorf("open history: %w", err)
			}
			defer db.Close()
			rec.db = db
		}

		w.Refresh(ctx)
		state := "inactive"
		if n.Combined() {
			state = "active"
		}
		fmt.Printf("Watching %s every %s, USB debugging currently %s. Ctrl-C to stop.\n",
			s.label(displaySerial(serial)), interval, state)
		rec.record(history.Started)

		sub := n.Subscribe(
			func() { rec.transition(history.Activated, "ACTIVE") },
			func() { rec.transition(history.Deactivated, "INACTIVE") },
		)
		defer sub.Unsubscribe()

		if watchInterval == 0 {
			if err := config.Watch(ctx, config.ConfigPath(), func(c *config.Config) {
				w.SetInterval(c.PollInterval)
			}); err != nil {
				log.WithError(err).Debug("config reload disabled")
			}
		}

		err = w.Run(ctx)
		sub.Unsubscribe()
		rec.record(history.Stopped)
		fmt.Println("\nStopped.")
		return err
	},
}

// recorder prints transitions and appends them to the history database.
type recorder struct {
	sessionID string
	serial    string
	n         *notifier.Notifier
	db        *history.DB
}

func (r *recorder) transition(kind history.Kind, label string) {
	fmt.Printf("%s  %s\n", time.Now().Format(time.RFC3339), label)
	r.record(kind)
}

func (r *recorder) record(kind history.Kind) {
	if r.db == nil {
		return
	}
	_, err := r.db.Record(history.Event{
		SessionID:    r.sessionID,
		DeviceSerial: r.serial,
		Kind:         kind,
		Enabled:      r.n.Enabled(),
		Connected:    r.n.Connected(),
	})
	if err != nil {
		log.WithError(err).Warn("history write failed")
	}
}

func displaySerial(serial string) string {
	if serial == "" {
		return "(any device)"
	}
	return serial
}

func init() {
	watchCmd.Flags().BoolVar(&watchNoHistory, "no-history", false, "Do not record transitions")
	watchCmd.Flags().DurationVar(&watchInterval, "interval", 0, "Poll interval (default: config poll_interval, reloaded on change)")
	rootCmd.AddCommand(watchCmd)
}

