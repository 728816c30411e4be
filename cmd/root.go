package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/FluidXR/adbdetect/internal/adb"
	"github.com/FluidXR/adbdetect/internal/config"
	"github.com/FluidXR/adbdetect/internal/logging"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

// Version of adbdetect.
const Version = "0.1.0"

var (
	deviceFlag   string
	logLevelFlag string
)

var rootCmd = &cobra.Command{
	Use:     "adbdetect",
	Short:   "Report whether USB debugging is active on an Android device",
	Version: Version,
	Long: `adbdetect checks whether USB debugging is enabled on a device and the
device is attached over a USB cable, either once (check) or continuously,
reporting only changes (watch).`,
	SilenceUsage: true,
}

// requireDeps returns a PersistentPreRunE that checks for external dependencies.
func requireDeps() func(cmd *cobra.Command, args []string) error {
	return func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}
		return checkDeps(cfg.ADBPath)
	}
}

// session bundles what every device command needs.
type session struct {
	cfg    *config.Config
	client *adb.Client
	serial string
}

func newSession() (*session, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	serial := deviceFlag
	if serial == "" {
		serial = cfg.Device
	}
	return &session{
		cfg:    cfg,
		client: adb.NewClient(cfg.ADBPath, cfg.CommandTimeout),
		serial: serial,
	}, nil
}

// connect reattaches a host:port target that adb has dropped.
func (s *session) connect(ctx context.Context) {
	if err := s.client.EnsureConnected(ctx, s.serial); err != nil {
		log.WithError(err).WithField("device", s.serial).Warn("adb connect failed")
	}
}

func (s *session) label(serial string) string {
	if nick := s.cfg.Nickname(serial); nick != "" {
		return fmt.Sprintf("%s (%s)", serial, nick)
	}
	return serial
}

func initLogging() {
	level := logLevelFlag
	if level == "" {
		if cfg, err := config.Load(); err == nil {
			level = cfg.LogLevel
		}
	}
	logging.Init(os.Stderr, level, "")
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initLogging)
	rootCmd.PersistentFlags().StringVarP(&deviceFlag, "device", "d", "", "Device serial (default: config device, or the only attached device)")
	rootCmd.PersistentFlags().StringVar(&logLevelFlag, "log-level", "", "Log level: trace, debug, info, warn, error")
}
