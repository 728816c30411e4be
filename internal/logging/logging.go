package logging

import (
	"io"
	"os"
	"strings"

	log "github.com/sirupsen/logrus"
)

// Init configures the global logrus logger.
// ADBDETECT_LOG_LEVEL and ADBDETECT_LOG_FORMAT=json override the arguments.
func Init(w io.Writer, level, format string) {
	if env := os.Getenv("ADBDETECT_LOG_LEVEL"); env != "" {
		level = env
	}
	if env := os.Getenv("ADBDETECT_LOG_FORMAT"); env != "" {
		format = env
	}

	log.SetOutput(w)
	log.SetLevel(ParseLevel(level))
	if strings.EqualFold(format, "json") {
		log.SetFormatter(&log.JSONFormatter{})
	} else {
		log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	}
}

// ParseLevel maps a level name to a logrus level, defaulting to warn so
// collaborator failures are visible without debug noise.
func ParseLevel(s string) log.Level {
	lvl, err := log.ParseLevel(strings.TrimSpace(s))
	if err != nil {
		return log.WarnLevel
	}
	return lvl
}
