// Package watch keeps a notifier up to date from adb.
//
// The enabled condition is polled. The connected condition follows adb's
// device tracking stream and falls back to polling when the stream is
// unavailable.
package watch

import (
	"context"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/FluidXR/adbdetect/internal/adb"
	"github.com/FluidXR/adbdetect/internal/notifier"
)

// Sources supplies the two conditions. Implementations return false on
// failure instead of an error.
type Sources interface {
	IsDebugEnabled(ctx context.Context) bool
	IsUSBConnected(ctx context.Context) bool
	ConnectedFrom(ctx context.Context, devices []adb.Device) bool
}

// Tracker streams device list changes.
type Tracker interface {
	TrackDevices(ctx context.Context) (<-chan []adb.Device, <-chan error)
}

// Watcher feeds a Notifier until its context ends.
type Watcher struct {
	Notifier *notifier.Notifier
	Sources  Sources
	// Tracker may be nil, in which case connected is polled.
	Tracker Tracker

	interval  time.Duration
	intervalC chan time.Duration
}

// New returns a Watcher polling every interval.
func New(n *notifier.Notifier, sources Sources, tracker Tracker, interval time.Duration) *Watcher {
	return &Watcher{
		Notifier:  n,
		Sources:   sources,
		Tracker:   tracker,
		interval:  interval,
		intervalC: make(chan time.Duration, 1),
	}
}

// SetInterval changes the poll interval of a running watcher.
func (w *Watcher) SetInterval(d time.Duration) {
	if d <= 0 {
		return
	}
	for {
		select {
		case w.intervalC <- d:
			return
		default:
		}
		// drop a pending value nobody has read yet
		select {
		case <-w.intervalC:
		default:
		}
	}
}

// Refresh reads both conditions once and applies them.
func (w *Watcher) Refresh(ctx context.Context) {
	w.Notifier.SetEnabled(w.Sources.IsDebugEnabled(ctx))
	w.Notifier.SetConnected(w.Sources.IsUSBConnected(ctx))
}

// Run blocks until ctx is cancelled. It always returns nil; collaborator
// failures are logged and read as false.
func (w *Watcher) Run(ctx context.Context) error {
	w.Refresh(ctx)

	var updates <-chan []adb.Device
	var errc <-chan error
	pollConnected := true
	if w.Tracker != nil {
		updates, errc = w.Tracker.TrackDevices(ctx)
		pollConnected = false
	}

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil

		case d := <-w.intervalC:
			log.WithField("interval", d).Info("poll interval changed")
			w.interval = d
			ticker.Reset(d)

		case <-ticker.C:
			w.Notifier.SetEnabled(w.Sources.IsDebugEnabled(ctx))
			if pollConnected {
				w.Notifier.SetConnected(w.Sources.IsUSBConnected(ctx))
			}

		case devices, ok := <-updates:
			if !ok {
				updates = nil
				if ctx.Err() != nil {
					return nil
				}
				var err error
				if errc != nil {
					err = <-errc
				}
				log.WithError(err).Warn("device tracking stopped, polling instead")
				pollConnected = true
				continue
			}
			// a device coming online may also flip the setting read
			w.Notifier.SetEnabled(w.Sources.IsDebugEnabled(ctx))
			w.Notifier.SetConnected(w.Sources.ConnectedFrom(ctx, devices))
		}
	}
}
