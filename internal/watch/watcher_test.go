package watch

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/FluidXR/adbdetect/internal/adb"
	"github.com/FluidXR/adbdetect/internal/notifier"
)

type fakeSources struct {
	enabled   atomic.Bool
	connected atomic.Bool
	polls     atomic.Int32
}

func (f *fakeSources) IsDebugEnabled(context.Context) bool { return f.enabled.Load() }

func (f *fakeSources) IsUSBConnected(context.Context) bool {
	f.polls.Add(1)
	return f.connected.Load()
}

func (f *fakeSources) ConnectedFrom(_ context.Context, devices []adb.Device) bool {
	for _, d := range devices {
		if d.IsUSB() {
			return true
		}
	}
	return false
}

type fakeTracker struct {
	updates chan []adb.Device
	errc    chan error
}

func newFakeTracker() *fakeTracker {
	return &fakeTracker{updates: make(chan []adb.Device), errc: make(chan error, 1)}
}

func (f *fakeTracker) TrackDevices(context.Context) (<-chan []adb.Device, <-chan error) {
	return f.updates, f.errc
}

type edges struct {
	c chan bool
}

func subscribe(n *notifier.Notifier) *edges {
	e := &edges{c: make(chan bool, 16)}
	n.Subscribe(func() { e.c <- true }, func() { e.c <- false })
	return e
}

func (e *edges) next(t *testing.T) bool {
	t.Helper()
	select {
	case v := <-e.c:
		return v
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for transition")
		return false
	}
}

func (e *edges) none(t *testing.T) {
	t.Helper()
	select {
	case v := <-e.c:
		t.Fatalf("unexpected transition to %v", v)
	case <-time.After(50 * time.Millisecond):
	}
}

var usbDevice = []adb.Device{{Serial: "A", State: "device", ConnType: adb.USB}}

func runWatcher(t *testing.T, w *Watcher) (cancel func()) {
	t.Helper()
	ctx, cancelCtx := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()
	return func() {
		cancelCtx()
		select {
		case err := <-done:
			require.NoError(t, err)
		case <-time.After(2 * time.Second):
			t.Fatal("Run did not return after cancel")
		}
	}
}

func TestInitialRefreshActivates(t *testing.T) {
	src := &fakeSources{}
	src.enabled.Store(true)
	src.connected.Store(true)

	n := notifier.New()
	e := subscribe(n)
	stop := runWatcher(t, New(n, src, nil, time.Hour))
	defer stop()

	assert.True(t, e.next(t))
}

func TestTrackerDrivesConnected(t *testing.T) {
	src := &fakeSources{}
	src.enabled.Store(true)
	tr := newFakeTracker()

	n := notifier.New()
	e := subscribe(n)
	stop := runWatcher(t, New(n, src, tr, time.Hour))
	defer stop()

	tr.updates <- usbDevice
	assert.True(t, e.next(t))

	tr.updates <- usbDevice
	e.none(t)

	tr.updates <- []adb.Device{{Serial: "A", State: "offline", ConnType: adb.USB}}
	assert.False(t, e.next(t))
}

func TestPollsEnabled(t *testing.T) {
	src := &fakeSources{}
	tr := newFakeTracker()

	n := notifier.New()
	e := subscribe(n)
	stop := runWatcher(t, New(n, src, tr, 10*time.Millisecond))
	defer stop()

	tr.updates <- usbDevice
	e.none(t)

	src.enabled.Store(true)
	assert.True(t, e.next(t))

	src.enabled.Store(false)
	assert.False(t, e.next(t))
}

func TestTrackerFailureFallsBackToPolling(t *testing.T) {
	src := &fakeSources{}
	src.enabled.Store(true)
	tr := newFakeTracker()

	n := notifier.New()
	e := subscribe(n)
	stop := runWatcher(t, New(n, src, tr, 10*time.Millisecond))
	defer stop()

	tr.errc <- errors.New("adb server died")
	close(tr.updates)

	src.connected.Store(true)
	assert.True(t, e.next(t))
	assert.Eventually(t, func() bool { return src.polls.Load() > 2 }, 2*time.Second, 5*time.Millisecond)
}

func TestPollingWithoutTracker(t *testing.T) {
	src := &fakeSources{}
	n := notifier.New()
	e := subscribe(n)
	stop := runWatcher(t, New(n, src, nil, 10*time.Millisecond))
	defer stop()

	src.enabled.Store(true)
	src.connected.Store(true)
	assert.True(t, e.next(t))

	src.connected.Store(false)
	assert.False(t, e.next(t))
}

func TestSetInterval(t *testing.T) {
	src := &fakeSources{}
	n := notifier.New()
	e := subscribe(n)
	w := New(n, src, nil, time.Hour)
	stop := runWatcher(t, w)
	defer stop()
	require.Eventually(t, func() bool { return src.polls.Load() == 1 }, 2*time.Second, time.Millisecond)

	src.enabled.Store(true)
	src.connected.Store(true)
	e.none(t)

	w.SetInterval(10 * time.Millisecond)
	w.SetInterval(0)
	assert.True(t, e.next(t))
}
