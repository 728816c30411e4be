// Package probe reads USB debugging state from a device through adb.
//
// Every check degrades to false on failure and logs the cause; callers
// never see an error from IsDebugEnabled or IsUSBConnected.
package probe

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"

	log "github.com/sirupsen/logrus"

	"github.com/FluidXR/adbdetect/internal/adb"
)

const (
	// USBStateAction is the sticky broadcast carrying the cable state.
	USBStateAction = "android.hardware.usb.action.USB_STATE"
	// USBConnectedExtra is the boolean extra of USBStateAction.
	USBConnectedExtra = "connected"

	adbEnabledSetting = "adb_enabled"
	adbdServiceProp   = "init.svc.adbd"
	adbTCPPortProp    = "service.adb.tcp.port"
)

var (
	ErrAdbdNotRunning = errors.New("adbd is not running")
	ErrNoTCPPort      = errors.New("adb tcp port is not set")
)

// PortResult is the outcome of ProbePort. Err holds the reason when Open
// is false; a failed query and a stopped adbd both end up here. Raw is
// the property as read, Port is set only when Raw is numeric.
type PortResult struct {
	Open bool
	Port int
	Raw  string
	Err  error
}

// Checker runs the checks against one device.
type Checker struct {
	ADB    *adb.Client
	Serial string
	Log    *log.Entry

	mu      sync.Mutex
	failing map[string]bool
}

// NewChecker returns a Checker for serial. An empty serial lets adb pick
// the only attached device.
func NewChecker(client *adb.Client, serial string) *Checker {
	return &Checker{
		ADB:    client,
		Serial: serial,
		Log:    log.WithField("device", serial),
	}
}

// IsDebugEnabled reports whether the adb_enabled global setting is on.
func (c *Checker) IsDebugEnabled(ctx context.Context) bool {
	v, err := c.ADB.GetSetting(ctx, c.Serial, "global", adbEnabledSetting)
	if err != nil {
		c.fail(adbEnabledSetting, err, "read adb_enabled failed")
		return false
	}
	c.ok(adbEnabledSetting)
	n, err := strconv.Atoi(v)
	if err != nil {
		// "null" when the key was never written
		c.Log.WithField("value", v).Debug("adb_enabled is not an integer")
		return false
	}
	return n != 0
}

// IsUSBConnected reports whether the device is attached over USB and its
// USB_STATE broadcast says the cable is connected.
func (c *Checker) IsUSBConnected(ctx context.Context) bool {
	devices, err := c.ADB.Devices(ctx)
	if err != nil {
		c.fail("devices", err, "list devices failed")
		return false
	}
	c.ok("devices")
	return c.ConnectedFrom(ctx, devices)
}

// ConnectedFrom is IsUSBConnected for an already fetched device list.
func (c *Checker) ConnectedFrom(ctx context.Context, devices []adb.Device) bool {
	if !c.attachedOverUSB(devices) {
		return false
	}
	extras, err := c.ADB.StickyExtras(ctx, c.Serial, USBStateAction)
	if err != nil {
		c.fail(USBStateAction, err, "read USB_STATE failed")
		return false
	}
	c.ok(USBStateAction)
	return extras.Bool(USBConnectedExtra)
}

func (c *Checker) attachedOverUSB(devices []adb.Device) bool {
	if c.Serial != "" {
		d, ok := adb.Find(devices, c.Serial)
		return ok && d.IsUSB()
	}
	var online []adb.Device
	for _, d := range devices {
		if d.IsOnline() {
			online = append(online, d)
		}
	}
	return len(online) == 1 && online[0].IsUSB()
}

// IsUSBDebugging is the static check: debugging enabled and cable connected.
func (c *Checker) IsUSBDebugging(ctx context.Context) bool {
	return c.IsDebugEnabled(ctx) && c.IsUSBConnected(ctx)
}

// ProbePort checks that adbd is running and listening on a TCP port.
// It only sees the port configuration, not whether a host is attached.
func (c *Checker) ProbePort(ctx context.Context) PortResult {
	res := c.probePort(ctx)
	if res.Err != nil {
		c.Log.WithError(res.Err).Debug("adb port closed")
	}
	return res
}

func (c *Checker) probePort(ctx context.Context) PortResult {
	state, err := c.ADB.GetProp(ctx, c.Serial, adbdServiceProp)
	if err != nil {
		return PortResult{Err: fmt.Errorf("getprop %s: %w", adbdServiceProp, err)}
	}
	if state != "running" {
		return PortResult{Err: ErrAdbdNotRunning}
	}
	port, err := c.ADB.GetProp(ctx, c.Serial, adbTCPPortProp)
	if err != nil {
		return PortResult{Err: fmt.Errorf("getprop %s: %w", adbTCPPortProp, err)}
	}
	if port == "" {
		return PortResult{Err: ErrNoTCPPort}
	}
	res := PortResult{Open: true, Raw: port}
	if n, err := strconv.Atoi(port); err == nil {
		res.Port = n
	} else {
		c.Log.WithField("value", port).Debug("adb tcp port is not numeric")
	}
	return res
}

// fail logs a collaborator failure at warn level when check starts
// failing and at debug level while it keeps failing, so a watch with no
// device attached does not repeat the warning on every poll.
func (c *Checker) fail(check string, err error, msg string) {
	c.mu.Lock()
	repeated := c.failing[check]
	if c.failing == nil {
		c.failing = make(map[string]bool)
	}
	c.failing[check] = true
	c.mu.Unlock()

	entry := c.Log.WithError(err)
	if repeated {
		entry.Debug(msg)
		return
	}
	entry.Warn(msg)
}

func (c *Checker) ok(check string) {
	c.mu.Lock()
	was := c.failing[check]
	delete(c.failing, check)
	c.mu.Unlock()

	if was {
		c.Log.WithField("check", check).Info("read recovered")
	}
}
