package adb

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"
)

var (
	ErrNoDevice        = errors.New("no device connected")
	ErrMultipleDevices = errors.New("more than one device connected, pick one with --device")
)

// DefaultTimeout bounds a single adb invocation.
const DefaultTimeout = 5 * time.Second

// Client wraps ADB command-line calls.
type Client struct {
	Path    string
	Timeout time.Duration
	Runner  Runner
}

// NewClient creates a new ADB client for the adb binary at path.
// An empty path means "adb" from PATH.
func NewClient(path string, timeout time.Duration) *Client {
	if path == "" {
		path = "adb"
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Client{Path: path, Timeout: timeout, Runner: ExecRunner{}}
}

func (c *Client) run(ctx context.Context, args ...string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.Timeout)
	defer cancel()
	out, err := c.Runner.Run(ctx, c.Path, args...)
	if err != nil {
		return string(out), fmt.Errorf("adb %s: %w\n%s", strings.Join(args, " "), err, out)
	}
	return string(out), nil
}

// Devices returns all ADB devices known to the server.
func (c *Client) Devices(ctx context.Context) ([]Device, error) {
	out, err := c.run(ctx, "devices", "-l")
	if err != nil {
		return nil, err
	}
	return parseDeviceList(out), nil
}

// Resolve picks the target device. With a serial it must be listed;
// without one exactly one online device must exist.
func (c *Client) Resolve(ctx context.Context, serial string) (Device, error) {
	devices, err := c.Devices(ctx)
	if err != nil {
		return Device{}, err
	}
	if serial != "" {
		d, ok := Find(devices, serial)
		if !ok {
			return Device{}, fmt.Errorf("%s: %w", serial, ErrNoDevice)
		}
		return d, nil
	}
	var online []Device
	for _, d := range devices {
		if d.IsOnline() {
			online = append(online, d)
		}
	}
	switch len(online) {
	case 0:
		return Device{}, ErrNoDevice
	case 1:
		return online[0], nil
	default:
		return Device{}, ErrMultipleDevices
	}
}

// Connect connects to a wireless ADB device.
func (c *Client) Connect(ctx context.Context, ip string, port int) error {
	addr := fmt.Sprintf("%s:%d", ip, port)
	out, err := c.run(ctx, "connect", addr)
	if err != nil {
		return err
	}
	if strings.Contains(out, "connected") && !strings.Contains(out, "cannot") {
		return nil
	}
	return fmt.Errorf("adb connect %s: %s", addr, strings.TrimSpace(out))
}

// EnsureConnected runs `adb connect` for a host:port serial the server
// does not list as online. Any other serial is left alone.
func (c *Client) EnsureConnected(ctx context.Context, serial string) error {
	host, portStr, err := net.SplitHostPort(serial)
	if err != nil {
		return nil
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return nil
	}
	devices, err := c.Devices(ctx)
	if err != nil {
		return err
	}
	if d, ok := Find(devices, serial); ok && d.IsOnline() {
		return nil
	}
	return c.Connect(ctx, host, port)
}

// Shell runs a shell command on the device.
func (c *Client) Shell(ctx context.Context, serial string, args ...string) (string, error) {
	full := make([]string, 0, len(args)+3)
	if serial != "" {
		full = append(full, "-s", serial)
	}
	full = append(full, "shell")
	full = append(full, args...)
	return c.run(ctx, full...)
}

// GetProp returns the value of a system property, empty if unset.
func (c *Client) GetProp(ctx context.Context, serial, name string) (string, error) {
	out, err := c.Shell(ctx, serial, "getprop", name)
	if err != nil {
		return "", err
	}
	return firstLine(out), nil
}

// GetSetting returns a value from the settings provider. Unset keys
// come back as "null".
func (c *Client) GetSetting(ctx context.Context, serial, namespace, key string) (string, error) {
	out, err := c.Shell(ctx, serial, "settings", "get", namespace, key)
	if err != nil {
		return "", err
	}
	return firstLine(out), nil
}

// StickyExtras returns the extras of the sticky broadcast for action,
// nil if the device holds no such broadcast.
func (c *Client) StickyExtras(ctx context.Context, serial, action string) (Extras, error) {
	out, err := c.Shell(ctx, serial, "dumpsys", "activity", "broadcasts")
	if err != nil {
		return nil, err
	}
	return parseStickyExtras(out, action), nil
}

// firstLine returns the first line that is not an adb server notice
// such as "* daemon started successfully".
func firstLine(s string) string {
	for _, line := range strings.Split(s, "\n") {
		line = strings.TrimSpace(line)
		if strings.HasPrefix(line, "* ") {
			continue
		}
		return line
	}
	return ""
}

// parseDeviceList parses `adb devices -l` output.
func parseDeviceList(output string) []Device {
	var devices []Device
	scanner := bufio.NewScanner(strings.NewReader(output))
	for scanner.Scan() {
		line := scanner.Text()
		if strings.HasPrefix(line, "List of") || strings.HasPrefix(line, "*") || strings.TrimSpace(line) == "" {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) < 2 {
			continue
		}
		d := Device{
			Serial: fields[0],
			State:  fields[1],
		}
		// Determine connection type
		if strings.Contains(d.Serial, ":") || strings.Contains(d.Serial, "._adb-tls-") {
			d.ConnType = WiFi
		} else {
			d.ConnType = USB
		}
		// Parse key:value pairs
		for _, f := range fields[2:] {
			key, value, ok := strings.Cut(f, ":")
			if !ok {
				continue
			}
			switch key {
			case "model":
				d.Model = value
			case "product":
				d.Product = value
			case "transport_id":
				d.TransportID = value
			}
		}
		devices = append(devices, d)
	}
	return devices
}

// Extras holds the key/value pairs of an intent extras bundle.
type Extras map[string]string

// Bool returns the boolean extra, false when absent or not a boolean.
func (e Extras) Bool(key string) bool {
	v, ok := e[key]
	if !ok {
		return false
	}
	b, err := strconv.ParseBool(v)
	return err == nil && b
}

// parseStickyExtras finds the sticky broadcast for action in
// `dumpsys activity broadcasts` output and parses its Bundle[{...}] line.
func parseStickyExtras(output, action string) Extras {
	header := "Sticky action " + action + ":"
	scanner := bufio.NewScanner(strings.NewReader(output))
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	inAction := false
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if strings.HasPrefix(line, "* Sticky action ") {
			inAction = strings.HasSuffix(line, header)
			continue
		}
		if strings.HasPrefix(line, "Sticky broadcasts for") {
			inAction = false
			continue
		}
		if !inAction {
			continue
		}
		start := strings.Index(line, "Bundle[{")
		if start < 0 {
			continue
		}
		body := line[start+len("Bundle[{"):]
		end := strings.LastIndex(body, "}]")
		if end < 0 {
			continue
		}
		return parseBundle(body[:end])
	}
	return nil
}

// parseBundle splits "k=v, k2=v2" at top-level commas only.
func parseBundle(body string) Extras {
	extras := make(Extras)
	depth := 0
	start := 0
	add := func(part string) {
		key, value, ok := strings.Cut(strings.TrimSpace(part), "=")
		if ok && key != "" {
			extras[key] = value
		}
	}
	for i, r := range body {
		switch r {
		case '[', '{', '(':
			depth++
		case ']', '}', ')':
			if depth > 0 {
				depth--
			}
		case ',':
			if depth == 0 {
				add(body[start:i])
				start = i + 1
			}
		}
	}
	add(body[start:])
	return extras
}
