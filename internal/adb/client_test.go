package adb

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const devicesOutput = `List of devices attached
1WMHH815K90123         device usb:1-1 product:hollywood model:Quest_2 device:hollywood transport_id:3
192.168.1.40:5555      device product:eureka model:Quest_3 device:eureka transport_id:4
R58M12ABCDE            unauthorized usb:1-2 transport_id:5

`

const broadcastsOutput = `ACTIVITY MANAGER BROADCAST STATE (dumpsys activity broadcasts)

  Sticky broadcasts for user -1:
  * Sticky action android.intent.action.BATTERY_CHANGED:
    [0]: Intent { act=android.intent.action.BATTERY_CHANGED flg=0x60000010 (has extras) }
      extras: Bundle[{connected=false, level=80}]
  * Sticky action android.hardware.usb.action.USB_STATE:
    [0]: Intent { act=android.hardware.usb.action.USB_STATE flg=0x31000010 (has extras) }
      extras: Bundle[{host_connected=false, connected=true, unlocked=false, config_changed=false, adb=true, functions=[mtp, adb], configured=true}]
  * Sticky action android.net.conn.CONNECTIVITY_CHANGE:
`

func newTestClient() (*Client, *FakeRunner) {
	f := &FakeRunner{}
	c := NewClient("", time.Second)
	c.Runner = f
	return c, f
}

func TestParseDeviceList(t *testing.T) {
	devices := parseDeviceList(devicesOutput)
	require.Len(t, devices, 3)

	assert.Equal(t, Device{
		Serial:      "1WMHH815K90123",
		State:       "device",
		ConnType:    USB,
		Model:       "Quest_2",
		Product:     "hollywood",
		TransportID: "3",
	}, devices[0])
	assert.True(t, devices[0].IsUSB())

	assert.Equal(t, WiFi, devices[1].ConnType)
	assert.True(t, devices[1].IsOnline())
	assert.False(t, devices[1].IsUSB())

	assert.False(t, devices[2].IsOnline())
}

func TestParseDeviceListSkipsDaemonNoise(t *testing.T) {
	out := "* daemon not running; starting now at tcp:5037\n* daemon started successfully\nList of devices attached\n"
	assert.Empty(t, parseDeviceList(out))
}

func TestParseStickyExtras(t *testing.T) {
	extras := parseStickyExtras(broadcastsOutput, "android.hardware.usb.action.USB_STATE")
	require.NotNil(t, extras)
	assert.True(t, extras.Bool("connected"))
	assert.True(t, extras.Bool("adb"))
	assert.False(t, extras.Bool("host_connected"))
	assert.False(t, extras.Bool("missing"))
	assert.Equal(t, "[mtp, adb]", extras["functions"])

	assert.Nil(t, parseStickyExtras(broadcastsOutput, "android.intent.action.NOPE"))
	assert.False(t, Extras(nil).Bool("connected"))
}

func TestParseStickyExtrasDoesNotLeakAcrossActions(t *testing.T) {
	out := `  * Sticky action android.hardware.usb.action.USB_STATE:
    [0]: Intent { act=android.hardware.usb.action.USB_STATE }
  * Sticky action android.intent.action.BATTERY_CHANGED:
      extras: Bundle[{connected=true}]
`
	assert.Nil(t, parseStickyExtras(out, "android.hardware.usb.action.USB_STATE"))
}

func TestResolve(t *testing.T) {
	c, f := newTestClient()
	f.Set("devices -l", devicesOutput)
	ctx := context.Background()

	_, err := c.Resolve(ctx, "")
	assert.ErrorIs(t, err, ErrMultipleDevices)

	d, err := c.Resolve(ctx, "R58M12ABCDE")
	require.NoError(t, err)
	assert.Equal(t, "unauthorized", d.State)

	_, err = c.Resolve(ctx, "nope")
	assert.ErrorIs(t, err, ErrNoDevice)

	f.Set("devices -l", "List of devices attached\n1WMHH815K90123 device usb:1-1\n")
	d, err = c.Resolve(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, "1WMHH815K90123", d.Serial)

	f.Set("devices -l", "List of devices attached\n")
	_, err = c.Resolve(ctx, "")
	assert.ErrorIs(t, err, ErrNoDevice)
}

func TestGetPropAndSetting(t *testing.T) {
	c, f := newTestClient()
	f.Set("-s abc shell getprop init.svc.adbd", "running\r\n")
	f.Set("-s abc shell settings get global adb_enabled", "1\n")
	ctx := context.Background()

	v, err := c.GetProp(ctx, "abc", "init.svc.adbd")
	require.NoError(t, err)
	assert.Equal(t, "running", v)

	v, err = c.GetSetting(ctx, "abc", "global", "adb_enabled")
	require.NoError(t, err)
	assert.Equal(t, "1", v)

	f.Fail("-s abc shell getprop service.adb.tcp.port", errors.New("exit status 1"))
	_, err = c.GetProp(ctx, "abc", "service.adb.tcp.port")
	assert.Error(t, err)
}

func TestShellWithoutSerial(t *testing.T) {
	c, f := newTestClient()
	f.Set("shell getprop ro.product.model", "Quest 3\n")

	v, err := c.GetProp(context.Background(), "", "ro.product.model")
	require.NoError(t, err)
	assert.Equal(t, "Quest 3", v)
	assert.Equal(t, []string{"shell getprop ro.product.model"}, f.Calls)
}

func TestConnect(t *testing.T) {
	c, f := newTestClient()
	f.Set("connect 10.0.0.2:5555", "connected to 10.0.0.2:5555\n")
	assert.NoError(t, c.Connect(context.Background(), "10.0.0.2", 5555))

	f.Set("connect 10.0.0.3:5555", "cannot connect to 10.0.0.3:5555: Connection refused\n")
	assert.Error(t, c.Connect(context.Background(), "10.0.0.3", 5555))
}

func frame(payload string) string {
	return fmt.Sprintf("%04x%s", len(payload), payload)
}

func TestTrackDevices(t *testing.T) {
	c, f := newTestClient()
	f.Streams = map[string]string{
		"track-devices -l": frame("") +
			frame("1WMHH815K90123\tdevice usb:1-1 model:Quest_2\n") +
			frame("1WMHH815K90123\toffline usb:1-1\n"),
	}

	updates, errc := c.TrackDevices(context.Background())

	var got [][]Device
	for u := range updates {
		got = append(got, u)
	}
	require.Len(t, got, 3)
	assert.Empty(t, got[0])
	require.Len(t, got[1], 1)
	assert.True(t, got[1][0].IsUSB())
	assert.Equal(t, "Quest_2", got[1][0].Model)
	assert.False(t, got[2][0].IsOnline())

	err := <-errc
	assert.ErrorIs(t, err, io.ErrUnexpectedEOF)
}

func TestTrackDevicesStartFailure(t *testing.T) {
	c, f := newTestClient()
	f.Fail("track-devices -l", errors.New("no adb"))

	updates, errc := c.TrackDevices(context.Background())
	_, ok := <-updates
	assert.False(t, ok)
	assert.Error(t, <-errc)
}

func TestReadFrameBadLength(t *testing.T) {
	_, err := readFrame(strings.NewReader("zzzzabc"))
	assert.Error(t, err)
}

const daemonNotice = "* daemon not running; starting now at tcp:5037\n* daemon started successfully\n"

func TestDaemonNoticesAreNotValues(t *testing.T) {
	c, f := newTestClient()
	f.Set("-s abc shell settings get global adb_enabled", daemonNotice+"1\n")
	f.Set("-s abc shell getprop init.svc.adbd", daemonNotice+"running\n")
	ctx := context.Background()

	v, err := c.GetSetting(ctx, "abc", "global", "adb_enabled")
	require.NoError(t, err)
	assert.Equal(t, "1", v)

	v, err = c.GetProp(ctx, "abc", "init.svc.adbd")
	require.NoError(t, err)
	assert.Equal(t, "running", v)
}

func TestEnsureConnected(t *testing.T) {
	ctx := context.Background()

	t.Run("usb serial", func(t *testing.T) {
		c, f := newTestClient()
		require.NoError(t, c.EnsureConnected(ctx, "1WMHH815K90123"))
		assert.Empty(t, f.Calls)
	})

	t.Run("already online", func(t *testing.T) {
		c, f := newTestClient()
		f.Set("devices -l", devicesOutput)
		require.NoError(t, c.EnsureConnected(ctx, "192.168.1.40:5555"))
		assert.Equal(t, []string{"devices -l"}, f.Calls)
	})

	t.Run("dropped", func(t *testing.T) {
		c, f := newTestClient()
		f.Set("devices -l", devicesOutput)
		f.Set("connect 10.0.0.2:5555", "connected to 10.0.0.2:5555\n")
		require.NoError(t, c.EnsureConnected(ctx, "10.0.0.2:5555"))
		assert.Contains(t, f.Calls, "connect 10.0.0.2:5555")
	})

	t.Run("refused", func(t *testing.T) {
		c, f := newTestClient()
		f.Set("devices -l", devicesOutput)
		f.Set("connect 10.0.0.3:5555", "cannot connect to 10.0.0.3:5555: Connection refused\n")
		assert.Error(t, c.EnsureConnected(ctx, "10.0.0.3:5555"))
	})
}
