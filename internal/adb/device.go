package adb

// ConnectionType indicates how a device is attached to the host.
type ConnectionType string

const (
	USB  ConnectionType = "usb"
	WiFi ConnectionType = "wifi"
)

// Device is one entry of `adb devices -l`.
type Device struct {
	Serial      string
	State       string // "device", "offline", "unauthorized", etc.
	ConnType    ConnectionType
	Model       string
	Product     string
	TransportID string
}

// IsOnline returns true if the device is in "device" state.
func (d Device) IsOnline() bool {
	return d.State == "device"
}

// IsUSB returns true if the device is attached over a USB cable and ready.
func (d Device) IsUSB() bool {
	return d.IsOnline() && d.ConnType == USB
}

// Find returns the device with the given serial.
func Find(devices []Device, serial string) (Device, bool) {
	for _, d := range devices {
		if d.Serial == serial {
			return d, true
		}
	}
	return Device{}, false
}
