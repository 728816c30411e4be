package adb

import (
	"context"
	"fmt"
	"io"
	"strconv"
)

// TrackDevices streams the device list every time the adb server reports
// a change. The first list arrives immediately. Both channels are closed
// when the stream ends; a non-nil error is sent first unless ctx was
// cancelled.
func (c *Client) TrackDevices(ctx context.Context) (<-chan []Device, <-chan error) {
	updates := make(chan []Device)
	errc := make(chan error, 1)

	go func() {
		defer close(updates)
		defer close(errc)

		stream, err := c.Runner.Start(ctx, c.Path, "track-devices", "-l")
		if err != nil {
			errc <- fmt.Errorf("adb track-devices: %w", err)
			return
		}
		defer stream.Close()

		done := make(chan struct{})
		defer close(done)
		go func() {
			select {
			case <-ctx.Done():
				stream.Close()
			case <-done:
			}
		}()

		for {
			payload, err := readFrame(stream)
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				if err == io.EOF {
					err = io.ErrUnexpectedEOF
				}
				errc <- fmt.Errorf("adb track-devices: %w", err)
				return
			}
			select {
			case updates <- parseDeviceList(payload):
			case <-ctx.Done():
				return
			}
		}
	}()

	return updates, errc
}

// readFrame reads one length-prefixed track-devices message: four hex
// digits followed by that many bytes.
func readFrame(r io.Reader) (string, error) {
	var head [4]byte
	if _, err := io.ReadFull(r, head[:]); err != nil {
		return "", err
	}
	n, err := strconv.ParseUint(string(head[:]), 16, 16)
	if err != nil {
		return "", fmt.Errorf("bad frame length %q", head[:])
	}
	buf := make([]byte, n)
	if _, err := io.ReadFull(r, buf); err != nil {
		return "", err
	}
	return string(buf), nil
}
