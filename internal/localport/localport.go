// Package localport provides the local end of the bridge: a pseudo
// terminal that other programs open like a serial device, or a real
// serial device.
package localport

import (
	"io"

	"git2.jad.ru/MeterRS485/rfc2217-client/internal/comport"
)

// Endpoint is a local byte stream with serial line settings.
type Endpoint interface {
	io.ReadWriteCloser
	// Name is the device path other programs use
	Name() string
	// SetParameters applies serial line settings where the device has any
	SetParameters(p comport.Parameters) error
}

// Open opens device as a serial port, or creates a pty when device is
// empty.
func Open(device string, p comport.Parameters) (Endpoint, error) {
	if device == "" {
		return OpenPty()
	}
	return OpenSerial(device, p)
}
