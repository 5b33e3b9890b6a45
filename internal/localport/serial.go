package localport

import (
	"fmt"

	"go.bug.st/serial"

	"git2.jad.ru/MeterRS485/rfc2217-client/internal/comport"
)

// Serial is a local serial device.
type Serial struct {
	serial.Port
	name string
}

// OpenSerial opens path with the given line settings.
func OpenSerial(path string, p comport.Parameters) (*Serial, error) {
	port, err := serial.Open(path, SerialMode(p))
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	return &Serial{Port: port, name: path}, nil
}

func (s *Serial) Name() string {
	return s.name
}

// SetParameters reconfigures the device, keeping it in step with the
// remote port.
func (s *Serial) SetParameters(p comport.Parameters) error {
	return s.SetMode(SerialMode(p))
}

// SerialMode converts modem parameters to a serial.Mode.
func SerialMode(p comport.Parameters) *serial.Mode {
	p = p.WithDefaults()
	return &serial.Mode{
		BaudRate: int(p.Baud),
		DataBits: int(p.DataBits),
		Parity:   convertParity(p.Parity),
		StopBits: convertStopBits(p.StopBits),
	}
}

func convertParity(p comport.Parity) serial.Parity {
	switch p {
	case comport.ParityOdd:
		return serial.OddParity
	case comport.ParityEven:
		return serial.EvenParity
	case comport.ParityMark:
		return serial.MarkParity
	case comport.ParitySpace:
		return serial.SpaceParity
	default:
		return serial.NoParity
	}
}

func convertStopBits(bits uint8) serial.StopBits {
	switch bits {
	case comport.StopBits2:
		return serial.TwoStopBits
	case comport.StopBits1_5:
		return serial.OnePointFiveStopBits
	default:
		return serial.OneStopBit
	}
}
