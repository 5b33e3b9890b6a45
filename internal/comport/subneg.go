package comport

import (
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"

	"git2.jad.ru/MeterRS485/rfc2217-client/internal/telnet"
)

var errNotComPort = errors.New("not a COM-PORT-OPTION subnegotiation")

// Subnegotiation is one COM-PORT-OPTION message: a command code and its
// data, without the IAC SB 44 ... IAC SE framing.
type Subnegotiation struct {
	Code byte   // Command code (0-12 for client requests, +100 for server)
	Data []byte // Command data
}

// ParseSubnegotiation extracts a COM-PORT-OPTION message from a telnet
// SB command.
func ParseSubnegotiation(c telnet.Command) (Subnegotiation, error) {
	if c.OpCode != telnet.SB || c.Option != telnet.OptComPort {
		return Subnegotiation{}, errNotComPort
	}
	if len(c.Subnegotiation) == 0 {
		return Subnegotiation{}, errors.New("empty COM-PORT-OPTION subnegotiation")
	}
	return Subnegotiation{
		Code: c.Subnegotiation[0],
		Data: c.Subnegotiation[1:],
	}, nil
}

// Command wraps the message in a telnet SB command.
func (s Subnegotiation) Command() telnet.Command {
	payload := make([]byte, 0, len(s.Data)+1)
	payload = append(payload, s.Code)
	payload = append(payload, s.Data...)
	return telnet.Command{
		OpCode:         telnet.SB,
		Option:         telnet.OptComPort,
		Subnegotiation: payload,
	}
}

// Bytes encodes the framed message for the wire.
func (s Subnegotiation) Bytes() []byte {
	return s.Command().Bytes()
}

// IsResponse reports whether the message was sent by an access server.
func (s Subnegotiation) IsResponse() bool {
	return s.Code >= ServerResponseOffset
}

// Response builds the server acknowledgment echoing the same data.
func (s Subnegotiation) Response() Subnegotiation {
	return Subnegotiation{Code: s.Code + ServerResponseOffset, Data: s.Data}
}

// IsQuery returns true if this is a query command (value=0 means "request current value")
func (s Subnegotiation) IsQuery() bool {
	switch s.request() {
	case SetBaudrate:
		if len(s.Data) >= 4 {
			return binary.BigEndian.Uint32(s.Data[:4]) == 0
		}
	case SetDatasize, SetParity, SetStopsize, SetControl:
		if len(s.Data) >= 1 {
			return s.Data[0] == 0
		}
	}
	return false
}

func (s Subnegotiation) request() byte {
	if s.IsResponse() {
		return s.Code - ServerResponseOffset
	}
	return s.Code
}

// String returns human-readable description of the message
func (s Subnegotiation) String() string {
	code := s.request()
	name, ok := commandNames[code]
	if !ok {
		return fmt.Sprintf("UNKNOWN-%d: %s", s.Code, hex.EncodeToString(s.Data))
	}
	if s.IsResponse() {
		name += " (ack)"
	}

	switch code {
	case SetBaudrate:
		if len(s.Data) >= 4 {
			return fmt.Sprintf("%s: %d", name, binary.BigEndian.Uint32(s.Data[:4]))
		}
	case SetDatasize:
		if len(s.Data) >= 1 {
			return fmt.Sprintf("%s: %d bits", name, s.Data[0])
		}
	case SetParity:
		if len(s.Data) >= 1 {
			p := Parity(s.Data[0])
			if p.Valid() {
				return fmt.Sprintf("%s: %s", name, p)
			}
			return fmt.Sprintf("%s: %d", name, s.Data[0])
		}
	case SetStopsize:
		if len(s.Data) >= 1 {
			stop := []string{"1", "2", "1.5"}
			v := int(s.Data[0])
			if v > 0 && v <= len(stop) {
				return fmt.Sprintf("%s: %s", name, stop[v-1])
			}
			return fmt.Sprintf("%s: %d", name, v)
		}
	case SetControl:
		if len(s.Data) >= 1 {
			return fmt.Sprintf("%s: %d", name, s.Data[0])
		}
	default:
		return fmt.Sprintf("%s: %s", name, hex.EncodeToString(s.Data))
	}

	return name + ": <invalid>"
}

// ParameterRequests returns the four SET requests for p in the order they
// are sent: baud rate, data size, stop size, parity.
func ParameterRequests(p Parameters) []Subnegotiation {
	baud := make([]byte, 4)
	binary.BigEndian.PutUint32(baud, p.Baud)

	return []Subnegotiation{
		{Code: SetBaudrate, Data: baud},
		{Code: SetDatasize, Data: []byte{p.DataBits}},
		{Code: SetStopsize, Data: []byte{p.StopBits}},
		{Code: SetParity, Data: []byte{byte(p.Parity)}},
	}
}

// ApplyRequest updates p from a SET-BAUDRATE/DATASIZE/PARITY/STOPSIZE
// request. Queries and other commands leave p unchanged.
func (p *Parameters) ApplyRequest(s Subnegotiation) {
	if s.IsResponse() || s.IsQuery() {
		return
	}
	switch s.Code {
	case SetBaudrate:
		if len(s.Data) >= 4 {
			p.Baud = binary.BigEndian.Uint32(s.Data[:4])
		}
	case SetDatasize:
		if len(s.Data) >= 1 {
			p.DataBits = s.Data[0]
		}
	case SetParity:
		if len(s.Data) >= 1 {
			p.Parity = Parity(s.Data[0])
		}
	case SetStopsize:
		if len(s.Data) >= 1 {
			p.StopBits = s.Data[0]
		}
	}
}
