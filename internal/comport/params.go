package comport

import (
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidParameters is returned when modem parameters are out of range.
var ErrInvalidParameters = errors.New("invalid modem parameters")

// Parity is the RFC 2217 SET-PARITY value. The zero value means unset.
type Parity uint8

// Parity values
const (
	ParityNone  Parity = 1
	ParityOdd   Parity = 2
	ParityEven  Parity = 3
	ParityMark  Parity = 4
	ParitySpace Parity = 5
)

var parityNames = map[Parity]string{
	ParityNone:  "none",
	ParityOdd:   "odd",
	ParityEven:  "even",
	ParityMark:  "mark",
	ParitySpace: "space",
}

func (p Parity) String() string {
	if name, ok := parityNames[p]; ok {
		return name
	}
	if p == 0 {
		return "unset"
	}
	return fmt.Sprintf("parity(%d)", uint8(p))
}

// Letter returns the single-letter form used in "8N1" notation.
func (p Parity) Letter() byte {
	if name, ok := parityNames[p]; ok {
		return name[0] - 'a' + 'A'
	}
	return '?'
}

// Valid reports whether p is one of the five wire values.
func (p Parity) Valid() bool {
	return p >= ParityNone && p <= ParitySpace
}

// ParseParity accepts a parity name or its letter, case-insensitively.
// An empty string yields the unset parity.
func ParseParity(s string) (Parity, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return 0, nil
	}
	for p, name := range parityNames {
		if s == name || s == name[:1] {
			return p, nil
		}
	}
	return 0, fmt.Errorf("%w: unknown parity %q", ErrInvalidParameters, s)
}

func (p Parity) MarshalText() ([]byte, error) {
	if p == 0 {
		return []byte{}, nil
	}
	if !p.Valid() {
		return nil, fmt.Errorf("%w: parity %d", ErrInvalidParameters, uint8(p))
	}
	return []byte(p.String()), nil
}

func (p *Parity) UnmarshalText(text []byte) error {
	v, err := ParseParity(string(text))
	if err != nil {
		return err
	}
	*p = v
	return nil
}

// Parameters are the serial line settings sent to the access server.
// A zero field is absent and takes a default or the current value.
type Parameters struct {
	Baud     uint32 `json:"baud,omitempty"`
	DataBits uint8  `json:"data_bits,omitempty"`
	Parity   Parity `json:"parity,omitempty"`
	StopBits uint8  `json:"stop_bits,omitempty"`
}

// WithDefaults fills absent fields: 115200 baud, 8 data bits, 1 stop bit,
// no parity for 8 data bits and even parity otherwise.
func (p Parameters) WithDefaults() Parameters {
	if p.Baud == 0 {
		p.Baud = DefaultBaud
	}
	if p.DataBits == 0 {
		p.DataBits = DefaultDataBits
	}
	if p.StopBits == 0 {
		p.StopBits = DefaultStopBits
	}
	if p.Parity == 0 {
		if p.DataBits == 8 {
			p.Parity = ParityNone
		} else {
			p.Parity = ParityEven
		}
	}
	return p
}

// Merge returns p with absent fields taken from cur.
func (p Parameters) Merge(cur Parameters) Parameters {
	if p.Baud == 0 {
		p.Baud = cur.Baud
	}
	if p.DataBits == 0 {
		p.DataBits = cur.DataBits
	}
	if p.Parity == 0 {
		p.Parity = cur.Parity
	}
	if p.StopBits == 0 {
		p.StopBits = cur.StopBits
	}
	return p
}

// Validate checks a fully populated parameter set.
func (p Parameters) Validate() error {
	if p.Baud == 0 {
		return fmt.Errorf("%w: baud rate must be positive", ErrInvalidParameters)
	}
	if p.DataBits < 5 || p.DataBits > 8 {
		return fmt.Errorf("%w: data bits %d not in 5..8", ErrInvalidParameters, p.DataBits)
	}
	if !p.Parity.Valid() {
		return fmt.Errorf("%w: parity %d", ErrInvalidParameters, uint8(p.Parity))
	}
	if p.StopBits != StopBits1 && p.StopBits != StopBits2 {
		return fmt.Errorf("%w: stop bits %d not 1 or 2", ErrInvalidParameters, p.StopBits)
	}
	return nil
}

func (p Parameters) String() string {
	return fmt.Sprintf("%d %d%c%d", p.Baud, p.DataBits, p.Parity.Letter(), p.StopBits)
}
