package telnet

import (
	"bytes"
	"strconv"
	"strings"
)

// Command is a single control sequence received from or sent to the peer.
// Subnegotiation holds the payload between the option byte and IAC SE with
// doubled IACs already collapsed.
type Command struct {
	OpCode         byte
	Option         Option
	Subnegotiation []byte
}

// IsNegotiation reports whether the command is DO, DONT, WILL or WONT.
func (c Command) IsNegotiation() bool {
	switch c.OpCode {
	case DO, DONT, WILL, WONT:
		return true
	}
	return false
}

func (c Command) String() string {
	var sb strings.Builder
	sb.WriteString("IAC ")
	sb.WriteString(commandName(c.OpCode))

	if !c.IsNegotiation() && c.OpCode != SB {
		return sb.String()
	}

	sb.WriteByte(' ')
	sb.WriteString(c.Option.String())

	if c.OpCode != SB {
		return sb.String()
	}

	for _, b := range c.Subnegotiation {
		sb.WriteByte(' ')
		sb.WriteString(strconv.Itoa(int(b)))
	}

	sb.WriteString(" IAC SE")
	return sb.String()
}

// Bytes encodes the command for the wire. IAC bytes inside a
// subnegotiation payload are doubled.
func (c Command) Bytes() []byte {
	size := 2
	if c.IsNegotiation() || c.OpCode == SB {
		size++
	}
	if c.OpCode == SB {
		size += len(c.Subnegotiation) + 2
	}

	b := make([]byte, 0, size)
	b = append(b, IAC, c.OpCode)

	if size > 2 {
		b = append(b, byte(c.Option))
	}

	if c.OpCode == SB {
		for _, v := range c.Subnegotiation {
			if v == IAC {
				b = append(b, IAC)
			}
			b = append(b, v)
		}
		b = append(b, IAC, SE)
	}

	return b
}

// parseCommand builds a Command from a complete sequence as delimited by
// sequenceLength. seq[0] is always IAC.
func parseCommand(seq []byte) Command {
	c := Command{OpCode: seq[1]}

	switch {
	case c.OpCode == SB:
		payload := seq[2 : len(seq)-2]
		if len(payload) == 0 {
			return c
		}
		c.Option = Option(payload[0])
		c.Subnegotiation = unescape(payload[1:])
	case len(seq) == 3:
		c.Option = Option(seq[2])
	}

	return c
}

// unescape collapses doubled IACs in a subnegotiation payload.
func unescape(payload []byte) []byte {
	if bytes.IndexByte(payload, IAC) < 0 {
		return append([]byte(nil), payload...)
	}

	out := make([]byte, 0, len(payload))
	for i := 0; i < len(payload); i++ {
		out = append(out, payload[i])
		if payload[i] == IAC && i+1 < len(payload) && payload[i+1] == IAC {
			i++
		}
	}
	return out
}

// Escape doubles every IAC byte so that p is sent as literal data.
func Escape(p []byte) []byte {
	if bytes.IndexByte(p, IAC) < 0 {
		return p
	}
	return bytes.ReplaceAll(p, []byte{IAC}, []byte{IAC, IAC})
}
