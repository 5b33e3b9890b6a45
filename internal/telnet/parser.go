package telnet

import (
	"bytes"

	"go.uber.org/zap"
)

// Disposition tells the parser whether a Handler consumed a command.
type Disposition int

const (
	// NotApplicable lets the parser fall back to its own processing
	NotApplicable Disposition = iota
	// Handled suppresses local processing of the command
	Handled
)

// Handler is offered every control sequence except IAC IAC before the
// parser processes it itself. A non-nil error aborts decoding.
type Handler interface {
	HandleCommand(c Command) (Disposition, error)
}

// HandlerFunc adapts a function to the Handler interface.
type HandlerFunc func(c Command) (Disposition, error)

// HandleCommand calls f(c).
func (f HandlerFunc) HandleCommand(c Command) (Disposition, error) {
	return f(c)
}

var aytReply = []byte("\r\n[Yes]\r\n")

// Parser strips control sequences from the inbound stream. Chunks passed
// to Decode must not end in the middle of a sequence; use Incomplete to
// find and hold back such a tail.
type Parser struct {
	// TextMode enables NVT line-ending normalization for as long as the
	// peer has not agreed to BINARY.
	TextMode bool

	neg *Negotiator
	out ReplyWriter
	log *zap.SugaredLogger

	// last literal byte appended was CR
	cr bool
}

// NewParser creates a parser in binary mode. Negotiation commands are
// passed to neg, local replies (AYT) are written to out.
func NewParser(neg *Negotiator, out ReplyWriter, logger *zap.SugaredLogger) *Parser {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &Parser{
		neg: neg,
		out: out,
		log: logger,
	}
}

func (p *Parser) binary() bool {
	return !p.TextMode || (p.neg != nil && p.neg.Binary())
}

// Decode appends the data bytes of chunk to dst and returns the extended
// slice. Commands are dispatched to h first, then processed locally.
// An IAC SB that is never closed by IAC SE is dropped on its own and the
// bytes after it are data. Any other unterminated trailing sequence is
// discarded.
func (p *Parser) Decode(dst, chunk []byte, h Handler) ([]byte, error) {
	for len(chunk) > 0 {
		i := bytes.IndexByte(chunk, IAC)
		if i < 0 {
			return p.appendLiteral(dst, chunk), nil
		}

		dst = p.appendLiteral(dst, chunk[:i])
		chunk = chunk[i:]

		n := sequenceLength(chunk)
		if n == 0 && len(chunk) > 2 && chunk[1] == SB {
			n = 2
		}
		if n == 0 {
			p.log.Debugf("[telnet] dropping %d bytes of incomplete sequence", len(chunk))
			return dst, nil
		}

		seq := chunk[:n]
		chunk = chunk[n:]

		if seq[1] == IAC {
			dst = append(dst, IAC)
			p.cr = false
			continue
		}
		if seq[1] == SB && n == 2 {
			p.log.Debugf("[telnet] dropping unterminated subnegotiation start")
			continue
		}

		var err error
		if dst, err = p.dispatch(dst, parseCommand(seq), h); err != nil {
			return dst, err
		}
	}

	return dst, nil
}

func (p *Parser) dispatch(dst []byte, c Command, h Handler) ([]byte, error) {
	if h != nil {
		d, err := h.HandleCommand(c)
		if err != nil {
			return dst, err
		}
		if d == Handled {
			return dst, nil
		}
	}

	switch c.OpCode {
	case DO, DONT, WILL, WONT:
		if p.neg == nil {
			return dst, nil
		}
		return dst, p.neg.Negotiate(c)
	case AYT:
		p.log.Debugf("[telnet] received %s", c)
		if p.out == nil {
			return dst, nil
		}
		return dst, p.out.WriteReply(aytReply)
	case AO, DM, IP, NOP, BRK:
		p.log.Debugf("[telnet] received %s", c)
	case SB:
		p.log.Debugf("[telnet] ignoring subnegotiation for option %s", c.Option)
	}

	return dst, nil
}

// appendLiteral appends a run of data bytes, normalizing line endings in
// text mode: CR NUL becomes CR, CR LF becomes LF and stray NULs vanish.
func (p *Parser) appendLiteral(dst, run []byte) []byte {
	if len(run) == 0 {
		return dst
	}

	if p.binary() {
		p.cr = false
		return append(dst, run...)
	}

	for _, b := range run {
		switch {
		case b == 0:
			// dropped, with or without a preceding CR
			continue
		case b == '\n' && p.cr:
			if n := len(dst); n > 0 && dst[n-1] == '\r' {
				dst[n-1] = '\n'
			} else {
				dst = append(dst, '\n')
			}
		default:
			dst = append(dst, b)
		}
		p.cr = b == '\r'
	}

	return dst
}
