// Package rfc2217 is a client for serial ports exported over Telnet with
// the RFC 2217 COM-PORT-OPTION. A Port behaves like a plain byte stream:
// control sequences are answered internally and never reach the caller.
package rfc2217

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/atomic"
	"go.uber.org/zap"

	"git2.jad.ru/MeterRS485/rfc2217-client/internal/comport"
	"git2.jad.ru/MeterRS485/rfc2217-client/internal/socket"
	"git2.jad.ru/MeterRS485/rfc2217-client/internal/telnet"
)

// Defaults
const (
	DefaultPort               = 23
	DefaultNegotiationTimeout = 5 * time.Second
	DefaultDialTimeout        = 10 * time.Second
)

// NoTimeout makes PollReadable wait until data arrives.
const NoTimeout = socket.NoTimeout

const (
	maxPending      = 1024 * 1024
	chunkSize       = 64 * 1024
	lookAheadBudget = 4 * 1024
	maxCarry        = 4 * 1024
	negotiationPoll = 50 * time.Millisecond
)

// Types shared with the protocol layer.
type (
	// ModemParameters are the serial line settings sent to the peer.
	ModemParameters = comport.Parameters

	// Parity is the RFC 2217 parity code; zero means unset.
	Parity = comport.Parity

	// NegotiationState is the COM-PORT-OPTION negotiation state.
	NegotiationState = comport.State
)

// Parity settings.
const (
	ParityNone  = comport.ParityNone
	ParityOdd   = comport.ParityOdd
	ParityEven  = comport.ParityEven
	ParityMark  = comport.ParityMark
	ParitySpace = comport.ParitySpace
)

// Negotiation states. Only Negotiated ports are returned by Open, Dial
// and New; a port can later become Rejected if the peer sends DONT.
const (
	AwaitingComPortAck = comport.AwaitingComPortAck
	Negotiated         = comport.Negotiated
	Rejected           = comport.Rejected
	TimedOut           = comport.TimedOut
)

// Socket is the transport a Port runs on. ReadAvailable blocks until at
// least one byte is available and then returns what is buffered, up to
// max. The returned slice belongs to the caller, which never writes past
// its length. Writes are only sent on Flush.
type Socket interface {
	ReadAvailable(max int) ([]byte, error)
	Write(p []byte) (int, error)
	Flush() error
	PollReadable(timeout time.Duration) (bool, error)
	Close() error
}

// Port is an open, negotiated RFC 2217 serial port. One goroutine may
// read while another writes; reads must not be shared between goroutines.
type Port struct {
	sock Socket
	log  *zap.SugaredLogger

	neg    *telnet.Negotiator
	parser *telnet.Parser
	ctrl   *comport.Controller

	// serializes socket writes from callers, replies and parameter updates
	wmu sync.Mutex

	pending []byte // decoded data not yet returned
	carry   []byte // unterminated control sequence awaiting more bytes

	closed atomic.Bool
}

// portWriter sends protocol replies on behalf of the telnet and comport
// layers.
type portWriter struct {
	p *Port
}

func (w portWriter) WriteReply(b []byte) error {
	return w.p.writeRaw(b)
}

// NewWithSocket negotiates COM-PORT-OPTION over sock and returns a port
// once the peer has accepted it. The socket is closed on failure.
func NewWithSocket(ctx context.Context, sock Socket, params ModemParameters, opts ...Option) (*Port, error) {
	o := newOptions(opts)

	p := &Port{
		sock: sock,
		log:  o.logger,
	}

	w := portWriter{p: p}
	p.neg = telnet.NewNegotiator(w, o.logger)
	p.parser = telnet.NewParser(p.neg, w, o.logger)
	p.parser.TextMode = o.textMode

	ctrl, err := comport.NewController(params, w, o.logger)
	if err != nil {
		sock.Close()
		return nil, err
	}
	p.ctrl = ctrl

	if err := p.negotiate(ctx, o.negotiationTimeout); err != nil {
		sock.Close()
		return nil, err
	}

	flags := p.neg.Flags()
	p.log.Debugf("[port] serial port ready: %s (binary %s, echo %s, sga %s)", p.ctrl.Parameters(),
		flags.Get(telnet.OptBinary), flags.Get(telnet.OptEcho), flags.Get(telnet.OptSuppressGoAhead))
	return p, nil
}

// negotiate offers COM-PORT-OPTION and pumps the connection until the
// peer answers or the timeout expires.
func (p *Port) negotiate(ctx context.Context, timeout time.Duration) error {
	if err := p.ctrl.Start(); err != nil {
		return err
	}

	deadline := time.Now().Add(timeout)
	for {
		if state := p.ctrl.State(); state.Terminal() {
			switch state {
			case comport.Negotiated:
				return nil
			case comport.Rejected:
				return ErrNegotiationRejected
			default:
				return fmt.Errorf("%w (%s)", ErrNegotiationTimeout, timeout)
			}
		}

		if err := ctx.Err(); err != nil {
			return err
		}

		remaining := time.Until(deadline)
		if remaining <= 0 {
			p.ctrl.Expire()
			return fmt.Errorf("%w (%s)", ErrNegotiationTimeout, timeout)
		}
		if remaining > negotiationPoll {
			remaining = negotiationPoll
		}

		ok, err := p.sock.PollReadable(remaining)
		if err != nil {
			return err
		}
		if !ok {
			continue
		}
		if err := p.fill(0); err != nil {
			return err
		}
	}
}

// fill reads one chunk from the socket and decodes it into the pending
// queue. It blocks until the socket has data.
func (p *Port) fill(need int) error {
	if len(p.pending) >= maxPending && p.ctrl.State() == comport.AwaitingComPortAck {
		return ErrProtocolOverflow
	}

	size := need
	if size < chunkSize {
		size = chunkSize
	}

	chunk, err := p.sock.ReadAvailable(size)
	if err != nil {
		return err
	}

	if len(p.carry) > 0 {
		chunk = append(p.carry, chunk...)
		p.carry = nil
	}

	// A subnegotiation still open after maxCarry bytes goes to the parser
	// anyway, which drops the stray IAC SB and keeps the rest as data.
	chunk, tail := p.lookAhead(chunk)
	if tail > 0 && tail <= maxCarry {
		p.carry = append([]byte(nil), chunk[len(chunk)-tail:]...)
		chunk = chunk[:len(chunk)-tail]
	}

	p.pending, err = p.parser.Decode(p.pending, chunk, p.ctrl)
	return err
}

// lookAhead extends a chunk ending inside a control sequence with bytes
// that are already readable. It returns the chunk and the length of the
// still unterminated tail. Read errors are left for the next fill.
func (p *Port) lookAhead(chunk []byte) ([]byte, int) {
	tail := telnet.Incomplete(chunk)

	for budget := lookAheadBudget; tail > 0 && budget > 0; {
		ok, err := p.sock.PollReadable(0)
		if err != nil || !ok {
			break
		}

		more, err := p.sock.ReadAvailable(budget)
		if err != nil {
			break
		}
		budget -= len(more)

		start := len(chunk) - tail
		// full slice expression: never append into the socket's buffer
		chunk = append(chunk[:len(chunk):len(chunk)], more...)
		tail = telnet.Incomplete(chunk[start:])
	}

	return chunk, tail
}

// pump decodes whatever the socket has ready without blocking.
func (p *Port) pump() error {
	ok, err := p.sock.PollReadable(0)
	if err != nil || !ok {
		return err
	}
	return p.fill(0)
}

func (p *Port) writeRaw(b []byte) error {
	p.wmu.Lock()
	defer p.wmu.Unlock()

	if p.closed.Load() {
		return ErrClosed
	}
	if _, err := p.sock.Write(b); err != nil {
		return err
	}
	return p.sock.Flush()
}

// Write sends p to the serial port, escaping IAC bytes, and flushes.
func (p *Port) Write(b []byte) (int, error) {
	if err := p.writeRaw(telnet.Escape(b)); err != nil {
		return 0, err
	}
	return len(b), nil
}

// Flush sends any buffered output.
func (p *Port) Flush() error {
	p.wmu.Lock()
	defer p.wmu.Unlock()

	if p.closed.Load() {
		return ErrClosed
	}
	return p.sock.Flush()
}

// SendNOP sends IAC NOP. It keeps idle connections alive through NAT and
// lets a dead peer surface as a write error.
func (p *Port) SendNOP() error {
	return p.writeRaw(telnet.Command{OpCode: telnet.NOP}.Bytes())
}

// SetModemParameters changes the serial line settings. Zero fields keep
// their current values. The full set is sent to the peer right away.
func (p *Port) SetModemParameters(params ModemParameters) error {
	if p.closed.Load() {
		return ErrClosed
	}
	return p.ctrl.SetParameters(params)
}

// ModemParameters returns the current serial line settings.
func (p *Port) ModemParameters() ModemParameters {
	return p.ctrl.Parameters()
}

// State returns the COM-PORT-OPTION negotiation state.
func (p *Port) State() NegotiationState {
	return p.ctrl.State()
}

// Close closes the connection. It is safe to call more than once and
// unblocks a concurrent Read.
func (p *Port) Close() error {
	if !p.closed.CompareAndSwap(false, true) {
		return nil
	}
	p.log.Debugf("[port] closing")
	return p.sock.Close()
}
