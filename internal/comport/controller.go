package comport

import (
	"bytes"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"git2.jad.ru/MeterRS485/rfc2217-client/internal/telnet"
)

// ErrRejected is returned when the peer answers DONT COM-PORT-OPTION.
var ErrRejected = errors.New("serial port control not supported by peer")

// State is the COM-PORT-OPTION negotiation state of a connection.
type State int32

const (
	AwaitingComPortAck State = iota
	Negotiated
	Rejected
	TimedOut
)

func (s State) String() string {
	switch s {
	case AwaitingComPortAck:
		return "awaiting-com-port-ack"
	case Negotiated:
		return "negotiated"
	case Rejected:
		return "rejected"
	case TimedOut:
		return "timed-out"
	default:
		return fmt.Sprintf("state(%d)", int32(s))
	}
}

// Terminal reports whether negotiation has finished, successfully or not.
func (s State) Terminal() bool {
	return s != AwaitingComPortAck
}

// Controller drives the client side of RFC 2217: it offers
// COM-PORT-OPTION, sends the modem parameters once the peer agrees and
// re-sends them on every change. It is a telnet.Handler.
type Controller struct {
	mu     sync.Mutex
	state  State
	params Parameters

	out telnet.ReplyWriter
	log *zap.SugaredLogger
}

// NewController validates params (after defaults) and returns a controller
// in the AwaitingComPortAck state. Nothing is sent until Start.
func NewController(params Parameters, out telnet.ReplyWriter, logger *zap.SugaredLogger) (*Controller, error) {
	params = params.WithDefaults()
	if err := params.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}

	return &Controller{
		state:  AwaitingComPortAck,
		params: params,
		out:    out,
		log:    logger,
	}, nil
}

// Start offers COM-PORT-OPTION to the peer.
func (c *Controller) Start() error {
	cmd := telnet.Command{OpCode: telnet.WILL, Option: telnet.OptComPort}
	c.log.Debugf("[rfc2217] sending %s", cmd)
	if err := c.out.WriteReply(cmd.Bytes()); err != nil {
		return fmt.Errorf("offer COM-PORT-OPTION: %w", err)
	}
	return nil
}

// State returns the current negotiation state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Parameters returns the current modem parameters.
func (c *Controller) Parameters() Parameters {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.params
}

// SetParameters merges p into the current parameters and, if the port is
// already negotiated, sends the full set to the peer. Invalid parameters
// leave the current ones untouched.
func (c *Controller) SetParameters(p Parameters) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	merged := p.Merge(c.params)
	if err := merged.Validate(); err != nil {
		return err
	}
	c.params = merged

	if c.state != Negotiated {
		return nil
	}
	return c.sendParameters()
}

// Expire moves a pending negotiation to TimedOut. It returns false if
// negotiation had already finished.
func (c *Controller) Expire() bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != AwaitingComPortAck {
		return false
	}
	c.state = TimedOut
	return true
}

// HandleCommand consumes every command for COM-PORT-OPTION.
func (c *Controller) HandleCommand(cmd telnet.Command) (telnet.Disposition, error) {
	if cmd.Option != telnet.OptComPort {
		return telnet.NotApplicable, nil
	}

	switch cmd.OpCode {
	case telnet.DO:
		c.log.Debugf("[rfc2217] received %s", cmd)
		return telnet.Handled, c.accepted()

	case telnet.DONT:
		c.mu.Lock()
		c.state = Rejected
		c.mu.Unlock()
		c.log.Warnf("[rfc2217] peer refused COM-PORT-OPTION")
		return telnet.Handled, ErrRejected

	case telnet.SB:
		s, err := ParseSubnegotiation(cmd)
		if err != nil {
			c.log.Debugf("[rfc2217] malformed subnegotiation: %v", err)
			return telnet.Handled, nil
		}
		c.log.Debugf("[rfc2217] server: %s", s)
		return telnet.Handled, nil

	case telnet.WILL, telnet.WONT:
		// The server side of the option is not used by a client
		c.log.Debugf("[rfc2217] ignoring %s", cmd)
		return telnet.Handled, nil
	}

	return telnet.NotApplicable, nil
}

func (c *Controller) accepted() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch c.state {
	case AwaitingComPortAck, Negotiated:
	default:
		return nil
	}

	if err := c.sendParameters(); err != nil {
		return err
	}
	c.state = Negotiated
	return nil
}

// sendParameters writes all four SET requests in a single write.
// Caller holds c.mu.
func (c *Controller) sendParameters() error {
	var buf bytes.Buffer
	for _, s := range ParameterRequests(c.params) {
		c.log.Debugf("[rfc2217] sending %s", s)
		buf.Write(s.Bytes())
	}

	if err := c.out.WriteReply(buf.Bytes()); err != nil {
		return fmt.Errorf("send modem parameters: %w", err)
	}
	c.log.Infof("[rfc2217] modem parameters sent: %s", c.params)
	return nil
}
