package telnet

import (
	"go.uber.org/zap"
)

// FlagState is the negotiated state of a single option.
type FlagState byte

const (
	// FlagUnknown is the zero value, nothing was negotiated for the option yet
	FlagUnknown FlagState = iota
	// FlagEnabled means the option was turned on by the last negotiation
	FlagEnabled
	// FlagDisabled means the option was turned off by the last negotiation
	FlagDisabled
)

func (s FlagState) String() string {
	switch s {
	case FlagEnabled:
		return "enabled"
	case FlagDisabled:
		return "disabled"
	default:
		return "unknown"
	}
}

// OptionFlags tracks BINARY (our side, via DO/DONT), ECHO and
// SUPPRESS-GO-AHEAD (their side, via WILL/WONT).
type OptionFlags map[Option]FlagState

// Get returns the state for o, FlagUnknown if it was never negotiated.
func (f OptionFlags) Get(o Option) FlagState {
	return f[o]
}

// Enabled reports whether o is currently on.
func (f OptionFlags) Enabled(o Option) bool {
	return f[o] == FlagEnabled
}

// ReplyWriter sends control replies to the peer. Implementations must
// flush before returning: the peer may be waiting on the acknowledgment.
type ReplyWriter interface {
	WriteReply(p []byte) error
}

// Negotiator answers DO/DONT/WILL/WONT for a single connection. It only
// accepts BINARY locally and ECHO, SUPPRESS-GO-AHEAD and BINARY remotely,
// everything else is refused.
type Negotiator struct {
	flags OptionFlags
	out   ReplyWriter
	log   *zap.SugaredLogger
}

// NewNegotiator creates a negotiator that replies through out.
func NewNegotiator(out ReplyWriter, logger *zap.SugaredLogger) *Negotiator {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &Negotiator{
		flags: make(OptionFlags),
		out:   out,
		log:   logger,
	}
}

// Flags returns a copy of the current option states.
func (n *Negotiator) Flags() OptionFlags {
	flags := make(OptionFlags, len(n.flags))
	for k, v := range n.flags {
		flags[k] = v
	}
	return flags
}

// Binary reports whether we agreed to transmit in BINARY mode.
func (n *Negotiator) Binary() bool {
	return n.flags.Enabled(OptBinary)
}

// Negotiate processes one negotiation command and writes the reply, if any.
// Commands other than DO/DONT/WILL/WONT are ignored.
func (n *Negotiator) Negotiate(c Command) error {
	n.log.Debugf("[telnet] received %s", c)

	switch c.OpCode {
	case DO:
		if c.Option != OptBinary {
			return n.reply(WONT, c.Option)
		}
		if n.flags[OptBinary] == FlagEnabled {
			return nil
		}
		n.flags[OptBinary] = FlagEnabled
		return n.reply(WILL, OptBinary)

	case DONT:
		if c.Option == OptBinary {
			n.flags[OptBinary] = FlagDisabled
		}
		return n.reply(WONT, c.Option)

	case WILL:
		switch c.Option {
		case OptBinary:
			return n.reply(DO, OptBinary)
		case OptEcho:
			n.flags[OptEcho] = FlagEnabled
			return n.reply(DO, OptEcho)
		case OptSuppressGoAhead:
			if n.flags[OptSuppressGoAhead] == FlagEnabled {
				return nil
			}
			n.flags[OptSuppressGoAhead] = FlagEnabled
			return n.reply(DO, OptSuppressGoAhead)
		}
		return n.reply(DONT, c.Option)

	case WONT:
		switch c.Option {
		case OptEcho:
			n.flags[OptEcho] = FlagDisabled
			return n.reply(DONT, OptEcho)
		case OptSuppressGoAhead:
			if n.flags[OptSuppressGoAhead] != FlagEnabled {
				return nil
			}
			n.flags[OptSuppressGoAhead] = FlagDisabled
			return n.reply(DONT, OptSuppressGoAhead)
		}
		return n.reply(DONT, c.Option)
	}

	return nil
}

func (n *Negotiator) reply(opCode byte, option Option) error {
	c := Command{OpCode: opCode, Option: option}
	n.log.Debugf("[telnet] sending %s", c)
	return n.out.WriteReply(c.Bytes())
}
