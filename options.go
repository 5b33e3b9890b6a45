package rfc2217

import (
	"time"

	"go.uber.org/zap"
)

// Option configures a Port.
type Option func(*options)

type keepAlive struct {
	idle     time.Duration
	interval time.Duration
	count    int
}

type options struct {
	logger             *zap.SugaredLogger
	negotiationTimeout time.Duration
	dialTimeout        time.Duration
	keepAlive          *keepAlive
	proxyVersion       byte
	textMode           bool
}

func newOptions(opts []Option) options {
	o := options{
		logger:             zap.NewNop().Sugar(),
		negotiationTimeout: DefaultNegotiationTimeout,
		dialTimeout:        DefaultDialTimeout,
	}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// WithLogger sets the logger used for protocol events.
func WithLogger(logger *zap.SugaredLogger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithNegotiationTimeout bounds how long opening the port waits for the
// peer to accept COM-PORT-OPTION.
func WithNegotiationTimeout(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.negotiationTimeout = d
		}
	}
}

// WithDialTimeout bounds TCP connection establishment in Dial and Open.
func WithDialTimeout(d time.Duration) Option {
	return func(o *options) {
		o.dialTimeout = d
	}
}

// WithKeepAlive enables TCP keepalive probes on dialed connections.
func WithKeepAlive(idle, interval time.Duration, count int) Option {
	return func(o *options) {
		o.keepAlive = &keepAlive{idle: idle, interval: interval, count: count}
	}
}

// WithProxyHeader makes Dial send a PROXY protocol header (version 1 or 2)
// before any telnet traffic.
func WithProxyHeader(version byte) Option {
	return func(o *options) {
		o.proxyVersion = version
	}
}

// WithTextMode turns on NVT line-ending normalization of received data
// until the peer agrees to BINARY.
func WithTextMode() Option {
	return func(o *options) {
		o.textMode = true
	}
}
