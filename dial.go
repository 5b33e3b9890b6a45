package rfc2217

import (
	"context"
	"fmt"
	"net"
	"strconv"

	"git2.jad.ru/MeterRS485/rfc2217-client/internal/socket"
)

// Open connects to host:port (port 0 means the telnet port 23) and
// negotiates the serial port with params.
func Open(host string, port int, params ModemParameters, opts ...Option) (*Port, error) {
	if port == 0 {
		port = DefaultPort
	}
	return Dial(context.Background(), net.JoinHostPort(host, strconv.Itoa(port)), params, opts...)
}

// Dial connects to a TCP address and negotiates the serial port. ctx
// bounds both the connection and the negotiation.
func Dial(ctx context.Context, address string, params ModemParameters, opts ...Option) (*Port, error) {
	o := newOptions(opts)

	dialer := net.Dialer{Timeout: o.dialTimeout}
	conn, err := dialer.DialContext(ctx, "tcp", address)
	if err != nil {
		return nil, err
	}

	if o.keepAlive != nil {
		if err := socket.SetTCPKeepalive(conn, o.keepAlive.idle, o.keepAlive.interval, o.keepAlive.count); err != nil {
			conn.Close()
			return nil, fmt.Errorf("set keepalive: %w", err)
		}
	}

	if o.proxyVersion != 0 {
		if err := socket.WriteProxyHeader(conn, o.proxyVersion); err != nil {
			conn.Close()
			return nil, err
		}
	}

	o.logger.Debugf("[port] connected to %s", conn.RemoteAddr())

	return New(ctx, conn, params, opts...)
}

// New negotiates the serial port over an established connection. The
// connection is closed on failure.
func New(ctx context.Context, conn net.Conn, params ModemParameters, opts ...Option) (*Port, error) {
	return NewWithSocket(ctx, socket.New(conn), params, opts...)
}
