package bridge

import (
	"context"
	"encoding/hex"
	"errors"
	"io"
	"net"
	"os"
	"sync"
	"time"

	"go.uber.org/atomic"
	"go.uber.org/zap"

	rfc2217 "git2.jad.ru/MeterRS485/rfc2217-client"
)

// Remote is the RFC 2217 side of the bridge.
type Remote interface {
	io.ReadWriteCloser
	SendNOP() error
}

// Config for a bridge
type Config struct {
	IdleTimeout time.Duration // send NOP to the remote after this much silence, 0 disables
	Debug       bool          // hex dump traffic
	Logger      *zap.SugaredLogger
}

// Stats is a snapshot of bridge counters.
type Stats struct {
	BytesIn      int64     `json:"bytes_in"`  // remote -> local
	BytesOut     int64     `json:"bytes_out"` // local -> remote
	NOPsSent     int64     `json:"nops_sent"`
	StartedAt    time.Time `json:"started_at"`
	LastActivity time.Time `json:"last_activity"`
}

// Bridge copies data between a remote serial port and a local endpoint.
type Bridge struct {
	remote Remote
	local  io.ReadWriteCloser
	cfg    Config
	log    *zap.SugaredLogger

	bytesIn      atomic.Int64
	bytesOut     atomic.Int64
	nops         atomic.Int64
	lastActivity atomic.Int64 // UnixNano of last remote traffic
	startedAt    time.Time
}

// New creates a new bridge
func New(remote Remote, local io.ReadWriteCloser, cfg Config) *Bridge {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}

	b := &Bridge{
		remote:    remote,
		local:     local,
		cfg:       cfg,
		log:       logger,
		startedAt: time.Now(),
	}
	b.lastActivity.Store(b.startedAt.UnixNano())
	return b
}

// Run starts the bidirectional data transfer. It blocks until one side
// closes, an error occurs or ctx is done, and closes both sides before
// returning. The error is nil for a clean end of stream or cancellation.
func (b *Bridge) Run(ctx context.Context) error {
	var wg sync.WaitGroup
	errCh := make(chan error, 2)

	wg.Add(2)

	// Local -> Remote
	go func() {
		defer wg.Done()
		n, err := b.copyWithActivity(b.remote, b.local, &b.bytesOut, "local->remote")
		b.log.Infof("[bridge] local->remote total: %d bytes", n)
		errCh <- err
	}()

	// Remote -> Local
	go func() {
		defer wg.Done()
		n, err := b.copyWithActivity(b.local, b.remote, &b.bytesIn, "remote->local")
		b.log.Infof("[bridge] remote->local total: %d bytes", n)
		errCh <- err
	}()

	stopKeepalive := make(chan struct{})
	keepaliveErr := make(chan error, 1)
	go func() {
		keepaliveErr <- b.keepalive(stopKeepalive)
	}()

	var err error
	select {
	case err = <-errCh:
	case err = <-keepaliveErr:
	case <-ctx.Done():
	}

	close(stopKeepalive)

	// Close both sides to ensure both goroutines exit
	b.remote.Close()
	b.local.Close()

	wg.Wait()

	stats := b.Stats()
	b.log.Infof("[bridge] closed (in=%d, out=%d, nops=%d)", stats.BytesIn, stats.BytesOut, stats.NOPsSent)

	if err != nil && !isClosed(err) {
		return err
	}
	return nil
}

// Stats returns the current counters.
func (b *Bridge) Stats() Stats {
	return Stats{
		BytesIn:      b.bytesIn.Load(),
		BytesOut:     b.bytesOut.Load(),
		NOPsSent:     b.nops.Load(),
		StartedAt:    b.startedAt,
		LastActivity: time.Unix(0, b.lastActivity.Load()),
	}
}

// copyWithActivity transfers data from src to dst, counting bytes and updating activity timestamp
func (b *Bridge) copyWithActivity(dst io.Writer, src io.Reader, counter *atomic.Int64, direction string) (int64, error) {
	buf := make([]byte, 4096)
	var total int64

	for {
		n, readErr := src.Read(buf)
		if n > 0 {
			b.lastActivity.Store(time.Now().UnixNano())

			if b.cfg.Debug {
				b.log.Debugf("[bridge] %s: %d bytes\n%s", direction, n, hex.Dump(buf[:n]))
			}
			written, writeErr := dst.Write(buf[:n])
			if written > 0 {
				counter.Add(int64(written))
				total += int64(written)
			}
			if writeErr != nil {
				return total, writeErr
			}
		}
		if readErr != nil {
			if !isClosed(readErr) {
				b.log.Warnf("[bridge] %s: read error: %v", direction, readErr)
			}
			return total, readErr
		}
	}
}

// keepalive sends a telnet NOP to the remote when idle
func (b *Bridge) keepalive(stop chan struct{}) error {
	if b.cfg.IdleTimeout <= 0 {
		<-stop
		return nil
	}

	ticker := time.NewTicker(b.cfg.IdleTimeout / 2)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return nil
		case <-ticker.C:
			idle := time.Since(time.Unix(0, b.lastActivity.Load()))
			if idle < b.cfg.IdleTimeout {
				continue
			}

			if err := b.remote.SendNOP(); err != nil {
				b.log.Warnf("[bridge] remote keepalive failed: %v", err)
				return err
			}
			b.nops.Inc()
			b.lastActivity.Store(time.Now().UnixNano())
			if b.cfg.Debug {
				b.log.Debugf("[bridge] sent NOP to remote (idle %s)", idle.Truncate(time.Millisecond))
			}
		}
	}
}

func isClosed(err error) bool {
	for _, target := range []error{io.EOF, net.ErrClosed, os.ErrClosed, io.ErrClosedPipe, rfc2217.ErrClosed} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
