package socket

import (
	"bufio"
	"errors"
	"io"
	"net"
	"os"
	"syscall"
	"time"
)

// NoTimeout makes PollReadable wait until data arrives.
const NoTimeout time.Duration = -1

const bufferSize = 64 * 1024

var errPollUnsupported = errors.New("poll not supported")

// Conn is a buffered telnet transport over a net.Conn. Reads and writes
// may run on separate goroutines; reads must not be shared.
type Conn struct {
	conn net.Conn
	r    *bufio.Reader
	w    *bufio.Writer
	raw  syscall.RawConn
}

// New wraps conn with 64 KiB read and write buffers.
func New(conn net.Conn) *Conn {
	c := &Conn{
		conn: conn,
		r:    bufio.NewReaderSize(conn, bufferSize),
		w:    bufio.NewWriterSize(conn, bufferSize),
	}

	if sc, ok := conn.(syscall.Conn); ok {
		if raw, err := sc.SyscallConn(); err == nil {
			c.raw = raw
		}
	}

	return c
}

// ReadAvailable blocks until at least one byte is available and returns
// up to max bytes without blocking further.
func (c *Conn) ReadAvailable(max int) ([]byte, error) {
	if max <= 0 {
		return nil, nil
	}

	if c.r.Buffered() == 0 {
		if _, err := c.r.Peek(1); err != nil {
			return nil, err
		}
	}

	n := c.r.Buffered()
	if n > max {
		n = max
	}

	buf := make([]byte, n)
	if _, err := io.ReadFull(c.r, buf); err != nil {
		return nil, err
	}
	return buf, nil
}

// Write buffers p. Call Flush to send it.
func (c *Conn) Write(p []byte) (int, error) {
	return c.w.Write(p)
}

// Flush sends buffered writes.
func (c *Conn) Flush() error {
	return c.w.Flush()
}

// PollReadable reports whether a read would not block. A zero timeout
// checks without waiting, NoTimeout waits indefinitely. End of stream
// counts as readable so the caller gets to see it.
func (c *Conn) PollReadable(timeout time.Duration) (bool, error) {
	if c.r.Buffered() > 0 {
		return true, nil
	}

	if timeout < 0 {
		return c.peek()
	}

	if c.raw != nil {
		ok, err := pollFD(c.raw, timeout)
		if !errors.Is(err, errPollUnsupported) {
			return ok, err
		}
	}

	return c.pollDeadline(timeout)
}

func (c *Conn) peek() (bool, error) {
	_, err := c.r.Peek(1)
	if errors.Is(err, io.EOF) {
		return true, nil
	}
	return err == nil, err
}

// pollDeadline waits for data with a read deadline. It is used where the
// descriptor cannot be polled directly (net.Pipe, wrapped connections).
func (c *Conn) pollDeadline(timeout time.Duration) (bool, error) {
	if timeout < time.Millisecond {
		timeout = time.Millisecond
	}

	if err := c.conn.SetReadDeadline(time.Now().Add(timeout)); err != nil {
		return false, err
	}

	ok, err := c.peek()

	if derr := c.conn.SetReadDeadline(time.Time{}); derr != nil && err == nil {
		err = derr
	}

	if errors.Is(err, os.ErrDeadlineExceeded) {
		return false, nil
	}
	return ok, err
}

// Close closes the underlying connection. Unflushed writes are dropped.
func (c *Conn) Close() error {
	return c.conn.Close()
}
