package rfc2217

import (
	"time"
)

// Read blocks until at least one byte of serial data is available and
// returns up to len(b) bytes. With an empty b it only decodes what the
// socket has ready, without blocking, and returns 0, nil.
func (p *Port) Read(b []byte) (int, error) {
	if p.closed.Load() {
		return 0, ErrClosed
	}
	if len(b) == 0 {
		return 0, p.pump()
	}

	for len(p.pending) == 0 {
		if err := p.fill(len(b)); err != nil {
			return 0, err
		}
	}

	return p.take(b), nil
}

// ReadFull blocks until len(b) bytes are available. On error nothing is
// consumed and the queued data stays readable.
func (p *Port) ReadFull(b []byte) (int, error) {
	if p.closed.Load() {
		return 0, ErrClosed
	}

	for len(p.pending) < len(b) {
		if err := p.fill(len(b) - len(p.pending)); err != nil {
			return 0, err
		}
	}

	return p.take(b), nil
}

// ReadPartial is Read returning a freshly allocated slice of at most n
// bytes. n == 0 pumps the connection and returns nil.
func (p *Port) ReadPartial(n int) ([]byte, error) {
	if n <= 0 {
		_, err := p.Read(nil)
		return nil, err
	}

	buf := make([]byte, n)
	k, err := p.Read(buf)
	return buf[:k], err
}

// ReadByte reads a single byte, blocking until one is available.
func (p *Port) ReadByte() (byte, error) {
	var b [1]byte
	if _, err := p.Read(b[:]); err != nil {
		return 0, err
	}
	return b[0], nil
}

// ReadNonblock returns queued data or reads what the socket has ready.
// It returns ErrWouldBlock instead of waiting.
func (p *Port) ReadNonblock(b []byte) (int, error) {
	if p.closed.Load() {
		return 0, ErrClosed
	}
	if len(b) == 0 {
		return 0, p.pump()
	}

	for len(p.pending) == 0 {
		ok, err := p.sock.PollReadable(0)
		if err != nil {
			return 0, err
		}
		if !ok {
			return 0, ErrWouldBlock
		}
		// control data is consumed first, loop to see if more is there
		if err := p.fill(0); err != nil {
			return 0, err
		}
	}

	return p.take(b), nil
}

// PollReadable reports whether Read would return without waiting. Queued
// data counts immediately; otherwise the socket is polled for up to
// timeout (0 = don't wait, NoTimeout = forever). Socket readiness may turn
// out to be control data only.
func (p *Port) PollReadable(timeout time.Duration) (bool, error) {
	if p.closed.Load() {
		return false, ErrClosed
	}
	if len(p.pending) > 0 {
		return true, nil
	}
	return p.sock.PollReadable(timeout)
}

// Ready consumes control data until serial data is queued or the socket
// has nothing more to offer, and reports whether data is queued.
func (p *Port) Ready() (bool, error) {
	if p.closed.Load() {
		return false, ErrClosed
	}

	for len(p.pending) == 0 {
		ok, err := p.sock.PollReadable(0)
		if err != nil || !ok {
			return false, err
		}
		if err := p.fill(0); err != nil {
			return false, err
		}
	}
	return true, nil
}

// Unget pushes bytes back to the front of the read queue.
func (p *Port) Unget(b ...byte) {
	if len(b) == 0 {
		return
	}
	pending := make([]byte, 0, len(b)+len(p.pending))
	pending = append(pending, b...)
	p.pending = append(pending, p.pending...)
}

// Buffered returns the number of decoded bytes waiting to be read.
func (p *Port) Buffered() int {
	return len(p.pending)
}

func (p *Port) take(b []byte) int {
	n := copy(b, p.pending)
	if n == len(p.pending) {
		p.pending = p.pending[:0]
	} else {
		p.pending = p.pending[n:]
	}
	return n
}
