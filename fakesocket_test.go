package rfc2217

import (
	"bytes"
	"io"
	"sync"
	"time"
)

// fakeSocket is a scripted Socket. Chunks queued with enqueue are returned
// one per ReadAvailable call; onFlush plays the peer.
type fakeSocket struct {
	mu       sync.Mutex
	incoming [][]byte
	signal   chan struct{}
	eof      bool
	closed   bool

	wbuf    []byte
	written bytes.Buffer
	flushes int

	onFlush func(flushed []byte)
}

func newFakeSocket() *fakeSocket {
	return &fakeSocket{signal: make(chan struct{})}
}

// acceptingPeer answers WILL COM-PORT-OPTION with DO.
func acceptingPeer() *fakeSocket {
	f := newFakeSocket()
	f.onFlush = func(b []byte) {
		if bytes.Contains(b, []byte{0xff, 0xfb, 0x2c}) {
			f.enqueue([]byte{0xff, 0xfd, 0x2c})
		}
	}
	return f
}

func (f *fakeSocket) enqueue(chunks ...[]byte) {
	f.mu.Lock()
	defer f.mu.Unlock()

	for _, c := range chunks {
		f.incoming = append(f.incoming, append([]byte(nil), c...))
	}
	f.wake()
}

func (f *fakeSocket) setEOF() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.eof = true
	f.wake()
}

// caller holds f.mu
func (f *fakeSocket) wake() {
	close(f.signal)
	f.signal = make(chan struct{})
}

func (f *fakeSocket) readyLocked() bool {
	return len(f.incoming) > 0 || f.eof || f.closed
}

func (f *fakeSocket) wait(timeout time.Duration) bool {
	var expired <-chan time.Time
	if timeout >= 0 {
		timer := time.NewTimer(timeout)
		defer timer.Stop()
		expired = timer.C
	}

	for {
		f.mu.Lock()
		if f.readyLocked() {
			f.mu.Unlock()
			return true
		}
		signal := f.signal
		f.mu.Unlock()

		select {
		case <-signal:
		case <-expired:
			return false
		}
	}
}

func (f *fakeSocket) ReadAvailable(max int) ([]byte, error) {
	f.wait(-1)

	f.mu.Lock()
	defer f.mu.Unlock()

	if f.closed {
		return nil, io.ErrClosedPipe
	}
	if len(f.incoming) == 0 {
		return nil, io.EOF
	}

	chunk := f.incoming[0]
	if len(chunk) > max {
		f.incoming[0] = chunk[max:]
		return chunk[:max], nil
	}
	f.incoming = f.incoming[1:]
	return chunk, nil
}

func (f *fakeSocket) PollReadable(timeout time.Duration) (bool, error) {
	return f.wait(timeout), nil
}

func (f *fakeSocket) Write(p []byte) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.closed {
		return 0, io.ErrClosedPipe
	}
	f.wbuf = append(f.wbuf, p...)
	return len(p), nil
}

func (f *fakeSocket) Flush() error {
	f.mu.Lock()
	data := f.wbuf
	f.wbuf = nil
	f.written.Write(data)
	f.flushes++
	script := f.onFlush
	f.mu.Unlock()

	if script != nil && len(data) > 0 {
		script(data)
	}
	return nil
}

func (f *fakeSocket) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	f.wake()
	return nil
}

func (f *fakeSocket) isClosed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

// output returns everything flushed so far and resets the record.
func (f *fakeSocket) output() []byte {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := append([]byte(nil), f.written.Bytes()...)
	f.written.Reset()
	return out
}
