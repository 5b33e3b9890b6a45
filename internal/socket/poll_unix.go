//go:build linux || darwin || freebsd || netbsd || openbsd || dragonfly

package socket

import (
	"syscall"
	"time"

	"golang.org/x/sys/unix"
)

func pollFD(raw syscall.RawConn, timeout time.Duration) (bool, error) {
	ms := int((timeout + time.Millisecond - 1) / time.Millisecond)

	var (
		ready   bool
		pollErr error
	)

	err := raw.Control(func(fd uintptr) {
		fds := []unix.PollFd{{Fd: int32(fd), Events: unix.POLLIN}}
		for {
			n, err := unix.Poll(fds, ms)
			if err == unix.EINTR {
				continue
			}
			if err != nil {
				pollErr = err
				return
			}
			ready = n > 0 && fds[0].Revents&(unix.POLLIN|unix.POLLHUP|unix.POLLERR) != 0
			return
		}
	})
	if err != nil {
		return false, err
	}
	return ready, pollErr
}
