//go:build linux

package socket

import (
	"net"
	"time"

	"golang.org/x/sys/unix"
)

func setKeepaliveOptions(conn *net.TCPConn, idle, interval time.Duration, count int) error {
	rawConn, err := conn.SyscallConn()
	if err != nil {
		return err
	}

	// Close the connection if written data stays unacknowledged for longer
	// than the keepalive would take to give up
	userTimeout := int(idle.Milliseconds()) + int(interval.Milliseconds())*count

	opts := []struct {
		name  int
		value int
	}{
		{unix.TCP_KEEPIDLE, int(idle.Seconds())},
		{unix.TCP_KEEPINTVL, int(interval.Seconds())},
		{unix.TCP_KEEPCNT, count},
		{unix.TCP_USER_TIMEOUT, userTimeout},
	}

	var sysErr error
	err = rawConn.Control(func(fd uintptr) {
		for _, opt := range opts {
			if sysErr = unix.SetsockoptInt(int(fd), unix.IPPROTO_TCP, opt.name, opt.value); sysErr != nil {
				return
			}
		}
	})

	if err != nil {
		return err
	}
	return sysErr
}
