//go:build !linux && !darwin

package socket

import (
	"net"
	"time"
)

func setKeepaliveOptions(conn *net.TCPConn, idle, interval time.Duration, count int) error {
	// SetKeepAlive and SetKeepAlivePeriod already cover what is portable
	return nil
}
