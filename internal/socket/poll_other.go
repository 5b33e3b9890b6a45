//go:build !(linux || darwin || freebsd || netbsd || openbsd || dragonfly)

package socket

import (
	"syscall"
	"time"
)

func pollFD(raw syscall.RawConn, timeout time.Duration) (bool, error) {
	return false, errPollUnsupported
}
