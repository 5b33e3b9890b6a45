package socket

import (
	"fmt"
	"net"

	"github.com/pires/go-proxyproto"
)

// WriteProxyHeader sends a PROXY protocol header (version 1 or 2) carrying
// the connection's own addresses. It must be the first thing written.
func WriteProxyHeader(conn net.Conn, version byte) error {
	if version != 1 && version != 2 {
		return fmt.Errorf("unsupported PROXY protocol version %d", version)
	}

	header := proxyproto.HeaderProxyFromAddrs(version, conn.LocalAddr(), conn.RemoteAddr())
	if _, err := header.WriteTo(conn); err != nil {
		return fmt.Errorf("write PROXY header: %w", err)
	}
	return nil
}
