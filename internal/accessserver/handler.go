package accessserver

import (
	"net"

	"git2.jad.ru/MeterRS485/rfc2217-client/internal/comport"
	"git2.jad.ru/MeterRS485/rfc2217-client/internal/telnet"
)

const readBufferSize = 4096

type connWriter struct {
	conn net.Conn
}

func (w connWriter) WriteReply(p []byte) error {
	_, err := w.conn.Write(p)
	return err
}

// handle serves one client until it disconnects.
func (s *Server) handle(conn net.Conn) {
	defer conn.Close()

	s.addRemote(conn.RemoteAddr())
	s.log.Infof("[server] client connected: %s", conn.RemoteAddr())
	defer s.log.Infof("[server] client disconnected: %s", conn.RemoteAddr())

	w := connWriter{conn: conn}

	if len(s.cfg.Greeting) > 0 {
		if err := w.WriteReply(s.cfg.Greeting); err != nil {
			return
		}
	}

	parser := telnet.NewParser(nil, w, s.log)
	handler := telnet.HandlerFunc(func(c telnet.Command) (telnet.Disposition, error) {
		return s.handleCommand(w, c)
	})

	buf := make([]byte, readBufferSize)
	var carry []byte

	for {
		n, err := conn.Read(buf)
		if err != nil {
			return
		}

		chunk := append(carry, buf[:n]...)
		tail := telnet.Incomplete(chunk)
		carry = append([]byte(nil), chunk[len(chunk)-tail:]...)

		data, err := parser.Decode(nil, chunk[:len(chunk)-tail], handler)
		if err != nil {
			s.log.Warnf("[server] %s: %v", conn.RemoteAddr(), err)
			return
		}

		if s.cfg.Echo && len(data) > 0 {
			if err := w.WriteReply(telnet.Escape(data)); err != nil {
				return
			}
		}
	}
}

func (s *Server) handleCommand(w connWriter, c telnet.Command) (telnet.Disposition, error) {
	if c.Option != telnet.OptComPort {
		return telnet.NotApplicable, nil
	}

	switch c.OpCode {
	case telnet.WILL:
		s.log.Debugf("[server] received %s", c)
		switch s.cfg.Mode {
		case Accept:
			return telnet.Handled, w.WriteReply(telnet.Command{OpCode: telnet.DO, Option: telnet.OptComPort}.Bytes())
		case Refuse:
			return telnet.Handled, w.WriteReply(telnet.Command{OpCode: telnet.DONT, Option: telnet.OptComPort}.Bytes())
		}

	case telnet.SB:
		sub, err := comport.ParseSubnegotiation(c)
		if err != nil {
			s.log.Debugf("[server] %v", err)
			return telnet.Handled, nil
		}
		s.log.Infof("[server] client request: %s", sub)
		s.record(sub)
		if sub.IsResponse() {
			return telnet.Handled, nil
		}
		return telnet.Handled, w.WriteReply(sub.Response().Bytes())
	}

	return telnet.Handled, nil
}
