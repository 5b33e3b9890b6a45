// Package accessserver is a minimal RFC 2217 access server. It accepts or
// refuses COM-PORT-OPTION, acknowledges every SET request and echoes the
// serial data it receives. It stands in for real serial device servers in
// tests and local experiments.
package accessserver

import (
	"context"
	"net"
	"sync"

	"github.com/pires/go-proxyproto"
	"go.uber.org/zap"

	"git2.jad.ru/MeterRS485/rfc2217-client/internal/comport"
)

// Mode selects how the server answers WILL COM-PORT-OPTION.
type Mode int

const (
	// Accept answers DO and acknowledges parameters
	Accept Mode = iota
	// Refuse answers DONT
	Refuse
	// Silent never answers
	Silent
)

// Config for the access server
type Config struct {
	Mode          Mode
	Echo          bool   // send received data back
	Greeting      []byte // raw bytes written on connect, before anything else
	ProxyProtocol bool   // expect a PROXY protocol header on every connection
	Logger        *zap.SugaredLogger
}

// Server listens for RFC 2217 clients
type Server struct {
	cfg      Config
	log      *zap.SugaredLogger
	listener net.Listener

	mu       sync.Mutex
	received []comport.Subnegotiation
	remotes  []net.Addr
	params   comport.Parameters
	conns    map[net.Conn]struct{}

	wg sync.WaitGroup
}

// New creates an access server
func New(cfg Config) *Server {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &Server{
		cfg:   cfg,
		log:   logger,
		conns: make(map[net.Conn]struct{}),
	}
}

// Listen binds the server address. Use "127.0.0.1:0" for tests.
func (s *Server) Listen(addr string) error {
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}

	// Wrap with PROXY Protocol support if enabled
	if s.cfg.ProxyProtocol {
		listener = &proxyproto.Listener{Listener: listener}
		s.log.Infof("[server] PROXY Protocol enabled")
	}

	s.listener = listener
	s.log.Infof("[server] listening on %s", listener.Addr())
	return nil
}

// Serve accepts connections until ctx is done.
func (s *Server) Serve(ctx context.Context) error {
	listener := s.listener

	go func() {
		<-ctx.Done()
		listener.Close()
	}()

	defer s.closeConns()

	for {
		conn, err := listener.Accept()
		if err != nil {
			select {
			case <-ctx.Done():
				return nil
			default:
			}
			if ne, ok := err.(net.Error); ok && ne.Timeout() {
				s.log.Warnf("[server] accept error: %v", err)
				continue
			}
			return err
		}

		s.track(conn, true)
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			defer s.track(conn, false)
			s.handle(conn)
		}()
	}
}

// Addr returns the server address
func (s *Server) Addr() net.Addr {
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// Received returns every COM-PORT-OPTION message received so far.
func (s *Server) Received() []comport.Subnegotiation {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]comport.Subnegotiation(nil), s.received...)
}

// Parameters returns the serial settings requested by the last client.
func (s *Server) Parameters() comport.Parameters {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.params
}

// RemoteAddrs returns client addresses in connection order. Behind a
// PROXY header these are the addresses the header carried.
func (s *Server) RemoteAddrs() []net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]net.Addr(nil), s.remotes...)
}

func (s *Server) track(conn net.Conn, add bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if add {
		s.conns[conn] = struct{}{}
	} else {
		delete(s.conns, conn)
	}
}

func (s *Server) closeConns() {
	s.mu.Lock()
	for conn := range s.conns {
		conn.Close()
	}
	s.mu.Unlock()
	s.wg.Wait()
}

// addRemote must run off the accept loop: behind a PROXY listener
// RemoteAddr blocks until the header is read.
func (s *Server) addRemote(addr net.Addr) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.remotes = append(s.remotes, addr)
}

func (s *Server) record(sub comport.Subnegotiation) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.received = append(s.received, sub)
	s.params.ApplyRequest(sub)
}
