package api

import (
	"context"
	"crypto/subtle"
	"errors"
	"net/http"
	"time"

	"go.uber.org/zap"

	"git2.jad.ru/MeterRS485/rfc2217-client/internal/bridge"
	"git2.jad.ru/MeterRS485/rfc2217-client/internal/comport"
	"git2.jad.ru/MeterRS485/rfc2217-client/internal/config"
)

// Port is the part of the remote serial port the API reports on and
// reconfigures.
type Port interface {
	State() comport.State
	ModemParameters() comport.Parameters
	SetModemParameters(comport.Parameters) error
}

// StatsSource provides the bridge counters.
type StatsSource interface {
	Stats() bridge.Stats
}

// Server is the HTTP status API server
type Server struct {
	cfg      *config.Config
	handlers *Handlers
	server   *http.Server
	log      *zap.SugaredLogger
}

// NewServer creates a new API server. stats may be nil.
func NewServer(cfg *config.Config, port Port, stats StatsSource, logger *zap.SugaredLogger) *Server {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	handlers := NewHandlers(cfg, port, stats, logger)

	mux := http.NewServeMux()

	// Health endpoints (no auth)
	mux.HandleFunc("/healthz", handlers.Healthz)
	mux.HandleFunc("/readyz", handlers.Readyz)

	// Reading is open, changing parameters needs credentials when configured
	mux.HandleFunc("/api/v1/port", handlers.PortStatus)
	mux.HandleFunc("/api/v1/port/modem", handlers.ModemParameters)

	server := &http.Server{
		Addr:         ":" + cfg.APIPort,
		Handler:      logMiddleware(mux, logger, cfg.DebugHTTP),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	return &Server{
		cfg:      cfg,
		handlers: handlers,
		server:   server,
		log:      logger,
	}
}

// OnParameters registers fn to be called with the full parameter set after
// every successful change through the API.
func (s *Server) OnParameters(fn func(comport.Parameters) error) {
	s.handlers.onParams = fn
}

// Handler returns the HTTP handler with middleware applied.
func (s *Server) Handler() http.Handler {
	return s.server.Handler
}

// Start starts the API server and blocks until ctx is cancelled
func (s *Server) Start(ctx context.Context) error {
	s.log.Infof("[api] server listening on %s", s.server.Addr)

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		s.server.Shutdown(shutdownCtx)
	}()

	err := s.server.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// logMiddleware logs HTTP requests when debug is enabled
func logMiddleware(next http.Handler, logger *zap.SugaredLogger, debug bool) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		if debug {
			logger.Infof("[api] %s %s %v", r.Method, r.URL.Path, time.Since(start))
		}
	})
}

// checkAuth checks if request has valid basic auth credentials
func checkAuth(r *http.Request, username, password string) bool {
	user, pass, ok := r.BasicAuth()
	if !ok {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(user), []byte(username)) == 1 &&
		subtle.ConstantTimeCompare([]byte(pass), []byte(password)) == 1
}
