package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"go.uber.org/zap"

	"git2.jad.ru/MeterRS485/rfc2217-client/internal/comport"
	"git2.jad.ru/MeterRS485/rfc2217-client/internal/config"
)

// maxBodySize limits PUT bodies; a parameter set is a few dozen bytes.
const maxBodySize = 4096

// Handlers contains HTTP API handlers
type Handlers struct {
	cfg      *config.Config
	port     Port
	stats    StatsSource
	onParams func(comport.Parameters) error
	log      *zap.SugaredLogger
}

// NewHandlers creates new API handlers
func NewHandlers(cfg *config.Config, port Port, stats StatsSource, logger *zap.SugaredLogger) *Handlers {
	return &Handlers{
		cfg:   cfg,
		port:  port,
		stats: stats,
		log:   logger,
	}
}

// isAuthorized allows everything when no credentials are configured
func (h *Handlers) isAuthorized(r *http.Request) bool {
	if h.cfg.WebUser == "" && h.cfg.WebPass == "" {
		return true
	}
	return checkAuth(r, h.cfg.WebUser, h.cfg.WebPass)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// Healthz handles liveness probe
func (h *Handlers) Healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Readyz reports ready only while the remote port is negotiated.
func (h *Handlers) Readyz(w http.ResponseWriter, r *http.Request) {
	state := h.port.State()
	if state != comport.Negotiated {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": state.String()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

// PortResponse is the response for GET /api/v1/port
type PortResponse struct {
	Address      string             `json:"address"`
	State        string             `json:"state"`
	Parameters   comport.Parameters `json:"parameters"`
	Settings     string             `json:"settings"`
	BytesIn      int64              `json:"bytes_in"`
	BytesOut     int64              `json:"bytes_out"`
	NOPsSent     int64              `json:"nops_sent"`
	StartedAt    *time.Time         `json:"started_at,omitempty"`
	LastActivity *time.Time         `json:"last_activity,omitempty"`
	Uptime       string             `json:"uptime,omitempty"`
}

// PortStatus handles GET /api/v1/port
func (h *Handlers) PortStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	params := h.port.ModemParameters()
	resp := PortResponse{
		Address:    h.cfg.Address(),
		State:      h.port.State().String(),
		Parameters: params,
		Settings:   params.String(),
	}

	if h.stats != nil {
		st := h.stats.Stats()
		resp.BytesIn = st.BytesIn
		resp.BytesOut = st.BytesOut
		resp.NOPsSent = st.NOPsSent
		if !st.StartedAt.IsZero() {
			resp.StartedAt = &st.StartedAt
			resp.LastActivity = &st.LastActivity
			resp.Uptime = time.Since(st.StartedAt).Truncate(time.Second).String()
		}
	}

	writeJSON(w, http.StatusOK, resp)
}

// ModemParameters handles GET and PUT /api/v1/port/modem. Fields left out
// of a PUT keep their current values.
func (h *Handlers) ModemParameters(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		writeJSON(w, http.StatusOK, h.port.ModemParameters())
		return
	case http.MethodPut:
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	if !h.isAuthorized(r) {
		w.Header().Set("WWW-Authenticate", `Basic realm="rfc2217bridge"`)
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	var req comport.Parameters
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodySize))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		http.Error(w, "invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}

	if err := h.port.SetModemParameters(req); err != nil {
		if errors.Is(err, comport.ErrInvalidParameters) {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		h.log.Warnf("[api] failed to apply modem parameters: %v", err)
		http.Error(w, err.Error(), http.StatusBadGateway)
		return
	}

	params := h.port.ModemParameters()
	h.log.Infof("[api] modem parameters changed to %s", params)

	if h.onParams != nil {
		if err := h.onParams(params); err != nil {
			h.log.Warnf("[api] failed to apply %s locally: %v", params, err)
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
	}

	writeJSON(w, http.StatusOK, params)
}
