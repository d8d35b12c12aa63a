package httpserver

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/yndnr/chaingate/internal/core/domain"
	"github.com/yndnr/chaingate/internal/infra/buildinfo"
	"github.com/yndnr/chaingate/internal/telemetry/logger"
	"github.com/yndnr/chaingate/internal/telemetry/metric"
)

// Response is the envelope of every /api JSON reply.
type Response struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	RequestID string `json:"request_id"`
	Timestamp int64  `json:"timestamp"`
	Data      any    `json:"data,omitempty"`
}

// NewResponse creates a success response.
func NewResponse(requestID string, data any) *Response {
	return &Response{
		Code:      "OK",
		Message:   "Success",
		RequestID: requestID,
		Timestamp: time.Now().UnixMilli(),
		Data:      data,
	}
}

// NewErrorResponse creates an error response from a domain error.
func NewErrorResponse(requestID string, err *domain.DomainError) *Response {
	return &Response{
		Code:      err.Code,
		Message:   err.Text(),
		RequestID: requestID,
		Timestamp: time.Now().UnixMilli(),
	}
}

// SessionResponse describes the caller's session. The password digest is
// never included.
type SessionResponse struct {
	ID          string    `json:"id"`
	User        string    `json:"user"`
	Created     time.Time `json:"created"`
	LastUsed    time.Time `json:"last_used"`
	IdleSeconds int64     `json:"idle_seconds"`
}

// Stats is the body of GET /api/stats.
type Stats struct {
	Sessions         int    `json:"sessions"`
	Workers          int    `json:"workers"`
	Shard            int    `json:"shard"`
	ShardConnections int    `json:"shard_connections"`
	BridgeStarted    bool   `json:"bridge_started"`
	Uptime           string `json:"uptime"`
}

// APIConfig configures the /api router.
type APIConfig struct {
	Logger  *slog.Logger
	Metrics *metric.Registry
	// Stats fills GET /api/stats. It runs on the goroutine serving the request.
	Stats func(ctx context.Context) Stats
	// Now is the clock used for idle times. Defaults to time.Now.
	Now func() time.Time
}

type apiHandler struct {
	logger *slog.Logger
	stats  func(ctx context.Context) Stats
	now    func() time.Time
}

// NewAPIRouter returns the /api surface. Unknown routes answer with the
// "URI not support" text and leave the status untouched.
func NewAPIRouter(cfg APIConfig) http.Handler {
	h := &apiHandler{
		logger: cfg.Logger,
		stats:  cfg.Stats,
		now:    cfg.Now,
	}
	if h.logger == nil {
		h.logger = slog.Default()
	}
	if h.now == nil {
		h.now = time.Now
	}

	r := chi.NewRouter()
	r.Use(
		RequestID(),
		Recover(h.logger),
		AccessLog(h.logger),
		Instrument("api", cfg.Metrics),
		middleware.GetHead,
	)
	r.NotFound(uriNotSupported)
	r.MethodNotAllowed(uriNotSupported)

	r.Route("/api", func(r chi.Router) {
		r.Get("/session", h.handleSession)
		r.Get("/version", h.handleVersion)
		r.Get("/stats", h.handleStats)
	})
	return r
}

func uriNotSupported(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = w.Write([]byte(domain.ErrForbidden.Text()))
}

func (h *apiHandler) handleSession(w http.ResponseWriter, r *http.Request) {
	s, ok := SessionFromContext(r.Context())
	if !ok {
		h.writeError(w, r, domain.ErrNotAuthenticated)
		return
	}
	h.writeJSON(w, r, SessionResponse{
		ID:          strconv.FormatUint(s.ID, 10),
		User:        s.User,
		Created:     s.Created,
		LastUsed:    s.LastUsed,
		IdleSeconds: int64(s.IdleFor(h.now()).Seconds()),
	})
}

func (h *apiHandler) handleVersion(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, r, buildinfo.Get())
}

func (h *apiHandler) handleStats(w http.ResponseWriter, r *http.Request) {
	if h.stats == nil {
		h.writeJSON(w, r, Stats{})
		return
	}
	h.writeJSON(w, r, h.stats(r.Context()))
}

func (h *apiHandler) writeJSON(w http.ResponseWriter, r *http.Request, data any) {
	requestID := logger.RequestIDFromContext(r.Context())
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(NewResponse(requestID, data)); err != nil {
		h.logger.Error("failed to encode response", "error", err)
	}
}

func (h *apiHandler) writeError(w http.ResponseWriter, r *http.Request, err *domain.DomainError) {
	requestID := logger.RequestIDFromContext(r.Context())
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("X-Error-Code", err.Code)
	if encErr := json.NewEncoder(w).Encode(NewErrorResponse(requestID, err)); encErr != nil {
		h.logger.Error("failed to encode response", "error", encErr)
	}
}
