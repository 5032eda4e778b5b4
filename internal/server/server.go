// Package server exposes a read-only HTTP status surface for a
// supervised training run: liveness, version, the current run snapshot,
// and recent metric observations.
package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/amapiano-ml/trainwatch/pkg/metrics"
	"github.com/amapiano-ml/trainwatch/pkg/orchestrator"
)

// DefaultRecentLimit bounds /metrics/recent when no n is given.
const DefaultRecentLimit = 50

// MaxRecentLimit caps /metrics/recent regardless of the requested n.
const MaxRecentLimit = 1000

// SnapshotFunc returns the current run snapshot, or nil when no run is
// active.
type SnapshotFunc func() *orchestrator.Snapshot

// Server serves the status API for one orchestrator process.
type Server struct {
	host     string
	port     int
	version  string
	snapshot SnapshotFunc
	history  *metrics.History
	logger   *zap.Logger
	router   chi.Router
}

// Option customizes a Server.
type Option func(*Server)

// WithVersion sets the version string reported by /health and /version.
func WithVersion(v string) Option {
	return func(s *Server) { s.version = v }
}

// WithSnapshot wires the run snapshot source for /status.
func WithSnapshot(fn SnapshotFunc) Option {
	return func(s *Server) { s.snapshot = fn }
}

// WithHistory wires the metrics history backing /metrics/recent.
func WithHistory(h *metrics.History) Option {
	return func(s *Server) { s.history = h }
}

// WithLogger sets the request logger.
func WithLogger(l *zap.Logger) Option {
	return func(s *Server) { s.logger = l }
}

// New creates a status server listening on host:port.
func New(host string, port int, opts ...Option) *Server {
	s := &Server{
		host:    host,
		port:    port,
		version: "dev",
		logger:  zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.router = s.buildRouter()
	return s
}

// Host returns the configured bind host.
func (s *Server) Host() string { return s.host }

// Port returns the configured bind port.
func (s *Server) Port() int { return s.port }

// Handler returns the HTTP handler, usable directly in tests.
func (s *Server) Handler() http.Handler { return s.router }

// Start serves until the context is cancelled, then shuts down
// gracefully.
func (s *Server) Start(ctx context.Context) error {
	srv := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", s.host, s.port),
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("status server listening", zap.String("addr", srv.Addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("status server shutdown: %w", err)
		}
		return nil
	case err := <-errCh:
		if err == http.ErrServerClosed {
			return nil
		}
		return err
	}
}

func (s *Server) buildRouter() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.NotFound(func(w http.ResponseWriter, req *http.Request) {
		writeError(w, http.StatusNotFound, "NOT_FOUND", "resource not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, req *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "method not allowed")
	})

	r.Get("/health", s.handleHealth)
	r.Get("/version", s.handleVersion)
	r.Get("/status", s.handleStatus)
	r.Get("/metrics/recent", s.handleRecentMetrics)
	return r
}

// HealthResponse is the /health body.
type HealthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version"`
}

func (s *Server) handleHealth(w http.ResponseWriter, req *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{Status: "healthy", Version: s.version})
}

// VersionResponse is the /version body.
type VersionResponse struct {
	Version string `json:"version"`
}

func (s *Server) handleVersion(w http.ResponseWriter, req *http.Request) {
	writeJSON(w, http.StatusOK, VersionResponse{Version: s.version})
}

func (s *Server) handleStatus(w http.ResponseWriter, req *http.Request) {
	if s.snapshot == nil {
		writeError(w, http.StatusServiceUnavailable, "NO_ACTIVE_RUN", "no training run is active")
		return
	}
	snap := s.snapshot()
	if snap == nil {
		writeError(w, http.StatusServiceUnavailable, "NO_ACTIVE_RUN", "no training run is active")
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

// RecentMetricsResponse is the /metrics/recent body.
type RecentMetricsResponse struct {
	RunID        string                `json:"run_id"`
	Observations []metrics.Observation `json:"observations"`
}

func (s *Server) handleRecentMetrics(w http.ResponseWriter, req *http.Request) {
	if s.history == nil {
		writeError(w, http.StatusServiceUnavailable, "HISTORY_DISABLED", "metrics history is not enabled")
		return
	}
	if s.snapshot == nil || s.snapshot() == nil {
		writeError(w, http.StatusServiceUnavailable, "NO_ACTIVE_RUN", "no training run is active")
		return
	}
	runID := s.snapshot().RunID

	n := DefaultRecentLimit
	if raw := req.URL.Query().Get("n"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			writeError(w, http.StatusBadRequest, "INVALID_ARGUMENT", "n must be a positive integer")
			return
		}
		n = parsed
	}
	if n > MaxRecentLimit {
		n = MaxRecentLimit
	}

	obs, err := s.history.Recent(req.Context(), runID, n)
	if err != nil {
		s.logger.Error("metrics history query failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "metrics history query failed")
		return
	}
	if obs == nil {
		obs = []metrics.Observation{}
	}
	writeJSON(w, http.StatusOK, RecentMetricsResponse{RunID: runID, Observations: obs})
}

// ErrorResponse is the JSON error envelope used by every endpoint.
type ErrorResponse struct {
	Error ErrorBody `json:"error"`
}

type ErrorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, ErrorResponse{Error: ErrorBody{Code: code, Message: message}})
}
