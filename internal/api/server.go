// Package api exposes the question-answering service over a small JSON HTTP
// API. Handlers are thin: they validate input, call the same services the
// CLI uses, and translate results to JSON envelopes.
package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/koopa0/docent/internal/corpus"
	"github.com/koopa0/docent/internal/ingest"
)

// Answerer answers one question within a session.
// answer.Assembler satisfies this through duck typing.
type Answerer interface {
	Answer(ctx context.Context, sessionID uuid.UUID, question string) (corpus.Turn, error)
}

// Syncer re-synchronizes the corpus from the documentation source.
type Syncer interface {
	Sync(ctx context.Context) (*ingest.Result, error)
}

// SyncFunc adapts a function to the Syncer interface.
type SyncFunc func(ctx context.Context) (*ingest.Result, error)

// Sync implements Syncer.
func (f SyncFunc) Sync(ctx context.Context) (*ingest.Result, error) { return f(ctx) }

// ServerConfig contains configuration for creating the API server.
type ServerConfig struct {
	Logger   *slog.Logger
	Answerer Answerer      // required
	Syncer   Syncer        // optional: nil disables POST /api/sync
	Pool     *pgxpool.Pool // optional: nil disables database ping in /readyz
	Rate     float64       // rate limiter tokens per second per IP (0 = default 5)
	Burst    int           // rate limiter burst per IP (0 = default 10)
}

// Server is the JSON API HTTP server.
type Server struct {
	mux    *http.ServeMux
	logger *slog.Logger

	answerer Answerer
	syncer   Syncer
	pool     *pgxpool.Pool
}

// NewServer creates an API server with all routes configured.
func NewServer(cfg ServerConfig) (*Server, error) {
	if cfg.Answerer == nil {
		return nil, errors.New("answerer is required")
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Rate <= 0 {
		cfg.Rate = 5
	}
	if cfg.Burst <= 0 {
		cfg.Burst = 10
	}

	s := &Server{
		mux:      http.NewServeMux(),
		logger:   cfg.Logger,
		answerer: cfg.Answerer,
		syncer:   cfg.Syncer,
		pool:     cfg.Pool,
	}

	rl := newRateLimiter(cfg.Rate, cfg.Burst)

	s.mux.Handle("POST /api/ask", rateLimitMiddleware(rl, cfg.Logger)(http.HandlerFunc(s.handleAsk)))
	s.mux.Handle("POST /api/sync", rateLimitMiddleware(rl, cfg.Logger)(http.HandlerFunc(s.handleSync)))
	s.mux.HandleFunc("GET /healthz", s.handleHealth)
	s.mux.HandleFunc("GET /readyz", s.handleReady)

	return s, nil
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

// handleHealth is a liveness probe.
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleReady is a readiness probe; it pings the database when a pool is
// configured.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if s.pool != nil {
		if err := s.pool.Ping(r.Context()); err != nil {
			s.logger.Warn("readiness check failed", "error", err)
			writeError(w, http.StatusServiceUnavailable, "database unavailable")
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}
