// Package http exposes the server's HTTP surface: the static page, the
// websocket entry point, a polling state endpoint, and operational routes.
package http

import (
	_ "embed"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"github.com/aretw0/stepsync/internal/logging"
	"github.com/aretw0/stepsync/internal/metrics"
	"github.com/aretw0/stepsync/internal/runtime"
)

//go:embed index.html
var indexHTML []byte

// Server bundles the routes around one engine.
type Server struct {
	engine  *runtime.Engine
	session http.Handler
	metrics *metrics.Metrics
	logger  *slog.Logger
}

// Option configures the Server.
type Option func(*Server)

// WithLogger sets the handler logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		s.logger = logger
	}
}

// WithMetrics mounts a /metrics endpoint for the given collectors.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Server) {
		s.metrics = m
	}
}

// NewHandler builds the HTTP handler. The session handler receives upgrade
// requests; a plain GET on the root path serves the static page instead, so
// both live on the same path as the wire protocol requires.
func NewHandler(engine *runtime.Engine, session http.Handler, opts ...Option) http.Handler {
	s := &Server{
		engine:  engine,
		session: session,
		logger:  logging.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}

	r := chi.NewRouter()
	r.Get("/", s.root)
	r.Get("/ws", s.session.ServeHTTP)
	r.Get("/state", s.state)
	r.Get("/healthz", s.healthz)
	if s.metrics != nil {
		r.Handle("/metrics", s.metrics.Handler())
	}
	return r
}

func (s *Server) root(w http.ResponseWriter, r *http.Request) {
	if websocket.IsWebSocketUpgrade(r) {
		s.session.ServeHTTP(w, r)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write(indexHTML)
}

// state serves the full document as JSON for polling clients that do not need
// real-time updates.
func (s *Server) state(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(s.engine.Snapshot()); err != nil {
		s.logger.Error("encoding state response", "error", err)
	}
}

func (s *Server) healthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}
