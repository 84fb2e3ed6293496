package stepsync

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	httpadapter "github.com/aretw0/stepsync/internal/adapters/http"
	"github.com/aretw0/stepsync/internal/adapters/ws"
	"github.com/aretw0/stepsync/internal/config"
	"github.com/aretw0/stepsync/internal/hub"
	"github.com/aretw0/stepsync/internal/logging"
	"github.com/aretw0/stepsync/internal/metrics"
	"github.com/aretw0/stepsync/internal/runtime"
	"github.com/aretw0/stepsync/internal/state"
)

// Version is the released version of stepsync.
var Version = "0.1.0"

// Config re-exports the server configuration for library consumers.
type Config = config.Config

// DefaultConfig returns the built-in configuration.
func DefaultConfig() Config {
	return config.Default()
}

// LoadConfig reads a YAML config file over the defaults. An empty path
// returns the defaults.
func LoadConfig(path string) (Config, error) {
	return config.Load(path)
}

const shutdownTimeout = 5 * time.Second

// Server is the assembled application: state store, hub, engine and HTTP
// surface, ready to run.
type Server struct {
	cfg     config.Config
	logger  *slog.Logger
	hub     *hub.Hub
	engine  *runtime.Engine
	handler http.Handler
}

// Option configures the Server.
type Option func(*Server)

// WithLogger overrides the logger built from the config's log level.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		s.logger = logger
	}
}

// New wires the components together from a validated config.
func New(cfg config.Config, opts ...Option) (*Server, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	s := &Server{
		cfg:    cfg,
		logger: logging.New(logging.ParseLevel(cfg.LogLevel)),
	}
	for _, opt := range opts {
		opt(s)
	}

	m := metrics.New()
	s.hub = hub.New(hub.WithLogger(s.logger), hub.WithMetrics(m))
	store := state.New(cfg.Variant(), cfg.DefaultTempo)
	s.engine = runtime.NewEngine(store, s.hub,
		runtime.WithLogger(s.logger),
		runtime.WithMetrics(m),
	)

	session := ws.NewHandler(s.engine,
		ws.WithLogger(s.logger),
		ws.WithQueueSize(cfg.ClientQueueSize),
	)
	s.handler = httpadapter.NewHandler(s.engine, session,
		httpadapter.WithLogger(s.logger),
		httpadapter.WithMetrics(m),
	)
	return s, nil
}

// Engine exposes the mutation path for alternative surfaces (MCP, tests).
func (s *Server) Engine() *runtime.Engine {
	return s.engine
}

// Handler returns the HTTP handler for embedding in another server.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Run serves until the context is canceled, then shuts down gracefully and
// releases every connected client.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:    s.cfg.Addr,
		Handler: s.handler,
	}

	serverErrors := make(chan error, 1)
	go func() {
		s.logger.Info("listening", "addr", s.cfg.Addr, "tracks", s.cfg.Tracks)
		serverErrors <- srv.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		s.hub.Shutdown()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			s.logger.Warn("graceful shutdown incomplete", "error", err)
			return srv.Close()
		}
		s.logger.Info("server stopped")
		return nil
	}
}
