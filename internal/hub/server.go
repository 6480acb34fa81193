// Package hub serves the tile page and the JSON API in front of the
// orchestrator, and provides a client for that API.
package hub

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/debutade/debutade-hub/internal/orchestrator"
	"github.com/debutade/debutade-hub/internal/registry"
)

// Apps is the part of the orchestrator the hub drives.
type Apps interface {
	EnsureRunning(ctx context.Context, appID string) (string, error)
	StopApp(ctx context.Context, appID string) (int, error)
	Statuses(ctx context.Context) []orchestrator.AppStatus
}

// Config configures a Server.
type Config struct {
	Addr     string
	HubURL   string
	Registry *registry.Registry
	Apps     Apps
	// Metrics is mounted on /metrics when set.
	Metrics http.Handler
	Logger  *slog.Logger
	// ShutdownTimeout bounds graceful shutdown. Defaults to 5s.
	ShutdownTimeout time.Duration
}

// Server is the hub's HTTP server.
type Server struct {
	cfg    Config
	logger *slog.Logger
	page   *page
	srv    *http.Server
}

// New creates a Server. It does not start listening.
func New(cfg Config) (*Server, error) {
	if cfg.Registry == nil || cfg.Apps == nil {
		return nil, errors.New("hub needs a registry and an orchestrator")
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.ShutdownTimeout <= 0 {
		cfg.ShutdownTimeout = 5 * time.Second
	}

	pg, err := newPage()
	if err != nil {
		return nil, err
	}

	s := &Server{
		cfg:    cfg,
		logger: cfg.Logger.With("component", "hub"),
		page:   pg,
	}
	s.srv = &http.Server{
		Addr:              cfg.Addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s, nil
}

// Handler returns the hub's routes wrapped in the access log middleware.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /{$}", s.handleIndex)
	mux.HandleFunc("GET /launch/{id}", s.handleLaunchRedirect)
	mux.HandleFunc("POST /api/launch/{id}", s.handleLaunchAPI)
	mux.HandleFunc("GET /api/apps", s.handleApps)
	mux.HandleFunc("GET /status", s.handleStatus)
	mux.HandleFunc("POST /stop/{id}", s.handleStop)
	mux.HandleFunc("POST /quit", s.handleQuit)
	mux.HandleFunc("GET /healthz", s.handleHealth)
	if s.cfg.Metrics != nil {
		mux.Handle("GET /metrics", s.cfg.Metrics)
	}
	return requestLogger(s.logger, mux)
}

// ListenAndServe serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", s.cfg.Addr, err)
	}
	return s.Serve(ctx, ln)
}

// Serve is ListenAndServe on an existing listener.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("hub listening", "addr", ln.Addr().String(), "url", s.cfg.HubURL)
		errCh <- s.srv.Serve(ln)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	s.logger.Info("shutting down hub")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
	defer cancel()
	if err := s.srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
