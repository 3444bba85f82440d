// Package server exposes the enhancement pipeline over HTTP for serve
// mode: availability checks, session runs, and global termination.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/webnovel-tools/enhancer/internal/faults"
	"github.com/webnovel-tools/enhancer/internal/session"
)

// Config holds server configuration.
type Config struct {
	// Host is the address to bind to (default: 127.0.0.1)
	Host string
	// Port is the port to listen on (default: 8384)
	Port string
	// Orchestrator runs enhancement sessions.
	Orchestrator *session.Orchestrator
	// Gateway answers availability and single-prompt requests.
	Gateway session.ModelGateway
	// Notifier supplies the error history endpoint.
	Notifier *faults.Notifier
	// MaxChunkSize is the default unit size for API-triggered sessions.
	MaxChunkSize int
	// Logger is the structured logger to use.
	Logger *slog.Logger
}

// Server is the enhancer HTTP server.
type Server struct {
	httpServer   *http.Server
	orchestrator *session.Orchestrator
	gateway      session.ModelGateway
	notifier     *faults.Notifier
	maxChunkSize int
	logger       *slog.Logger

	mu      sync.RWMutex
	running bool
	addr    string
}

// New creates a new Server with the given configuration.
func New(cfg Config) (*Server, error) {
	if cfg.Orchestrator == nil || cfg.Gateway == nil {
		return nil, errors.New("server requires an orchestrator and a gateway")
	}
	if cfg.Host == "" {
		cfg.Host = "127.0.0.1"
	}
	if cfg.Port == "" {
		cfg.Port = "8384"
	}
	if cfg.MaxChunkSize <= 0 {
		cfg.MaxChunkSize = 4000
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Notifier == nil {
		cfg.Notifier = faults.NewNotifier(cfg.Logger, nil)
	}

	s := &Server{
		orchestrator: cfg.Orchestrator,
		gateway:      cfg.Gateway,
		notifier:     cfg.Notifier,
		maxChunkSize: cfg.MaxChunkSize,
		logger:       cfg.Logger,
	}

	mux := http.NewServeMux()
	s.registerRoutes(mux)

	s.httpServer = &http.Server{
		Addr:         net.JoinHostPort(cfg.Host, cfg.Port),
		Handler:      mux,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 10 * time.Minute, // sessions can be slow
		IdleTimeout:  120 * time.Second,
	}

	return s, nil
}

// Start starts the server. It blocks until the context is cancelled or
// an error occurs, then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return errors.New("server already running")
	}
	s.running = true
	s.mu.Unlock()

	ln, err := net.Listen("tcp", s.httpServer.Addr)
	if err != nil {
		s.setNotRunning()
		return fmt.Errorf("failed to listen on %s: %w", s.httpServer.Addr, err)
	}
	s.mu.Lock()
	s.addr = ln.Addr().String()
	s.mu.Unlock()

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("starting HTTP server", "addr", ln.Addr().String())
		if err := s.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		s.logger.Info("shutdown signal received")
	case err := <-errCh:
		if err != nil {
			s.setNotRunning()
			return fmt.Errorf("HTTP server error: %w", err)
		}
	}

	return s.shutdown()
}

// shutdown performs graceful shutdown, aborting in-flight model calls
// first so handlers can drain quickly.
func (s *Server) shutdown() error {
	s.logger.Info("shutting down server")

	if count := s.orchestrator.Terminate(); count > 0 {
		s.logger.Info("aborted in-flight requests", "count", count)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		s.logger.Error("HTTP server shutdown error", "error", err)
	}

	s.setNotRunning()
	s.logger.Info("server stopped")
	return nil
}

func (s *Server) setNotRunning() {
	s.mu.Lock()
	s.running = false
	s.mu.Unlock()
}

// IsRunning returns whether the server is currently running.
func (s *Server) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.running
}

// Addr returns the server's actual listen address once started.
func (s *Server) Addr() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.addr != "" {
		return s.addr
	}
	return s.httpServer.Addr
}
