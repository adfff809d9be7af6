// Package server provides the health and metrics endpoint served by the
// long-running teams job.
package server

import (
	"context"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"

	"github.com/ministryofjustice/hmpps-github-discovery/pkg/errors"
)

// Server holds the HTTP server state and dependencies.
type Server struct {
	config    Config
	gatherer  prometheus.Gatherer
	logger    *zerolog.Logger
	startTime time.Time
}

// New creates a server exposing metrics from gatherer.
func New(cfg Config, gatherer prometheus.Gatherer, logger *zerolog.Logger) *Server {
	defaults := DefaultConfig()
	if cfg.Addr == "" {
		cfg.Addr = defaults.Addr
	}
	if cfg.ShutdownTimeout == 0 {
		cfg.ShutdownTimeout = defaults.ShutdownTimeout
	}
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	return &Server{config: cfg, gatherer: gatherer, logger: logger, startTime: time.Now()}
}

// Handler returns the configured http.Handler with middleware chain applied.
func (s *Server) Handler() http.Handler {
	return s.setupRouter()
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.config.Addr)
	if err != nil {
		return errors.WrapResource("listen", "health server", s.config.Addr, err)
	}
	return s.Serve(ctx, ln)
}

// Serve is Run on an existing listener.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	httpServer := &http.Server{
		Handler:      s.Handler(),
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: s.config.WriteTimeout,
		IdleTimeout:  s.config.IdleTimeout,
	}

	serverErr := make(chan error, 1)
	go func() {
		s.logger.Info().Str("addr", ln.Addr().String()).Msg("health server listening")
		if err := httpServer.Serve(ln); err != nil && err != http.ErrServerClosed {
			serverErr <- err
		}
		close(serverErr)
	}()

	select {
	case err := <-serverErr:
		return err
	case <-ctx.Done():
		s.logger.Info().Msg("shutting down health server")
		// The parent context is already cancelled.
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.config.ShutdownTimeout)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			return errors.WrapResource("shutdown", "health server", s.config.Addr, err)
		}
		s.logger.Info().Dur("uptime", time.Since(s.startTime)).Msg("health server stopped")
		return nil
	}
}
