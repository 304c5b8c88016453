package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/aomanu/cidrd/internal/logger"
	"github.com/aomanu/cidrd/pkg/config"
)

// Server runs the HTTP API with graceful shutdown.
type Server struct {
	server *http.Server
	config config.APIConfig
}

// NewServer creates a server around the given router.
func NewServer(cfg config.APIConfig, handler http.Handler) *Server {
	return &Server{
		server: &http.Server{
			Addr:         cfg.ListenAddr,
			Handler:      handler,
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 60 * time.Second,
			IdleTimeout:  120 * time.Second,
		},
		config: cfg,
	}
}

// Start serves until ctx is cancelled, then shuts down gracefully within
// the configured shutdown timeout.
func (s *Server) Start(ctx context.Context) error {
	errChan := make(chan error, 1)
	go func() {
		logger.Info("api server listening", "addr", s.config.ListenAddr)
		if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- err
		}
	}()

	select {
	case err := <-errChan:
		return err
	case <-ctx.Done():
	}

	timeout := s.config.ShutdownTimeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	logger.Info("shutting down api server", "timeout", timeout)
	if err := s.server.Shutdown(shutdownCtx); err != nil {
		return s.server.Close()
	}
	return nil
}
