// Nuntius - Plex Now Playing to MQTT Bridge
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/nuntius

package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/tomtom215/nuntius/internal/config"
	"github.com/tomtom215/nuntius/internal/logging"
)

// shutdownTimeout bounds how long in-flight requests may run once the
// supervisor asks the server to stop.
const shutdownTimeout = 10 * time.Second

// Server is the HTTP front end, run as a service under the supervision tree.
type Server struct {
	httpServer *http.Server
}

// NewServer builds the listener from the server section of the config.
func NewServer(cfg *config.ServerConfig, handler *Handler) *Server {
	return &Server{
		httpServer: &http.Server{
			Addr:         fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
			Handler:      NewRouter(cfg, handler),
			ReadTimeout:  cfg.Timeout,
			WriteTimeout: cfg.Timeout,
			IdleTimeout:  60 * time.Second,
		},
	}
}

// Serve implements suture.Service. ListenAndServe blocks, so it runs in a
// goroutine while this method waits for either a listener error or context
// cancellation, then shuts down gracefully with a fresh deadline.
func (s *Server) Serve(ctx context.Context) error {
	logging.Info().Str("addr", s.httpServer.Addr).Msg("Starting status API server")

	errCh := make(chan error, 1)
	go func() {
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("http server shutdown failed: %w", err)
		}
		<-errCh
		logging.Info().Msg("Status API server stopped")
		return ctx.Err()
	}
}

// String identifies the service in supervisor logs.
func (s *Server) String() string {
	return "api-server"
}
