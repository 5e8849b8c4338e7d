// Package api exposes the subscription workflows over HTTP.
package api

import (
	"context"
	"net/http"
	"time"

	"github.com/ignite/newsletter/internal/service/subscription"
)

// Server represents the API server.
type Server struct {
	handler http.Handler
	server  *http.Server
}

// NewServer creates a new API server around the subscription service.
// health may be nil, in which case the health routes are not mounted.
func NewServer(svc *subscription.Service, health *HealthChecker) *Server {
	return &Server{
		handler: SetupRoutes(NewHandlers(svc), health),
	}
}

// ListenAndServe starts the HTTP server.
func (s *Server) ListenAndServe(addr string) error {
	s.server = &http.Server{
		Addr:    addr,
		Handler: s.handler,
		// The subscribe path holds the request open through the provider
		// call, so the write timeout must exceed the email client timeout.
		ReadTimeout:       10 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

// Handler returns the HTTP handler for testing.
func (s *Server) Handler() http.Handler {
	return s.handler
}
