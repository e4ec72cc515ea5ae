// Package server exposes the options catalog over HTTP and websocket.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/alanyoungcy/rwaoptions/internal/server/handler"
	"github.com/alanyoungcy/rwaoptions/internal/server/middleware"
	"github.com/alanyoungcy/rwaoptions/internal/server/ws"
)

// Config holds the HTTP server settings.
type Config struct {
	Port        int
	CORSOrigins []string
	// APIKey enables bearer/X-API-Key authentication when non-empty.
	APIKey string
}

// Handlers groups the endpoint handlers registered on the mux.
type Handlers struct {
	Health     *handler.HealthHandler
	Positions  *handler.PositionHandler
	Disclosure *handler.DisclosureHandler
	Snapshots  *handler.SnapshotHandler
	// Audit is nil when no audit store is configured.
	Audit      *handler.AuditHandler
}

// Server is the API server.
type Server struct {
	httpServer *http.Server
	logger     *slog.Logger
}

// NewServer registers the routes and wraps them in the middleware chain.
// wsHub may be nil when no signal bus is configured.
func NewServer(cfg Config, handlers Handlers, wsHub *ws.Hub, logger *slog.Logger) *Server {
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           Routes(cfg, handlers, wsHub, logger),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		// Disclosure may wait on the wallet, so writes get more headroom.
		WriteTimeout: 2 * time.Minute,
		IdleTimeout:  60 * time.Second,
	}
	return &Server{httpServer: srv, logger: logger}
}

// Routes builds the handler tree without binding a listener.
func Routes(cfg Config, h Handlers, wsHub *ws.Hub, logger *slog.Logger) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /api/health", h.Health.HealthCheck)

	mux.HandleFunc("GET /api/positions", h.Positions.ListPositions)
	mux.HandleFunc("POST /api/positions", h.Positions.CreatePosition)
	mux.HandleFunc("GET /api/positions/{id}", h.Positions.GetPosition)
	mux.HandleFunc("POST /api/positions/{id}/exercise", h.Positions.ExercisePosition)
	mux.HandleFunc("POST /api/positions/{id}/disclose", h.Disclosure.Disclose)
	mux.HandleFunc("GET /api/summary", h.Positions.Summary)
	mux.HandleFunc("GET /api/session", h.Disclosure.Session)

	if h.Snapshots != nil {
		mux.HandleFunc("POST /api/snapshots", h.Snapshots.CreateSnapshot)
	}
	if h.Audit != nil {
		mux.HandleFunc("GET /api/audit", h.Audit.ListAudit)
	}
	if wsHub != nil {
		mux.HandleFunc("GET /ws", wsHub.HandleWS)
	}

	var handler http.Handler = mux
	handler = middleware.Auth(cfg.APIKey, "/api/health")(handler)
	handler = middleware.Logging(logger)(handler)
	handler = middleware.CORS(cfg.CORSOrigins)(handler)
	return handler
}

// Start listens until the server is shut down.
func (s *Server) Start() error {
	s.logger.Info("server: starting", slog.String("addr", s.httpServer.Addr))
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server: listen: %w", err)
	}
	return nil
}

// Shutdown drains in-flight requests until ctx expires.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("server: shutting down")
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("server: shutdown: %w", err)
	}
	return nil
}
