package web

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/gazehq/gaze-engine/internal/web/handlers"
	"github.com/gazehq/gaze-engine/internal/web/middleware"
	"github.com/gazehq/gaze-engine/internal/web/ws"
)

// Server is the engine's HTTP and websocket front door.
type Server struct {
	deps       handlers.Deps
	hub        *ws.Hub
	router     *chi.Mux
	httpServer *http.Server
}

// NewServer wires the middleware stack and routes. The hub must already
// be running.
func NewServer(deps handlers.Deps, hub *ws.Hub) *Server {
	r := chi.NewRouter()

	s := &Server{
		deps:   deps,
		hub:    hub,
		router: r,
	}

	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(chiMiddleware.Logger)
	r.Use(chiMiddleware.Recoverer)
	r.Use(chiMiddleware.Timeout(5 * time.Minute))
	r.Use(middleware.AllowOrigins(deps.Config.DevMode))

	s.setupRoutes()

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", deps.Config.Host, deps.Config.Port),
		Handler:      r,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 5 * time.Minute,
		IdleTimeout:  60 * time.Second,
	}

	return s
}

// Start blocks serving until Shutdown.
func (s *Server) Start() error {
	s.deps.Log.Info("web server listening", "addr", s.httpServer.Addr)
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("starting server: %w", err)
	}
	return nil
}

// Shutdown drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	s.deps.Log.Info("web server shutting down")
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutting down server: %w", err)
	}
	return nil
}

// Router exposes the chi router for tests.
func (s *Server) Router() *chi.Mux {
	return s.router
}
