// Package web provides the read-only HTTP browse server of the mirror.
package web

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/JonMunkholm/sdemirror/internal/config"
	"github.com/JonMunkholm/sdemirror/internal/sde"
	"github.com/JonMunkholm/sdemirror/internal/store"
	"github.com/JonMunkholm/sdemirror/internal/web/middleware"
)

// Server is the HTTP browse server.
type Server struct {
	store   store.Store
	updater *sde.Updater // nil disables POST /api/refresh
	cfg     config.ServerConfig
	router  *chi.Mux
	server  *http.Server

	// jobs bounds refreshes started over HTTP; Shutdown cancels it.
	jobs       context.Context
	cancelJobs context.CancelFunc
}

// NewServer creates a Server reading from st. The refresh endpoint is only
// mounted when u is non-nil and cfg.APIKeys is not empty.
func NewServer(st store.Store, u *sde.Updater, cfg config.ServerConfig) *Server {
	jobs, cancel := context.WithCancel(context.Background())
	s := &Server{
		store:      st,
		updater:    u,
		cfg:        cfg,
		router:     chi.NewRouter(),
		jobs:       jobs,
		cancelJobs: cancel,
	}
	s.setupMiddleware()
	s.setupRoutes()
	return s
}

// setupMiddleware configures middleware for all routes.
func (s *Server) setupMiddleware() {
	s.router.Use(chimw.RequestID)
	s.router.Use(middleware.TrustedRealIP(s.cfg.TrustedProxies))
	s.router.Use(middleware.Logger)
	s.router.Use(chimw.Recoverer)
	if s.cfg.RequestTimeout > 0 {
		s.router.Use(chimw.Timeout(s.cfg.RequestTimeout))
	}
	s.router.Use(securityHeaders)
}

// setupRoutes configures all HTTP routes.
func (s *Server) setupRoutes() {
	// Pages
	s.router.Get("/", s.handleDashboard)
	s.router.Get("/tables/{table}", s.handleTableView)

	s.router.Route("/api", func(r chi.Router) {
		r.Get("/tables", s.handleListTables)
		r.Get("/tables/{table}", s.handleTableRows)
		r.Get("/export/{table}", s.handleExportTable)
		r.Get("/version", s.handleVersion)
		r.Get("/runs", s.handleRuns)

		if s.updater != nil && len(s.cfg.APIKeys) > 0 {
			r.With(middleware.APIKeyAuth(s.cfg.APIKeys)).Post("/refresh", s.handleRefresh)
		}
	})
}

// Start listens on the configured address until Shutdown.
func (s *Server) Start() error {
	s.server = &http.Server{
		Addr:         s.cfg.Addr(),
		Handler:      s.router,
		ReadTimeout:  s.cfg.ReadTimeout,
		WriteTimeout: s.cfg.WriteTimeout,
		IdleTimeout:  s.cfg.IdleTimeout,
	}

	slog.Info("browse server listening", "addr", s.cfg.Addr())
	return s.server.ListenAndServe()
}

// Shutdown cancels refreshes started over HTTP, waits for them, then stops
// the listener gracefully.
func (s *Server) Shutdown(ctx context.Context) error {
	s.cancelJobs()
	if s.updater != nil {
		if err := s.updater.Wait(ctx); err != nil {
			slog.Warn("refresh did not finish before shutdown", "error", err)
		}
	}

	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

// Router returns the underlying chi router for testing.
func (s *Server) Router() *chi.Mux {
	return s.router
}

// securityHeaders adds security headers to all responses.
func securityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Content-Security-Policy", "default-src 'self'; style-src 'self' 'unsafe-inline'")
		w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")
		next.ServeHTTP(w, r)
	})
}

// writeJSON encodes v as JSON and writes it to w.
// Logs encoding errors since headers are already sent.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("json encode error", "error", err)
	}
}
