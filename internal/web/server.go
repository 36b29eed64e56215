// Package web provides the HTTP API for uploading, editing and sharing CSV
// records.
package web

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"

	"github.com/JonMunkholm/csvshare/internal/config"
	"github.com/JonMunkholm/csvshare/internal/core"
	"github.com/JonMunkholm/csvshare/internal/web/middleware"
)

// Limiters are the rate limit backends. A nil field disables that limit.
type Limiters struct {
	// API applies to every authenticated route.
	API middleware.Limiter

	// Writes applies on top of API to upload and update.
	Writes middleware.Limiter
}

// Server is the HTTP server for the record API.
type Server struct {
	service  *core.Service
	cfg      *config.Config
	auth     *middleware.JWTAuth
	limiters Limiters
	router   *chi.Mux
	server   *http.Server
}

// NewServer creates a new Server instance.
func NewServer(service *core.Service, cfg *config.Config, limiters Limiters) *Server {
	var lookup middleware.PrincipalLookup
	if cfg.Security.VerifyPrincipal {
		lookup = service
	}

	s := &Server{
		service:  service,
		cfg:      cfg,
		auth:     middleware.NewJWTAuth(cfg.Security.JWTSecret, cfg.Security.JWTLeeway, lookup),
		limiters: limiters,
		router:   chi.NewRouter(),
	}
	s.setupMiddleware()
	s.setupRoutes()
	return s
}

// setupMiddleware configures middleware for all routes.
func (s *Server) setupMiddleware() {
	s.router.Use(chimw.RequestID)
	s.router.Use(middleware.TrustedRealIP(s.cfg.Security.TrustedProxies))
	s.router.Use(middleware.Logger)
	s.router.Use(chimw.Recoverer)
	if s.cfg.Metrics.Enabled {
		s.router.Use(middleware.Metrics)
	}
	s.router.Use(securityHeaders(s.cfg.Security.EnableCSP))
	if len(s.cfg.Security.CORSOrigins) > 0 {
		s.router.Use(cors.New(cors.Options{
			AllowedOrigins: s.cfg.Security.CORSOrigins,
			AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete},
			AllowedHeaders: []string{"Authorization", "Content-Type"},
			MaxAge:         300,
		}).Handler)
	}
}

// setupRoutes configures all HTTP routes.
func (s *Server) setupRoutes() {
	s.router.Get("/healthz", s.handleHealth)
	if s.cfg.Metrics.Enabled {
		s.router.Handle(s.cfg.Metrics.Path, promhttp.Handler())
	}

	s.router.Route("/api", func(r chi.Router) {
		r.Use(s.auth.Middleware)
		if s.limiters.API != nil {
			r.Use(middleware.RateLimit(s.limiters.API, "api"))
		}

		// Content writes: longer deadline, tighter limit
		r.Group(func(r chi.Router) {
			r.Use(chimw.Timeout(s.cfg.Upload.Timeout))
			if s.limiters.Writes != nil {
				r.Use(middleware.RateLimit(s.limiters.Writes, "write"))
			}
			r.Post("/csv/upload", s.handleUpload)
			r.Put("/csv/files/{fileId}", s.handleUpdate)
		})

		r.Group(func(r chi.Router) {
			r.Use(chimw.Timeout(s.cfg.Server.RequestTimeout))

			// Records
			r.Get("/csv/files", s.handleListFiles)
			r.Get("/csv/files/{fileId}", s.handleGetFile)
			r.Delete("/csv/files/{fileId}", s.handleDeleteFile)

			// Sharing
			r.Put("/share/update-general-access/{fileId}", s.handleChangeAccess)
			r.Get("/share/link/{fileId}", s.handleShareLink)
			r.Post("/email/share", s.handleShareEmail)

			// Administration
			r.Get("/admin/users", s.handleListUsers)
			r.Get("/admin/users/{userId}/files", s.handleListUserFiles)
			r.Delete("/admin/users/{userId}", s.handlePurgeUser)
		})
	})
}

// Start begins listening for HTTP requests.
func (s *Server) Start() error {
	s.server = &http.Server{
		Addr:         s.cfg.Server.Addr(),
		Handler:      s.router,
		ReadTimeout:  s.cfg.Server.ReadTimeout,
		WriteTimeout: s.cfg.Server.WriteTimeout,
		IdleTimeout:  s.cfg.Server.IdleTimeout,
	}

	slog.Info("starting server", "addr", s.server.Addr)
	return s.server.ListenAndServe()
}

// Shutdown stops accepting requests, waits for handlers to return, then
// waits for content writes still holding a limiter slot.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.server != nil {
		if err := s.server.Shutdown(ctx); err != nil {
			return err
		}
	}
	return s.service.Limiter().WaitForDrain(ctx)
}

// Router returns the underlying chi router for testing.
func (s *Server) Router() *chi.Mux {
	return s.router
}

// handleHealth reports liveness and write slot usage.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, map[string]any{
		"status": "ok",
		"writes": s.service.Limiter().Status(),
	})
}

const contentSecurityPolicy = "default-src 'none'; frame-ancestors 'none'"

// securityHeaders adds security headers to all responses.
func securityHeaders(enableCSP bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			// Prevent MIME type sniffing
			w.Header().Set("X-Content-Type-Options", "nosniff")

			// Prevent clickjacking
			w.Header().Set("X-Frame-Options", "DENY")

			// The API serves JSON only, so nothing may load from a response
			if enableCSP {
				w.Header().Set("Content-Security-Policy", contentSecurityPolicy)
			}

			// Control referrer information
			w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")

			next.ServeHTTP(w, r)
		})
	}
}

// writeJSON encodes v as JSON with status 200.
func writeJSON(w http.ResponseWriter, v any) {
	writeJSONStatus(w, http.StatusOK, v)
}

// writeJSONStatus encodes v as JSON and writes it with status.
// Logs encoding errors since headers are already sent.
func writeJSONStatus(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("json encode error", "error", err)
	}
}
