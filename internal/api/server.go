// Package api provides the HTTP server that exposes the watch table and
// metrics of a running minotaur.
package api

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/google/uuid"

	"github.com/giannitedesco/minotaur/internal/http/response"
	"github.com/giannitedesco/minotaur/internal/ratelimit"
	"github.com/giannitedesco/minotaur/internal/validation"
	"github.com/giannitedesco/minotaur/pkg/inotify"
)

// Watches is the part of an inotify session the API drives.
type Watches interface {
	ID() uuid.UUID
	Add(path string, mask inotify.Mask) (inotify.WatchInfo, bool, error)
	Cancel(d inotify.Descriptor) error
	Watches() []inotify.WatchInfo
	Lookup(wd int32) (inotify.WatchInfo, bool)
	Capabilities() inotify.Capabilities
	Closed() bool
}

var _ Watches = (*inotify.Session)(nil)

// Options configures optional parts of the server.
type Options struct {
	// Metrics serves /metrics when set.
	Metrics http.Handler
	// Events serves the live event stream at /api/v1/events when set.
	Events http.Handler
	// Limiter throttles watch changes per client when set.
	Limiter *ratelimit.KeyedRateLimiter
	// CORSOrigins enables CORS for the listed origins.
	CORSOrigins []string
}

// Server holds dependencies for HTTP handlers.
type Server struct {
	watches   Watches
	opts      Options
	validator *validation.Validator
	router    *chi.Mux
	logger    *slog.Logger
}

// NewServer creates a new HTTP server with all routes configured.
func NewServer(watches Watches, logger *slog.Logger, opts Options) *Server {
	s := &Server{
		watches:   watches,
		opts:      opts,
		validator: validation.New(),
		router:    chi.NewRouter(),
		logger:    logger,
	}

	s.setupMiddleware()
	s.setupRoutes()

	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// setupMiddleware configures middleware stack.
func (s *Server) setupMiddleware() {
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(s.requestLogger)
	s.router.Use(middleware.Recoverer)

	if len(s.opts.CORSOrigins) > 0 {
		s.router.Use(cors.Handler(cors.Options{
			AllowedOrigins: s.opts.CORSOrigins,
			AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
			AllowedHeaders: []string{"Accept", "Content-Type", "X-Request-Id"},
			ExposedHeaders: []string{"X-Request-Id"},
			MaxAge:         300,
		}))
	}
}

// setupRoutes configures all HTTP routes.
func (s *Server) setupRoutes() {
	s.router.Get("/health", s.handleHealthCheck)

	if s.opts.Metrics != nil {
		s.router.Handle("/metrics", s.opts.Metrics)
	}

	s.router.Route("/api/v1", func(r chi.Router) {
		r.Get("/session", s.handleGetSession)

		if s.opts.Events != nil {
			r.Method(http.MethodGet, "/events", s.opts.Events)
		}

		r.Route("/watches", func(r chi.Router) {
			r.Get("/", s.handleListWatches)
			r.Get("/{wd}", s.handleGetWatch)

			r.Group(func(r chi.Router) {
				if s.opts.Limiter != nil {
					r.Use(RateLimitMiddleware(s.opts.Limiter, s.logger))
				}
				r.Post("/", s.handleAddWatch)
				r.Delete("/{wd}", s.handleDeleteWatch)
			})
		})
	})

	s.router.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		response.NotFound(w, "no such endpoint", s.logger)
	})
}

// HealthResponse is the body of /health.
type HealthResponse struct {
	Status  string `json:"status"`
	Watches int    `json:"watches"`
}

// handleHealthCheck reports whether the session is still open.
func (s *Server) handleHealthCheck(w http.ResponseWriter, _ *http.Request) {
	if s.watches.Closed() {
		response.JSON(w, http.StatusServiceUnavailable, HealthResponse{Status: "unhealthy"}, s.logger)
		return
	}
	response.Success(w, HealthResponse{
		Status:  "healthy",
		Watches: len(s.watches.Watches()),
	}, s.logger)
}
