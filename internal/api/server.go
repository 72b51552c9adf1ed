// SPDX-License-Identifier: MIT

// Package api provides the HTTP server for the tbf document service.
package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/httprate"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/singleflight"

	"github.com/Typecraft/tbf/internal/cache"
	"github.com/Typecraft/tbf/internal/config"
	"github.com/Typecraft/tbf/internal/store"
)

// ConfigSource yields the current configuration. Implemented by
// config.Holder so the server picks up hot reloads without restarts.
type ConfigSource interface {
	Get() config.Config
}

// Server serves the document API over HTTP.
type Server struct {
	cfg       ConfigSource
	store     store.Store
	cache     cache.Cache
	sf        singleflight.Group
	startTime time.Time
}

// New constructs a Server. The store and cache are owned by the caller.
func New(cfg ConfigSource, st store.Store, c cache.Cache) *Server {
	return &Server{
		cfg:       cfg,
		store:     st,
		cache:     c,
		startTime: time.Now(),
	}
}

// Routes builds the router with the full middleware stack.
func (s *Server) Routes() http.Handler {
	cfg := s.cfg.Get()

	r := chi.NewRouter()
	r.Use(recoverer)
	r.Use(requestID)
	r.Use(metricsMiddleware)
	r.Use(otelHTTP("tbfd"))
	r.Use(requestLogger)

	r.Get("/healthz", s.handleHealthz)
	r.Get("/readyz", s.handleReadyz)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		limit := httprate.Limit(
			cfg.API.RateLimit,
			cfg.API.RateWindow.Std(),
			httprate.WithKeyFuncs(httprate.KeyByIP),
			httprate.WithLimitHandler(func(w http.ResponseWriter, _ *http.Request) {
				writeError(w, http.StatusTooManyRequests, "rate limit exceeded")
			}),
		)

		r.Get("/documents", s.handleListDocuments)
		r.Get("/documents/{id}", s.handleGetDocument)
		r.Get("/documents/{id}/stats", s.handleDocumentStats)

		r.Group(func(r chi.Router) {
			r.Use(limit)
			r.Use(maxBody(cfg.API.MaxBodyBytes))
			r.Post("/documents", s.handleCreateDocument)
			r.Delete("/documents/{id}", s.handleDeleteDocument)
			r.Post("/convert", s.handleConvert)
		})
	})

	return r
}

// maxBody caps request body size. Oversized bodies surface as
// *http.MaxBytesError during reads.
func maxBody(n int64) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			r.Body = http.MaxBytesReader(w, r.Body, n)
			next.ServeHTTP(w, r)
		})
	}
}
