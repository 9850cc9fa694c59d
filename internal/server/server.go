// Package server implements the HTTP transport layer for holocron.
package server

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	catalog "github.com/eugener/holocron/internal"
	"github.com/eugener/holocron/internal/circuitbreaker"
	"github.com/eugener/holocron/internal/ratelimit"
	"github.com/eugener/holocron/internal/telemetry"
)

// ReadyChecker reports whether the system is ready to serve traffic.
type ReadyChecker func(ctx context.Context) error

// CacheAdmin exposes maintenance operations on the cache.
type CacheAdmin interface {
	Entries(ctx context.Context) ([]catalog.CacheEntry, error)
	Invalidate(ctx context.Context, key string) error
	Purge(ctx context.Context) error
}

// BreakerStates reports per-kind circuit breaker states.
type BreakerStates interface {
	States() map[string]circuitbreaker.State
}

// Deps holds all dependencies for the HTTP server.
type Deps struct {
	Catalog        catalog.RemoteService
	Cache          CacheAdmin         // nil = admin cache routes return 404
	Breakers       BreakerStates      // nil = omitted from /admin/breakers
	ReadyCheck     ReadyChecker       // nil = always ready (for tests)
	RateLimiter    *ratelimit.Limiter // nil = no rate limiting
	AdminToken     string             // empty = admin routes unauthenticated
	Metrics        *telemetry.Metrics // nil = no request metrics
	MetricsHandler http.Handler       // nil = no /metrics route
}

// New creates an http.Handler with all routes and middleware wired.
func New(deps Deps) http.Handler {
	s := &server{deps: deps}

	r := chi.NewRouter()

	// Global middleware
	r.Use(s.recovery)
	r.Use(s.requestID)
	r.Use(s.logging)
	if deps.Metrics != nil {
		r.Use(metricsMiddleware(deps.Metrics))
	}

	// System endpoints
	r.Get("/healthz", s.handleHealthz)
	r.Get("/readyz", s.handleReadyz)
	if deps.MetricsHandler != nil {
		r.Handle("/metrics", deps.MetricsHandler)
	}

	// Catalog API
	r.Group(func(r chi.Router) {
		r.Use(s.rateLimit)
		r.Get("/api/kinds", s.handleKinds)
		r.Get("/api/{kind}", s.handleList)
		r.Get("/api/{kind}/{id}", s.handleGet)
	})

	// Admin
	r.Route("/admin", func(r chi.Router) {
		r.Use(s.adminAuth)
		r.Get("/breakers", s.handleBreakers)
		if deps.Cache != nil {
			r.Get("/cache", s.handleCacheEntries)
			r.Delete("/cache", s.handleCachePurge)
			r.Delete("/cache/{key}", s.handleCacheInvalidate)
		}
	})

	return r
}

type server struct {
	deps Deps
}
