// Package telemetry provides observability primitives for holocron.
package telemetry

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	catalog "github.com/eugener/holocron/internal"
	"github.com/eugener/holocron/internal/cache"
)

// Metrics holds all Prometheus collectors.
type Metrics struct {
	RequestsTotal    *prometheus.CounterVec
	RequestDuration  *prometheus.HistogramVec
	ActiveRequests   prometheus.Gauge
	UpstreamDuration *prometheus.HistogramVec
	UpstreamErrors   *prometheus.CounterVec
	CacheHits        *prometheus.CounterVec
	CacheMisses      *prometheus.CounterVec
	CacheDegraded    *prometheus.CounterVec
	RateLimitRejects prometheus.Counter
	SweepRemoved     prometheus.Counter
}

// NewMetrics creates and registers all metrics with the given registerer.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		RequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "holocron",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests.",
		}, []string{"method", "route", "status"}),

		RequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace:                       "holocron",
			Name:                            "request_duration_seconds",
			Help:                            "HTTP request duration in seconds.",
			NativeHistogramBucketFactor:     1.1,
			NativeHistogramMaxBucketNumber:  100,
			NativeHistogramMinResetDuration: 0,
		}, []string{"method", "route"}),

		ActiveRequests: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "holocron",
			Name:      "active_requests",
			Help:      "Number of currently active requests.",
		}),

		UpstreamDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace:                       "holocron",
			Name:                            "upstream_duration_seconds",
			Help:                            "Catalog API call duration in seconds.",
			NativeHistogramBucketFactor:     1.1,
			NativeHistogramMaxBucketNumber:  100,
			NativeHistogramMinResetDuration: 0,
		}, []string{"kind", "op"}),

		UpstreamErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "holocron",
			Name:      "upstream_errors_total",
			Help:      "Total catalog API errors by class.",
		}, []string{"kind", "class"}),

		CacheHits: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "holocron",
			Name:      "cache_hits_total",
			Help:      "Reads served from the cache.",
		}, []string{"kind"}),

		CacheMisses: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "holocron",
			Name:      "cache_misses_total",
			Help:      "Reads that went to the catalog API.",
		}, []string{"kind"}),

		CacheDegraded: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "holocron",
			Name:      "cache_degraded_total",
			Help:      "Cache read or write failures absorbed by falling back to the catalog API.",
		}, []string{"kind"}),

		RateLimitRejects: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "holocron",
			Name:      "ratelimit_rejects_total",
			Help:      "Total rate limit rejections.",
		}),

		SweepRemoved: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "holocron",
			Name:      "sweep_removed_total",
			Help:      "Cache entries removed by the expiry sweeper.",
		}),
	}

	reg.MustRegister(
		m.RequestsTotal,
		m.RequestDuration,
		m.ActiveRequests,
		m.UpstreamDuration,
		m.UpstreamErrors,
		m.CacheHits,
		m.CacheMisses,
		m.CacheDegraded,
		m.RateLimitRejects,
		m.SweepRemoved,
	)

	return m
}

// CacheHooks returns cache hooks that count hits, misses and degradations
// per resource kind.
func (m *Metrics) CacheHooks() cache.Hooks {
	return cache.Hooks{
		OnHit:      func(endpoint string) { m.CacheHits.WithLabelValues(endpointKind(endpoint)).Inc() },
		OnMiss:     func(endpoint string) { m.CacheMisses.WithLabelValues(endpointKind(endpoint)).Inc() },
		OnDegraded: func(endpoint string, _ error) { m.CacheDegraded.WithLabelValues(endpointKind(endpoint)).Inc() },
	}
}

// ObserveUpstream records one catalog API call. Its signature matches
// remote.Observer.
func (m *Metrics) ObserveUpstream(kind catalog.ResourceKind, op string, elapsed time.Duration, err error) {
	m.UpstreamDuration.WithLabelValues(string(kind), op).Observe(elapsed.Seconds())
	if err != nil {
		m.UpstreamErrors.WithLabelValues(string(kind), ErrorClass(err)).Inc()
	}
}

// ErrorClass buckets an upstream error into a low-cardinality label.
func ErrorClass(err error) string {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	case errors.Is(err, catalog.ErrNotFound):
		return "not_found"
	case errors.Is(err, catalog.ErrBadRequest):
		return "bad_request"
	case errors.Is(err, catalog.ErrTransport):
		return "transport"
	case errors.Is(err, catalog.ErrServer):
		return "server"
	default:
		return "other"
	}
}

// endpointKind extracts the kind from "GET /people/1" or "GET /people?page=1&limit=10".
func endpointKind(endpoint string) string {
	_, path, _ := strings.Cut(endpoint, " /")
	if i := strings.IndexAny(path, "/?"); i >= 0 {
		path = path[:i]
	}
	return path
}
