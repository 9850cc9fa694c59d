package server

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/eugener/holocron/internal/telemetry"
)

// unmatchedRoute labels requests no route matched, so requests for arbitrary paths
// cannot grow the label set.
const unmatchedRoute = "unmatched"

// statusLabels caches the label value of every valid status code.
var statusLabels = func() (s [600]string) {
	for i := range s {
		s[i] = strconv.Itoa(i)
	}
	return s
}()

func statusLabel(code int) string {
	if code < 0 || code >= len(statusLabels) {
		return strconv.Itoa(code)
	}
	return statusLabels[code]
}

// metricsMiddleware records request count, latency and in-flight requests
// per chi route pattern.
func metricsMiddleware(m *telemetry.Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			m.ActiveRequests.Inc()
			defer m.ActiveRequests.Dec()

			sw := acquireStatusWriter(w)
			defer sw.release()

			start := time.Now()
			next.ServeHTTP(sw, r)

			route := routePattern(r)
			m.RequestsTotal.WithLabelValues(r.Method, route, statusLabel(sw.status)).Inc()
			m.RequestDuration.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
		})
	}
}

// routePattern returns the matched chi route pattern, or unmatchedRoute.
func routePattern(r *http.Request) string {
	if rctx := chi.RouteContext(r.Context()); rctx != nil {
		if p := rctx.RoutePattern(); p != "" {
			return p
		}
	}
	return unmatchedRoute
}
