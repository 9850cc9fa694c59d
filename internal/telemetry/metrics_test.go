package telemetry

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	catalog "github.com/eugener/holocron/internal"
)

func TestNewMetrics(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewPedanticRegistry()
	m := NewMetrics(reg)

	m.RequestsTotal.WithLabelValues("GET", "/api/{kind}/{id}", "200").Inc()
	m.RequestDuration.WithLabelValues("GET", "/api/{kind}/{id}").Observe(0.012)
	m.ActiveRequests.Set(2)
	m.RateLimitRejects.Inc()
	m.SweepRemoved.Add(3)

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("Gather: %v", err)
	}
	names := make(map[string]bool)
	for _, f := range families {
		names[f.GetName()] = true
	}
	for _, name := range []string{
		"holocron_requests_total",
		"holocron_request_duration_seconds",
		"holocron_active_requests",
		"holocron_ratelimit_rejects_total",
		"holocron_sweep_removed_total",
	} {
		if !names[name] {
			t.Errorf("missing metric %q", name)
		}
	}
}

func TestCacheHooks(t *testing.T) {
	t.Parallel()

	m := NewMetrics(prometheus.NewPedanticRegistry())
	h := m.CacheHooks()
	h.OnMiss("GET /people/1")
	h.OnHit("GET /people/1")
	h.OnHit("GET /people?page=1&limit=10")
	h.OnDegraded("GET /starships/9", errors.New("corrupt"))

	if got := testutil.ToFloat64(m.CacheHits.WithLabelValues("people")); got != 2 {
		t.Errorf("hits{people} = %v, want 2", got)
	}
	if got := testutil.ToFloat64(m.CacheMisses.WithLabelValues("people")); got != 1 {
		t.Errorf("misses{people} = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.CacheDegraded.WithLabelValues("starships")); got != 1 {
		t.Errorf("degraded{starships} = %v, want 1", got)
	}
}

func TestObserveUpstream(t *testing.T) {
	t.Parallel()

	m := NewMetrics(prometheus.NewPedanticRegistry())
	m.ObserveUpstream(catalog.KindPlanets, "get", 20*time.Millisecond, nil)
	m.ObserveUpstream(catalog.KindPlanets, "get", time.Second, fmt.Errorf("x: %w", catalog.ErrServer))

	if got := testutil.ToFloat64(m.UpstreamErrors.WithLabelValues("planets", "server")); got != 1 {
		t.Errorf("errors{planets,server} = %v, want 1", got)
	}
	if n := testutil.CollectAndCount(m.UpstreamDuration); n != 1 {
		t.Errorf("duration series = %d, want 1", n)
	}
}

func TestErrorClass(t *testing.T) {
	t.Parallel()

	tests := []struct {
		err  error
		want string
	}{
		{context.DeadlineExceeded, "timeout"},
		{catalog.ErrNotFound, "not_found"},
		{catalog.ErrBadRequest, "bad_request"},
		{fmt.Errorf("%w: dial", catalog.ErrTransport), "transport"},
		{catalog.ErrServer, "server"},
		{errors.New("?"), "other"},
	}
	for _, tt := range tests {
		if got := ErrorClass(tt.err); got != tt.want {
			t.Errorf("ErrorClass(%v) = %q, want %q", tt.err, got, tt.want)
		}
	}
}

func TestEndpointKind(t *testing.T) {
	t.Parallel()

	for in, want := range map[string]string{
		"GET /people/1":                 "people",
		"GET /planets?page=2&limit=10":  "planets",
		"GET /starships":                "starships",
		"":                              "",
	} {
		if got := endpointKind(in); got != want {
			t.Errorf("endpointKind(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestSampler(t *testing.T) {
	t.Parallel()

	for rate, want := range map[float64]string{
		0:   "AlwaysOffSampler",
		-1:  "AlwaysOffSampler",
		1:   "AlwaysOnSampler",
		0.5: "ParentBased",
	} {
		if got := Sampler(rate).Description(); !strings.HasPrefix(got, want) {
			t.Errorf("Sampler(%v) = %q, want prefix %q", rate, got, want)
		}
	}
}

// SetupTracing is not unit-tested because it requires a gRPC connection
// to an OTLP collector, which is integration-test territory.
