package remote

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	catalog "github.com/eugener/holocron/internal"
	"github.com/eugener/holocron/internal/circuitbreaker"
	"github.com/eugener/holocron/internal/testutil"
)

func TestGuarded_OpensPerKind(t *testing.T) {
	t.Parallel()

	fake := &testutil.FakeRemote{
		GetFn: func(_ context.Context, kind catalog.ResourceKind, id string) (*catalog.DetailResult, error) {
			if kind == catalog.KindStarships {
				return nil, &APIError{Service: "swapi", StatusCode: 500}
			}
			return testutil.FakeDetail(kind, id, "ok"), nil
		},
	}
	cfg := circuitbreaker.Config{ErrorThreshold: 0.5, MinSamples: 3, WindowSeconds: 10, OpenTimeout: time.Hour}
	g := NewGuarded(fake, circuitbreaker.NewRegistry(cfg), nil)
	ctx := context.Background()

	for range 3 {
		if _, err := g.Get(ctx, catalog.KindStarships, "999"); !errors.Is(err, catalog.ErrServer) {
			t.Fatalf("err = %v, want ErrServer", err)
		}
	}
	_, err := g.Get(ctx, catalog.KindStarships, "9")
	if !errors.Is(err, catalog.ErrCircuitOpen) {
		t.Fatalf("err = %v, want ErrCircuitOpen", err)
	}
	if fake.GetCalls() != 3 {
		t.Errorf("upstream calls = %d, want 3 (open breaker short-circuits)", fake.GetCalls())
	}

	// Other kinds are unaffected.
	if _, err := g.Get(ctx, catalog.KindPeople, "1"); err != nil {
		t.Errorf("people: %v", err)
	}
	if st := g.Breakers().States(); st["starships"] != circuitbreaker.StateOpen || st["people"] != circuitbreaker.StateClosed {
		t.Errorf("states = %v", st)
	}
}

func TestGuarded_NotFoundDoesNotTrip(t *testing.T) {
	t.Parallel()

	fake := &testutil.FakeRemote{
		GetFn: func(context.Context, catalog.ResourceKind, string) (*catalog.DetailResult, error) {
			return nil, fmt.Errorf("swapi: %w", &APIError{Service: "swapi", StatusCode: 404})
		},
	}
	cfg := circuitbreaker.Config{ErrorThreshold: 0.1, MinSamples: 1, WindowSeconds: 10, OpenTimeout: time.Hour}
	g := NewGuarded(fake, circuitbreaker.NewRegistry(cfg), nil)
	for range 5 {
		if _, err := g.Get(context.Background(), catalog.KindPeople, "404"); !errors.Is(err, catalog.ErrNotFound) {
			t.Fatalf("err = %v, want ErrNotFound", err)
		}
	}
	if fake.GetCalls() != 5 {
		t.Errorf("upstream calls = %d, want 5", fake.GetCalls())
	}
}

func TestGuarded_Observer(t *testing.T) {
	t.Parallel()

	var (
		mu  sync.Mutex
		ops []string
	)
	observe := func(kind catalog.ResourceKind, op string, _ time.Duration, err error) {
		mu.Lock()
		ops = append(ops, fmt.Sprintf("%s %s %v", op, kind, err == nil))
		mu.Unlock()
	}
	g := NewGuarded(&testutil.FakeRemote{}, circuitbreaker.NewRegistry(circuitbreaker.DefaultConfig()), observe)
	ctx := context.Background()
	_, _ = g.List(ctx, catalog.KindPlanets, catalog.ListParams{})
	_, _ = g.Get(ctx, catalog.KindPlanets, "1")

	want := []string{"list planets true", "get planets true"}
	if len(ops) != 2 || ops[0] != want[0] || ops[1] != want[1] {
		t.Errorf("observed %v, want %v", ops, want)
	}
}
