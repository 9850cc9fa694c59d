package remote

import (
	"context"
	"fmt"
	"time"

	catalog "github.com/eugener/holocron/internal"
	"github.com/eugener/holocron/internal/circuitbreaker"
)

var _ catalog.RemoteService = (*Guarded)(nil)

// Observer receives the outcome of every upstream call that was attempted.
type Observer func(kind catalog.ResourceKind, op string, elapsed time.Duration, err error)

// Guarded puts a circuit breaker per resource kind in front of a
// RemoteService. While a kind's breaker is open its calls fail with
// catalog.ErrCircuitOpen without reaching the upstream.
type Guarded struct {
	next     catalog.RemoteService
	breakers *circuitbreaker.Registry
	observe  Observer
}

// NewGuarded wraps next. observe may be nil.
func NewGuarded(next catalog.RemoteService, breakers *circuitbreaker.Registry, observe Observer) *Guarded {
	return &Guarded{next: next, breakers: breakers, observe: observe}
}

// List calls the wrapped service unless the kind's breaker is open.
func (g *Guarded) List(ctx context.Context, kind catalog.ResourceKind, params catalog.ListParams) (*catalog.ListResult, error) {
	return guard(ctx, g, kind, "list", func(ctx context.Context) (*catalog.ListResult, error) {
		return g.next.List(ctx, kind, params)
	})
}

// Get calls the wrapped service unless the kind's breaker is open.
func (g *Guarded) Get(ctx context.Context, kind catalog.ResourceKind, id string) (*catalog.DetailResult, error) {
	return guard(ctx, g, kind, "get", func(ctx context.Context) (*catalog.DetailResult, error) {
		return g.next.Get(ctx, kind, id)
	})
}

// Breakers returns the registry, for health reporting.
func (g *Guarded) Breakers() *circuitbreaker.Registry { return g.breakers }

func guard[T any](ctx context.Context, g *Guarded, kind catalog.ResourceKind, op string, call func(context.Context) (*T, error)) (*T, error) {
	b := g.breakers.For(string(kind))
	if !b.Allow() {
		return nil, fmt.Errorf("remote: %s %s: %w", op, kind, catalog.ErrCircuitOpen)
	}
	start := time.Now()
	v, err := call(ctx)
	b.Record(circuitbreaker.Weight(err))
	if g.observe != nil {
		g.observe(kind, op, time.Since(start), err)
	}
	return v, err
}
