package cache

import (
	"context"
	"log/slog"
)

// Hooks are optional observability callbacks. Each receives the endpoint
// descriptor of the call (e.g. "GET /people/1") and runs synchronously on the
// caller's goroutine. A panicking hook is recovered and logged; it never
// aborts the cache operation.
type Hooks struct {
	OnHit  func(endpoint string)
	OnMiss func(endpoint string)
	// OnDegraded reports a cache-internal failure that was absorbed: an
	// unreadable or corrupt entry on the read path, or a failed write-through.
	OnDegraded func(endpoint string, err error)
}

func (c *Client) hit(ctx context.Context, endpoint string) {
	if c.hooks.OnHit != nil {
		c.safeHook(ctx, "hit", endpoint, func() { c.hooks.OnHit(endpoint) })
	}
}

func (c *Client) miss(ctx context.Context, endpoint string) {
	if c.hooks.OnMiss != nil {
		c.safeHook(ctx, "miss", endpoint, func() { c.hooks.OnMiss(endpoint) })
	}
}

func (c *Client) degraded(ctx context.Context, endpoint string, err error) {
	if c.hooks.OnDegraded != nil {
		c.safeHook(ctx, "degraded", endpoint, func() { c.hooks.OnDegraded(endpoint, err) })
	}
}

func (c *Client) safeHook(ctx context.Context, event, endpoint string, fn func()) {
	defer func() {
		if rec := recover(); rec != nil {
			c.logger.LogAttrs(ctx, slog.LevelError, "cache hook panicked",
				slog.String("event", event),
				slog.String("endpoint", endpoint),
				slog.Any("panic", rec),
			)
		}
	}()
	fn()
}
