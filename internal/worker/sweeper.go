package worker

import (
	"context"
	"log/slog"
	"time"
)

// Sweeper removes expired cache entries. Satisfied by *cache.Client.
type Sweeper interface {
	Sweep(ctx context.Context) (int, error)
}

// ExpirySweeper periodically drops stale and orphaned cache entries so a
// long-lived store does not keep growing with data that will never be served.
type ExpirySweeper struct {
	cache    Sweeper
	interval time.Duration
	onSwept  func(removed int)
}

// NewExpirySweeper creates a sweeper running every interval. onSwept, if
// non-nil, receives the count of each pass.
func NewExpirySweeper(cache Sweeper, interval time.Duration, onSwept func(int)) *ExpirySweeper {
	return &ExpirySweeper{cache: cache, interval: interval, onSwept: onSwept}
}

// Run sweeps on every tick until ctx is cancelled. Sweep failures are
// logged and retried on the next tick.
func (w *ExpirySweeper) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			w.sweep(ctx)
		}
	}
}

func (w *ExpirySweeper) sweep(ctx context.Context) {
	start := time.Now()
	removed, err := w.cache.Sweep(ctx)
	if err != nil && ctx.Err() == nil {
		slog.LogAttrs(ctx, slog.LevelError, "cache sweep failed",
			slog.Int("removed", removed),
			slog.String("error", err.Error()),
		)
	}
	if w.onSwept != nil {
		w.onSwept(removed)
	}
	if removed > 0 {
		slog.LogAttrs(ctx, slog.LevelInfo, "cache sweep completed",
			slog.Int("removed", removed),
			slog.Duration("elapsed", time.Since(start)),
		)
	}
}

// IdleEvictor drops per-client state unused since a cutoff. Satisfied by
// *ratelimit.Limiter.
type IdleEvictor interface {
	EvictIdle(cutoff time.Time) int
}

// LimiterJanitor evicts rate limiter buckets of clients that went quiet.
type LimiterJanitor struct {
	limiter  IdleEvictor
	interval time.Duration
	idle     time.Duration
}

// NewLimiterJanitor creates a janitor that every interval evicts buckets
// idle for longer than idle.
func NewLimiterJanitor(limiter IdleEvictor, interval, idle time.Duration) *LimiterJanitor {
	return &LimiterJanitor{limiter: limiter, interval: interval, idle: idle}
}

// Run evicts on every tick until ctx is cancelled.
func (w *LimiterJanitor) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case now := <-ticker.C:
			if n := w.limiter.EvictIdle(now.Add(-w.idle)); n > 0 {
				slog.LogAttrs(ctx, slog.LevelDebug, "rate limiters evicted", slog.Int("count", n))
			}
		}
	}
}

// Refresher re-resolves cached host entries. Satisfied by *dnscache.Resolver.
type Refresher interface {
	Refresh(clearUnused bool)
}

// DNSRefresher keeps the upstream DNS cache warm and drops hosts that were
// not looked up since the previous refresh.
type DNSRefresher struct {
	resolver Refresher
	interval time.Duration
}

// NewDNSRefresher creates a refresher that runs every interval.
func NewDNSRefresher(resolver Refresher, interval time.Duration) *DNSRefresher {
	return &DNSRefresher{resolver: resolver, interval: interval}
}

// Run refreshes on every tick until ctx is cancelled.
func (w *DNSRefresher) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			w.resolver.Refresh(true)
		}
	}
}
