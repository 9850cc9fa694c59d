package worker

import (
	"context"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"
)

// Runner runs the background workers of one process and stops them together.
type Runner struct {
	workers []Worker
}

// NewRunner creates a Runner with the given workers.
func NewRunner(workers ...Worker) *Runner {
	return &Runner{workers: workers}
}

// Run starts every worker and blocks until all have returned. The first
// worker to fail cancels the others, and its error is returned.
func (r *Runner) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	for _, w := range r.workers {
		name := workerName(w)
		g.Go(func() error {
			slog.LogAttrs(ctx, slog.LevelInfo, "worker started", slog.String("worker", name))
			err := w.Run(ctx)
			if err != nil {
				slog.LogAttrs(ctx, slog.LevelError, "worker failed",
					slog.String("worker", name),
					slog.String("error", err.Error()),
				)
				return fmt.Errorf("worker %s: %w", name, err)
			}
			slog.LogAttrs(ctx, slog.LevelDebug, "worker stopped", slog.String("worker", name))
			return nil
		})
	}
	return g.Wait()
}

func workerName(w Worker) string {
	switch w.(type) {
	case *ExpirySweeper:
		return "expiry_sweeper"
	case *LimiterJanitor:
		return "limiter_janitor"
	case *DNSRefresher:
		return "dns_refresher"
	default:
		return "unknown"
	}
}
