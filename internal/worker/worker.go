// Package worker runs holocron's periodic maintenance: the cache expiry
// sweeper, rate limiter eviction, and upstream DNS refresh.
package worker

import "context"

// Worker is a long-running background task. Run returns nil once ctx is
// cancelled; a non-nil error stops the whole Runner.
type Worker interface {
	Run(ctx context.Context) error
}
