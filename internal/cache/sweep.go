package cache

import (
	"context"
	"errors"
	"log/slog"

	"github.com/eugener/holocron/internal/storage"
)

// Sweep removes entries that can no longer be served: stale pairs, metadata
// whose payload is gone, and payloads without readable metadata. It returns
// the number of payload keys removed.
//
// A sweep racing a write-through may drop a payload whose metadata has not
// landed yet. The next read misses and rewrites it.
func (c *Client) Sweep(ctx context.Context) (int, error) {
	l, ok := c.backend.(storage.Lister)
	if !ok {
		return 0, ErrListUnsupported
	}
	keys, err := l.Keys(ctx)
	if err != nil {
		return 0, err
	}

	present := make(map[string]bool, len(keys))
	for _, k := range keys {
		present[k] = true
	}

	now := c.now()
	var (
		removed int
		errs    []error
	)
	for _, k := range keys {
		if err := ctx.Err(); err != nil {
			return removed, err
		}
		if IsMetadataKey(k) {
			if !present[PayloadKey(k)] {
				errs = append(errs, c.backend.Remove(ctx, k))
			}
			continue
		}
		if c.meta.IsFresh(ctx, k, now, c.policy.TTL) {
			continue
		}
		if err := c.Invalidate(ctx, k); err != nil {
			errs = append(errs, err)
			continue
		}
		removed++
	}

	if removed > 0 {
		c.logger.LogAttrs(ctx, slog.LevelDebug, "cache sweep",
			slog.Int("removed", removed),
		)
	}
	return removed, errors.Join(errs...)
}
