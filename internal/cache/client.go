// Package cache implements the read-through cache in front of a catalog
// RemoteService: key derivation, staleness metadata, and the fetch-or-serve
// protocol with write-through.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	catalog "github.com/eugener/holocron/internal"
	"github.com/eugener/holocron/internal/storage"
)

var _ catalog.RemoteService = (*Client)(nil)

// ErrListUnsupported is returned by Entries when the backend cannot list keys.
var ErrListUnsupported = errors.New("cache: backend cannot list keys")

// Client decorates a RemoteService with a read-through cache. It exposes
// the same operations; only errors from the remote service ever reach the
// caller, cache-internal failures degrade to a live fetch.
//
// No lock serializes a key: concurrent misses on the same key may each call
// the remote service and each write through. The last write wins, and both
// writes carry the same logical value.
type Client struct {
	remote  catalog.RemoteService
	backend storage.Backend
	meta    *MetadataStore
	policy  Policy
	hooks   Hooks
	now     func() time.Time
	logger  *slog.Logger
	tracer  trace.Tracer
}

// Option configures a Client.
type Option func(*Client)

// WithHooks installs observability callbacks.
func WithHooks(h Hooks) Option { return func(c *Client) { c.hooks = h } }

// WithClock replaces time.Now, used for both write timestamps and staleness checks.
func WithClock(now func() time.Time) Option { return func(c *Client) { c.now = now } }

// WithLogger sets the logger for absorbed failures. Defaults to slog.Default().
func WithLogger(l *slog.Logger) Option { return func(c *Client) { c.logger = l } }

// WithTracer sets the tracer. Defaults to the global otel provider.
func WithTracer(t trace.Tracer) Option { return func(c *Client) { c.tracer = t } }

// New wraps remote with a cache stored in backend. The policy is fixed for
// the lifetime of the Client.
func New(remote catalog.RemoteService, backend storage.Backend, policy Policy, opts ...Option) (*Client, error) {
	if remote == nil {
		return nil, errors.New("cache: nil remote service")
	}
	if backend == nil {
		return nil, errors.New("cache: nil storage backend")
	}
	if err := policy.Validate(); err != nil {
		return nil, err
	}
	c := &Client{
		remote:  remote,
		backend: backend,
		meta:    NewMetadataStore(backend),
		policy:  policy,
		now:     time.Now,
		logger:  slog.Default(),
		tracer:  otel.Tracer("github.com/eugener/holocron/internal/cache"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Policy returns the policy the client was built with.
func (c *Client) Policy() Policy { return c.policy }

// List returns a page of kind, from the cache when fresh.
func (c *Client) List(ctx context.Context, kind catalog.ResourceKind, params catalog.ListParams) (*catalog.ListResult, error) {
	if !c.policy.Enabled {
		return c.remote.List(ctx, kind, params)
	}
	return readThrough(ctx, c, kind, ListKey(kind, params), catalog.ListEndpoint(kind, params),
		func(ctx context.Context) (*catalog.ListResult, error) {
			return c.remote.List(ctx, kind, params)
		})
}

// Get returns one resource of kind, from the cache when fresh.
func (c *Client) Get(ctx context.Context, kind catalog.ResourceKind, id string) (*catalog.DetailResult, error) {
	if !c.policy.Enabled {
		return c.remote.Get(ctx, kind, id)
	}
	return readThrough(ctx, c, kind, DetailKey(kind, id), catalog.DetailEndpoint(kind, id),
		func(ctx context.Context) (*catalog.DetailResult, error) {
			return c.remote.Get(ctx, kind, id)
		})
}

// readThrough serves key from storage when fresh, otherwise calls fetch and
// writes a successful result through.
func readThrough[T catalog.ListResult | catalog.DetailResult](
	ctx context.Context,
	c *Client,
	kind catalog.ResourceKind,
	key, endpoint string,
	fetch func(context.Context) (*T, error),
) (*T, error) {
	ctx, span := c.tracer.Start(ctx, "cache.read_through", trace.WithAttributes(
		attribute.String("cache.key", key),
		attribute.String("catalog.kind", string(kind)),
	))
	defer span.End()

	if c.meta.IsFresh(ctx, key, c.now(), c.policy.TTL) {
		v, ok, err := load[T](ctx, c.backend, kind, key)
		switch {
		case err != nil:
			c.logger.LogAttrs(ctx, slog.LevelWarn, "cache read degraded to miss",
				slog.String("key", key),
				slog.String("error", err.Error()),
			)
			c.degraded(ctx, endpoint, err)
		case ok:
			span.SetAttributes(attribute.String("cache.result", "hit"))
			c.hit(ctx, endpoint)
			return v, nil
		}
	}

	span.SetAttributes(attribute.String("cache.result", "miss"))
	c.miss(ctx, endpoint)

	v, err := fetch(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	if v == nil {
		return nil, nil
	}
	normalize(v)

	// The write-through outlives a cancelled caller so storage never holds
	// a payload without its timestamp because of cancellation.
	if err := c.store(context.WithoutCancel(ctx), key, v); err != nil {
		c.logger.LogAttrs(ctx, slog.LevelWarn, "cache write-through failed",
			slog.String("key", key),
			slog.String("error", err.Error()),
		)
		c.degraded(ctx, endpoint, err)
	}
	return v, nil
}

// load reads and decodes the payload of key. A missing payload is a plain
// miss; unreadable, corrupt or mismatched payloads are errors.
func load[T catalog.ListResult | catalog.DetailResult](ctx context.Context, b storage.Backend, kind catalog.ResourceKind, key string) (*T, bool, error) {
	data, ok, err := b.Get(ctx, key)
	if err != nil || !ok {
		return nil, false, err
	}
	v := new(T)
	if err := json.Unmarshal(data, v); err != nil {
		return nil, false, fmt.Errorf("%w: decode %q: %v", catalog.ErrSerialization, key, err)
	}
	if got := kindOf(v); got != kind {
		return nil, false, fmt.Errorf("%w: %q holds kind %q, want %q", catalog.ErrSerialization, key, got, kind)
	}
	return v, true, nil
}

// normalize fills fields whose zero value would not survive encoding, so a
// later hit returns exactly what this miss returned.
func normalize(v any) {
	if d, ok := v.(*catalog.DetailResult); ok && d.Properties == nil {
		d.Properties = json.RawMessage(`{}`)
	}
}

func kindOf(v any) catalog.ResourceKind {
	switch r := v.(type) {
	case *catalog.ListResult:
		return r.Kind
	case *catalog.DetailResult:
		return r.Kind
	default:
		return ""
	}
}

// store writes the payload first and the timestamp second, so a reader that
// sees fresh metadata always finds a complete payload behind it.
func (c *Client) store(ctx context.Context, key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("%w: encode %q: %v", catalog.ErrSerialization, key, err)
	}
	if err := c.backend.Put(ctx, key, data); err != nil {
		return err
	}
	return c.meta.RecordWrite(ctx, key, c.now())
}

// Invalidate removes the payload and metadata of key.
func (c *Client) Invalidate(ctx context.Context, key string) error {
	return errors.Join(
		c.meta.Remove(ctx, key),
		c.backend.Remove(ctx, key),
	)
}

// Purge removes every cached entry.
func (c *Client) Purge(ctx context.Context) error {
	return c.backend.Clear(ctx)
}

// Entries lists cached payload keys with their write times. Keys without a
// readable timestamp are reported with a zero StoredAt.
func (c *Client) Entries(ctx context.Context) ([]catalog.CacheEntry, error) {
	l, ok := c.backend.(storage.Lister)
	if !ok {
		return nil, ErrListUnsupported
	}
	keys, err := l.Keys(ctx)
	if err != nil {
		return nil, err
	}
	entries := make([]catalog.CacheEntry, 0, len(keys)/2)
	for _, k := range keys {
		if IsMetadataKey(k) {
			continue
		}
		storedAt, _ := c.meta.StoredAt(ctx, k)
		entries = append(entries, catalog.CacheEntry{Key: k, StoredAt: storedAt})
	}
	return entries, nil
}
