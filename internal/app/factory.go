// Package app wires configuration into the cache, its storage backend and
// the guarded catalog API client.
package app

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/rs/dnscache"

	catalog "github.com/eugener/holocron/internal"
	"github.com/eugener/holocron/internal/cache"
	"github.com/eugener/holocron/internal/circuitbreaker"
	"github.com/eugener/holocron/internal/config"
	"github.com/eugener/holocron/internal/remote"
	"github.com/eugener/holocron/internal/remote/swapi"
	"github.com/eugener/holocron/internal/storage"
	"github.com/eugener/holocron/internal/storage/filesystem"
	"github.com/eugener/holocron/internal/storage/memory"
	"github.com/eugener/holocron/internal/storage/redis"
	"github.com/eugener/holocron/internal/storage/sqlite"
)

// OpenBackend constructs the storage backend named by cfg.Type. Backends
// that need a directory, file or server fail here rather than on first use.
func OpenBackend(ctx context.Context, cfg config.StorageConfig) (storage.Backend, error) {
	var (
		b   storage.Backend
		err error
	)
	switch cfg.Type {
	case config.StorageFilesystem:
		var dir string
		if dir, err = filesystemDir(cfg); err == nil {
			b, err = asBackend(filesystem.New(dir))
		}
	case config.StorageMemory:
		b, err = asBackend(memory.New())
	case config.StorageRedis:
		b, err = asBackend(redis.New(ctx, redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
			Prefix:   cfg.RedisPrefix(),
		}))
	case config.StorageSQLite:
		b, err = asBackend(sqlite.New(cfg.SQLite.DSN))
	default:
		err = fmt.Errorf("app: unknown storage type %q", cfg.Type)
	}
	if err != nil {
		return nil, err
	}
	return b, nil
}

// asBackend keeps a failed constructor's typed nil out of the interface.
func asBackend[B storage.Backend](b B, err error) (storage.Backend, error) {
	if err != nil {
		return nil, err
	}
	return b, nil
}

func filesystemDir(cfg config.StorageConfig) (string, error) {
	if cfg.Dir == "" {
		return filesystem.DefaultDir(cfg.CacheName)
	}
	return filepath.Join(cfg.Dir, cfg.CacheName), nil
}

// NewCachedClient decorates remote with a read-through cache over backend.
func NewCachedClient(remote catalog.RemoteService, backend storage.Backend, policy cache.Policy, opts ...cache.Option) (*cache.Client, error) {
	c, err := cache.New(remote, backend, policy, opts...)
	if err != nil {
		return nil, fmt.Errorf("app: cached client: %w", err)
	}
	return c, nil
}

// NewFromConfig opens the configured backend and builds a cached client on
// it. The caller owns the returned backend and must Close it.
func NewFromConfig(ctx context.Context, remote catalog.RemoteService, cfg *config.Config, opts ...cache.Option) (*cache.Client, storage.Backend, error) {
	policy := cache.Policy{TTL: cfg.Cache.TTL, Enabled: cfg.Cache.Enabled}
	if err := policy.Validate(); err != nil {
		return nil, nil, fmt.Errorf("app: %w", err)
	}
	backend, err := OpenBackend(ctx, cfg.Storage)
	if err != nil {
		return nil, nil, fmt.Errorf("app: open %s storage: %w", cfg.Storage.Type, err)
	}
	c, err := NewCachedClient(remote, backend, policy, opts...)
	if err != nil {
		backend.Close()
		return nil, nil, err
	}
	return c, backend, nil
}

// NewRemote builds the guarded swapi client: pooled transport with cached
// DNS, optional bearer token, and a circuit breaker per resource kind.
func NewRemote(cfg config.RemoteConfig, resolver *dnscache.Resolver, observe remote.Observer) *remote.Guarded {
	httpClient := remote.NewHTTPClient(remote.NewTransport(resolver), cfg.Token, cfg.Timeout)
	breakers := circuitbreaker.NewRegistry(circuitbreaker.Config{
		ErrorThreshold: cfg.Breaker.ErrorThreshold,
		MinSamples:     cfg.Breaker.MinSamples,
		WindowSeconds:  cfg.Breaker.WindowSeconds,
		OpenTimeout:    cfg.Breaker.OpenTimeout,
	})
	return remote.NewGuarded(swapi.New(cfg.BaseURL, httpClient), breakers, observe)
}
