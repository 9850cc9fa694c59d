// Package redis implements storage.Backend on a Redis key-value store.
// Every key is namespaced under a configurable prefix.
package redis

import (
	"context"
	"errors"
	"fmt"
	"strings"

	goredis "github.com/redis/go-redis/v9"

	"github.com/eugener/holocron/internal/storage"
)

const (
	backendName = "redis"
	scanCount   = 256
)

var (
	_ storage.Backend = (*Store)(nil)
	_ storage.Lister  = (*Store)(nil)
)

// Options configures the Redis connection.
type Options struct {
	Addr     string
	Password string
	DB       int
	Prefix   string // namespace for every key, e.g. "holocron:"
}

// Store keeps each entry as a single Redis string value.
type Store struct {
	rdb    *goredis.Client
	prefix string
}

// New connects to Redis and verifies the connection with PING.
func New(ctx context.Context, opts Options) (*Store, error) {
	if opts.Addr == "" {
		return nil, errors.New("redis: empty address")
	}
	rdb := goredis.NewClient(&goredis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis: ping %s: %w", opts.Addr, err)
	}
	return NewWithClient(rdb, opts.Prefix), nil
}

// NewWithClient wraps an existing client. The store takes ownership of rdb.
func NewWithClient(rdb *goredis.Client, prefix string) *Store {
	return &Store{rdb: rdb, prefix: prefix}
}

func (s *Store) key(k string) string { return s.prefix + k }

// Put sets the value with SET, which replaces it atomically.
func (s *Store) Put(ctx context.Context, key string, val []byte) error {
	if err := s.rdb.Set(ctx, s.key(key), val, 0).Err(); err != nil {
		return storage.WriteError(backendName, "set", key, err)
	}
	return nil
}

// Get returns the value for key.
func (s *Store) Get(ctx context.Context, key string) ([]byte, bool, error) {
	val, err := s.rdb.Get(ctx, s.key(key)).Bytes()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return nil, false, nil
		}
		return nil, false, storage.ReadError(backendName, "get", key, err)
	}
	return val, true, nil
}

// Exists reports whether key is present.
func (s *Store) Exists(ctx context.Context, key string) (bool, error) {
	n, err := s.rdb.Exists(ctx, s.key(key)).Result()
	if err != nil {
		return false, storage.ReadError(backendName, "exists", key, err)
	}
	return n > 0, nil
}

// Remove deletes key.
func (s *Store) Remove(ctx context.Context, key string) error {
	if err := s.rdb.Del(ctx, s.key(key)).Err(); err != nil {
		return storage.WriteError(backendName, "del", key, err)
	}
	return nil
}

// Clear deletes every key under the prefix, one SCAN batch at a time. A
// failed batch does not stop the remaining ones.
func (s *Store) Clear(ctx context.Context) error {
	var errs []error
	iter := s.rdb.Scan(ctx, 0, matchPattern(s.prefix), scanCount).Iterator()
	batch := make([]string, 0, scanCount)
	flush := func() {
		if len(batch) == 0 {
			return
		}
		if err := s.rdb.Del(ctx, batch...).Err(); err != nil {
			errs = append(errs, err)
		}
		batch = batch[:0]
	}
	for iter.Next(ctx) {
		batch = append(batch, iter.Val())
		if len(batch) == scanCount {
			flush()
		}
	}
	flush()
	if err := iter.Err(); err != nil {
		errs = append(errs, err)
	}
	if len(errs) > 0 {
		return storage.WriteError(backendName, "clear", s.prefix, errors.Join(errs...))
	}
	return nil
}

// Keys returns all keys under the prefix with the prefix stripped.
func (s *Store) Keys(ctx context.Context) ([]string, error) {
	var raw []string
	iter := s.rdb.Scan(ctx, 0, matchPattern(s.prefix), scanCount).Iterator()
	for iter.Next(ctx) {
		raw = append(raw, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return nil, storage.ReadError(backendName, "scan", s.prefix, err)
	}
	return stripUnique(raw, s.prefix), nil
}

// stripUnique removes prefix from each key and drops repeats, which SCAN may
// return when the keyspace is rehashed mid-iteration.
func stripUnique(raw []string, prefix string) []string {
	seen := make(map[string]struct{}, len(raw))
	keys := make([]string, 0, len(raw))
	for _, k := range raw {
		k = strings.TrimPrefix(k, prefix)
		if _, dup := seen[k]; dup {
			continue
		}
		seen[k] = struct{}{}
		keys = append(keys, k)
	}
	return keys
}

// Ping checks the Redis connection.
func (s *Store) Ping(ctx context.Context) error {
	return s.rdb.Ping(ctx).Err()
}

// Close closes the underlying Redis client.
func (s *Store) Close() error {
	return s.rdb.Close()
}

// matchPattern builds a SCAN MATCH pattern selecting every key that starts
// with prefix. Glob metacharacters in the prefix are escaped so the pattern
// cannot match keys outside the namespace.
func matchPattern(prefix string) string {
	var b strings.Builder
	for _, r := range prefix {
		switch r {
		case '*', '?', '[', ']', '\\', '^', '-':
			b.WriteByte('\\')
		}
		b.WriteRune(r)
	}
	b.WriteByte('*')
	return b.String()
}
