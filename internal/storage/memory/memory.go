// Package memory implements storage.Backend in process memory, backed by otter.
// Entries live for the lifetime of the process.
package memory

import (
	"bytes"
	"context"
	"fmt"

	"github.com/maypok86/otter/v2"

	"github.com/eugener/holocron/internal/storage"
)

var (
	_ storage.Backend = (*Store)(nil)
	_ storage.Lister  = (*Store)(nil)
)

// Store is an in-memory backend. It applies no size bound and no expiry of
// its own; staleness is decided by the cache metadata.
type Store struct {
	cache *otter.Cache[string, []byte]
}

// New creates an empty in-memory store.
func New() (*Store, error) {
	c, err := otter.New[string, []byte](&otter.Options[string, []byte]{})
	if err != nil {
		return nil, fmt.Errorf("memory: create cache: %w", err)
	}
	return &Store{cache: c}, nil
}

// Put stores a private copy of val. Values are replaced whole, so a
// concurrent Get sees either the old or the new slice.
func (s *Store) Put(_ context.Context, key string, val []byte) error {
	s.cache.Set(key, bytes.Clone(val))
	return nil
}

// Get returns a copy of the stored value.
func (s *Store) Get(_ context.Context, key string) ([]byte, bool, error) {
	v, ok := s.cache.GetIfPresent(key)
	if !ok {
		return nil, false, nil
	}
	return bytes.Clone(v), true, nil
}

// Exists reports whether key is present.
func (s *Store) Exists(_ context.Context, key string) (bool, error) {
	_, ok := s.cache.GetIfPresent(key)
	return ok, nil
}

// Remove deletes key.
func (s *Store) Remove(_ context.Context, key string) error {
	s.cache.Invalidate(key)
	return nil
}

// Clear removes all values.
func (s *Store) Clear(_ context.Context) error {
	s.cache.InvalidateAll()
	return nil
}

// Keys returns a snapshot of the stored keys.
func (s *Store) Keys(_ context.Context) ([]string, error) {
	var keys []string
	for k := range s.cache.All() {
		keys = append(keys, k)
	}
	return keys, nil
}

// Close drops all values.
func (s *Store) Close() error {
	s.cache.InvalidateAll()
	return nil
}
