// Package storage defines the persistence contract for cached catalog payloads.
package storage

import (
	"context"
	"fmt"

	catalog "github.com/eugener/holocron/internal"
)

// Backend persists opaque serialized payloads by key.
//
// Implementations must map keys to locations injectively, must not let a key
// escape the backend's namespace, and must make Put atomic with respect to a
// concurrent Get of the same key.
type Backend interface {
	// Put stores val under key, replacing any previous value.
	Put(ctx context.Context, key string, val []byte) error
	// Get returns the value for key. A missing key is (nil, false, nil).
	Get(ctx context.Context, key string) ([]byte, bool, error)
	// Exists reports whether key is present.
	Exists(ctx context.Context, key string) (bool, error)
	// Remove deletes key. Removing a missing key is not an error.
	Remove(ctx context.Context, key string) error
	// Clear removes every entry, continuing past individual failures.
	Clear(ctx context.Context) error
	// Close releases resources held by the backend.
	Close() error
}

// Lister is implemented by backends that can enumerate their keys.
type Lister interface {
	Keys(ctx context.Context) ([]string, error)
}

// Pinger is implemented by backends with a remote or file-backed connection
// worth checking for readiness.
type Pinger interface {
	Ping(ctx context.Context) error
}

// ReadError wraps err as a catalog.ErrStorageRead for the given operation.
func ReadError(backend, op, key string, err error) error {
	return fmt.Errorf("%s: %s %q: %w: %w", backend, op, key, catalog.ErrStorageRead, err)
}

// WriteError wraps err as a catalog.ErrStorageWrite for the given operation.
func WriteError(backend, op, key string, err error) error {
	return fmt.Errorf("%s: %s %q: %w: %w", backend, op, key, catalog.ErrStorageWrite, err)
}
