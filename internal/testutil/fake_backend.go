package testutil

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"

	"github.com/eugener/holocron/internal/storage"
	"github.com/eugener/holocron/internal/storage/memory"
)

// ErrInjected is returned by FlakyBackend for failing operations.
var ErrInjected = errors.New("testutil: injected failure")

// CountingBackend wraps a storage.Backend and counts every call.
type CountingBackend struct {
	storage.Backend
	calls atomic.Int64
}

// NewCountingBackend wraps an in-memory backend.
func NewCountingBackend() *CountingBackend {
	return &CountingBackend{Backend: newMemory()}
}

// Calls returns the total number of backend calls.
func (b *CountingBackend) Calls() int { return int(b.calls.Load()) }

func (b *CountingBackend) Put(ctx context.Context, key string, val []byte) error {
	b.calls.Add(1)
	return b.Backend.Put(ctx, key, val)
}

func (b *CountingBackend) Get(ctx context.Context, key string) ([]byte, bool, error) {
	b.calls.Add(1)
	return b.Backend.Get(ctx, key)
}

func (b *CountingBackend) Exists(ctx context.Context, key string) (bool, error) {
	b.calls.Add(1)
	return b.Backend.Exists(ctx, key)
}

func (b *CountingBackend) Remove(ctx context.Context, key string) error {
	b.calls.Add(1)
	return b.Backend.Remove(ctx, key)
}

func (b *CountingBackend) Clear(ctx context.Context) error {
	b.calls.Add(1)
	return b.Backend.Clear(ctx)
}

func (b *CountingBackend) Keys(ctx context.Context) ([]string, error) {
	b.calls.Add(1)
	return b.Backend.(storage.Lister).Keys(ctx)
}

func newMemory() *memory.Store {
	s, err := memory.New()
	if err != nil {
		panic(err)
	}
	return s
}

// FlakyBackend is an in-memory backend whose reads and writes can be made
// to fail at runtime.
type FlakyBackend struct {
	*memory.Store

	mu        sync.RWMutex
	failGet   bool
	failPut   bool
	failPutOn func(key string) bool
}

// NewFlakyBackend returns a FlakyBackend that does not fail yet.
func NewFlakyBackend() *FlakyBackend {
	return &FlakyBackend{Store: newMemory()}
}

// FailGets toggles failure of Get.
func (b *FlakyBackend) FailGets(fail bool) {
	b.mu.Lock()
	b.failGet = fail
	b.mu.Unlock()
}

// FailPuts toggles failure of every Put.
func (b *FlakyBackend) FailPuts(fail bool) {
	b.mu.Lock()
	b.failPut = fail
	b.mu.Unlock()
}

// FailPutsWhere fails Put for keys matching fn. A nil fn disables it.
func (b *FlakyBackend) FailPutsWhere(fn func(key string) bool) {
	b.mu.Lock()
	b.failPutOn = fn
	b.mu.Unlock()
}

func (b *FlakyBackend) Get(ctx context.Context, key string) ([]byte, bool, error) {
	b.mu.RLock()
	fail := b.failGet
	b.mu.RUnlock()
	if fail {
		return nil, false, storage.ReadError("flaky", "get", key, ErrInjected)
	}
	return b.Store.Get(ctx, key)
}

func (b *FlakyBackend) Put(ctx context.Context, key string, val []byte) error {
	b.mu.RLock()
	fail := b.failPut || (b.failPutOn != nil && b.failPutOn(key))
	b.mu.RUnlock()
	if fail {
		return storage.WriteError("flaky", "put", key, ErrInjected)
	}
	return b.Store.Put(ctx, key, val)
}
