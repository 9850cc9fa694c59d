package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	catalog "github.com/eugener/holocron/internal"
	"github.com/eugener/holocron/internal/storage"
)

// metadataRecord is the stored form of a write timestamp.
type metadataRecord struct {
	Timestamp string `json:"timestamp"` // RFC 3339 with nanoseconds
}

// MetadataStore records when each cache key was last written, so staleness
// can be evaluated without reading the payload. It is a view over the same
// backend, keyed by MetadataKey.
type MetadataStore struct {
	backend storage.Backend
}

// NewMetadataStore returns a metadata view over backend.
func NewMetadataStore(backend storage.Backend) *MetadataStore {
	return &MetadataStore{backend: backend}
}

// RecordWrite stores now as the write time of key.
func (m *MetadataStore) RecordWrite(ctx context.Context, key string, now time.Time) error {
	data, err := json.Marshal(metadataRecord{Timestamp: now.UTC().Format(time.RFC3339Nano)})
	if err != nil {
		return fmt.Errorf("%w: metadata for %q: %v", catalog.ErrSerialization, key, err)
	}
	return m.backend.Put(ctx, MetadataKey(key), data)
}

// StoredAt returns the recorded write time of key. Absent, unreadable and
// malformed records all report false.
func (m *MetadataStore) StoredAt(ctx context.Context, key string) (time.Time, bool) {
	data, ok, err := m.backend.Get(ctx, MetadataKey(key))
	if err != nil || !ok {
		return time.Time{}, false
	}
	var rec metadataRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return time.Time{}, false
	}
	ts, err := time.Parse(time.RFC3339Nano, rec.Timestamp)
	if err != nil {
		return time.Time{}, false
	}
	return ts, true
}

// IsFresh reports whether key was written no more than ttl before now.
// It never fails: any problem with the record reads as stale.
func (m *MetadataStore) IsFresh(ctx context.Context, key string, now time.Time, ttl time.Duration) bool {
	storedAt, ok := m.StoredAt(ctx, key)
	if !ok {
		return false
	}
	return isFresh(storedAt, now, ttl)
}

// Remove deletes the metadata record of key.
func (m *MetadataStore) Remove(ctx context.Context, key string) error {
	return m.backend.Remove(ctx, MetadataKey(key))
}

// isFresh is the staleness rule: age <= ttl, at full clock resolution.
func isFresh(storedAt, now time.Time, ttl time.Duration) bool {
	return now.Sub(storedAt) <= ttl
}
