package sqlite

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/eugener/holocron/internal/storage"
	"github.com/eugener/holocron/internal/storage/storagetest"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	// Use a unique file-based temp DB for each test to avoid shared :memory: races
	path := t.TempDir() + "/test.db"
	s, err := New(path)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestConformance(t *testing.T) {
	t.Parallel()
	storagetest.Run(t, func(t *testing.T) storage.Backend { return newTestStore(t) })
}

func TestPersistsAcrossReopen(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "cache.db")
	ctx := context.Background()

	s, err := New(path)
	if err != nil {
		t.Fatal(err)
	}
	if err := s.Put(ctx, "people_1", []byte(`{"uid":"1"}`)); err != nil {
		t.Fatal("put:", err)
	}
	if err := s.Close(); err != nil {
		t.Fatal("close:", err)
	}

	// Reopening re-runs migrations, which must be a no-op.
	s, err = New(path)
	if err != nil {
		t.Fatal("reopen:", err)
	}
	defer s.Close()

	got, ok, err := s.Get(ctx, "people_1")
	if err != nil {
		t.Fatal("get:", err)
	}
	if !ok || string(got) != `{"uid":"1"}` {
		t.Errorf("Get = %q, %v; want payload after reopen", got, ok)
	}
}

func TestPing(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	if err := s.Ping(context.Background()); err != nil {
		t.Errorf("Ping: %v", err)
	}
}

func TestNew_FailsFast(t *testing.T) {
	t.Parallel()
	// A directory path cannot be opened as a database file.
	if _, err := New(t.TempDir()); err == nil {
		t.Error("New on a directory should fail")
	}
}

func TestMemoryStoresAreIsolated(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	open := func() *Store {
		s, err := New(":memory:")
		if err != nil {
			t.Fatalf("New: %v", err)
		}
		t.Cleanup(func() { s.Close() })
		return s
	}
	a, b := open(), open()

	if err := a.Put(ctx, "people_1", []byte(`{}`)); err != nil {
		t.Fatal(err)
	}
	// The read pool of a sees the writer's data.
	if ok, err := a.Exists(ctx, "people_1"); err != nil || !ok {
		t.Errorf("a.Exists = %v, %v; want true", ok, err)
	}
	if ok, err := b.Exists(ctx, "people_1"); err != nil || ok {
		t.Errorf("b.Exists = %v, %v; want false", ok, err)
	}
}
