// Package storagetest provides a conformance suite for storage.Backend
// implementations. Each backend package runs it against a fresh instance:
//
//	func TestConformance(t *testing.T) {
//	    storagetest.Run(t, func(t *testing.T) storage.Backend {
//	        return newTestBackend(t)
//	    })
//	}
package storagetest

import (
	"bytes"
	"context"
	"slices"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/eugener/holocron/internal/storage"
)

// Run executes every conformance test. newBackend must return an empty
// backend; the suite never closes it.
func Run(t *testing.T, newBackend func(t *testing.T) storage.Backend) {
	t.Helper()

	t.Run("GetMissing", func(t *testing.T) { testGetMissing(t, newBackend(t)) })
	t.Run("PutGet", func(t *testing.T) { testPutGet(t, newBackend(t)) })
	t.Run("Overwrite", func(t *testing.T) { testOverwrite(t, newBackend(t)) })
	t.Run("Exists", func(t *testing.T) { testExists(t, newBackend(t)) })
	t.Run("Remove", func(t *testing.T) { testRemove(t, newBackend(t)) })
	t.Run("Clear", func(t *testing.T) { testClear(t, newBackend(t)) })
	t.Run("HostileKeys", func(t *testing.T) { testHostileKeys(t, newBackend(t)) })
	t.Run("ConcurrentReadWrite", func(t *testing.T) { testConcurrent(t, newBackend(t)) })
	t.Run("Keys", func(t *testing.T) { testKeys(t, newBackend(t)) })
}

func mustPut(t *testing.T, b storage.Backend, key string, val []byte) {
	t.Helper()
	if err := b.Put(context.Background(), key, val); err != nil {
		t.Fatalf("Put(%q): %v", key, err)
	}
}

func mustGet(t *testing.T, b storage.Backend, key string) ([]byte, bool) {
	t.Helper()
	v, ok, err := b.Get(context.Background(), key)
	if err != nil {
		t.Fatalf("Get(%q): %v", key, err)
	}
	return v, ok
}

func testGetMissing(t *testing.T, b storage.Backend) {
	if v, ok := mustGet(t, b, "missing"); ok || v != nil {
		t.Errorf("Get(missing) = %q, %v; want nil, false", v, ok)
	}
}

func testPutGet(t *testing.T, b storage.Backend) {
	payload := []byte(`{"kind":"people","uid":"1"}`)
	mustPut(t, b, "people_1", payload)

	got, ok := mustGet(t, b, "people_1")
	if !ok {
		t.Fatal("expected hit after Put")
	}
	if !bytes.Equal(got, payload) {
		t.Errorf("Get = %q, want %q", got, payload)
	}
}

func testOverwrite(t *testing.T, b storage.Backend) {
	mustPut(t, b, "k", []byte("v1"))
	mustPut(t, b, "k", []byte("v2"))
	got, ok := mustGet(t, b, "k")
	if !ok || string(got) != "v2" {
		t.Errorf("Get = %q, %v; want v2, true", got, ok)
	}
}

func testExists(t *testing.T, b storage.Backend) {
	ctx := context.Background()
	ok, err := b.Exists(ctx, "k")
	if err != nil {
		t.Fatal(err)
	}
	if ok {
		t.Error("Exists before Put = true")
	}
	mustPut(t, b, "k", []byte("v"))
	ok, err = b.Exists(ctx, "k")
	if err != nil {
		t.Fatal(err)
	}
	if !ok {
		t.Error("Exists after Put = false")
	}
}

func testRemove(t *testing.T, b storage.Backend) {
	ctx := context.Background()
	if err := b.Remove(ctx, "never-written"); err != nil {
		t.Errorf("Remove(missing) = %v, want nil", err)
	}
	mustPut(t, b, "k", []byte("v"))
	if err := b.Remove(ctx, "k"); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	if _, ok := mustGet(t, b, "k"); ok {
		t.Error("key still present after Remove")
	}
}

func testClear(t *testing.T, b storage.Backend) {
	keys := []string{"people_1", "people_1_metadata", "planets_page1_limit10", "a/b"}
	for _, k := range keys {
		mustPut(t, b, k, []byte(k))
	}
	if err := b.Clear(context.Background()); err != nil {
		t.Fatalf("Clear: %v", err)
	}
	for _, k := range keys {
		if _, ok := mustGet(t, b, k); ok {
			t.Errorf("%q still present after Clear", k)
		}
	}
}

func testHostileKeys(t *testing.T, b storage.Backend) {
	keys := []string{"../escape", "../../etc/passwd", "a/b/c", "..", ".", "with space", "a+b", "a%2Bb", "*", "日本"}
	for _, k := range keys {
		mustPut(t, b, k, []byte("v:"+k))
	}
	for _, k := range keys {
		got, ok := mustGet(t, b, k)
		if !ok {
			t.Errorf("Get(%q) missed", k)
			continue
		}
		if string(got) != "v:"+k {
			t.Errorf("Get(%q) = %q, want %q", k, got, "v:"+k)
		}
	}
}

func testConcurrent(t *testing.T, b storage.Backend) {
	a := bytes.Repeat([]byte("a"), 64<<10)
	z := bytes.Repeat([]byte("z"), 64<<10)
	mustPut(t, b, "hot", a)

	var wg sync.WaitGroup
	for i := range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			val := a
			if i%2 == 1 {
				val = z
			}
			for range 20 {
				_ = b.Put(context.Background(), "hot", val)
			}
		}()
	}
	var readErrs, misses atomic.Int32
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range 20 {
				got, ok, err := b.Get(context.Background(), "hot")
				if err != nil {
					readErrs.Add(1)
					continue
				}
				if !ok {
					misses.Add(1)
					continue
				}
				if !bytes.Equal(got, a) && !bytes.Equal(got, z) {
					t.Errorf("observed partial write (len %d)", len(got))
					return
				}
			}
		}()
	}
	wg.Wait()

	if n := readErrs.Load(); n > 0 {
		t.Errorf("%d reads failed under concurrent writes", n)
	}
	// The key was written before the race started and is only ever replaced.
	if n := misses.Load(); n > 0 {
		t.Errorf("%d reads missed a key that is always present", n)
	}
}

func testKeys(t *testing.T, b storage.Backend) {
	l, ok := b.(storage.Lister)
	if !ok {
		t.Skip("backend does not implement storage.Lister")
	}
	want := []string{"../x", "people_1", "people_1_metadata"}
	for _, k := range want {
		mustPut(t, b, k, []byte("v"))
	}
	got, err := l.Keys(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	slices.Sort(got)
	if !slices.Equal(got, want) {
		t.Errorf("Keys = %q, want %q", got, want)
	}
}
