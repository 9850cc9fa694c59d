package redis

import (
	"context"
	"os"
	"slices"
	"testing"
	"time"

	"github.com/eugener/holocron/internal/storage"
	"github.com/eugener/holocron/internal/storage/storagetest"
)

// redisStore connects to REDIS_ADDR under a prefix unique to the test, and
// clears that prefix on cleanup.
func redisStore(t *testing.T) *Store {
	t.Helper()
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		t.Skip("REDIS_ADDR not set, skipping Redis integration test")
	}
	s, err := New(t.Context(), Options{Addr: addr, Prefix: "holocron-test:" + t.Name() + ":"})
	if err != nil {
		t.Fatalf("cannot reach Redis at %s: %v", addr, err)
	}
	t.Cleanup(func() {
		_ = s.Clear(context.Background())
		_ = s.Close()
	})
	return s
}

func TestConformance(t *testing.T) {
	storagetest.Run(t, func(t *testing.T) storage.Backend { return redisStore(t) })
}

func TestClear_KeepsOtherNamespaces(t *testing.T) {
	a := redisStore(t)
	other, err := New(t.Context(), Options{Addr: os.Getenv("REDIS_ADDR"), Prefix: "holocron-other:" + t.Name() + ":"})
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() {
		_ = other.Clear(context.Background())
		_ = other.Close()
	})

	ctx := t.Context()
	if err := a.Put(ctx, "k", []byte("a")); err != nil {
		t.Fatal(err)
	}
	if err := other.Put(ctx, "k", []byte("b")); err != nil {
		t.Fatal(err)
	}
	if err := a.Clear(ctx); err != nil {
		t.Fatal(err)
	}
	if ok, _ := other.Exists(ctx, "k"); !ok {
		t.Error("Clear removed a key from another namespace")
	}
}

func TestNew_FailsFast(t *testing.T) {
	t.Parallel()
	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()

	if _, err := New(ctx, Options{Addr: "localhost:1"}); err == nil {
		t.Error("New against an unreachable address should fail")
	}
	if _, err := New(ctx, Options{}); err == nil {
		t.Error("New with empty address should fail")
	}
}

func TestMatchPattern(t *testing.T) {
	t.Parallel()

	tests := []struct {
		prefix string
		want   string
	}{
		{prefix: "", want: "*"},
		{prefix: "holocron:", want: "holocron:*"},
		{prefix: "a*b?", want: `a\*b\?*`},
		{prefix: "[x]", want: `\[x\]*`},
		{prefix: `back\slash`, want: `back\\slash*`},
	}
	for _, tt := range tests {
		if got := matchPattern(tt.prefix); got != tt.want {
			t.Errorf("matchPattern(%q) = %q, want %q", tt.prefix, got, tt.want)
		}
	}
}

func TestStripUnique(t *testing.T) {
	t.Parallel()

	raw := []string{
		"holocron:people_1",
		"holocron:people_1_metadata",
		"holocron:people_1",
		"holocron:planets_page1_limit10",
		"holocron:people_1_metadata",
	}
	got := stripUnique(raw, "holocron:")
	want := []string{"people_1", "people_1_metadata", "planets_page1_limit10"}
	if !slices.Equal(got, want) {
		t.Errorf("stripUnique = %v, want %v", got, want)
	}
	if got := stripUnique(nil, "holocron:"); len(got) != 0 {
		t.Errorf("stripUnique(nil) = %v, want empty", got)
	}
}
