package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	catalog "github.com/eugener/holocron/internal"
	"github.com/eugener/holocron/internal/cache"
	"github.com/eugener/holocron/internal/config"
	"github.com/eugener/holocron/internal/storage/filesystem"
	"github.com/eugener/holocron/internal/storage/memory"
	"github.com/eugener/holocron/internal/storage/sqlite"
	"github.com/eugener/holocron/internal/testutil"
)

func TestOpenBackend(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	tests := []struct {
		name  string
		cfg   config.StorageConfig
		check func(t *testing.T, b any)
	}{
		{
			name: "filesystem",
			cfg:  config.StorageConfig{Type: config.StorageFilesystem, CacheName: "sw", Dir: dir},
			check: func(t *testing.T, b any) {
				fs, ok := b.(*filesystem.Store)
				if !ok {
					t.Fatalf("backend = %T", b)
				}
				if want := filepath.Join(dir, "sw"); fs.Dir() != want {
					t.Errorf("Dir = %q, want %q", fs.Dir(), want)
				}
			},
		},
		{
			name: "memory",
			cfg:  config.StorageConfig{Type: config.StorageMemory},
			check: func(t *testing.T, b any) {
				if _, ok := b.(*memory.Store); !ok {
					t.Fatalf("backend = %T", b)
				}
			},
		},
		{
			name: "sqlite",
			cfg:  config.StorageConfig{Type: config.StorageSQLite, SQLite: config.SQLiteConfig{DSN: filepath.Join(dir, "c.db")}},
			check: func(t *testing.T, b any) {
				if _, ok := b.(*sqlite.Store); !ok {
					t.Fatalf("backend = %T", b)
				}
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			b, err := OpenBackend(context.Background(), tt.cfg)
			if err != nil {
				t.Fatal(err)
			}
			defer b.Close()
			tt.check(t, b)
		})
	}
}

func TestOpenBackend_Errors(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	tests := []config.StorageConfig{
		{Type: "tape"},
		{Type: config.StorageRedis, Redis: config.RedisConfig{Addr: "127.0.0.1:1"}},
		{Type: config.StorageSQLite, SQLite: config.SQLiteConfig{DSN: t.TempDir()}},
	}
	for _, cfg := range tests {
		b, err := OpenBackend(ctx, cfg)
		if err == nil {
			b.Close()
			t.Errorf("OpenBackend(%s) succeeded, want error", cfg.Type)
			continue
		}
		if b != nil {
			t.Errorf("OpenBackend(%s) returned a non-nil backend with an error", cfg.Type)
		}
	}
}

func TestNewCachedClient_Validation(t *testing.T) {
	t.Parallel()

	b := testutil.NewCountingBackend()
	if _, err := NewCachedClient(nil, b, cache.DefaultPolicy()); err == nil {
		t.Error("nil remote: want error")
	}
	if _, err := NewCachedClient(&testutil.FakeRemote{}, b, cache.Policy{TTL: -1}); err == nil {
		t.Error("negative ttl: want error")
	}
}

// swapiServer serves people/1 and a 500 for anything under starships.
func swapiServer(t *testing.T, hits *atomic.Int32) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/people/{id}", func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		fmt.Fprintf(w, `{"message":"ok","result":{"uid":%q,"description":"A person","properties":{"name":"Luke Skywalker"}}}`, r.PathValue("id"))
	})
	mux.HandleFunc("GET /api/starships/{id}", func(w http.ResponseWriter, _ *http.Request) {
		hits.Add(1)
		http.Error(w, `{"message":"boom"}`, http.StatusInternalServerError)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestNewFromConfig_EndToEnd(t *testing.T) {
	t.Parallel()

	var hits atomic.Int32
	srv := swapiServer(t, &hits)

	cfg := config.Default()
	cfg.Remote.BaseURL = srv.URL + "/api"
	cfg.Storage.Dir = t.TempDir()
	cfg.Cache.TTL = time.Hour

	now := time.Date(2024, 5, 4, 12, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }

	ctx := context.Background()
	client, backend, err := NewFromConfig(ctx, NewRemote(cfg.Remote, nil, nil), cfg, cache.WithClock(clock))
	if err != nil {
		t.Fatal(err)
	}
	defer backend.Close()

	got, err := client.Get(ctx, catalog.KindPeople, "1")
	if err != nil {
		t.Fatal(err)
	}
	p, err := catalog.DecodeProperties[catalog.Person](got)
	if err != nil || p.Name != "Luke Skywalker" {
		t.Fatalf("person = %+v, %v", p, err)
	}
	if _, err := client.Get(ctx, catalog.KindPeople, "1"); err != nil {
		t.Fatal(err)
	}
	if hits.Load() != 1 {
		t.Errorf("upstream hits = %d, want 1", hits.Load())
	}

	now = now.Add(time.Hour + time.Second)
	if _, err := client.Get(ctx, catalog.KindPeople, "1"); err != nil {
		t.Fatal(err)
	}
	if hits.Load() != 2 {
		t.Errorf("after ttl: upstream hits = %d, want 2", hits.Load())
	}

	_, err = client.Get(ctx, catalog.KindStarships, "999")
	if !errors.Is(err, catalog.ErrServer) {
		t.Fatalf("starships/999 err = %v, want ErrServer", err)
	}
	if ok, _ := backend.Exists(ctx, "starships_999"); ok {
		t.Error("failed fetch was cached")
	}
}

func TestNewFromConfig_BadStorage(t *testing.T) {
	t.Parallel()

	cfg := config.Default()
	cfg.Storage.Type = "tape"
	if _, _, err := NewFromConfig(context.Background(), &testutil.FakeRemote{}, cfg); err == nil {
		t.Error("want error for unknown storage type")
	}

	cfg = config.Default()
	cfg.Cache.TTL = -time.Minute
	if _, _, err := NewFromConfig(context.Background(), &testutil.FakeRemote{}, cfg); err == nil {
		t.Error("want error for negative ttl")
	}
}
