// Package sqlite implements storage.Backend on SQLite via modernc.org/sqlite.
package sqlite

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"runtime"

	"github.com/google/uuid"
	"github.com/pressly/goose/v3"
	_ "modernc.org/sqlite"

	"github.com/eugener/holocron/internal/storage"
)

//go:embed migrations/*.sql
var migrations embed.FS

var (
	_ storage.Backend = (*Store)(nil)
	_ storage.Lister  = (*Store)(nil)
	_ storage.Pinger  = (*Store)(nil)
)

// Store implements storage.Backend using SQLite. Writes go through a single
// connection; reads use a pool sized to the CPU count.
type Store struct {
	write *sql.DB
	read  *sql.DB
}

const pragmas = "_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=synchronous(NORMAL)"

// dataSource builds the driver DSN. Each ":memory:" store gets its own named
// shared-cache database, so its two pools see the same data and separate
// stores never do.
func dataSource(dsn string) string {
	if dsn == ":memory:" {
		return "file:holocron-" + uuid.NewString() + "?mode=memory&cache=shared&" + pragmas
	}
	return "file:" + dsn + "?" + pragmas
}

// New opens the database at dsn, applies migrations, and returns a Store.
func New(dsn string) (*Store, error) {
	source := dataSource(dsn)

	write, err := sql.Open("sqlite", source)
	if err != nil {
		return nil, fmt.Errorf("sqlite: open write db: %w", err)
	}
	write.SetMaxOpenConns(1)

	if err := migrate(write); err != nil {
		write.Close()
		return nil, fmt.Errorf("sqlite: migrate %s: %w", dsn, err)
	}

	read, err := sql.Open("sqlite", source)
	if err != nil {
		write.Close()
		return nil, fmt.Errorf("sqlite: open read db: %w", err)
	}
	read.SetMaxOpenConns(max(4, runtime.NumCPU()))

	return &Store{write: write, read: read}, nil
}

// migrate brings the schema up to date from the embedded goose migrations.
func migrate(db *sql.DB) error {
	fsys, err := fs.Sub(migrations, "migrations")
	if err != nil {
		return err
	}
	p, err := goose.NewProvider(goose.DialectSQLite3, db, fsys)
	if err != nil {
		return err
	}
	results, err := p.Up(context.Background())
	for _, r := range results {
		slog.LogAttrs(context.Background(), slog.LevelDebug, "sqlite migration applied",
			slog.String("source", r.Source.Path),
			slog.Duration("duration", r.Duration),
		)
	}
	return err
}

// Ping checks the read pool, which is what Get and Keys depend on.
func (s *Store) Ping(ctx context.Context) error {
	if err := s.read.PingContext(ctx); err != nil {
		return fmt.Errorf("sqlite: ping: %w", err)
	}
	return nil
}

// Close closes both pools.
func (s *Store) Close() error {
	return errors.Join(s.write.Close(), s.read.Close())
}
