// Package filesystem implements storage.Backend as one file per key under a
// cache directory, using go-billy's bound OS filesystem.
package filesystem

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/osfs"
	"github.com/go-git/go-billy/v5/util"
	"github.com/google/uuid"

	"github.com/eugener/holocron/internal/storage"
)

const (
	backendName = "filesystem"
	fileSuffix  = ".json"
	tempMarker  = ".tmp-"
)

var (
	_ storage.Backend = (*Store)(nil)
	_ storage.Lister  = (*Store)(nil)
)

// Store keeps each entry in its own file named after the escaped key.
type Store struct {
	dir string
	fs  billy.Filesystem
}

// DefaultDir returns <user cache dir>/<cacheName>.
func DefaultDir(cacheName string) (string, error) {
	base, err := os.UserCacheDir()
	if err != nil {
		return "", fmt.Errorf("filesystem: resolve user cache dir: %w", err)
	}
	return filepath.Join(base, cacheName), nil
}

// New opens a store rooted at dir, creating the directory if needed.
func New(dir string) (*Store, error) {
	if dir == "" {
		return nil, errors.New("filesystem: empty cache dir")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("filesystem: create cache dir: %w", err)
	}
	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("filesystem: stat cache dir: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("filesystem: %s is not a directory", dir)
	}
	return &Store{dir: dir, fs: osfs.New(dir, osfs.WithBoundOS())}, nil
}

// Dir returns the directory holding the cache files.
func (s *Store) Dir() string { return s.dir }

// fileName maps a key to its file. QueryEscape encodes '/', '%' and every
// other separator, so the mapping is injective and stays inside the directory.
func fileName(key string) string {
	return url.QueryEscape(key) + fileSuffix
}

func keyFromFileName(name string) (string, bool) {
	// Temp files end in a uuid, never in fileSuffix.
	if !strings.HasSuffix(name, fileSuffix) {
		return "", false
	}
	key, err := url.QueryUnescape(strings.TrimSuffix(name, fileSuffix))
	if err != nil {
		return "", false
	}
	return key, true
}

// Put writes val to a temp file and renames it over the target, so readers
// see either the old or the new payload, never a partial one.
func (s *Store) Put(_ context.Context, key string, val []byte) error {
	name := fileName(key)
	tmp := name + tempMarker + uuid.NewString()

	f, err := s.fs.OpenFile(tmp, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return storage.WriteError(backendName, "create temp", key, err)
	}
	if _, err := f.Write(val); err != nil {
		_ = f.Close()
		_ = s.fs.Remove(tmp)
		return storage.WriteError(backendName, "write", key, err)
	}
	if err := f.Close(); err != nil {
		_ = s.fs.Remove(tmp)
		return storage.WriteError(backendName, "close", key, err)
	}
	if err := s.fs.Rename(tmp, name); err != nil {
		_ = s.fs.Remove(tmp)
		return storage.WriteError(backendName, "rename", key, err)
	}
	return nil
}

// Get reads the file for key.
func (s *Store) Get(_ context.Context, key string) ([]byte, bool, error) {
	data, err := util.ReadFile(s.fs, fileName(key))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, false, nil
		}
		return nil, false, storage.ReadError(backendName, "read", key, err)
	}
	return data, true, nil
}

// Exists reports whether the file for key exists.
func (s *Store) Exists(_ context.Context, key string) (bool, error) {
	_, err := s.fs.Stat(fileName(key))
	if err == nil {
		return true, nil
	}
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	return false, storage.ReadError(backendName, "stat", key, err)
}

// Remove deletes the file for key.
func (s *Store) Remove(_ context.Context, key string) error {
	err := s.fs.Remove(fileName(key))
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return storage.WriteError(backendName, "remove", key, err)
	}
	return nil
}

// Clear removes every file in the cache directory, including stray temp
// files, and reports all failures together.
func (s *Store) Clear(_ context.Context) error {
	infos, err := s.fs.ReadDir(".")
	if err != nil {
		return storage.WriteError(backendName, "list", s.dir, err)
	}
	var errs []error
	for _, info := range infos {
		if info.IsDir() {
			continue
		}
		if err := s.fs.Remove(info.Name()); err != nil && !errors.Is(err, fs.ErrNotExist) {
			errs = append(errs, err)
		}
	}
	if len(errs) > 0 {
		return storage.WriteError(backendName, "clear", s.dir, errors.Join(errs...))
	}
	return nil
}

// Keys lists the keys of all complete entries.
func (s *Store) Keys(_ context.Context) ([]string, error) {
	infos, err := s.fs.ReadDir(".")
	if err != nil {
		return nil, storage.ReadError(backendName, "list", s.dir, err)
	}
	keys := make([]string, 0, len(infos))
	for _, info := range infos {
		if info.IsDir() {
			continue
		}
		if key, ok := keyFromFileName(info.Name()); ok {
			keys = append(keys, key)
		}
	}
	return keys, nil
}

// Close is a no-op; files are closed after every operation.
func (s *Store) Close() error { return nil }
