package server

import (
	"crypto/subtle"
	"errors"
	"log/slog"
	"net/http"
	"sort"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/eugener/holocron/internal/cache"
)

// adminAuth requires "Authorization: Bearer <AdminToken>" when a token is set.
func (s *server) adminAuth(next http.Handler) http.Handler {
	if s.deps.AdminToken == "" {
		return next
	}
	want := []byte(s.deps.AdminToken)
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
		if !ok || subtle.ConstantTimeCompare([]byte(got), want) != 1 {
			writeJSON(w, http.StatusUnauthorized, errorResponse("unauthorized", "authentication_error"))
			return
		}
		next.ServeHTTP(w, r)
	})
}

type entriesResponse struct {
	Data  any `json:"data"`
	Total int `json:"total"`
}

func (s *server) handleCacheEntries(w http.ResponseWriter, r *http.Request) {
	entries, err := s.deps.Cache.Entries(r.Context())
	if err != nil {
		writeAdminError(w, r, err)
		return
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Key < entries[j].Key })
	writeJSON(w, http.StatusOK, entriesResponse{Data: entries, Total: len(entries)})
}

func (s *server) handleCachePurge(w http.ResponseWriter, r *http.Request) {
	if err := s.deps.Cache.Purge(r.Context()); err != nil {
		writeAdminError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *server) handleCacheInvalidate(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "key")
	if err := s.deps.Cache.Invalidate(r.Context(), key); err != nil {
		writeAdminError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *server) handleBreakers(w http.ResponseWriter, _ *http.Request) {
	out := map[string]string{}
	if s.deps.Breakers != nil {
		for name, st := range s.deps.Breakers.States() {
			out[name] = st.String()
		}
	}
	writeJSON(w, http.StatusOK, out)
}

// writeAdminError logs the full error server-side and returns a sanitized
// message to the client to avoid leaking storage paths or addresses.
func writeAdminError(w http.ResponseWriter, r *http.Request, err error) {
	if errors.Is(err, cache.ErrListUnsupported) {
		writeJSON(w, http.StatusNotImplemented, errorResponse("cache backend cannot list keys", "unsupported"))
		return
	}
	slog.LogAttrs(r.Context(), slog.LevelError, "admin error",
		slog.String("error", err.Error()),
	)
	writeJSON(w, http.StatusInternalServerError, errorResponse("internal error", "storage_error"))
}
