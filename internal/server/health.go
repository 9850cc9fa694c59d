package server

import (
	"context"
	"log/slog"
	"net/http"
	"time"
)

// Pre-allocated health response bodies and header value.
var (
	okBody       = []byte("ok")
	notReadyBody = []byte("not ready")
	plainCT      = []string{"text/plain"}
)

func (s *server) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	w.Header()["Content-Type"] = plainCT
	w.WriteHeader(http.StatusOK)
	w.Write(okBody)
}

// readyTimeout bounds the storage ping behind /readyz.
const readyTimeout = 2 * time.Second

// handleReadyz reports whether the cache storage is reachable. The catalog
// API is not checked: an unreachable upstream still leaves cached reads
// servable.
func (s *server) handleReadyz(w http.ResponseWriter, r *http.Request) {
	if s.deps.ReadyCheck != nil {
		ctx, cancel := context.WithTimeout(r.Context(), readyTimeout)
		defer cancel()
		if err := s.deps.ReadyCheck(ctx); err != nil {
			slog.LogAttrs(r.Context(), slog.LevelWarn, "not ready",
				slog.String("error", err.Error()),
			)
			w.Header()["Content-Type"] = plainCT
			w.WriteHeader(http.StatusServiceUnavailable)
			w.Write(notReadyBody)
			return
		}
	}
	w.Header()["Content-Type"] = plainCT
	w.WriteHeader(http.StatusOK)
	w.Write(okBody)
}
