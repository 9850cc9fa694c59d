package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	catalog "github.com/eugener/holocron/internal"
)

func (s *server) handleKinds(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"kinds": catalog.Kinds()})
}

func (s *server) handleList(w http.ResponseWriter, r *http.Request) {
	kind, err := catalog.ParseKind(chi.URLParam(r, "kind"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	params, err := parseListParams(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	res, err := s.deps.Catalog.List(r.Context(), kind, params)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if res == nil {
		writeError(w, r, catalog.ErrNotFound)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *server) handleGet(w http.ResponseWriter, r *http.Request) {
	kind, err := catalog.ParseKind(chi.URLParam(r, "kind"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	res, err := s.deps.Catalog.Get(r.Context(), kind, chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	if res == nil {
		writeError(w, r, catalog.ErrNotFound)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// parseListParams reads optional positive page and limit query values.
func parseListParams(r *http.Request) (catalog.ListParams, error) {
	q := r.URL.Query()
	page, err := positiveParam(q.Get("page"), "page")
	if err != nil {
		return catalog.ListParams{}, err
	}
	limit, err := positiveParam(q.Get("limit"), "limit")
	if err != nil {
		return catalog.ListParams{}, err
	}
	return catalog.ListParams{Page: page, Limit: limit}, nil
}

// positiveParam parses raw as a positive integer; empty means unspecified.
func positiveParam(raw, name string) (int, error) {
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("%w: %s must be a positive integer", catalog.ErrBadRequest, name)
	}
	return n, nil
}

// --- Error responses ---

type apiError struct {
	Error struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error"`
}

func errorResponse(msg, typ string) apiError {
	var e apiError
	e.Error.Message = msg
	e.Error.Type = typ
	return e
}

// errorStatus maps a domain error to an HTTP status and error type.
func errorStatus(err error) (int, string) {
	switch {
	case errors.Is(err, catalog.ErrUnknownKind), errors.Is(err, catalog.ErrBadRequest):
		return http.StatusBadRequest, "invalid_request_error"
	case errors.Is(err, catalog.ErrNotFound):
		return http.StatusNotFound, "not_found_error"
	case errors.Is(err, catalog.ErrCircuitOpen):
		return http.StatusServiceUnavailable, "upstream_unavailable"
	default:
		return http.StatusBadGateway, "upstream_error"
	}
}

// writeError logs upstream failures server-side and writes the mapped status.
// Client errors carry their message; upstream errors are sanitized.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, typ := errorStatus(err)
	msg := err.Error()
	if status >= http.StatusInternalServerError {
		slog.LogAttrs(r.Context(), slog.LevelWarn, "catalog request failed",
			slog.String("path", r.URL.Path),
			slog.String("error", err.Error()),
			slog.String("request_id", catalog.RequestIDFromContext(r.Context())),
		)
		msg = http.StatusText(status)
	}
	writeJSON(w, status, errorResponse(msg, typ))
}

// jsonCT is a pre-allocated header value slice. Direct map assignment
// (w.Header()["Content-Type"] = jsonCT) avoids the []string{v} alloc
// that Header.Set creates on every call.
var jsonCT = []string{"application/json"}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header()["Content-Type"] = jsonCT
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}
