package swapi

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	catalog "github.com/eugener/holocron/internal"
	"github.com/eugener/holocron/internal/remote"
)

const peoplePage = `{
  "message": "ok",
  "total_records": 82,
  "total_pages": 9,
  "previous": null,
  "next": "https://www.swapi.tech/api/people?page=2&limit=10",
  "results": [
    {"uid": "1", "name": "Luke Skywalker", "url": "https://www.swapi.tech/api/people/1"},
    {"uid": "2", "name": "C-3PO", "url": "https://www.swapi.tech/api/people/2"}
  ]
}`

const lukeDetail = `{
  "message": "ok",
  "result": {
    "properties": {
      "name": "Luke Skywalker",
      "height": "172",
      "mass": "77",
      "homeworld": "https://www.swapi.tech/api/planets/1",
      "url": "https://www.swapi.tech/api/people/1"
    },
    "description": "A person within the Star Wars universe",
    "_id": "5f63a36eee9fd7000499be42",
    "uid": "1"
  }
}`

func newTestServer(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return New(srv.URL+"/api/", srv.Client())
}

func TestList(t *testing.T) {
	t.Parallel()

	c := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/people" {
			t.Errorf("path = %s, want /api/people", r.URL.Path)
		}
		if got := r.URL.RawQuery; got != "limit=10&page=1" {
			t.Errorf("query = %q", got)
		}
		fmt.Fprint(w, peoplePage)
	})

	got, err := c.List(context.Background(), catalog.KindPeople, catalog.ListParams{Page: 1, Limit: 10})
	if err != nil {
		t.Fatal(err)
	}
	if got.Kind != catalog.KindPeople || got.TotalRecords != 82 || got.TotalPages != 9 {
		t.Errorf("header = %+v", got)
	}
	if got.Previous != "" {
		t.Errorf("Previous = %q, want empty for null", got.Previous)
	}
	if got.Next == "" {
		t.Error("Next is empty")
	}
	if len(got.Results) != 2 || got.Results[1].Name != "C-3PO" || got.Results[0].UID != "1" {
		t.Errorf("Results = %+v", got.Results)
	}
}

func TestList_UnspecifiedParamsNotSent(t *testing.T) {
	t.Parallel()

	c := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.RawQuery != "" {
			t.Errorf("query = %q, want none", r.URL.RawQuery)
		}
		fmt.Fprint(w, `{"message":"ok","total_records":0,"total_pages":0,"results":[]}`)
	})
	got, err := c.List(context.Background(), catalog.KindPlanets, catalog.ListParams{})
	if err != nil {
		t.Fatal(err)
	}
	if got.Results == nil {
		t.Error("Results should be empty, not nil")
	}
}

func TestGet(t *testing.T) {
	t.Parallel()

	c := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/people/1" {
			t.Errorf("path = %s", r.URL.Path)
		}
		fmt.Fprint(w, lukeDetail)
	})

	got, err := c.Get(context.Background(), catalog.KindPeople, "1")
	if err != nil {
		t.Fatal(err)
	}
	if got.UID != "1" || got.Kind != catalog.KindPeople {
		t.Errorf("got %+v", got)
	}
	if got.Description != "A person within the Star Wars universe" {
		t.Errorf("Description = %q", got.Description)
	}
	// Properties are compacted.
	want := `{"name":"Luke Skywalker","height":"172","mass":"77","homeworld":"https://www.swapi.tech/api/planets/1","url":"https://www.swapi.tech/api/people/1"}`
	if string(got.Properties) != want {
		t.Errorf("Properties = %s", got.Properties)
	}
	p, err := catalog.DecodeProperties[catalog.Person](got)
	if err != nil {
		t.Fatal(err)
	}
	if p.Name != "Luke Skywalker" || p.Height != "172" {
		t.Errorf("Person = %+v", p)
	}
}

func TestGet_RequestID(t *testing.T) {
	t.Parallel()

	c := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("X-Request-ID"); got != "req-42" {
			t.Errorf("X-Request-ID = %q", got)
		}
		fmt.Fprint(w, lukeDetail)
	})
	ctx := catalog.ContextWithRequestID(context.Background(), "req-42")
	if _, err := c.Get(ctx, catalog.KindPeople, "1"); err != nil {
		t.Fatal(err)
	}
}

func TestErrors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		status int
		body   string
		want   error
	}{
		{"server error", http.StatusInternalServerError, `{"message":"boom"}`, catalog.ErrServer},
		{"not found", http.StatusNotFound, `{"message":"not found"}`, catalog.ErrNotFound},
		{"bad gateway", http.StatusBadGateway, `upstream down`, catalog.ErrServer},
		{"message not ok", http.StatusOK, `{"message":"error"}`, catalog.ErrServer},
		{"invalid json", http.StatusOK, `{"message":`, catalog.ErrServer},
		{"missing properties", http.StatusOK, `{"message":"ok","result":{}}`, catalog.ErrServer},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			c := newTestServer(t, func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tt.status)
				fmt.Fprint(w, tt.body)
			})
			_, err := c.Get(context.Background(), catalog.KindStarships, "999")
			if !errors.Is(err, tt.want) {
				t.Fatalf("err = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestGet_APIErrorStatus(t *testing.T) {
	t.Parallel()

	c := newTestServer(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	})
	_, err := c.Get(context.Background(), catalog.KindStarships, "9")
	var apiErr *remote.APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("err = %v, want *remote.APIError", err)
	}
	if apiErr.HTTPStatus() != http.StatusServiceUnavailable {
		t.Errorf("status = %d", apiErr.HTTPStatus())
	}
}

func TestGet_EmptyID(t *testing.T) {
	t.Parallel()

	c := New("http://127.0.0.1:1", nil)
	if _, err := c.Get(context.Background(), catalog.KindPeople, ""); !errors.Is(err, catalog.ErrBadRequest) {
		t.Errorf("err = %v, want ErrBadRequest", err)
	}
}

func TestTransportError(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	srv.Close()

	c := New(srv.URL, &http.Client{Timeout: time.Second})
	_, err := c.List(context.Background(), catalog.KindPeople, catalog.ListParams{})
	if !errors.Is(err, catalog.ErrTransport) {
		t.Errorf("err = %v, want ErrTransport", err)
	}
}

func TestContextDeadline(t *testing.T) {
	t.Parallel()

	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	t.Cleanup(func() {
		close(release)
		srv.Close()
	})

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := New(srv.URL, srv.Client()).Get(ctx, catalog.KindPeople, "1")
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("err = %v, want DeadlineExceeded", err)
	}
}
