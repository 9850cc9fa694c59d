// Package testutil provides configurable test fakes for catalog interfaces.
package testutil

import (
	"context"
	"encoding/json"
	"strconv"
	"sync/atomic"

	catalog "github.com/eugener/holocron/internal"
)

// FakeRemote is a configurable catalog.RemoteService for testing. Calls are
// counted so tests can assert whether the remote was consulted.
type FakeRemote struct {
	ListFn func(ctx context.Context, kind catalog.ResourceKind, params catalog.ListParams) (*catalog.ListResult, error)
	GetFn  func(ctx context.Context, kind catalog.ResourceKind, id string) (*catalog.DetailResult, error)

	listCalls atomic.Int64
	getCalls  atomic.Int64
}

// List delegates to ListFn or returns FakeList.
func (f *FakeRemote) List(ctx context.Context, kind catalog.ResourceKind, params catalog.ListParams) (*catalog.ListResult, error) {
	f.listCalls.Add(1)
	if f.ListFn != nil {
		return f.ListFn(ctx, kind, params)
	}
	return FakeList(kind, params), nil
}

// Get delegates to GetFn or returns a detail with a name property.
func (f *FakeRemote) Get(ctx context.Context, kind catalog.ResourceKind, id string) (*catalog.DetailResult, error) {
	f.getCalls.Add(1)
	if f.GetFn != nil {
		return f.GetFn(ctx, kind, id)
	}
	return FakeDetail(kind, id, "fake-"+id), nil
}

// ListCalls returns how many times List was called.
func (f *FakeRemote) ListCalls() int { return int(f.listCalls.Load()) }

// GetCalls returns how many times Get was called.
func (f *FakeRemote) GetCalls() int { return int(f.getCalls.Load()) }

// Calls returns the total number of remote calls.
func (f *FakeRemote) Calls() int { return f.ListCalls() + f.GetCalls() }

// FakeList builds a one-item page of kind out of two pages.
func FakeList(kind catalog.ResourceKind, params catalog.ListParams) *catalog.ListResult {
	p := params.Normalized()
	next := ""
	if p.Page < 2 {
		next = "https://example.test/api/" + string(kind) + "?page=2&limit=" + strconv.Itoa(p.Limit)
	}
	return &catalog.ListResult{
		Kind:         kind,
		TotalRecords: 2 * p.Limit,
		TotalPages:   2,
		Next:         next,
		Results: []catalog.Summary{{
			UID:  "1",
			Name: "fake",
			URL:  "https://example.test/api/" + string(kind) + "/1",
		}},
	}
}

// FakeDetail builds a detail whose properties carry name.
func FakeDetail(kind catalog.ResourceKind, id, name string) *catalog.DetailResult {
	props, _ := json.Marshal(map[string]string{"name": name, "url": "https://example.test/api/" + string(kind) + "/" + id})
	return &catalog.DetailResult{
		Kind:        kind,
		UID:         id,
		Description: "A " + string(kind) + " record",
		Properties:  props,
	}
}
