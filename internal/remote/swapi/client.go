// Package swapi implements catalog.RemoteService against a swapi.tech style
// API: paginated list endpoints and per-entity detail endpoints wrapped in a
// {"message": "ok", ...} envelope.
package swapi

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/tidwall/gjson"
	"github.com/tidwall/pretty"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"

	catalog "github.com/eugener/holocron/internal"
	"github.com/eugener/holocron/internal/remote"
)

const (
	// DefaultBaseURL is the public swapi.tech API root.
	DefaultBaseURL = "https://www.swapi.tech/api"
	serviceName    = "swapi"
	maxBody        = 4 << 20
)

var _ catalog.RemoteService = (*Client)(nil)

// Client is a swapi.tech API client.
type Client struct {
	baseURL string
	http    *http.Client
}

// New creates a Client. An empty baseURL uses DefaultBaseURL. Auth and
// timeouts belong to the supplied http.Client.
func New(baseURL string, client *http.Client) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if client == nil {
		client = &http.Client{}
	}
	return &Client{baseURL: strings.TrimRight(baseURL, "/"), http: client}
}

// List fetches one page of kind. Page and limit are only sent when set; the
// server defaults them to 1 and 10.
func (c *Client) List(ctx context.Context, kind catalog.ResourceKind, params catalog.ListParams) (*catalog.ListResult, error) {
	q := url.Values{}
	if params.Page > 0 {
		q.Set("page", strconv.Itoa(params.Page))
	}
	if params.Limit > 0 {
		q.Set("limit", strconv.Itoa(params.Limit))
	}

	r, err := c.fetch(ctx, "/"+string(kind), q)
	if err != nil {
		return nil, fmt.Errorf("swapi: list %s: %w", kind, err)
	}

	out := &catalog.ListResult{
		Kind:         kind,
		TotalRecords: int(r.Get("total_records").Int()),
		TotalPages:   int(r.Get("total_pages").Int()),
		Previous:     r.Get("previous").String(),
		Next:         r.Get("next").String(),
		Results:      []catalog.Summary{},
	}
	r.Get("results").ForEach(func(_, item gjson.Result) bool {
		out.Results = append(out.Results, catalog.Summary{
			UID:  item.Get("uid").String(),
			Name: item.Get("name").String(),
			URL:  item.Get("url").String(),
		})
		return true
	})
	return out, nil
}

// Get fetches a single resource of kind.
func (c *Client) Get(ctx context.Context, kind catalog.ResourceKind, id string) (*catalog.DetailResult, error) {
	if id == "" {
		return nil, fmt.Errorf("swapi: get %s: %w: empty id", kind, catalog.ErrBadRequest)
	}

	r, err := c.fetch(ctx, "/"+string(kind)+"/"+url.PathEscape(id), nil)
	if err != nil {
		return nil, fmt.Errorf("swapi: get %s/%s: %w", kind, id, err)
	}

	result := r.Get("result")
	props := result.Get("properties")
	if !props.IsObject() {
		return nil, fmt.Errorf("swapi: get %s/%s: %w: response has no properties", kind, id, catalog.ErrServer)
	}
	uid := result.Get("uid").String()
	if uid == "" {
		uid = id
	}
	return &catalog.DetailResult{
		Kind:        kind,
		UID:         uid,
		Description: result.Get("description").String(),
		Properties:  pretty.Ugly([]byte(props.Raw)),
	}, nil
}

// fetch performs a GET and returns the parsed envelope once the status is
// 200 and the message is "ok".
func (c *Client) fetch(ctx context.Context, path string, q url.Values) (gjson.Result, error) {
	u := c.baseURL + path
	if len(q) > 0 {
		u += "?" + q.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return gjson.Result{}, fmt.Errorf("%w: create request: %w", catalog.ErrBadRequest, err)
	}
	req.Header.Set("Accept", "application/json")
	if id := catalog.RequestIDFromContext(ctx); id != "" {
		req.Header.Set("X-Request-ID", id)
	}
	otel.GetTextMapPropagator().Inject(ctx, propagation.HeaderCarrier(req.Header))

	resp, err := c.http.Do(req)
	if err != nil {
		return gjson.Result{}, fmt.Errorf("%w: %w", catalog.ErrTransport, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return gjson.Result{}, remote.ParseAPIError(serviceName, resp)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBody))
	if err != nil {
		return gjson.Result{}, fmt.Errorf("%w: read body: %w", catalog.ErrTransport, err)
	}
	if !gjson.ValidBytes(body) {
		return gjson.Result{}, fmt.Errorf("%w: invalid JSON response", catalog.ErrServer)
	}
	r := gjson.ParseBytes(body)
	if msg := r.Get("message").String(); msg != "ok" {
		return gjson.Result{}, fmt.Errorf("%w: message %q", catalog.ErrServer, msg)
	}
	return r, nil
}
