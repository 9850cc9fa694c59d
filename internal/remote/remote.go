// Package remote holds the HTTP plumbing shared by catalog API clients:
// the upstream error type, a tuned transport, and the circuit-breaking
// wrapper around any catalog.RemoteService.
package remote

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/rs/dnscache"
	"golang.org/x/oauth2"

	catalog "github.com/eugener/holocron/internal"
)

// APIError is a non-2xx response from the catalog API.
type APIError struct {
	Service    string
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s: HTTP %d: %s", e.Service, e.StatusCode, e.Body)
}

// HTTPStatus returns the upstream status code.
func (e *APIError) HTTPStatus() int { return e.StatusCode }

// Is maps the status onto the catalog sentinels: 404 is ErrNotFound, 400 is
// ErrBadRequest, everything else is ErrServer.
func (e *APIError) Is(target error) bool {
	switch e.StatusCode {
	case http.StatusNotFound:
		return target == catalog.ErrNotFound
	case http.StatusBadRequest:
		return target == catalog.ErrBadRequest
	default:
		return target == catalog.ErrServer
	}
}

// ParseAPIError reads up to 4KB of the response body into an APIError.
func ParseAPIError(service string, resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	return &APIError{Service: service, StatusCode: resp.StatusCode, Body: string(body)}
}

// NewTransport returns a pooled transport. A non-nil resolver caches DNS
// lookups for the upstream host.
func NewTransport(resolver *dnscache.Resolver) *http.Transport {
	t := &http.Transport{
		Proxy:               http.ProxyFromEnvironment,
		MaxIdleConnsPerHost: 32,
		MaxConnsPerHost:     64,
		IdleConnTimeout:     90 * time.Second,
		ForceAttemptHTTP2:   true,
		TLSHandshakeTimeout: 5 * time.Second,
	}
	if resolver != nil {
		t.DialContext = func(ctx context.Context, network, addr string) (net.Conn, error) {
			host, port, err := net.SplitHostPort(addr)
			if err != nil {
				return nil, err
			}
			ips, err := resolver.LookupHost(ctx, host)
			if err != nil {
				return nil, err
			}
			var d net.Dialer
			return d.DialContext(ctx, network, net.JoinHostPort(ips[0], port))
		}
	}
	return t
}

// NewHTTPClient builds the client used for upstream calls. A non-empty token
// is sent as a bearer token on every request.
func NewHTTPClient(base http.RoundTripper, token string, timeout time.Duration) *http.Client {
	if base == nil {
		base = http.DefaultTransport
	}
	rt := base
	if token != "" {
		rt = &oauth2.Transport{
			Source: oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token, TokenType: "Bearer"}),
			Base:   base,
		}
	}
	return &http.Client{Transport: rt, Timeout: timeout}
}
