// Package catalog defines domain types and interfaces for the holocron catalog cache.
// This package has no project imports -- it is the dependency root.
package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"
)

// --- Resource kinds ---

// ResourceKind names one of the catalog categories the remote service exposes
// list and detail operations for.
type ResourceKind string

const (
	KindPeople    ResourceKind = "people"
	KindPlanets   ResourceKind = "planets"
	KindStarships ResourceKind = "starships"
)

var kinds = []ResourceKind{KindPeople, KindPlanets, KindStarships}

// Kinds returns the supported resource kinds in a stable order.
func Kinds() []ResourceKind {
	out := make([]ResourceKind, len(kinds))
	copy(out, kinds)
	return out
}

// ParseKind validates a kind name taken from user input.
func ParseKind(s string) (ResourceKind, error) {
	for _, k := range kinds {
		if string(k) == s {
			return k, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownKind, s)
}

// String returns the kind name.
func (k ResourceKind) String() string { return string(k) }

// --- Remote service ---

// RemoteService is the catalog API capability the cache decorates.
// Implementations return either a success payload or an error; errors are
// passed through to callers and never cached.
type RemoteService interface {
	// List returns one page of resources of the given kind.
	List(ctx context.Context, kind ResourceKind, params ListParams) (*ListResult, error)
	// Get returns a single resource by id.
	Get(ctx context.Context, kind ResourceKind, id string) (*DetailResult, error)
}

// Defaults applied by the remote API when page or limit is not sent.
// Cache keys rely on these matching the server, otherwise an "unspecified"
// request and an explicit 1/10 request would be cached separately.
const (
	DefaultPage  = 1
	DefaultLimit = 10
)

// ListParams selects a page of a list endpoint. Zero values mean "unspecified".
type ListParams struct {
	Page  int `json:"page,omitempty"`
	Limit int `json:"limit,omitempty"`
}

// Normalized returns params with the remote defaults filled in.
func (p ListParams) Normalized() ListParams {
	if p.Page <= 0 {
		p.Page = DefaultPage
	}
	if p.Limit <= 0 {
		p.Limit = DefaultLimit
	}
	return p
}

// Summary is a list entry pointing at a detail resource.
type Summary struct {
	UID  string `json:"uid"`
	Name string `json:"name"`
	URL  string `json:"url"`
}

// ListResult is one page of a list endpoint.
type ListResult struct {
	Kind         ResourceKind `json:"kind"`
	TotalRecords int          `json:"total_records"`
	TotalPages   int          `json:"total_pages"`
	Previous     string       `json:"previous,omitempty"`
	Next         string       `json:"next,omitempty"`
	Results      []Summary    `json:"results"`
}

// DetailResult is a single resource. Properties holds the kind-specific
// fields as compact JSON; use DecodeProperties for a typed view.
type DetailResult struct {
	Kind        ResourceKind    `json:"kind"`
	UID         string          `json:"uid"`
	Description string          `json:"description,omitempty"`
	Properties  json.RawMessage `json:"properties"`
}

// DecodeProperties decodes d.Properties into T.
func DecodeProperties[T any](d *DetailResult) (*T, error) {
	var out T
	if err := json.Unmarshal(d.Properties, &out); err != nil {
		return nil, fmt.Errorf("%w: decode %s properties: %v", ErrSerialization, d.Kind, err)
	}
	return &out, nil
}

// Person is the typed view of a people resource.
type Person struct {
	Name      string `json:"name"`
	Height    string `json:"height"`
	Mass      string `json:"mass"`
	HairColor string `json:"hair_color"`
	SkinColor string `json:"skin_color"`
	EyeColor  string `json:"eye_color"`
	BirthYear string `json:"birth_year"`
	Gender    string `json:"gender"`
	Homeworld string `json:"homeworld"`
	URL       string `json:"url"`
}

// Planet is the typed view of a planets resource.
type Planet struct {
	Name           string `json:"name"`
	Diameter       string `json:"diameter"`
	RotationPeriod string `json:"rotation_period"`
	OrbitalPeriod  string `json:"orbital_period"`
	Gravity        string `json:"gravity"`
	Population     string `json:"population"`
	Climate        string `json:"climate"`
	Terrain        string `json:"terrain"`
	SurfaceWater   string `json:"surface_water"`
	URL            string `json:"url"`
}

// Starship is the typed view of a starships resource.
type Starship struct {
	Name                 string   `json:"name"`
	Model                string   `json:"model"`
	StarshipClass        string   `json:"starship_class"`
	Manufacturer         string   `json:"manufacturer"`
	CostInCredits        string   `json:"cost_in_credits"`
	Length               string   `json:"length"`
	Crew                 string   `json:"crew"`
	Passengers           string   `json:"passengers"`
	MaxAtmospheringSpeed string   `json:"max_atmosphering_speed"`
	HyperdriveRating     string   `json:"hyperdrive_rating"`
	MGLT                 string   `json:"MGLT"`
	CargoCapacity        string   `json:"cargo_capacity"`
	Consumables          string   `json:"consumables"`
	Pilots               []string `json:"pilots"`
	URL                  string   `json:"url"`
}

// --- Cache entries ---

// CacheEntry describes one stored response. The payload and its write
// timestamp live under separate storage keys; see cache.MetadataStore.
type CacheEntry struct {
	Key      string    `json:"key"`
	Payload  []byte    `json:"-"`
	StoredAt time.Time `json:"stored_at"`
}

// ListEndpoint returns the human-readable descriptor of a list call, used by
// observability hooks and logs.
func ListEndpoint(kind ResourceKind, params ListParams) string {
	p := params.Normalized()
	return "GET /" + string(kind) + "?page=" + strconv.Itoa(p.Page) + "&limit=" + strconv.Itoa(p.Limit)
}

// DetailEndpoint returns the human-readable descriptor of a detail call.
func DetailEndpoint(kind ResourceKind, id string) string {
	return "GET /" + string(kind) + "/" + id
}

// --- Context keys ---

type contextKey int

const ctxKeyRequestID contextKey = 0

// RequestIDFromContext extracts the request ID from context.
func RequestIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(ctxKeyRequestID).(string)
	return id
}

// ContextWithRequestID returns a context carrying the given request ID.
func ContextWithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, ctxKeyRequestID, id)
}
