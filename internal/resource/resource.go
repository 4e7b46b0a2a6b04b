// Package resource implements a generic wrapper around one collection of a
// paginated JSON REST API.
//
// A Resource knows its endpoint path, the envelope key its list responses
// use and the headers every request carries. On top of plain CRUD it offers
// a limit-aware page accumulator (List), a table of named custom actions
// (Invoke) and pipes that scope a child resource under a parent record
// (Pipe(id).Child(name)).
//
// Actions and pipes are attached during setup. Once a Resource is shared it
// is read-only: pagination state lives in the List call and pipes return
// scoped copies, so a single Resource may serve concurrent callers.
package resource

import (
	"context"
	"net/http"
	"net/url"
	"sort"
	"strings"

	"github.com/harvest/harvest-cli/internal/api"
)

// Transport executes one HTTP call and returns the JSON-decoded body.
type Transport interface {
	Do(ctx context.Context, req api.Request) (any, error)
}

// Compile-time interface implementation check
var _ Transport = (*api.Client)(nil)

// Options configures a Resource.
type Options struct {
	BaseURL  string
	Endpoint string
	// CollectionKey names the envelope field holding list items. Defaults to
	// the last segment of Endpoint.
	CollectionKey string
	Header        http.Header
}

// Resource is one API collection, e.g. "invoices".
type Resource struct {
	transport     Transport
	baseURL       string
	endpoint      string
	collectionKey string
	header        http.Header
	prefix        string

	actions map[string]Action
	pipes   map[string]pipe
}

// New creates a Resource bound to transport.
func New(transport Transport, opts Options) *Resource {
	endpoint := strings.Trim(opts.Endpoint, "/")
	key := opts.CollectionKey
	if key == "" {
		key = endpoint[strings.LastIndex(endpoint, "/")+1:]
	}
	return &Resource{
		transport:     transport,
		baseURL:       strings.TrimSuffix(opts.BaseURL, "/"),
		endpoint:      endpoint,
		collectionKey: key,
		header:        opts.Header.Clone(),
		actions:       make(map[string]Action),
		pipes:         make(map[string]pipe),
	}
}

// Endpoint returns the resource's own path segment, without any pipe prefix.
func (r *Resource) Endpoint() string { return r.endpoint }

// Prefix returns the parent path this resource is scoped under, if any.
func (r *Resource) Prefix() string { return r.prefix }

// Path returns the effective path requests are issued against.
func (r *Resource) Path() string {
	if r.prefix == "" {
		return r.endpoint
	}
	return r.prefix + "/" + r.endpoint
}

// CollectionKey returns the envelope key list responses are unwrapped with.
func (r *Resource) CollectionKey() string { return r.collectionKey }

// Actions returns the names of the attached custom actions, sorted.
func (r *Resource) Actions() []string {
	names := make([]string, 0, len(r.actions))
	for name := range r.actions {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Pipes returns the names of the attached pipes, sorted.
func (r *Resource) Pipes() []string {
	names := make([]string, 0, len(r.pipes))
	for name := range r.pipes {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// All lists every record of the resource.
func (r *Resource) All(ctx context.Context) ([]any, error) {
	return r.List(ctx, ListParams{})
}

// Find retrieves a single record.
func (r *Resource) Find(ctx context.Context, id string) (any, error) {
	return r.do(ctx, http.MethodGet, r.memberPath(id), nil, nil)
}

// Create posts data as a new record.
func (r *Resource) Create(ctx context.Context, data any) (any, error) {
	return r.do(ctx, http.MethodPost, r.endpoint, nil, data)
}

// Update patches an existing record with data.
func (r *Resource) Update(ctx context.Context, id string, data any) (any, error) {
	return r.do(ctx, http.MethodPatch, r.memberPath(id), nil, data)
}

// Delete removes a record.
func (r *Resource) Delete(ctx context.Context, id string) (any, error) {
	return r.do(ctx, http.MethodDelete, r.memberPath(id), nil, nil)
}

func (r *Resource) memberPath(id string) string {
	return r.endpoint + "/" + url.PathEscape(id)
}

// url resolves a path relative to the resource root, applying the pipe prefix.
func (r *Resource) url(path string) string {
	if r.prefix != "" {
		path = r.prefix + "/" + path
	}
	return r.baseURL + "/" + path
}

func (r *Resource) do(ctx context.Context, method, path string, query url.Values, body any) (any, error) {
	return r.transport.Do(ctx, api.Request{
		Method: method,
		URL:    r.url(path),
		Query:  query,
		Header: r.header.Clone(),
		Body:   body,
	})
}

// clone returns a shallow copy. Action and pipe tables are shared; they are
// never written after setup.
func (r *Resource) clone() *Resource {
	c := *r
	return &c
}
