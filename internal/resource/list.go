package resource

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"

	"github.com/gorilla/schema"

	"github.com/harvest/harvest-cli/internal/debug"
)

// MaxPerPage is the largest page size the API accepts.
const MaxPerPage = 100

// ListParams controls a list request. Limit is a client-side record cap that
// is translated into page/per_page parameters and never sent to the server.
type ListParams struct {
	Limit   int `schema:"-"`
	Page    int `schema:"page,omitempty"`
	PerPage int `schema:"per_page,omitempty"`
	// Filters are passed through as query parameters (is_active,
	// updated_since, client_id, ...). Paging keys in Filters are ignored.
	Filters url.Values `schema:"-"`
}

var reservedParams = []string{"page", "per_page", "limit"}

var queryEncoder = schema.NewEncoder()

func (p ListParams) query() (url.Values, error) {
	q := make(url.Values, len(p.Filters)+2)
	for key, values := range p.Filters {
		q[key] = append([]string(nil), values...)
	}
	for _, key := range reservedParams {
		q.Del(key)
	}
	if err := queryEncoder.Encode(p, q); err != nil {
		return nil, fmt.Errorf("encode list parameters: %w", err)
	}
	return q, nil
}

// pageBound is the per-call truncation plan derived from a limit above one
// page: stop after lastPage and request only lastPerPage records on it.
// lastPerPage == 0 means the last page is a full page.
type pageBound struct {
	lastPage    int
	lastPerPage int
}

// planLimit rewrites a limit into page/per_page and returns the bound the
// accumulator must honor.
func planLimit(p ListParams) (ListParams, pageBound) {
	var b pageBound
	if p.Limit <= 0 {
		p.Limit = 0
		return p, b
	}

	p.PerPage = min(p.Limit, MaxPerPage)
	p.Page = 1
	if p.Limit > MaxPerPage {
		b.lastPage = (p.Limit + MaxPerPage - 1) / MaxPerPage
		b.lastPerPage = p.Limit - MaxPerPage*(p.Limit/MaxPerPage)
	}
	p.Limit = 0
	return p, b
}

// List returns the records of the resource.
//
// With an explicit Page (or a Limit of at most one page) exactly one request
// is made and the collection of that page is returned. Otherwise pages are
// fetched in order and accumulated until the server reports no next page or
// the limit is satisfied.
func (r *Resource) List(ctx context.Context, params ListParams) ([]any, error) {
	params, bound := planLimit(params)
	if params.Page > 0 && bound.lastPage == 0 {
		envelope, err := r.getPage(ctx, params)
		if err != nil {
			return nil, err
		}
		return r.collection(envelope)
	}
	return r.paginate(ctx, params, bound)
}

// Raw issues a single list request and returns the response envelope
// untouched, pagination fields included. Limit is translated as in List.
func (r *Resource) Raw(ctx context.Context, params ListParams) (any, error) {
	params, _ = planLimit(params)
	return r.getPage(ctx, params)
}

func (r *Resource) paginate(ctx context.Context, params ListParams, bound pageBound) ([]any, error) {
	if params.Page <= 0 {
		params.Page = 1
	}

	all := []any{}
	for {
		envelope, err := r.getPage(ctx, params)
		if err != nil {
			return nil, err
		}
		items, err := r.collection(envelope)
		if err != nil {
			return nil, err
		}
		all = append(all, items...)

		next, more := nextPage(envelope)
		if debug.IsEnabled(ctx) {
			slog.Debug("page fetched", "path", r.Path(), "page", params.Page, "per_page", params.PerPage, "items", len(items), "next_page", next)
		}
		if !more {
			break
		}

		params.Page = next
		if bound.lastPage > 0 {
			if next == bound.lastPage && bound.lastPerPage > 0 {
				params.PerPage = bound.lastPerPage
			}
			if next > bound.lastPage {
				break
			}
		}
	}
	return all, nil
}

func (r *Resource) getPage(ctx context.Context, params ListParams) (any, error) {
	q, err := params.query()
	if err != nil {
		return nil, err
	}
	return r.do(ctx, http.MethodGet, r.endpoint, q, nil)
}

// collection extracts the item list from a list envelope.
func (r *Resource) collection(envelope any) ([]any, error) {
	obj, ok := envelope.(map[string]any)
	if !ok {
		return nil, &EnvelopeError{Path: r.Path(), Key: r.collectionKey, Reason: fmt.Sprintf("response is %T, not an object", envelope)}
	}
	value, ok := obj[r.collectionKey]
	if !ok {
		return nil, &EnvelopeError{Path: r.Path(), Key: r.collectionKey, Reason: "key missing"}
	}
	switch items := value.(type) {
	case []any:
		return items, nil
	case nil:
		return []any{}, nil
	default:
		return nil, &EnvelopeError{Path: r.Path(), Key: r.collectionKey, Reason: fmt.Sprintf("value is %T, not a list", value)}
	}
}

// nextPage reads next_page from an envelope. Null, absent or non-positive
// values end pagination.
func nextPage(envelope any) (int, bool) {
	obj, ok := envelope.(map[string]any)
	if !ok {
		return 0, false
	}

	var n int64
	switch v := obj["next_page"].(type) {
	case json.Number:
		parsed, err := v.Int64()
		if err != nil {
			return 0, false
		}
		n = parsed
	case float64:
		n = int64(v)
	case int:
		n = int64(v)
	case int64:
		n = v
	case string:
		parsed, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return 0, false
		}
		n = parsed
	default:
		return 0, false
	}
	if n <= 0 {
		return 0, false
	}
	return int(n), true
}
