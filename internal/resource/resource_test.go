package resource

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harvest/harvest-cli/internal/api"
)

const testBaseURL = "https://api.harvestapp.com/api/v2/"

// fakeTransport records requests and answers them with respond.
type fakeTransport struct {
	mu       sync.Mutex
	requests []api.Request
	respond  func(req api.Request) (any, error)
}

func (f *fakeTransport) Do(_ context.Context, req api.Request) (any, error) {
	f.mu.Lock()
	f.requests = append(f.requests, req)
	f.mu.Unlock()
	if f.respond == nil {
		return map[string]any{}, nil
	}
	return f.respond(req)
}

func (f *fakeTransport) calls() []api.Request {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]api.Request(nil), f.requests...)
}

func newTestResource(t *testing.T, endpoint string, respond func(api.Request) (any, error)) (*Resource, *fakeTransport) {
	t.Helper()
	ft := &fakeTransport{respond: respond}
	header := http.Header{}
	header.Set("Harvest-Account-ID", "123")
	return New(ft, Options{BaseURL: testBaseURL, Endpoint: endpoint, Header: header}), ft
}

func TestNew_Defaults(t *testing.T) {
	r, _ := newTestResource(t, "/reports/time/team/", nil)
	assert.Equal(t, "reports/time/team", r.Endpoint())
	assert.Equal(t, "team", r.CollectionKey())
	assert.Equal(t, "reports/time/team", r.Path())
	assert.Empty(t, r.Prefix())

	r = New(&fakeTransport{}, Options{BaseURL: testBaseURL, Endpoint: "reports/time/team", CollectionKey: "results"})
	assert.Equal(t, "results", r.CollectionKey())
}

func TestCRUD_Requests(t *testing.T) {
	r, ft := newTestResource(t, "clients", nil)
	ctx := context.Background()

	_, err := r.Find(ctx, "42")
	require.NoError(t, err)
	_, err = r.Create(ctx, map[string]any{"name": "Acme"})
	require.NoError(t, err)
	_, err = r.Update(ctx, "42", map[string]any{"is_active": false})
	require.NoError(t, err)
	_, err = r.Delete(ctx, "42")
	require.NoError(t, err)

	calls := ft.calls()
	require.Len(t, calls, 4)

	assert.Equal(t, http.MethodGet, calls[0].Method)
	assert.Equal(t, "https://api.harvestapp.com/api/v2/clients/42", calls[0].URL)
	assert.Nil(t, calls[0].Body)

	assert.Equal(t, http.MethodPost, calls[1].Method)
	assert.Equal(t, "https://api.harvestapp.com/api/v2/clients", calls[1].URL)
	assert.Equal(t, map[string]any{"name": "Acme"}, calls[1].Body)

	assert.Equal(t, http.MethodPatch, calls[2].Method)
	assert.Equal(t, "https://api.harvestapp.com/api/v2/clients/42", calls[2].URL)
	assert.Equal(t, map[string]any{"is_active": false}, calls[2].Body)

	assert.Equal(t, http.MethodDelete, calls[3].Method)
	assert.Equal(t, "https://api.harvestapp.com/api/v2/clients/42", calls[3].URL)

	for _, c := range calls {
		assert.Equal(t, "123", c.Header.Get("Harvest-Account-ID"))
	}
}

func TestFind_EscapesID(t *testing.T) {
	r, ft := newTestResource(t, "clients", nil)
	_, err := r.Find(context.Background(), "a/b")
	require.NoError(t, err)
	assert.Equal(t, "https://api.harvestapp.com/api/v2/clients/a%2Fb", ft.calls()[0].URL)
}

func TestRequests_HeaderIsolated(t *testing.T) {
	r, _ := newTestResource(t, "clients", func(req api.Request) (any, error) {
		req.Header.Set("Harvest-Account-ID", "tampered")
		return nil, nil
	})
	_, err := r.Find(context.Background(), "1")
	require.NoError(t, err)

	ft := &fakeTransport{}
	r.transport = ft
	_, err = r.Find(context.Background(), "1")
	require.NoError(t, err)
	assert.Equal(t, "123", ft.calls()[0].Header.Get("Harvest-Account-ID"))
}

func TestTransportErrorsPassThrough(t *testing.T) {
	want := &api.APIError{StatusCode: 500, Body: "boom"}
	r, _ := newTestResource(t, "clients", func(api.Request) (any, error) {
		return nil, want
	})
	_, err := r.Find(context.Background(), "1")
	assert.Same(t, want, err)
}

func TestActionsAndPipesListing(t *testing.T) {
	invoices, _ := newTestResource(t, "invoices", nil)
	messages, _ := newTestResource(t, "messages", nil)
	payments, _ := newTestResource(t, "payments", nil)

	require.NoError(t, invoices.AddAction("sent", "{id}/messages", "post", nil))
	require.NoError(t, invoices.AddAction("close", "{id}/messages", "post", nil))
	invoices.AddPipe("payments", payments)
	invoices.AddPipe("messages", messages)

	assert.Equal(t, []string{"close", "sent"}, invoices.Actions())
	assert.Equal(t, []string{"messages", "payments"}, invoices.Pipes())
	assert.Empty(t, messages.Actions())
}

func jsonNumber(n int) json.Number {
	return json.Number(strconv.Itoa(n))
}

func queryInt(t *testing.T, q url.Values, key string) int {
	t.Helper()
	if q.Get(key) == "" {
		return 0
	}
	n, err := strconv.Atoi(q.Get(key))
	require.NoError(t, err)
	return n
}
