package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/harvest/harvest-cli/internal/iocontext"
)

// recordedRequest is what the mock API saw.
type recordedRequest struct {
	Method string
	Path   string
	Query  url.Values
	Header http.Header
	Body   map[string]any
}

// routeHandler routes "METHOD /path" to canned handlers and records every
// request. Unrouted requests get a Harvest-style 404.
type routeHandler struct {
	mu       sync.Mutex
	routes   map[string]http.HandlerFunc
	requests []recordedRequest
}

func newRouteHandler() *routeHandler {
	return &routeHandler{routes: map[string]http.HandlerFunc{}}
}

func (h *routeHandler) On(method, path string, fn http.HandlerFunc) *routeHandler {
	h.routes[method+" "+path] = fn
	return h
}

func (h *routeHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	rec := recordedRequest{Method: r.Method, Path: r.URL.Path, Query: r.URL.Query(), Header: r.Header.Clone()}
	_ = json.NewDecoder(r.Body).Decode(&rec.Body)

	h.mu.Lock()
	h.requests = append(h.requests, rec)
	fn, ok := h.routes[r.Method+" "+r.URL.Path]
	h.mu.Unlock()

	if !ok {
		jsonResponse(http.StatusNotFound, `{"error":"not_found","error_description":"The requested resource could not be found."}`)(w, r)
		return
	}
	fn(w, r)
}

func (h *routeHandler) calls() []recordedRequest {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]recordedRequest(nil), h.requests...)
}

func jsonResponse(status int, body string) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}
}

// setupTestEnv points the CLI at a mock Harvest API through HARVEST_*
// environment credentials and isolates it from the user's home directory.
func setupTestEnv(t *testing.T, handler http.Handler) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv("XDG_CONFIG_HOME", filepath.Join(home, ".config"))
	t.Setenv("HARVEST_CONFIG", filepath.Join(home, "config.yaml"))
	for _, key := range []string{"HARVEST_OUTPUT", "HARVEST_TIMEOUT", "HARVEST_CONCURRENCY", "HARVEST_PROFILE", "HARVEST_APP_NAME", "HARVEST_SUBDOMAIN"} {
		t.Setenv(key, "")
	}
	t.Setenv("HARVEST_ACCOUNT_ID", "123")
	t.Setenv("HARVEST_TOKEN", "test-token")
	t.Setenv("HARVEST_BASE_URL", server.URL+"/api/v2")
	return server
}

// runCLI executes the CLI with captured streams.
func runCLI(t *testing.T, stdin string, args ...string) (stdout, stderr string, err error) {
	t.Helper()
	var out, errOut bytes.Buffer
	ctx := iocontext.WithIO(context.Background(), &iocontext.IO{
		Out:    &out,
		ErrOut: &errOut,
		In:     strings.NewReader(stdin),
	})
	err = Execute(ctx, args)
	return out.String(), errOut.String(), err
}

func decodeJSON[T any](t *testing.T, data string) T {
	t.Helper()
	var v T
	if err := json.Unmarshal([]byte(data), &v); err != nil {
		t.Fatalf("output is not JSON: %v\n%s", err, data)
	}
	return v
}
