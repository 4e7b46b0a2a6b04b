// Package dryrun previews mutating API requests instead of sending them.
package dryrun

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/harvest/harvest-cli/internal/api"
)

type contextKey string

const dryRunKey contextKey = "dry_run_enabled"

// WithDryRun returns a context with dry-run mode enabled/disabled.
func WithDryRun(ctx context.Context, enabled bool) context.Context {
	return context.WithValue(ctx, dryRunKey, enabled)
}

// IsEnabled returns true if dry-run mode is enabled.
func IsEnabled(ctx context.Context) bool {
	if v, ok := ctx.Value(dryRunKey).(bool); ok {
		return v
	}
	return false
}

// Doer executes API requests.
type Doer interface {
	Do(ctx context.Context, req api.Request) (any, error)
}

// Transport passes GET requests through to Next and writes a Preview of
// every other request to Out. Previewed requests return a nil body.
type Transport struct {
	Next Doer
	Out  io.Writer
}

func (t *Transport) Do(ctx context.Context, req api.Request) (any, error) {
	if req.Method == http.MethodGet {
		return t.Next.Do(ctx, req)
	}
	NewPreview(req).Write(t.Out)
	return nil, nil
}

// Preview describes a request that was not sent.
type Preview struct {
	Method   string
	URL      string
	Body     any
	Warnings []string
}

// NewPreview builds the preview of req. Credentials are not included.
func NewPreview(req api.Request) *Preview {
	target := req.URL
	if len(req.Query) > 0 {
		target += "?" + req.Query.Encode()
	}
	p := &Preview{Method: req.Method, URL: target, Body: req.Body}
	if req.Method == http.MethodDelete {
		p.Warnings = append(p.Warnings, "Deleted records cannot be restored")
	}
	return p
}

// Write outputs the preview to the writer
func (p *Preview) Write(w io.Writer) {
	_, _ = fmt.Fprintf(w, "\n[DRY-RUN] Would %s %s\n", p.Method, p.URL)
	_, _ = fmt.Fprintf(w, "───────────────────────────────────────\n")

	if p.Body != nil {
		data, err := json.MarshalIndent(p.Body, "  ", "  ")
		if err != nil {
			data = []byte(fmt.Sprint(p.Body))
		}
		_, _ = fmt.Fprintf(w, "  %s\n\n", strings.TrimSpace(string(data)))
	}

	if len(p.Warnings) > 0 {
		_, _ = fmt.Fprintln(w, "Warnings:")
		for _, warning := range p.Warnings {
			_, _ = fmt.Fprintf(w, "  ! %s\n", warning)
		}
		_, _ = fmt.Fprintln(w)
	}

	_, _ = fmt.Fprintf(w, "───────────────────────────────────────\n")
	_, _ = fmt.Fprintln(w, "No changes made (dry-run mode)")
}
