// Package urlparse maps Harvest web app URLs to API resources.
package urlparse

import (
	"errors"
	"fmt"
	"net/url"
	"regexp"
	"slices"
	"strings"
)

// ErrNotHarvestURL is returned for URLs outside harvestapp.com or with an
// unrecognized path.
var ErrNotHarvestURL = errors.New("not a Harvest record URL")

// ParsedURL is the API record a web URL points at.
type ParsedURL struct {
	Subdomain string
	Resource  string
	ID        string
}

// webPaths maps the first path segment of a web URL to the API resource.
var webPaths = map[string]string{
	"invoices":  "invoices",
	"estimates": "estimates",
	"projects":  "projects",
	"clients":   "clients",
	"expenses":  "expenses",
	"people":    "users",
	"tasks":     "tasks",
}

// pathPattern matches /{segment}/{id} with an optional trailing path such as
// /edit.
var pathPattern = regexp.MustCompile(`^/([a-z_]+)/(\d+)(?:/.*)?$`)

// Parse extracts the resource and record id from a URL such as
// https://acme.harvestapp.com/invoices/13150403.
func Parse(rawURL string) (*ParsedURL, error) {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return nil, fmt.Errorf("invalid URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("%w: expected an https:// URL, got %q", ErrNotHarvestURL, rawURL)
	}

	subdomain, ok := strings.CutSuffix(strings.ToLower(u.Hostname()), ".harvestapp.com")
	if !ok || subdomain == "" || strings.Contains(subdomain, ".") {
		return nil, fmt.Errorf("%w: host %q is not <account>.harvestapp.com", ErrNotHarvestURL, u.Host)
	}

	m := pathPattern.FindStringSubmatch(u.Path)
	if m == nil {
		return nil, fmt.Errorf("%w: expected /<resource>/<id>, got %q", ErrNotHarvestURL, u.Path)
	}
	resource, ok := webPaths[m[1]]
	if !ok {
		return nil, fmt.Errorf("%w: unsupported section %q (supported: %s)", ErrNotHarvestURL, m[1], strings.Join(Sections(), ", "))
	}

	return &ParsedURL{Subdomain: subdomain, Resource: resource, ID: m[2]}, nil
}

// IsURL reports whether s looks like an http(s) URL rather than a resource
// name.
func IsURL(s string) bool {
	return strings.HasPrefix(s, "https://") || strings.HasPrefix(s, "http://")
}

// Sections lists the supported web URL sections.
func Sections() []string {
	out := make([]string, 0, len(webPaths))
	for section := range webPaths {
		out = append(out, section)
	}
	slices.Sort(out)
	return out
}
