// Package update compares the running version with the latest published
// release.
package update

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"golang.org/x/mod/semver"

	"github.com/harvest/harvest-cli/internal/debug"
)

const (
	DefaultReleasesURL = "https://api.github.com/repos/harvest/harvest-cli/releases/latest"
	CheckTimeout       = 5 * time.Second
)

// Release is the subset of the GitHub release payload that is used.
type Release struct {
	TagName string `json:"tag_name"`
	HTMLURL string `json:"html_url"`
}

type CheckResult struct {
	CurrentVersion  string `json:"current_version"`
	LatestVersion   string `json:"latest_version"`
	UpdateURL       string `json:"update_url,omitempty"`
	UpdateAvailable bool   `json:"update_available"`
}

// Checker fetches release metadata.
type Checker struct {
	URL  string
	HTTP *http.Client
}

// NewChecker returns a Checker for the public releases feed.
func NewChecker() *Checker {
	return &Checker{URL: DefaultReleasesURL, HTTP: http.DefaultClient}
}

// Check reports whether a release newer than currentVersion exists. Development
// builds ("dev" or empty) are never compared and yield a nil result.
func (c *Checker) Check(ctx context.Context, currentVersion string) (*CheckResult, error) {
	if currentVersion == "dev" || currentVersion == "" {
		return nil, nil
	}

	ctx, cancel := context.WithTimeout(ctx, CheckTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.URL, nil)
	if err != nil {
		return nil, fmt.Errorf("build release request: %w", err)
	}
	req.Header.Set("Accept", "application/vnd.github.v3+json")

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch latest release: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch latest release: unexpected status %d", resp.StatusCode)
	}

	var release Release
	if err := json.NewDecoder(resp.Body).Decode(&release); err != nil {
		return nil, fmt.Errorf("decode release: %w", err)
	}
	if debug.IsEnabled(ctx) {
		slog.Debug("latest release", "tag", release.TagName, "current", currentVersion)
	}

	current := canonical(currentVersion)
	latest := canonical(release.TagName)
	result := &CheckResult{
		CurrentVersion: strings.TrimPrefix(currentVersion, "v"),
		LatestVersion:  strings.TrimPrefix(release.TagName, "v"),
		UpdateURL:      release.HTMLURL,
	}
	if semver.IsValid(current) && semver.IsValid(latest) {
		result.UpdateAvailable = semver.Compare(latest, current) > 0
	}
	return result, nil
}

func canonical(v string) string {
	if !strings.HasPrefix(v, "v") {
		v = "v" + v
	}
	return semver.Canonical(v)
}
