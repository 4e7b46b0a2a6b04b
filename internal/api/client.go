package api

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/harvest/harvest-cli/internal/debug"
)

const DefaultTimeout = 30 * time.Second

// Request describes a single HTTP call. URL is absolute; Query is merged into
// any query string already present on it.
type Request struct {
	Method string
	URL    string
	Query  url.Values
	Header http.Header
	Body   any
}

// Client executes requests against the Harvest API and returns JSON-decoded
// bodies. It holds no per-resource state and is safe for concurrent use.
type Client struct {
	HTTP *http.Client
}

// New creates a new Harvest API client
func New() *Client {
	baseTransport, ok := http.DefaultTransport.(*http.Transport)
	if !ok {
		baseTransport = &http.Transport{}
	}
	transport := baseTransport.Clone()
	if transport.TLSClientConfig == nil {
		transport.TLSClientConfig = &tls.Config{}
	} else {
		transport.TLSClientConfig = transport.TLSClientConfig.Clone()
	}
	transport.TLSClientConfig.MinVersion = tls.VersionTLS12

	return &Client{
		HTTP: &http.Client{
			Timeout:   DefaultTimeout,
			Transport: transport,
		},
	}
}

// Do performs the request and decodes the response body. Numbers are decoded
// as json.Number so resource IDs survive untouched. An empty body yields nil.
func (c *Client) Do(ctx context.Context, req Request) (any, error) {
	respBody, status, err := c.execute(ctx, req)
	if err != nil {
		return nil, err
	}
	if len(bytes.TrimSpace(respBody)) == 0 {
		return nil, nil
	}

	dec := json.NewDecoder(bytes.NewReader(respBody))
	dec.UseNumber()
	var result any
	if err := dec.Decode(&result); err != nil {
		return nil, WrapError(req.Method, req.URL, status, fmt.Errorf("unexpected API response format (JSON decode failed): %w", err))
	}
	return result, nil
}

func (c *Client) execute(ctx context.Context, r Request) ([]byte, int, error) {
	target, err := withQuery(r.URL, r.Query)
	if err != nil {
		return nil, 0, err
	}

	var bodyReader io.Reader
	if r.Body != nil {
		data, err := json.Marshal(r.Body)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to marshal request body: %w", err)
		}
		bodyReader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, r.Method, target, bodyReader)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to create request: %w", err)
	}
	for key, values := range r.Header {
		for _, v := range values {
			req.Header.Add(key, v)
		}
	}
	if r.Body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.HTTP.Do(req)
	if err != nil {
		if debug.IsEnabled(ctx) {
			slog.Debug("request failed", "method", r.Method, "url", target, "error", err)
		}
		return nil, 0, fmt.Errorf("request failed: %w", err)
	}

	respBody, err := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	if err != nil {
		return nil, resp.StatusCode, fmt.Errorf("failed to read response: %w", err)
	}
	if debug.IsEnabled(ctx) {
		slog.Debug("request complete", "method", r.Method, "url", target, "status", resp.StatusCode, "duration", time.Since(start))
	}

	if err := classify(resp, respBody); err != nil {
		return respBody, resp.StatusCode, WrapError(r.Method, target, resp.StatusCode, err)
	}
	return respBody, resp.StatusCode, nil
}

// classify maps a non-2xx response to a typed error.
func classify(resp *http.Response, body []byte) error {
	switch {
	case resp.StatusCode < 400:
		return nil
	case resp.StatusCode == http.StatusTooManyRequests:
		retryAfter, _ := retryAfterDuration(resp.Header)
		return &RateLimitError{RetryAfter: retryAfter}
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return &AuthError{StatusCode: resp.StatusCode, Reason: sanitizeErrorBody(string(body))}
	default:
		return &APIError{
			StatusCode: resp.StatusCode,
			Body:       sanitizeErrorBody(string(body)),
			RequestID:  requestIDFromHeader(resp.Header),
		}
	}
}

func withQuery(rawURL string, query url.Values) (string, error) {
	if len(query) == 0 {
		return rawURL, nil
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("invalid request URL %q: %w", rawURL, err)
	}
	merged := u.Query()
	for key, values := range query {
		merged.Del(key)
		for _, v := range values {
			merged.Add(key, v)
		}
	}
	u.RawQuery = merged.Encode()
	return u.String(), nil
}

func requestIDFromHeader(header http.Header) string {
	if header == nil {
		return ""
	}
	if id := header.Get("X-Request-Id"); id != "" {
		return id
	}
	return ""
}

// sanitizeErrorBody extracts a readable message from an error response
// without echoing the raw payload.
func sanitizeErrorBody(body string) string {
	var errResp struct {
		Error            string `json:"error"`
		ErrorDescription string `json:"error_description"`
		Message          string `json:"message"`
	}
	if err := json.Unmarshal([]byte(body), &errResp); err != nil {
		return "API request failed (response body redacted)"
	}

	switch {
	case errResp.ErrorDescription != "":
		if errResp.Error != "" {
			return errResp.Error + ": " + errResp.ErrorDescription
		}
		return errResp.ErrorDescription
	case errResp.Message != "":
		return errResp.Message
	case errResp.Error != "":
		return errResp.Error
	}
	return "API request failed (response body redacted)"
}

// IsTimeout reports whether err came from a request deadline.
func IsTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr interface{ Timeout() bool }
	return errors.As(err, &netErr) && netErr.Timeout()
}
