package cmd

import (
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// pagedClients serves total clients, honoring page and per_page.
func pagedClients(total int) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		page, _ := strconv.Atoi(r.URL.Query().Get("page"))
		if page == 0 {
			page = 1
		}
		perPage, _ := strconv.Atoi(r.URL.Query().Get("per_page"))
		if perPage == 0 {
			perPage = 100
		}
		start := (page - 1) * perPage
		var items []string
		for i := start; i < start+perPage && i < total; i++ {
			items = append(items, fmt.Sprintf(`{"id":%d,"name":"Client %d"}`, i+1, i+1))
		}
		next := "null"
		if start+perPage < total {
			next = strconv.Itoa(page + 1)
		}
		body := fmt.Sprintf(`{"clients":[%s],"per_page":%d,"page":%d,"next_page":%s}`, strings.Join(items, ","), perPage, page, next)
		jsonResponse(http.StatusOK, body)(w, r)
	}
}

func TestListCommand_JSON(t *testing.T) {
	h := newRouteHandler().On("GET", "/api/v2/clients", pagedClients(3))
	setupTestEnv(t, h)

	out, _, err := runCLI(t, "", "list", "clients", "-o", "json")
	require.NoError(t, err)

	items := decodeJSON[[]map[string]any](t, out)
	require.Len(t, items, 3)
	assert.Equal(t, "Client 1", items[0]["name"])

	calls := h.calls()
	require.Len(t, calls, 1)
	assert.Equal(t, "123", calls[0].Header.Get("Harvest-Account-ID"))
	assert.Equal(t, "Bearer test-token", calls[0].Header.Get("Authorization"))
	assert.Equal(t, "harvest-cli/dev", calls[0].Header.Get("User-Agent"))
	assert.Equal(t, "1", calls[0].Query.Get("page"))
}

func TestListCommand_TextTable(t *testing.T) {
	h := newRouteHandler().On("GET", "/api/v2/clients", pagedClients(2))
	setupTestEnv(t, h)

	out, _, err := runCLI(t, "", "list", "clients")
	require.NoError(t, err)
	assert.Contains(t, out, "Client 1")
	assert.Contains(t, out, "Client 2")
	assert.Contains(t, strings.ToUpper(out), "NAME")
}

func TestListCommand_EmptyText(t *testing.T) {
	h := newRouteHandler().On("GET", "/api/v2/clients", pagedClients(0))
	setupTestEnv(t, h)

	out, errOut, err := runCLI(t, "", "list", "clients")
	require.NoError(t, err)
	assert.Empty(t, out)
	assert.Contains(t, errOut, "No results.")
}

func TestListCommand_LimitTranslatesToPages(t *testing.T) {
	h := newRouteHandler().On("GET", "/api/v2/clients", pagedClients(500))
	setupTestEnv(t, h)

	out, _, err := runCLI(t, "", "list", "clients", "--limit", "150", "-o", "json")
	require.NoError(t, err)
	assert.Len(t, decodeJSON[[]any](t, out), 150)

	calls := h.calls()
	require.Len(t, calls, 2)
	assert.Equal(t, "1", calls[0].Query.Get("page"))
	assert.Equal(t, "100", calls[0].Query.Get("per_page"))
	assert.Equal(t, "2", calls[1].Query.Get("page"))
	assert.Equal(t, "50", calls[1].Query.Get("per_page"))
	for _, c := range calls {
		assert.NotContains(t, c.Query, "limit")
	}
}

func TestListCommand_ParamsAndQuery(t *testing.T) {
	h := newRouteHandler().On("GET", "/api/v2/clients", pagedClients(4))
	setupTestEnv(t, h)

	out, _, err := runCLI(t, "", "list", "clients", "-p", "is_active=true", "--param", "updated_since=2024-01-01", "-q", "map(.id)", "-o", "json")
	require.NoError(t, err)
	assert.Equal(t, []any{float64(1), float64(2), float64(3), float64(4)}, decodeJSON[[]any](t, out))

	q := h.calls()[0].Query
	assert.Equal(t, "true", q.Get("is_active"))
	assert.Equal(t, "2024-01-01", q.Get("updated_since"))
}

func TestListCommand_JSONL(t *testing.T) {
	h := newRouteHandler().On("GET", "/api/v2/clients", pagedClients(3))
	setupTestEnv(t, h)

	out, _, err := runCLI(t, "", "list", "clients", "-o", "jsonl")
	require.NoError(t, err)
	assert.Len(t, strings.Split(strings.TrimSpace(out), "\n"), 3)
}

func TestListCommand_ViaParent(t *testing.T) {
	h := newRouteHandler().On("GET", "/api/v2/invoices/42/messages",
		jsonResponse(http.StatusOK, `{"invoice_messages":[{"id":7,"subject":"Invoice #1001"}],"next_page":null}`))
	setupTestEnv(t, h)

	out, _, err := runCLI(t, "", "list", "messages", "--via", "invoices:42", "-o", "json")
	require.NoError(t, err)

	items := decodeJSON[[]map[string]any](t, out)
	require.Len(t, items, 1)
	assert.Equal(t, "Invoice #1001", items[0]["subject"])
}

func TestListCommand_ViaUnknownPipe(t *testing.T) {
	setupTestEnv(t, newRouteHandler())

	_, errOut, err := runCLI(t, "", "list", "tasks", "--via", "invoices:42")
	require.Error(t, err)
	assert.Equal(t, exitUsage, ExitCode(err))
	assert.NotEmpty(t, errOut)
}

func TestListCommand_Raw(t *testing.T) {
	h := newRouteHandler().On("GET", "/api/v2/clients", pagedClients(250))
	setupTestEnv(t, h)

	out, _, err := runCLI(t, "", "list", "clients", "--raw", "--per-page", "10", "-o", "json")
	require.NoError(t, err)

	envelope := decodeJSON[map[string]any](t, out)
	assert.Equal(t, float64(2), envelope["next_page"])
	assert.Len(t, envelope["clients"], 10)
	assert.Len(t, h.calls(), 1)
}

func TestListCommand_SingleResourceIsRaw(t *testing.T) {
	h := newRouteHandler().On("GET", "/api/v2/company",
		jsonResponse(http.StatusOK, `{"name":"ABC Corp","base_uri":"https://abc.harvestapp.com"}`))
	setupTestEnv(t, h)

	out, _, err := runCLI(t, "", "list", "company", "-o", "json")
	require.NoError(t, err)
	assert.Equal(t, "ABC Corp", decodeJSON[map[string]any](t, out)["name"])
}

func TestListCommand_ReportsCollectionKey(t *testing.T) {
	h := newRouteHandler().On("GET", "/api/v2/reports/time/team",
		jsonResponse(http.StatusOK, `{"results":[{"user_name":"Ann","total_hours":12.5}],"next_page":null}`))
	setupTestEnv(t, h)

	out, _, err := runCLI(t, "", "list", "reports", "-p", "from=20240101", "-p", "to=20240131", "-o", "json")
	require.NoError(t, err)
	assert.Len(t, decodeJSON[[]any](t, out), 1)
}

func TestListCommand_UnknownResource(t *testing.T) {
	setupTestEnv(t, newRouteHandler())

	_, errOut, err := runCLI(t, "", "list", "invoce")
	require.Error(t, err)
	assert.Equal(t, exitUsage, ExitCode(err))
	assert.Contains(t, errOut, "invoices")
	assert.Contains(t, errOut, "harvest resources")
}

func TestListCommand_ResourceNameNormalized(t *testing.T) {
	h := newRouteHandler().On("GET", "/api/v2/time_entries",
		jsonResponse(http.StatusOK, `{"time_entries":[],"next_page":null}`))
	setupTestEnv(t, h)

	_, _, err := runCLI(t, "", "list", "Time-Entries", "-o", "json")
	require.NoError(t, err)
	require.Len(t, h.calls(), 1)
}

func TestListCommand_FlagValidation(t *testing.T) {
	setupTestEnv(t, newRouteHandler())

	tests := [][]string{
		{"list", "clients", "--per-page", "101"},
		{"list", "clients", "--limit", "-1"},
		{"list", "clients", "--param", "novalue"},
		{"list", "clients", "--via", "invoices"},
		{"list", "clients", "-o", "yaml"},
		{"list", "clients", "--timeout", "0s"},
		{"list"},
	}
	for _, args := range tests {
		_, _, err := runCLI(t, "", args...)
		require.Error(t, err, args)
		assert.Equal(t, exitUsage, ExitCode(err), args)
	}
}

func TestListCommand_APIErrors(t *testing.T) {
	tests := []struct {
		status int
		header map[string]string
		code   int
		hint   string
	}{
		{status: http.StatusUnauthorized, code: exitAuth, hint: "harvest auth login"},
		{status: http.StatusForbidden, code: exitAuth, hint: "harvest auth login"},
		{status: http.StatusTooManyRequests, header: map[string]string{"Retry-After": "15"}, code: exitRateLimited, hint: "Retry after 15s"},
		{status: http.StatusInternalServerError, code: exitGeneric, hint: "server error"},
	}

	for _, tt := range tests {
		h := newRouteHandler().On("GET", "/api/v2/clients", func(w http.ResponseWriter, r *http.Request) {
			for k, v := range tt.header {
				w.Header().Set(k, v)
			}
			jsonResponse(tt.status, `{"error":"nope"}`)(w, r)
		})
		setupTestEnv(t, h)

		_, errOut, err := runCLI(t, "", "list", "clients")
		require.Error(t, err, tt.status)
		assert.Equal(t, tt.code, ExitCode(err), tt.status)
		assert.Contains(t, errOut, tt.hint, tt.status)
	}
}

func TestListCommand_NotConfigured(t *testing.T) {
	setupTestEnv(t, newRouteHandler())
	t.Setenv("HARVEST_ACCOUNT_ID", "")
	t.Setenv("HARVEST_TOKEN", "")
	useTestKeyring(t)

	_, errOut, err := runCLI(t, "", "list", "clients")
	require.Error(t, err)
	assert.Equal(t, exitAuth, ExitCode(err))
	assert.Contains(t, errOut, "HARVEST_ACCOUNT_ID")
}

func TestListCommand_DateFlags(t *testing.T) {
	h := newRouteHandler().On("GET", "/api/v2/time_entries",
		jsonResponse(http.StatusOK, `{"time_entries":[],"next_page":null}`))
	setupTestEnv(t, h)

	_, _, err := runCLI(t, "", "list", "time_entries", "--from", "2024-01-01", "--to", "20240131", "--updated-since", "2024-01-15T08:00:00+01:00", "-p", "from=1999-01-01", "-o", "json")
	require.NoError(t, err)

	q := h.calls()[0].Query
	assert.Equal(t, []string{"2024-01-01"}, q["from"])
	assert.Equal(t, "2024-01-31", q.Get("to"))
	assert.Equal(t, "2024-01-15T07:00:00Z", q.Get("updated_since"))

	_, _, err = runCLI(t, "", "list", "time_entries", "--from", "someday")
	require.Error(t, err)
	assert.Equal(t, exitUsage, ExitCode(err))
}

func TestDateFilters(t *testing.T) {
	now := time.Date(2024, time.March, 13, 12, 0, 0, 0, time.UTC)

	filters, err := dateFilters(nil, "", "", "", now)
	require.NoError(t, err)
	assert.Nil(t, filters)

	filters, err = dateFilters(url.Values{"is_running": {"true"}}, "monday", "yesterday", "", now)
	require.NoError(t, err)
	assert.Equal(t, url.Values{"is_running": {"true"}, "from": {"2024-03-11"}, "to": {"2024-03-12"}}, filters)

	_, err = dateFilters(nil, "", "", "later", now)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "--updated-since")
}
