package cmd

import (
	"io"
	"net/http"
	"testing"

	"github.com/99designs/keyring"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harvest/harvest-cli/internal/config"
)

// useTestKeyring swaps the OS keychain for an in-memory one and drops the
// environment credentials so commands fall back to stored profiles.
func useTestKeyring(t *testing.T) keyring.Keyring {
	t.Helper()
	ring := keyring.NewArrayKeyring(nil)
	t.Cleanup(config.SetOpenKeyring(func(keyring.Config) (keyring.Keyring, error) {
		return ring, nil
	}))
	t.Setenv("HARVEST_ACCOUNT_ID", "")
	t.Setenv("HARVEST_TOKEN", "")
	t.Setenv("HARVEST_BASE_URL", "")
	return ring
}

func stubTerminal(t *testing.T, isTTY bool, secret string) {
	t.Helper()
	origTTY, origRead := stdinIsTerminal, readSecret
	stdinIsTerminal = func(any) bool { return isTTY }
	readSecret = func(io.Reader) (string, error) { return secret, nil }
	t.Cleanup(func() {
		stdinIsTerminal, readSecret = origTTY, origRead
	})
}

func meHandler() *routeHandler {
	return newRouteHandler().On("GET", "/api/v2/users/me",
		jsonResponse(http.StatusOK, `{"id":1782959,"first_name":"Kim","last_name":"Allen","email":"kim@example.com"}`))
}

func TestAuthLogin_SavesVerifiedProfile(t *testing.T) {
	h := meHandler()
	server := setupTestEnv(t, h)
	useTestKeyring(t)
	stubTerminal(t, false, "")

	out, _, err := runCLI(t, "", "auth", "login",
		"--account-id", "123456",
		"--token", "abcd1234efgh5678",
		"--app-name", "Invoicer (ops@example.com)",
		"--base-url", server.URL+"/api/v2")
	require.NoError(t, err)
	assert.Contains(t, out, `Saved credentials for account 123456 to profile "default"`)
	assert.Contains(t, out, "Logged in as Kim Allen (kim@example.com)")

	calls := h.calls()
	require.Len(t, calls, 1)
	assert.Equal(t, "123456", calls[0].Header.Get("Harvest-Account-ID"))
	assert.Equal(t, "Bearer abcd1234efgh5678", calls[0].Header.Get("Authorization"))
	assert.Equal(t, "Invoicer (ops@example.com)", calls[0].Header.Get("User-Agent"))

	account, err := config.LoadAccount("")
	require.NoError(t, err)
	assert.Equal(t, "123456", account.AccountID)
	assert.Equal(t, "abcd1234efgh5678", account.Token)
}

func TestAuthLogin_TokenFromStdin(t *testing.T) {
	server := setupTestEnv(t, meHandler())
	useTestKeyring(t)
	stubTerminal(t, false, "")

	_, _, err := runCLI(t, "piped-token\n", "auth", "login", "--account-id", "1", "--base-url", server.URL+"/api/v2", "--profile", "work")
	require.NoError(t, err)

	account, err := config.LoadProfile("work")
	require.NoError(t, err)
	assert.Equal(t, "piped-token", account.Token)

	current, err := config.CurrentProfile()
	require.NoError(t, err)
	assert.Equal(t, "work", current)
}

func TestAuthLogin_TokenFromPrompt(t *testing.T) {
	setupTestEnv(t, newRouteHandler())
	useTestKeyring(t)
	stubTerminal(t, true, " secret-token ")

	out, errOut, err := runCLI(t, "", "auth", "login", "--account-id", "1", "--no-verify", "-o", "json")
	require.NoError(t, err)
	assert.Contains(t, errOut, "Personal access token:")
	assert.Equal(t, "1", decodeJSON[map[string]any](t, out)["account_id"])

	account, err := config.LoadProfile("")
	require.NoError(t, err)
	assert.Equal(t, "secret-token", account.Token)
}

func TestAuthLogin_Rejected(t *testing.T) {
	h := newRouteHandler().On("GET", "/api/v2/users/me",
		jsonResponse(http.StatusUnauthorized, `{"error":"invalid_token","error_description":"The access token provided is expired, revoked, malformed or invalid for other reasons."}`))
	server := setupTestEnv(t, h)
	useTestKeyring(t)
	stubTerminal(t, false, "")

	_, errOut, err := runCLI(t, "", "auth", "login", "--account-id", "1", "--token", "bad", "--base-url", server.URL+"/api/v2")
	require.Error(t, err)
	assert.Equal(t, exitAuth, ExitCode(err))
	assert.Contains(t, errOut, "invalid_token")

	_, err = config.LoadProfile("")
	assert.ErrorIs(t, err, config.ErrNotConfigured, "rejected credentials must not be saved")
}

func TestAuthLogin_InvalidInput(t *testing.T) {
	setupTestEnv(t, newRouteHandler())
	useTestKeyring(t)
	stubTerminal(t, false, "")

	tests := [][]string{
		{"auth", "login", "--account-id", "abc", "--token", "t", "--no-verify"},
		{"auth", "login", "--token", "t", "--no-verify"},
		{"auth", "login", "--account-id", "1", "--no-verify"},
		{"auth", "login", "--account-id", "1", "--token", "t", "--subdomain", "not a host", "--no-verify"},
	}
	for _, args := range tests {
		_, _, err := runCLI(t, "", args...)
		require.Error(t, err, args)
		assert.Equal(t, exitUsage, ExitCode(err), args)
	}
}

func TestAuthStatus(t *testing.T) {
	setupTestEnv(t, newRouteHandler())

	out, _, err := runCLI(t, "", "auth", "status", "-o", "json")
	require.NoError(t, err)
	status := decodeJSON[map[string]any](t, out)
	assert.Equal(t, "environment", status["source"])
	assert.Equal(t, "123", status["account_id"])
	assert.Equal(t, "test********oken", status["token"])
	assert.Equal(t, "harvest-cli/dev", status["user_agent"])

	useTestKeyring(t)
	require.NoError(t, config.SaveProfile("work", config.Account{AccountID: "99", Token: "abcd1234efgh5678", Subdomain: "acme"}))

	out, _, err = runCLI(t, "", "auth", "status", "-o", "json")
	require.NoError(t, err)
	status = decodeJSON[map[string]any](t, out)
	assert.Equal(t, "keychain", status["source"])
	assert.Equal(t, "work", status["profile"])
	assert.Equal(t, "abcd********5678", status["token"])
	assert.Equal(t, "https://acme.harvestapp.com/api/v2/", status["base_url"])
}

func TestAuthLogout(t *testing.T) {
	setupTestEnv(t, newRouteHandler())
	useTestKeyring(t)
	require.NoError(t, config.SaveProfile("", config.Account{AccountID: "1", Token: "t"}))

	out, _, err := runCLI(t, "", "auth", "logout")
	require.NoError(t, err)
	assert.Equal(t, "Removed profile \"default\".\n", out)

	_, _, err = runCLI(t, "", "auth", "status")
	require.Error(t, err)
	assert.Equal(t, exitAuth, ExitCode(err))
}

func TestAuthList(t *testing.T) {
	setupTestEnv(t, newRouteHandler())
	useTestKeyring(t)

	_, stderr, err := runCLI(t, "", "auth", "list")
	require.NoError(t, err)
	assert.Contains(t, stderr, "No profiles stored")

	require.NoError(t, config.SaveProfile("work", config.Account{AccountID: "99", Token: "t1"}))
	require.NoError(t, config.SaveProfile("home", config.Account{AccountID: "42", Token: "t2"}))

	out, _, err := runCLI(t, "", "auth", "list", "-o", "json")
	require.NoError(t, err)
	rows := decodeJSON[[]map[string]any](t, out)
	require.Len(t, rows, 2)

	byName := map[string]map[string]any{}
	for _, row := range rows {
		byName[row["profile"].(string)] = row
	}
	assert.Equal(t, true, byName["home"]["current"])
	assert.Equal(t, "42", byName["home"]["account_id"])
	assert.Equal(t, false, byName["work"]["current"])
	assert.Equal(t, "99", byName["work"]["account_id"])
}

func TestAuthUse(t *testing.T) {
	setupTestEnv(t, newRouteHandler())
	useTestKeyring(t)
	require.NoError(t, config.SaveProfile("work", config.Account{AccountID: "99", Token: "abcd1234efgh5678"}))
	require.NoError(t, config.SaveProfile("home", config.Account{AccountID: "42", Token: "t2"}))

	out, _, err := runCLI(t, "", "auth", "use", "work")
	require.NoError(t, err)
	assert.Equal(t, "Current profile: work (account 99)\n", out)

	current, err := config.CurrentProfile()
	require.NoError(t, err)
	assert.Equal(t, "work", current)

	out, _, err = runCLI(t, "", "auth", "status", "-o", "json")
	require.NoError(t, err)
	status := decodeJSON[map[string]any](t, out)
	assert.Equal(t, "work", status["profile"])
	assert.Equal(t, "99", status["account_id"])
}

func TestAuthUse_UnknownProfile(t *testing.T) {
	setupTestEnv(t, newRouteHandler())
	useTestKeyring(t)
	require.NoError(t, config.SaveProfile("work", config.Account{AccountID: "99", Token: "t1"}))

	_, _, err := runCLI(t, "", "auth", "use", "nope")
	require.Error(t, err)
	assert.Equal(t, exitAuth, ExitCode(err))

	current, err := config.CurrentProfile()
	require.NoError(t, err)
	assert.Equal(t, "work", current)
}

func TestMaskToken(t *testing.T) {
	assert.Equal(t, "", maskToken(""))
	assert.Equal(t, "********", maskToken("12345678"))
	assert.Equal(t, "1234********6789", maskToken("123456789"))
}
