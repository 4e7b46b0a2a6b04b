package cmd

import (
	"errors"
	"fmt"
	"strings"

	"github.com/harvest/harvest-cli/internal/api"
	"github.com/harvest/harvest-cli/internal/catalog"
	"github.com/harvest/harvest-cli/internal/config"
)

// HandleError renders an error with suggestions for the user.
func HandleError(err error) string {
	if err == nil {
		return ""
	}

	var msg strings.Builder

	var (
		apiErr       *api.APIError
		rateLimitErr *api.RateLimitError
		authErr      *api.AuthError
		unknownErr   *catalog.UnknownResourceError
	)

	switch {
	case errors.As(err, &rateLimitErr):
		msg.WriteString("Rate limit exceeded.\n\n")
		msg.WriteString("Suggestions:\n")
		if rateLimitErr.RetryAfter > 0 {
			fmt.Fprintf(&msg, "  - Retry after %s\n", rateLimitErr.RetryAfter)
		} else {
			msg.WriteString("  - Wait a few seconds and retry\n")
		}
		msg.WriteString("  - Lower --concurrency for bulk commands\n")

	case errors.As(err, &authErr):
		fmt.Fprintf(&msg, "Authentication failed (HTTP %d): %s\n\n", authErr.StatusCode, authErr.Reason)
		msg.WriteString("Suggestions:\n")
		msg.WriteString("  - Run: harvest auth login\n")
		msg.WriteString("  - Check that the token belongs to the account ID in use\n")

	case errors.Is(err, config.ErrNotConfigured):
		fmt.Fprintf(&msg, "Error: %s\n\n", err)
		fmt.Fprintf(&msg, "Alternatively set %s and %s.\n", config.EnvAccountID, config.EnvToken)

	case errors.As(err, &unknownErr):
		fmt.Fprintf(&msg, "Error: %s\n\n", err)
		msg.WriteString("Run: harvest resources\n")

	case errors.As(err, &apiErr):
		fmt.Fprintf(&msg, "API error (HTTP %d): %s\n\n", apiErr.StatusCode, apiErr.Body)
		msg.WriteString(suggestionsForStatusCode(apiErr.StatusCode))
		if apiErr.RequestID != "" {
			fmt.Fprintf(&msg, "\nRequest ID: %s\n", apiErr.RequestID)
		}

	case api.IsTimeout(err):
		fmt.Fprintf(&msg, "Request timed out: %s\n\n", err)
		msg.WriteString("Suggestions:\n")
		msg.WriteString("  - Raise --timeout\n")
		msg.WriteString("  - Narrow the request with --limit or --param filters\n")

	default:
		fmt.Fprintf(&msg, "Error: %s\n", err)
	}

	return msg.String()
}

func suggestionsForStatusCode(code int) string {
	var suggestions strings.Builder
	suggestions.WriteString("Suggestions:\n")

	switch code {
	case 400:
		suggestions.WriteString("  - Check your request parameters\n")
		suggestions.WriteString("  - Use --debug to see the full request\n")
	case 404:
		suggestions.WriteString("  - Check the ID is correct\n")
		suggestions.WriteString("  - Nested records need --via parent:id\n")
	case 422:
		suggestions.WriteString("  - Validation failed; check the --data fields\n")
	case 500, 502, 503, 504:
		suggestions.WriteString("  - Harvest returned a server error; wait and retry\n")
	default:
		suggestions.WriteString("  - Use --debug for more details\n")
	}

	return suggestions.String()
}
