package cmd

import (
	"errors"
	"strings"

	"github.com/spf13/pflag"

	"github.com/harvest/harvest-cli/internal/api"
	"github.com/harvest/harvest-cli/internal/catalog"
	"github.com/harvest/harvest-cli/internal/config"
	"github.com/harvest/harvest-cli/internal/resource"
)

const (
	exitOK          = 0
	exitGeneric     = 1
	exitUsage       = 2
	exitAuth        = 3
	exitNotFound    = 4
	exitRateLimited = 5
)

// ExitCode maps an error to a process exit code.
func ExitCode(err error) int {
	switch {
	case err == nil, errors.Is(err, pflag.ErrHelp):
		return exitOK
	case api.IsAuthError(err), errors.Is(err, config.ErrNotConfigured):
		return exitAuth
	case api.IsNotFoundError(err):
		return exitNotFound
	case api.IsRateLimitError(err):
		return exitRateLimited
	case errors.Is(err, errUsage),
		errors.Is(err, catalog.ErrUnknownResource),
		errors.Is(err, resource.ErrUnknownAction),
		errors.Is(err, resource.ErrUnknownPipe),
		isCobraUsageError(err):
		return exitUsage
	default:
		return exitGeneric
	}
}

// isCobraUsageError recognizes argument and flag errors raised by cobra and
// pflag, which are plain fmt errors.
func isCobraUsageError(err error) bool {
	msg := strings.ToLower(err.Error())
	for _, indicator := range []string{
		"unknown command",
		"unknown flag",
		"unknown shorthand flag",
		"flag needs an argument",
		"invalid argument",
		"accepts ",
		"requires at least",
		"required flag",
	} {
		if strings.Contains(msg, indicator) {
			return true
		}
	}
	return false
}
