package cmd

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/harvest/harvest-cli/internal/iocontext"
	"github.com/harvest/harvest-cli/internal/outfmt"
)

// errAlreadyHandled signals that the error was already printed to stderr.
var errAlreadyHandled = errors.New("error already handled")

type handledError struct {
	err error
}

func (e *handledError) Error() string {
	return e.err.Error()
}

func (e *handledError) Unwrap() []error {
	return []error{errAlreadyHandled, e.err}
}

// errUsage marks bad invocations (malformed flags or arguments).
var errUsage = errors.New("usage error")

type usageErr struct {
	err error
}

func (e *usageErr) Error() string   { return e.err.Error() }
func (e *usageErr) Unwrap() []error { return []error{errUsage, e.err} }

func usageError(err error) error {
	return &usageErr{err: err}
}

// RunE prints a failing command's error with suggestions and returns it
// marked as handled.
func RunE(fn func(cmd *cobra.Command, args []string) error) func(cmd *cobra.Command, args []string) error {
	return func(cmd *cobra.Command, args []string) error {
		err := fn(cmd, args)
		if err == nil {
			return nil
		}
		_, _ = fmt.Fprint(cmd.ErrOrStderr(), HandleError(err))
		return &handledError{err: err}
	}
}

// output writes v in the selected format.
func output(cmd *cobra.Command, v any) error {
	streams := iocontext.FromContext(cmd.Context())
	return outfmt.NewFormatter(cmd.Context(), streams.Out, streams.ErrOut).Output(v)
}

// readData decodes a --data value: inline JSON, @path, or "-" for stdin.
// The result must be a JSON object.
func readData(value string, stdin io.Reader) (map[string]any, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil, usageError(fmt.Errorf("--data is required"))
	}

	var raw []byte
	switch {
	case value == "-":
		data, err := io.ReadAll(stdin)
		if err != nil {
			return nil, fmt.Errorf("read --data from stdin: %w", err)
		}
		raw = data
	case strings.HasPrefix(value, "@"):
		data, err := os.ReadFile(strings.TrimPrefix(value, "@"))
		if err != nil {
			return nil, fmt.Errorf("read --data file: %w", err)
		}
		raw = data
	default:
		raw = []byte(value)
	}

	dec := json.NewDecoder(strings.NewReader(string(raw)))
	dec.UseNumber()
	var body map[string]any
	if err := dec.Decode(&body); err != nil {
		return nil, usageError(fmt.Errorf("--data must be a JSON object: %w", err))
	}
	if body == nil {
		return nil, usageError(fmt.Errorf("--data must be a JSON object"))
	}
	return body, nil
}

// parseParams turns repeated key=value flags into query filters.
func parseParams(pairs []string) (url.Values, error) {
	if len(pairs) == 0 {
		return nil, nil
	}
	values := url.Values{}
	for _, pair := range pairs {
		key, value, ok := strings.Cut(pair, "=")
		key = strings.TrimSpace(key)
		if !ok || key == "" {
			return nil, usageError(fmt.Errorf("invalid --param %q: expected key=value", pair))
		}
		values.Add(key, value)
	}
	return values, nil
}

// via is a parsed --via parent:id selector.
type via struct {
	Parent string
	ID     string
}

func parseVia(value string) (*via, error) {
	if value == "" {
		return nil, nil
	}
	parent, id, ok := strings.Cut(value, ":")
	parent, id = strings.TrimSpace(parent), strings.TrimSpace(id)
	if !ok || parent == "" || id == "" {
		return nil, usageError(fmt.Errorf("invalid --via %q: expected parent:id (e.g. invoices:42)", value))
	}
	return &via{Parent: parent, ID: id}, nil
}
