package outfmt

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/itchyny/gojq"
)

type queryKey struct{}

// WithQuery adds a jq expression to the context
func WithQuery(ctx context.Context, query string) context.Context {
	return context.WithValue(ctx, queryKey{}, query)
}

// GetQuery retrieves the jq expression from context
func GetQuery(ctx context.Context) string {
	if q, ok := ctx.Value(queryKey{}).(string); ok {
		return q
	}
	return ""
}

// ApplyQuery runs a jq expression over v. A single result is returned as is;
// several results are returned as a list.
func ApplyQuery(v any, expression string) (any, error) {
	if strings.TrimSpace(expression) == "" {
		return v, nil
	}

	// Zsh escapes ! to \! even in single quotes.
	expression = strings.ReplaceAll(expression, `\!`, `!`)
	query, err := gojq.Parse(expression)
	if err != nil {
		return nil, fmt.Errorf("invalid query expression: %w", err)
	}

	data, err := toJQValue(v)
	if err != nil {
		return nil, err
	}

	var results []any
	iter := query.Run(data)
	for {
		out, ok := iter.Next()
		if !ok {
			break
		}
		if err, ok := out.(error); ok {
			return nil, fmt.Errorf("query error: %w", err)
		}
		results = append(results, out)
	}

	if len(results) == 1 {
		return results[0], nil
	}
	if results == nil {
		return []any{}, nil
	}
	return results, nil
}

// toJQValue converts decoded API values (json.Number and friends) into the
// plain types gojq operates on.
func toJQValue(v any) (any, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode query input: %w", err)
	}
	var out any
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("decode query input: %w", err)
	}
	return out, nil
}
