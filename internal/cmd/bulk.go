package cmd

import (
	"context"
	"fmt"
	"io"
	"sync"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"
)

// DefaultConcurrency is used when neither flag nor settings set a bound.
const DefaultConcurrency = 4

// BulkResult represents the outcome of a single bulk operation
type BulkResult struct {
	ID      string `json:"id"`
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
	Data    any    `json:"data,omitempty"`
}

// runBulkOperation runs operation for every id with at most concurrency
// calls in flight. Results keep the order of ids. Individual failures are
// recorded, not propagated; cancellation stops dispatching new calls.
func runBulkOperation(
	ctx context.Context,
	ids []string,
	concurrency int64,
	progress io.Writer,
	operation func(ctx context.Context, id string) (any, error),
) []BulkResult {
	if concurrency <= 0 {
		concurrency = DefaultConcurrency
	}

	sem := semaphore.NewWeighted(concurrency)
	results := make([]BulkResult, len(ids))
	var (
		mu   sync.Mutex
		done int
	)

	g, ctx := errgroup.WithContext(ctx)
	for i, id := range ids {
		results[i].ID = id
		g.Go(func() error {
			if err := sem.Acquire(ctx, 1); err != nil {
				results[i].Error = err.Error()
				return nil
			}
			defer sem.Release(1)

			data, err := operation(ctx, id)
			if err != nil {
				results[i].Error = err.Error()
			} else {
				results[i].Success = true
				results[i].Data = data
			}

			if progress != nil {
				mu.Lock()
				done++
				_, _ = fmt.Fprintf(progress, "\rProcessed %d/%d", done, len(ids))
				mu.Unlock()
			}
			return nil
		})
	}
	_ = g.Wait()

	if progress != nil && len(ids) > 0 {
		_, _ = fmt.Fprintln(progress)
	}
	return results
}

// countResults returns success and failure counts from bulk results
func countResults(results []BulkResult) (success, failure int) {
	for _, r := range results {
		if r.Success {
			success++
		} else {
			failure++
		}
	}
	return
}
