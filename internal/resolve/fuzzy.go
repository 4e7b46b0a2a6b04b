// Package resolve matches user-typed names against known catalog names.
package resolve

import (
	"sort"
	"strings"

	"github.com/sahilm/fuzzy"
)

// Normalize lowercases a name and accepts dashes for underscores, so
// "Time-Entries" finds "time_entries".
func Normalize(name string) string {
	return strings.ReplaceAll(strings.ToLower(strings.TrimSpace(name)), "-", "_")
}

// Exact returns the known name equal to query after normalization.
func Exact(query string, names []string) (string, bool) {
	query = Normalize(query)
	if query == "" {
		return "", false
	}
	for _, name := range names {
		if Normalize(name) == query {
			return name, true
		}
	}
	return "", false
}

type lowerSource []string

func (s lowerSource) String(i int) string { return Normalize(s[i]) }
func (s lowerSource) Len() int            { return len(s) }

// Suggest returns up to limit names ranked by fuzzy score (best first).
// Queries that are not a subsequence of any name fall back to edit distance.
func Suggest(query string, names []string, limit int) []string {
	query = Normalize(query)
	if query == "" || len(names) == 0 || limit <= 0 {
		return nil
	}

	results := fuzzy.FindFrom(query, lowerSource(names))
	if len(results) == 0 {
		return closest(query, names, limit)
	}
	if len(results) > limit {
		results = results[:limit]
	}
	out := make([]string, len(results))
	for i, r := range results {
		out[i] = names[r.Index]
	}
	return out
}

// closest ranks names within maxDistance edits of query, nearest first.
func closest(query string, names []string, limit int) []string {
	maxDistance := max(3, len(query)/2)

	type candidate struct {
		name     string
		distance int
	}
	var candidates []candidate
	for _, name := range names {
		if d := levenshtein(query, Normalize(name)); d <= maxDistance {
			candidates = append(candidates, candidate{name: name, distance: d})
		}
	}
	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].distance < candidates[j].distance
	})

	out := []string{}
	for _, c := range candidates {
		if len(out) == limit {
			break
		}
		out = append(out, c.name)
	}
	return out
}

func levenshtein(a, b string) int {
	ra, rb := []rune(a), []rune(b)
	prev := make([]int, len(rb)+1)
	curr := make([]int, len(rb)+1)
	for j := range prev {
		prev[j] = j
	}
	for i := 1; i <= len(ra); i++ {
		curr[0] = i
		for j := 1; j <= len(rb); j++ {
			cost := 1
			if ra[i-1] == rb[j-1] {
				cost = 0
			}
			curr[j] = min(prev[j]+1, curr[j-1]+1, prev[j-1]+cost)
		}
		prev, curr = curr, prev
	}
	return prev[len(rb)]
}
