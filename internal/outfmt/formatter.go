package outfmt

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/olekukonko/tablewriter"
)

// preferredColumns are shown first, in this order, when present in the
// records of a list.
var preferredColumns = []string{
	"id", "name", "first_name", "last_name", "email", "subject", "number",
	"client", "project", "task", "spent_date", "hours", "amount", "state",
	"is_active", "updated_at",
}

const maxColumns = 6

// Formatter handles output formatting for commands.
type Formatter struct {
	ctx    context.Context
	out    io.Writer
	errOut io.Writer
}

// NewFormatter creates a new Formatter
func NewFormatter(ctx context.Context, out, errOut io.Writer) *Formatter {
	return &Formatter{ctx: ctx, out: out, errOut: errOut}
}

// Output applies the context's jq query to data and writes it in the
// context's mode. Text mode renders lists of records as a table and single
// records as a property table.
func (f *Formatter) Output(data any) error {
	data, err := normalize(data)
	if err != nil {
		return err
	}
	data, err = ApplyQuery(data, GetQuery(f.ctx))
	if err != nil {
		return err
	}

	switch ModeFromContext(f.ctx) {
	case JSON:
		return WriteJSON(f.out, data)
	case JSONL:
		return WriteJSONL(f.out, data)
	}

	switch v := data.(type) {
	case []any:
		if len(v) == 0 {
			f.Empty("No results.")
			return nil
		}
		if columns := Columns(v); len(columns) > 0 {
			rows := make([][]string, len(v))
			for i, item := range v {
				record, _ := item.(map[string]any)
				rows[i] = make([]string, len(columns))
				for j, col := range columns {
					rows[i][j] = Cell(record[col])
				}
			}
			return f.Table(columns, rows)
		}
		for _, item := range v {
			if _, err := fmt.Fprintln(f.out, Cell(item)); err != nil {
				return err
			}
		}
		return nil
	case map[string]any:
		keys := make([]string, 0, len(v))
		for key := range v {
			keys = append(keys, key)
		}
		sort.Strings(keys)
		rows := make([][]string, len(keys))
		for i, key := range keys {
			rows[i] = []string{key, Cell(v[key])}
		}
		return f.Table([]string{"Field", "Value"}, rows)
	case nil:
		return nil
	default:
		_, err := fmt.Fprintln(f.out, Cell(v))
		return err
	}
}

// normalize converts typed values (structs, typed slices) into the generic
// shapes decoded API responses already have.
func normalize(data any) (any, error) {
	switch data.(type) {
	case nil, []any, map[string]any, string, json.Number, bool, float64:
		return data, nil
	}
	return toJQValue(data)
}

// Table renders rows under headers.
func (f *Formatter) Table(headers []string, rows [][]string) error {
	table := tablewriter.NewWriter(f.out)
	header := make([]any, len(headers))
	for i, h := range headers {
		header[i] = h
	}
	table.Header(header...)
	for _, row := range rows {
		if err := table.Append(row); err != nil {
			return err
		}
	}
	return table.Render()
}

// Empty writes a message to stderr indicating no results.
func (f *Formatter) Empty(message string) {
	_, _ = fmt.Fprintln(f.errOut, message)
}

// Columns picks the table columns for a list of records: preferred keys
// first, then remaining keys alphabetically, at most maxColumns. It returns
// nil when the list holds no objects.
func Columns(items []any) []string {
	present := map[string]bool{}
	for _, item := range items {
		record, ok := item.(map[string]any)
		if !ok {
			continue
		}
		for key := range record {
			present[key] = true
		}
	}
	if len(present) == 0 {
		return nil
	}

	var columns []string
	for _, key := range preferredColumns {
		if present[key] {
			columns = append(columns, key)
			delete(present, key)
		}
	}
	rest := make([]string, 0, len(present))
	for key := range present {
		rest = append(rest, key)
	}
	sort.Strings(rest)
	columns = append(columns, rest...)

	if len(columns) > maxColumns {
		columns = columns[:maxColumns]
	}
	return columns
}

// Cell renders one value for a table. Nested records show their name (or
// id); lists and other structures are shown as compact JSON.
func Cell(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case json.Number:
		return val.String()
	case map[string]any:
		for _, key := range []string{"name", "id"} {
			if inner, ok := val[key]; ok && inner != nil {
				return Cell(inner)
			}
		}
	case fmt.Stringer:
		return val.String()
	case bool, int, int64, float64:
		return fmt.Sprint(val)
	}
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprint(v)
	}
	return strings.TrimSpace(string(data))
}
