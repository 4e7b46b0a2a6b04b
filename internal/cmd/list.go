package cmd

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/harvest/harvest-cli/internal/dates"
	"github.com/harvest/harvest-cli/internal/resource"
)

func newListCmd() *cobra.Command {
	var (
		limit   int
		page    int
		perPage int
		params  []string
		raw     bool
		viaFlag string
		from    string
		to      string
		since   string
	)

	cmd := &cobra.Command{
		Use:     "list <resource>",
		Aliases: []string{"ls"},
		Short:   "List records of a resource",
		Long: `List records of a resource.

Without --page every page is fetched and concatenated. --limit caps the
number of records and is translated into page/per_page requests; it is never
sent to Harvest. --raw prints the first page envelope, pagination fields
included.`,
		Example: `  harvest list clients --param is_active=true
  harvest list time_entries --limit 250 --from monday
  harvest list reports --from "2w ago" --to yesterday
  harvest list invoices --updated-since "3d ago"
  harvest list messages --via invoices:42
  harvest list projects --page 2 --per-page 50 --raw`,
		Args: cobra.ExactArgs(1),
		RunE: RunE(func(cmd *cobra.Command, args []string) error {
			if limit < 0 || page < 0 || perPage < 0 {
				return usageError(fmt.Errorf("--limit, --page and --per-page must not be negative"))
			}
			if perPage > resource.MaxPerPage {
				return usageError(fmt.Errorf("--per-page must be at most %d", resource.MaxPerPage))
			}
			v, err := parseVia(viaFlag)
			if err != nil {
				return err
			}
			filters, err := parseParams(params)
			if err != nil {
				return err
			}
			filters, err = dateFilters(filters, from, to, since, time.Now())
			if err != nil {
				return err
			}

			cat, err := newClientFactory().catalog(cmd.Context())
			if err != nil {
				return err
			}
			r, def, err := target(cat, args[0], v)
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			p := resource.ListParams{Limit: limit, Page: page, PerPage: perPage, Filters: filters}
			if raw || def.Single {
				envelope, err := r.Raw(ctx, p)
				if err != nil {
					return err
				}
				return output(cmd, envelope)
			}

			items, err := r.List(ctx, p)
			if err != nil {
				return err
			}
			return output(cmd, items)
		}),
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 0, "Maximum number of records to return")
	cmd.Flags().IntVar(&page, "page", 0, "Fetch only this page")
	cmd.Flags().IntVar(&perPage, "per-page", 0, fmt.Sprintf("Records per page (max %d)", resource.MaxPerPage))
	cmd.Flags().StringArrayVarP(&params, "param", "p", nil, "Query filter as key=value (repeatable)")
	cmd.Flags().BoolVar(&raw, "raw", false, "Print the response envelope of a single page")
	cmd.Flags().StringVar(&viaFlag, "via", "", "List records nested under parent:id (e.g. invoices:42)")
	cmd.Flags().StringVar(&from, "from", "", "Only records on or after this date (from filter)")
	cmd.Flags().StringVar(&to, "to", "", "Only records on or before this date (to filter)")
	cmd.Flags().StringVar(&since, "updated-since", "", "Only records updated since this time")
	return cmd
}

// dateFilters sets the from, to and updated_since filters from date
// expressions, replacing any --param value for the same key.
func dateFilters(filters url.Values, from, to, since string, now time.Time) (url.Values, error) {
	set := func(key, expr string, format func(string, time.Time) (string, error)) error {
		if expr == "" {
			return nil
		}
		value, err := format(expr, now)
		if err != nil {
			return usageError(fmt.Errorf("--%s: %w", strings.ReplaceAll(key, "_", "-"), err))
		}
		if filters == nil {
			filters = url.Values{}
		}
		filters.Set(key, value)
		return nil
	}

	if err := set("from", from, dates.Day); err != nil {
		return nil, err
	}
	if err := set("to", to, dates.Day); err != nil {
		return nil, err
	}
	if err := set("updated_since", since, dates.Timestamp); err != nil {
		return nil, err
	}
	return filters, nil
}
