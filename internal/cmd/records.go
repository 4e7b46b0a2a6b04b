package cmd

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/harvest/harvest-cli/internal/dryrun"
	"github.com/harvest/harvest-cli/internal/iocontext"
	"github.com/harvest/harvest-cli/internal/outfmt"
	"github.com/harvest/harvest-cli/internal/urlparse"
)

func newGetCmd() *cobra.Command {
	var viaFlag string

	cmd := &cobra.Command{
		Use:   "get <resource> <id> | get <harvest-url>",
		Short: "Show a single record",
		Example: `  harvest get clients 5735776
  harvest get messages 9 --via invoices:42
  harvest get https://acme.harvestapp.com/invoices/13150403`,
		Args: cobra.RangeArgs(1, 2),
		RunE: RunE(func(cmd *cobra.Command, args []string) error {
			v, err := parseVia(viaFlag)
			if err != nil {
				return err
			}
			name, id, err := recordArgs(args)
			if err != nil {
				return err
			}
			if v != nil && len(args) == 1 {
				return usageError(fmt.Errorf("--via cannot be combined with a URL"))
			}
			cat, err := newClientFactory().catalog(cmd.Context())
			if err != nil {
				return err
			}
			r, _, err := target(cat, name, v)
			if err != nil {
				return err
			}
			record, err := r.Find(cmd.Context(), id)
			if err != nil {
				return err
			}
			return output(cmd, record)
		}),
	}
	cmd.Flags().StringVar(&viaFlag, "via", "", "Parent record as parent:id")
	return cmd
}

// recordArgs reads either <resource> <id> or a single web app URL.
func recordArgs(args []string) (name, id string, err error) {
	if len(args) == 2 {
		return args[0], args[1], nil
	}
	if !urlparse.IsURL(args[0]) {
		return "", "", usageError(fmt.Errorf("expected <resource> <id> or a Harvest URL, got %q", args[0]))
	}
	parsed, err := urlparse.Parse(args[0])
	if err != nil {
		return "", "", usageError(err)
	}
	return parsed.Resource, parsed.ID, nil
}

func newCreateCmd() *cobra.Command {
	var (
		data    string
		viaFlag string
	)

	cmd := &cobra.Command{
		Use:   "create <resource>",
		Short: "Create a record from a JSON object",
		Example: `  harvest create clients --data '{"name":"Acme","currency":"EUR"}'
  harvest create payments --via invoices:42 --data @payment.json
  cat entry.json | harvest create time_entries --data -`,
		Args: cobra.ExactArgs(1),
		RunE: RunE(func(cmd *cobra.Command, args []string) error {
			v, err := parseVia(viaFlag)
			if err != nil {
				return err
			}
			body, err := readData(data, cmd.InOrStdin())
			if err != nil {
				return err
			}
			cat, err := newClientFactory().catalog(cmd.Context())
			if err != nil {
				return err
			}
			r, _, err := target(cat, args[0], v)
			if err != nil {
				return err
			}
			record, err := r.Create(cmd.Context(), body)
			if err != nil {
				return err
			}
			return output(cmd, record)
		}),
	}
	cmd.Flags().StringVarP(&data, "data", "d", "", "JSON object, @file or - for stdin")
	cmd.Flags().StringVar(&viaFlag, "via", "", "Parent record as parent:id")
	return cmd
}

func newUpdateCmd() *cobra.Command {
	var (
		data    string
		viaFlag string
	)

	cmd := &cobra.Command{
		Use:     "update <resource> <id>",
		Short:   "Update a record with a JSON object",
		Example: `  harvest update projects 14308069 --data '{"is_active":false}'`,
		Args:    cobra.ExactArgs(2),
		RunE: RunE(func(cmd *cobra.Command, args []string) error {
			v, err := parseVia(viaFlag)
			if err != nil {
				return err
			}
			body, err := readData(data, cmd.InOrStdin())
			if err != nil {
				return err
			}
			cat, err := newClientFactory().catalog(cmd.Context())
			if err != nil {
				return err
			}
			r, _, err := target(cat, args[0], v)
			if err != nil {
				return err
			}
			record, err := r.Update(cmd.Context(), args[1], body)
			if err != nil {
				return err
			}
			return output(cmd, record)
		}),
	}
	cmd.Flags().StringVarP(&data, "data", "d", "", "JSON object, @file or - for stdin")
	cmd.Flags().StringVar(&viaFlag, "via", "", "Parent record as parent:id")
	return cmd
}

func newDeleteCmd() *cobra.Command {
	var (
		concurrency int
		viaFlag     string
	)

	cmd := &cobra.Command{
		Use:     "delete <resource> <id>...",
		Aliases: []string{"rm"},
		Short:   "Delete one or more records",
		Example: "  harvest delete time_entries 636708723 636708724 --concurrency 2",
		Args:    cobra.MinimumNArgs(2),
		RunE: RunE(func(cmd *cobra.Command, args []string) error {
			if concurrency <= 0 {
				return usageError(fmt.Errorf("--concurrency must be positive"))
			}
			v, err := parseVia(viaFlag)
			if err != nil {
				return err
			}
			cat, err := newClientFactory().catalog(cmd.Context())
			if err != nil {
				return err
			}
			r, _, err := target(cat, args[0], v)
			if err != nil {
				return err
			}

			ids := args[1:]
			ctx := cmd.Context()
			if len(ids) == 1 {
				if _, err := r.Delete(ctx, ids[0]); err != nil {
					return err
				}
				if dryrun.IsEnabled(ctx) {
					return nil
				}
				if !outfmt.IsJSON(ctx) {
					_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Deleted %s %s\n", args[0], ids[0])
					return nil
				}
				return output(cmd, []BulkResult{{ID: ids[0], Success: true}})
			}

			var progress io.Writer = iocontext.FromContext(ctx).ErrOut
			if outfmt.IsJSON(ctx) {
				progress = nil
			}
			results := runBulkOperation(ctx, ids, int64(concurrency), progress, func(ctx context.Context, id string) (any, error) {
				return r.Delete(ctx, id)
			})
			if err := output(cmd, results); err != nil {
				return err
			}
			if _, failed := countResults(results); failed > 0 {
				return fmt.Errorf("%d of %d deletions failed", failed, len(results))
			}
			return nil
		}),
	}
	cmd.Flags().IntVar(&concurrency, "concurrency", flags.Concurrency, "Maximum parallel requests")
	cmd.Flags().StringVar(&viaFlag, "via", "", "Parent record as parent:id")
	return cmd
}
