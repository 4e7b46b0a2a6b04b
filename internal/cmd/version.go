package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/harvest/harvest-cli/internal/outfmt"
	"github.com/harvest/harvest-cli/internal/update"
)

// version is set at build time via ldflags
var version = "dev"

// newUpdateChecker is replaced in tests.
var newUpdateChecker = update.NewChecker

func newVersionCmd() *cobra.Command {
	var check bool

	cmd := &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		RunE: RunE(func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			if !check {
				if outfmt.IsJSON(ctx) {
					return output(cmd, map[string]any{"version": version})
				}
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "harvest-cli version %s\n", version)
				return nil
			}

			result, err := newUpdateChecker().Check(ctx, version)
			if err != nil {
				return err
			}
			if result == nil {
				result = &update.CheckResult{CurrentVersion: version}
			}
			if outfmt.IsJSON(ctx) {
				return output(cmd, result)
			}

			out := cmd.OutOrStdout()
			_, _ = fmt.Fprintf(out, "harvest-cli version %s\n", version)
			switch {
			case result.UpdateAvailable:
				_, _ = fmt.Fprintf(out, "Update available: %s -> %s\n", result.CurrentVersion, result.LatestVersion)
				if result.UpdateURL != "" {
					_, _ = fmt.Fprintf(out, "Download: %s\n", result.UpdateURL)
				}
			case result.LatestVersion != "":
				_, _ = fmt.Fprintln(out, "Up to date.")
			default:
				_, _ = fmt.Fprintln(out, "Development build; skipping update check.")
			}
			return nil
		}),
	}
	cmd.Flags().BoolVar(&check, "check", false, "Check whether a newer release exists")
	return cmd
}
