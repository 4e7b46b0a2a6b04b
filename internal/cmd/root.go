package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/harvest/harvest-cli/internal/config"
	"github.com/harvest/harvest-cli/internal/debug"
	"github.com/harvest/harvest-cli/internal/dryrun"
	"github.com/harvest/harvest-cli/internal/iocontext"
	"github.com/harvest/harvest-cli/internal/outfmt"
)

// rootFlags holds global CLI flags
type rootFlags struct {
	Output      string
	Query       string
	Debug       bool
	DryRun      bool
	Timeout     time.Duration
	Profile     string
	Concurrency int
}

// flags holds the global command flags. It is reset at the start of every
// Execute call; nothing may read it outside a command's RunE.
var flags rootFlags

// loadDotEnv loads ~/.harvest/.env when present. Variables already set in
// the environment are not overwritten.
func loadDotEnv() {
	home, err := os.UserHomeDir()
	if err != nil {
		return
	}
	path := filepath.Join(home, ".harvest", ".env")
	if _, err := os.Stat(path); err != nil {
		return
	}
	_ = godotenv.Load(path)
}

// Execute runs the root command
func Execute(ctx context.Context, args []string) error {
	loadDotEnv()

	settings, err := config.LoadSettings(os.Getenv("HARVEST_CONFIG"))
	if err != nil {
		return err
	}
	flags = rootFlags{
		Output:      settings.Output,
		Timeout:     settings.Timeout,
		Profile:     settings.Profile,
		Concurrency: settings.Concurrency,
	}

	root := &cobra.Command{
		Use:           "harvest",
		Short:         "Command line client for the Harvest time tracking API",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()

			mode, err := outfmt.Parse(flags.Output)
			if err != nil {
				return usageError(err)
			}
			if flags.Timeout <= 0 {
				return usageError(fmt.Errorf("--timeout must be positive"))
			}
			ctx = outfmt.WithMode(ctx, mode)
			if flags.Query != "" {
				ctx = outfmt.WithQuery(ctx, flags.Query)
			}

			debug.SetupLoggerTo(cmd.ErrOrStderr(), flags.Debug)
			ctx = debug.WithDebug(ctx, flags.Debug)
			ctx = dryrun.WithDryRun(ctx, flags.DryRun)

			cmd.SetContext(ctx)
			return nil
		},
	}

	streams := iocontext.FromContext(ctx)
	root.SetContext(iocontext.WithIO(ctx, streams))
	root.SetArgs(args)
	root.SetIn(streams.In)
	root.SetOut(streams.Out)
	root.SetErr(streams.ErrOut)
	root.PersistentFlags().StringVarP(&flags.Output, "output", "o", flags.Output, "Output format: text|json|jsonl (env HARVEST_OUTPUT)")
	root.PersistentFlags().StringVarP(&flags.Query, "query", "q", "", "jq expression applied to the result before printing")
	root.PersistentFlags().BoolVar(&flags.Debug, "debug", false, "Log HTTP requests and pagination to stderr")
	root.PersistentFlags().BoolVar(&flags.DryRun, "dry-run", false, "Print create, update, delete and action requests instead of sending them")
	root.PersistentFlags().DurationVar(&flags.Timeout, "timeout", flags.Timeout, "HTTP request timeout (e.g. 30s, 2m)")
	root.PersistentFlags().StringVar(&flags.Profile, "profile", flags.Profile, "Credential profile to use (env HARVEST_PROFILE)")

	root.AddCommand(newAuthCmd())
	root.AddCommand(newResourcesCmd())
	root.AddCommand(newListCmd())
	root.AddCommand(newGetCmd())
	root.AddCommand(newCreateCmd())
	root.AddCommand(newUpdateCmd())
	root.AddCommand(newDeleteCmd())
	root.AddCommand(newCallCmd())
	root.AddCommand(newCompanyCmd())
	root.AddCommand(newVersionCmd())

	if err := root.Execute(); err != nil {
		if !errors.Is(err, errAlreadyHandled) {
			_, _ = fmt.Fprint(root.ErrOrStderr(), HandleError(err))
		}
		return err
	}
	return nil
}
