package cmd

import (
	"strings"

	"github.com/spf13/cobra"

	"github.com/harvest/harvest-cli/internal/catalog"
	"github.com/harvest/harvest-cli/internal/iocontext"
	"github.com/harvest/harvest-cli/internal/outfmt"
)

func newResourcesCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "resources",
		Aliases: []string{"res"},
		Short:   "List the resources, actions and pipes the CLI knows",
		Args:    cobra.NoArgs,
		RunE: RunE(func(cmd *cobra.Command, _ []string) error {
			defs, err := catalog.Definitions()
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			if outfmt.IsJSON(ctx) || outfmt.GetQuery(ctx) != "" {
				return output(cmd, defs)
			}

			rows := make([][]string, len(defs))
			for i, def := range defs {
				var actions, pipes []string
				for _, a := range def.Actions {
					actions = append(actions, a.Name)
				}
				for _, p := range def.Pipes {
					pipes = append(pipes, p.Name)
				}
				key := def.CollectionKey
				if def.Single {
					key = "-"
				}
				rows[i] = []string{def.Name, def.Endpoint, key, strings.Join(actions, ", "), strings.Join(pipes, ", ")}
			}
			streams := iocontext.FromContext(ctx)
			return outfmt.NewFormatter(ctx, streams.Out, streams.ErrOut).Table(
				[]string{"Name", "Endpoint", "Collection", "Actions", "Pipes"}, rows)
		}),
	}
}
