package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/harvest/harvest-cli/internal/resource"
)

func newCallCmd() *cobra.Command {
	var viaFlag string

	cmd := &cobra.Command{
		Use:   "call <resource> <action> [args...]",
		Short: "Invoke a custom action of a resource",
		Long: `Invoke a custom action of a resource.

Arguments fill the placeholders of the action path in order, e.g. the id of
"invoices sent". Run "harvest resources" to see the available actions.`,
		Example: `  harvest call invoices sent 13150403
  harvest call time_entries stop 636708723
  harvest call users me`,
		Args: cobra.MinimumNArgs(2),
		RunE: RunE(func(cmd *cobra.Command, args []string) error {
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

			name := strings.ToLower(args[1])
			action, ok := r.Action(name)
			if !ok {
				return fmt.Errorf("%w %q on %s (available: %s)", resource.ErrUnknownAction, args[1], args[0], strings.Join(r.Actions(), ", "))
			}
			if missing := len(action.Slots) - len(args[2:]); missing > 0 {
				return usageError(fmt.Errorf("action %s needs %d argument(s): %s", name, len(action.Slots), strings.Join(action.Slots, ", ")))
			}

			result, err := r.Invoke(cmd.Context(), name, args[2:]...)
			if err != nil {
				return err
			}
			return output(cmd, result)
		}),
	}
	cmd.Flags().StringVar(&viaFlag, "via", "", "Parent record as parent:id")
	return cmd
}
