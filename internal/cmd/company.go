package cmd

import "github.com/spf13/cobra"

func newCompanyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "company",
		Short: "Show the company of the authenticated account",
		Args:  cobra.NoArgs,
		RunE: RunE(func(cmd *cobra.Command, _ []string) error {
			cat, err := newClientFactory().catalog(cmd.Context())
			if err != nil {
				return err
			}
			company, err := cat.Company(cmd.Context())
			if err != nil {
				return err
			}
			return output(cmd, company)
		}),
	}
}
