package cmd

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/harvest/harvest-cli/internal/catalog"
	"github.com/harvest/harvest-cli/internal/config"
	"github.com/harvest/harvest-cli/internal/iocontext"
	"github.com/harvest/harvest-cli/internal/outfmt"
)

// stdinIsTerminal and readSecret are replaced in tests.
var (
	stdinIsTerminal = iocontext.IsTerminal
	readSecret      = func(in io.Reader) (string, error) {
		f, ok := in.(interface{ Fd() uintptr })
		if !ok {
			return "", errors.New("stdin is not a terminal")
		}
		b, err := term.ReadPassword(int(f.Fd()))
		return string(b), err
	}
)

func newAuthCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "auth",
		Short: "Manage Harvest credentials",
		Long:  "Store and inspect Harvest personal access tokens. Credentials are kept in the OS keychain.",
	}
	cmd.AddCommand(newAuthLoginCmd())
	cmd.AddCommand(newAuthStatusCmd())
	cmd.AddCommand(newAuthLogoutCmd())
	cmd.AddCommand(newAuthListCmd())
	cmd.AddCommand(newAuthUseCmd())
	return cmd
}

func newAuthLoginCmd() *cobra.Command {
	var (
		account  config.Account
		noVerify bool
	)

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Save a personal access token",
		Long: strings.TrimSpace(`
Save Harvest credentials to the OS keychain.

Create a personal access token at https://id.getharvest.com/developers. The
page lists the token and the account ID it belongs to. Harvest asks API
clients to identify themselves; --app-name becomes the User-Agent header.

The token is read from a hidden prompt when --token is omitted.
`),
		Example: `  harvest auth login --account-id 123456 --app-name "Invoicer (ops@example.com)"
  harvest auth login --account-id 123456 --token "$TOKEN" --profile work`,
		Args: cobra.NoArgs,
		RunE: RunE(func(cmd *cobra.Command, _ []string) error {
			if account.Token == "" {
				token, err := promptToken(cmd)
				if err != nil {
					return err
				}
				account.Token = token
			}
			if err := account.Validate(); err != nil {
				return usageError(err)
			}

			var me any
			if !noVerify {
				cat, err := catalog.New(catalogOptions(account), newClientFactory().client())
				if err != nil {
					return err
				}
				users, err := cat.Resource("users")
				if err != nil {
					return err
				}
				me, err = users.Invoke(cmd.Context(), "me")
				if err != nil {
					return fmt.Errorf("verify credentials: %w", err)
				}
			}

			profile := flags.Profile
			if err := config.SaveProfile(profile, account); err != nil {
				return err
			}

			if outfmt.IsJSON(cmd.Context()) {
				return output(cmd, map[string]any{"profile": profileName(profile), "account_id": account.AccountID, "user": me})
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Saved credentials for account %s to profile %q.\n", account.AccountID, profileName(profile))
			if user, ok := me.(map[string]any); ok {
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Logged in as %v %v (%v).\n", user["first_name"], user["last_name"], user["email"])
			}
			return nil
		}),
	}

	cmd.Flags().StringVar(&account.AccountID, "account-id", "", "Harvest account ID")
	cmd.Flags().StringVar(&account.Token, "token", "", "Personal access token")
	cmd.Flags().StringVar(&account.AppName, "app-name", "", "User-Agent to send, e.g. \"MyApp (me@example.com)\"")
	cmd.Flags().StringVar(&account.Subdomain, "subdomain", "", "API subdomain (default api)")
	cmd.Flags().StringVar(&account.BaseURL, "base-url", "", "Override the API base URL")
	cmd.Flags().BoolVar(&noVerify, "no-verify", false, "Skip the users/me check before saving")
	return cmd
}

func promptToken(cmd *cobra.Command) (string, error) {
	if !stdinIsTerminal(cmd.InOrStdin()) {
		line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
		if err != nil && !errors.Is(err, io.EOF) {
			return "", fmt.Errorf("read token from stdin: %w", err)
		}
		if token := strings.TrimSpace(line); token != "" {
			return token, nil
		}
		return "", usageError(fmt.Errorf("--token is required when stdin is not a terminal"))
	}

	_, _ = fmt.Fprint(cmd.ErrOrStderr(), "Personal access token: ")
	token, err := readSecret(cmd.InOrStdin())
	_, _ = fmt.Fprintln(cmd.ErrOrStderr())
	if err != nil {
		return "", fmt.Errorf("read token: %w", err)
	}
	return strings.TrimSpace(token), nil
}

func newAuthStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the credentials in use",
		Args:  cobra.NoArgs,
		RunE: RunE(func(cmd *cobra.Command, _ []string) error {
			account, err := config.LoadAccount(flags.Profile)
			if err != nil {
				return err
			}

			source := "keychain"
			profile := flags.Profile
			if os.Getenv(config.EnvAccountID) != "" {
				source, profile = "environment", ""
			} else if profile == "" {
				profile = os.Getenv(config.EnvProfile)
				if profile == "" {
					if profile, err = config.CurrentProfile(); err != nil {
						return err
					}
				}
			}

			opts := catalogOptions(account)
			status := map[string]any{
				"source":     source,
				"profile":    profile,
				"account_id": account.AccountID,
				"token":      maskToken(account.Token),
				"base_url":   opts.URL(),
				"user_agent": opts.AppName,
			}
			return output(cmd, status)
		}),
	}
}

func newAuthLogoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Remove stored credentials",
		Args:  cobra.NoArgs,
		RunE: RunE(func(cmd *cobra.Command, _ []string) error {
			profile := flags.Profile
			if profile == "" {
				current, err := config.CurrentProfile()
				if err != nil {
					return err
				}
				profile = current
			}
			if err := config.DeleteProfile(profile); err != nil {
				return err
			}
			if !outfmt.IsJSON(cmd.Context()) {
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Removed profile %q.\n", profileName(profile))
				return nil
			}
			return output(cmd, map[string]any{"removed": profileName(profile)})
		}),
	}
}

func newAuthListCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List stored profiles",
		Args:    cobra.NoArgs,
		RunE: RunE(func(cmd *cobra.Command, _ []string) error {
			profiles, err := config.ListProfiles()
			if err != nil {
				return err
			}
			current, _ := config.CurrentProfile()

			rows := make([]any, 0, len(profiles))
			for _, profile := range profiles {
				row := map[string]any{"profile": profile, "current": profile == current}
				if account, err := config.LoadProfile(profile); err == nil {
					row["account_id"] = account.AccountID
				}
				rows = append(rows, row)
			}
			if len(rows) == 0 && !outfmt.IsJSON(cmd.Context()) {
				_, _ = fmt.Fprintln(cmd.ErrOrStderr(), "No profiles stored. Run 'harvest auth login' to add one.")
				return nil
			}
			return output(cmd, rows)
		}),
	}
}

func newAuthUseCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "use <profile>",
		Short:   "Switch the current profile",
		Example: "  harvest auth use work",
		Args:    cobra.ExactArgs(1),
		RunE: RunE(func(cmd *cobra.Command, args []string) error {
			name := args[0]
			account, err := config.LoadProfile(name)
			if err != nil {
				return fmt.Errorf("profile %q: %w", name, err)
			}
			if err := config.SetCurrentProfile(name); err != nil {
				return err
			}
			if outfmt.IsJSON(cmd.Context()) {
				return output(cmd, map[string]any{"current": name, "account_id": account.AccountID})
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Current profile: %s (account %s)\n", name, account.AccountID)
			return nil
		}),
	}
}

func profileName(profile string) string {
	if profile == "" {
		return "default"
	}
	return profile
}

func maskToken(token string) string {
	if len(token) <= 8 {
		return strings.Repeat("*", len(token))
	}
	return token[:4] + strings.Repeat("*", 8) + token[len(token)-4:]
}
