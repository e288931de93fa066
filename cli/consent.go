package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/stevemurr/localstate/app"
)

// NewConsentCommand creates the consent command group.
func NewConsentCommand(opts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "consent",
		Short: "Manage data sharing consent",
	}

	status := &cobra.Command{
		Use:   "status",
		Short: "Print consent state",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withApp(cmd, func(a *app.App) error {
				ctx, out := cmd.Context(), cmd.OutOrStdout()
				fmt.Fprintf(out, "granted: %t\n", a.Consent.Granted(ctx))
				if at, ok := a.Consent.GrantedAt(ctx); ok {
					fmt.Fprintf(out, "granted_at: %s\n", at.Format(time.RFC3339))
				}
				if email, ok := a.Consent.Email(ctx); ok {
					fmt.Fprintf(out, "email: %s\n", email)
				}
				return nil
			})
		},
	}

	grant := &cobra.Command{
		Use:   "grant",
		Short: "Grant consent",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withApp(cmd, func(a *app.App) error {
				a.Consent.Grant(cmd.Context(), time.Now())
				return nil
			})
		},
	}

	revoke := &cobra.Command{
		Use:   "revoke",
		Short: "Revoke consent and forget the email address",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withApp(cmd, func(a *app.App) error {
				a.Consent.Revoke(cmd.Context())
				return nil
			})
		},
	}

	setEmail := &cobra.Command{
		Use:   "set-email <address>",
		Short: "Store a contact email (requires consent)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withApp(cmd, func(a *app.App) error {
				return a.Consent.SetEmail(cmd.Context(), args[0])
			})
		},
	}

	cmd.AddCommand(status, grant, revoke, setEmail)
	return cmd
}
