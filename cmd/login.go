package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/graphmail/graphmail/internal/auth"
)

func newLoginCmd() *cobra.Command {
	var method string

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Sign in and cache a token",
		Long: `Sign in to the configured Microsoft 365 tenant and cache the resulting
token locally. Subsequent commands reuse the cached token and refresh it
silently until you log out.

Methods:
  interactive         Browser-based sign-in with a local callback (default)
  device              Device code flow for hosts without a browser
  client-credentials  App-only sign-in without a user`,
		RunE: func(cmd *cobra.Command, args []string) error {
			m, ok := auth.ParseMethod(method)
			if !ok {
				return fmt.Errorf("unknown method %q (want interactive, device, or client-credentials)", method)
			}

			app, err := newApp()
			if err != nil {
				return err
			}

			status, err := app.manager.Authenticate(cmd.Context(), m)
			if err != nil {
				return err
			}

			if status.Account != "" {
				fmt.Printf("Signed in as %s (%s)\n", status.Account, status.Method)
			} else {
				fmt.Printf("Signed in (%s)\n", status.Method)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&method, "method", "m", "interactive",
		"Authentication method: interactive, device, or client-credentials")

	return cmd
}
