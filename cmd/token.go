package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/graphmail/graphmail/internal/logging"
)

func newTokenCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "token",
		Short: "Print a valid access token",
		Long: `Print a currently valid access token to stdout, refreshing it first if
needed. Intended for scripting against the Graph API directly:

  curl -H "Authorization: Bearer $(graphmail token)" ...`,
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := newApp()
			if err != nil {
				return err
			}

			token, err := app.manager.GetValidToken(cmd.Context())
			if err != nil {
				return err
			}
			logger.Debug("token issued",
				logging.Operation("token"), "token", logging.SanitizeToken(token))
			fmt.Println(token)
			return nil
		},
	}
}
