package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/graphmail/graphmail/internal/auth"
)

func newStatusCmd() *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show the cached authentication state",
		Long: `Show whether a cached credential exists and when it expires. This
command never contacts the network and never refreshes the token.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			manager := auth.NewManager(cfg, logger)
			status := manager.AuthStatus()

			if asJSON {
				return printJSON(status)
			}

			if !status.Authenticated {
				fmt.Println("Not signed in. Run 'graphmail login'.")
				return nil
			}

			fmt.Println("Signed in.")
			if status.Account != "" {
				fmt.Printf("  Account: %s\n", status.Account)
			}
			fmt.Printf("  Method:  %s\n", status.Method)
			if len(status.Scopes) > 0 {
				fmt.Printf("  Scopes:  %s\n", strings.Join(status.Scopes, " "))
			}
			if !status.ExpiresAt.IsZero() {
				fmt.Printf("  Expires: %s\n", status.ExpiresAt.Local().Format("2006-01-02 15:04:05"))
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Output as JSON")

	return cmd
}
