package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/graphmail/graphmail/internal/auth"
)

func newLogoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Remove the cached token",
		RunE: func(cmd *cobra.Command, args []string) error {
			// Logout only touches local files, so skip config validation:
			// it must work even with a half-configured setup.
			manager := auth.NewManager(cfg, logger)
			if err := manager.Logout(); err != nil {
				return err
			}
			fmt.Println("Logged out.")
			return nil
		},
	}
}
