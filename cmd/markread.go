package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newMarkReadCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "mark-read <message-id>...",
		Short: "Flag messages as read",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := newApp()
			if err != nil {
				return err
			}

			for _, id := range args {
				if err := app.client.MarkAsRead(cmd.Context(), id); err != nil {
					return fmt.Errorf("marking %s as read: %w", id, err)
				}
				fmt.Printf("read: %s\n", id)
			}
			return nil
		},
	}
}
