package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func newViewCmd() *cobra.Command {
	var (
		asJSON      bool
		markRead    bool
		attachments bool
	)

	cmd := &cobra.Command{
		Use:   "view <message-id>",
		Short: "Show a single message",
		Long:  `Fetch one message by id and print its headers and plain-text body.`,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := newApp()
			if err != nil {
				return err
			}

			msg, err := app.client.GetMessage(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			if markRead && !msg.IsRead {
				if err := app.client.MarkAsRead(cmd.Context(), msg.ID); err != nil {
					return err
				}
				msg.IsRead = true
			}

			if asJSON {
				return printJSON(msg)
			}
			renderMessage(os.Stdout, msg)

			if attachments && msg.HasAttachments {
				atts, err := app.client.ListAttachments(cmd.Context(), msg.ID)
				if err != nil {
					return err
				}
				fmt.Println("Attachments:")
				for _, a := range atts {
					fmt.Printf("  %s (%s, %d bytes)\n", a.Name, a.ContentType, a.Size)
				}
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Output as JSON")
	cmd.Flags().BoolVar(&markRead, "mark-read", false, "Also flag the message as read")
	cmd.Flags().BoolVar(&attachments, "attachments", false, "List attachment names and sizes")

	return cmd
}
