package cmd

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/graphmail/graphmail/internal/graph"
)

func newSendCmd() *cobra.Command {
	var (
		to         []string
		cc         []string
		bcc        []string
		subject    string
		body       string
		bodyFile   string
		html       bool
		importance string
	)

	cmd := &cobra.Command{
		Use:   "send",
		Short: "Send a message",
		Long: `Send a message through the signed-in mailbox. The body comes from
--body, from --body-file, or from stdin when neither is given:

  graphmail send --to bob@example.com --subject "Hi" --body "Hello"
  git log -5 | graphmail send --to team@example.com --subject "Changes"`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if body != "" && bodyFile != "" {
				return fmt.Errorf("--body and --body-file are mutually exclusive")
			}
			switch importance {
			case "", "low", "normal", "high":
			default:
				return fmt.Errorf("invalid --importance %q: must be low, normal or high", importance)
			}
			if bodyFile != "" {
				data, err := os.ReadFile(bodyFile)
				if err != nil {
					return fmt.Errorf("reading %s: %w", bodyFile, err)
				}
				body = string(data)
			}
			if body == "" {
				data, err := io.ReadAll(cmd.InOrStdin())
				if err != nil {
					return fmt.Errorf("reading body from stdin: %w", err)
				}
				body = string(data)
			}

			app, err := newApp()
			if err != nil {
				return err
			}

			msg := &graph.OutgoingMessage{
				To:         to,
				Cc:         cc,
				Bcc:        bcc,
				Subject:    subject,
				Body:       body,
				HTML:       html,
				Importance: importance,
			}
			if err := app.client.SendMessage(cmd.Context(), msg); err != nil {
				return err
			}

			fmt.Printf("Sent to %d recipient(s).\n", len(to)+len(cc)+len(bcc))
			return nil
		},
	}

	cmd.Flags().StringSliceVar(&to, "to", nil, "Recipient address (repeatable)")
	cmd.Flags().StringSliceVar(&cc, "cc", nil, "Cc address (repeatable)")
	cmd.Flags().StringSliceVar(&bcc, "bcc", nil, "Bcc address (repeatable)")
	cmd.Flags().StringVarP(&subject, "subject", "s", "", "Message subject")
	cmd.Flags().StringVar(&body, "body", "", "Message body")
	cmd.Flags().StringVar(&bodyFile, "body-file", "", "Read the body from a file")
	cmd.Flags().BoolVar(&html, "html", false, "Send the body as HTML")
	cmd.Flags().StringVar(&importance, "importance", "", "Message importance (low, normal or high)")
	_ = cmd.MarkFlagRequired("to")
	_ = cmd.MarkFlagRequired("subject")

	return cmd
}
