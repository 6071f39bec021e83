package cmd

import (
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/graphmail/graphmail/internal/config"
	"github.com/graphmail/graphmail/internal/graph"
)

func newSearchCmd() *cobra.Command {
	var (
		limit  int
		folder string
		asJSON bool
	)

	cmd := &cobra.Command{
		Use:   "search <query>...",
		Short: "Search messages",
		Long: `Full-text search over subjects, bodies, and senders. Search results come
back in relevance order; date filters do not apply.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := newApp()
			if err != nil {
				return err
			}

			opts := graph.ListOptions{Top: cfg.DefaultPageSize}
			if limit > 0 {
				opts.Top = limit
			}

			msgs, err := app.client.SearchMessages(cmd.Context(), folder,
				strings.Join(args, " "), opts)
			if err != nil {
				return err
			}

			if asJSON {
				return printJSON(msgs)
			}
			renderMessages(os.Stdout, msgs)
			return nil
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 0, "Maximum number of messages")
	cmd.Flags().StringVar(&folder, "folder", config.FolderInbox, "Well-known folder name to search")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Output as JSON")

	return cmd
}
