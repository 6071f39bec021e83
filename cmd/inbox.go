package cmd

import (
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/graphmail/graphmail/internal/config"
	"github.com/graphmail/graphmail/internal/graph"
)

// listFlags are the flags shared by the folder listing commands.
type listFlags struct {
	limit    int
	days     int
	unread   bool
	all      bool
	showBody bool
	asJSON   bool
}

func (f *listFlags) register(cmd *cobra.Command) {
	cmd.Flags().IntVarP(&f.limit, "limit", "n", 0, "Maximum number of messages (default from config)")
	cmd.Flags().IntVarP(&f.days, "days", "d", 0, "Only messages from the last N days (default from config)")
	cmd.Flags().BoolVarP(&f.unread, "unread", "u", false, "Only unread messages")
	cmd.Flags().BoolVar(&f.all, "all", false, "Include messages from filtered senders")
	cmd.Flags().BoolVar(&f.showBody, "show-body", false, "Print the full body of each message")
	cmd.Flags().BoolVar(&f.asJSON, "json", false, "Output as JSON")
}

func (f *listFlags) options() graph.ListOptions {
	opts := graph.ListOptions{
		Top:         cfg.DefaultPageSize,
		UnreadOnly:  f.unread,
		IncludeBody: f.showBody,
	}
	if f.limit > 0 {
		opts.Top = f.limit
	}
	days := f.days
	if days == 0 {
		days = cfg.DefaultDays
	}
	if days > 0 {
		opts.Since = time.Now().AddDate(0, 0, -days)
	}
	if !f.all {
		opts.ExcludeSenders = cfg.FilterSenders
	}
	return opts
}

// runList fetches and prints one folder listing.
func runList(cmd *cobra.Command, folder string, flags *listFlags) error {
	app, err := newApp()
	if err != nil {
		return err
	}

	msgs, err := app.client.ListMessages(cmd.Context(), folder, flags.options())
	if err != nil {
		return err
	}

	if flags.asJSON {
		return printJSON(msgs)
	}
	if flags.showBody {
		for i := range msgs {
			if i > 0 {
				os.Stdout.WriteString("\n")
			}
			renderMessage(os.Stdout, &msgs[i])
		}
		return nil
	}
	renderMessages(os.Stdout, msgs)
	return nil
}

func newInboxCmd() *cobra.Command {
	var flags listFlags

	cmd := &cobra.Command{
		Use:   "inbox",
		Short: "List inbox messages",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runList(cmd, config.FolderInbox, &flags)
		},
	}
	flags.register(cmd)

	return cmd
}
