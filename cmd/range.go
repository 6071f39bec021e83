package cmd

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/graphmail/graphmail/internal/config"
	"github.com/graphmail/graphmail/internal/graph"
)

const dateLayout = "2006-01-02"

func newRangeCmd() *cobra.Command {
	var (
		from   string
		to     string
		folder string
		limit  int
		asJSON bool
	)

	cmd := &cobra.Command{
		Use:   "range",
		Short: "List messages in a date range",
		Long: `List messages between two dates, inclusive of the start and exclusive of
the day after the end. Dates use the local time zone.

  graphmail range --from 2025-06-01 --to 2025-06-07`,
		RunE: func(cmd *cobra.Command, args []string) error {
			since, err := time.ParseInLocation(dateLayout, from, time.Local)
			if err != nil {
				return fmt.Errorf("invalid --from date %q (want YYYY-MM-DD)", from)
			}
			until, err := time.ParseInLocation(dateLayout, to, time.Local)
			if err != nil {
				return fmt.Errorf("invalid --to date %q (want YYYY-MM-DD)", to)
			}
			if until.Before(since) {
				return fmt.Errorf("--to %s is before --from %s", to, from)
			}

			app, err := newApp()
			if err != nil {
				return err
			}

			opts := graph.ListOptions{
				Top:   cfg.DefaultPageSize,
				Since: since,
				// Make the end date inclusive.
				Until:          until.AddDate(0, 0, 1),
				ExcludeSenders: cfg.FilterSenders,
			}
			if limit > 0 {
				opts.Top = limit
			}

			msgs, err := app.client.ListMessages(cmd.Context(), folder, opts)
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

	cmd.Flags().StringVar(&from, "from", "", "Start date (YYYY-MM-DD)")
	cmd.Flags().StringVar(&to, "to", "", "End date (YYYY-MM-DD), inclusive")
	cmd.Flags().StringVar(&folder, "folder", config.FolderInbox, "Folder to list")
	cmd.Flags().IntVarP(&limit, "limit", "n", 0, "Maximum number of messages")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Output as JSON")
	_ = cmd.MarkFlagRequired("from")
	_ = cmd.MarkFlagRequired("to")

	return cmd
}
