package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/graphmail/graphmail/internal/config"
	"github.com/graphmail/graphmail/internal/graph"
)

func newDeltaCmd() *cobra.Command {
	var (
		reset  bool
		asJSON bool
	)

	cmd := &cobra.Command{
		Use:   "delta [folder]",
		Short: "Fetch changes since the previous run",
		Long: `Fetch everything that changed in the folder since the previous delta run
for that folder. The first run (or a run after --reset) is a full
synchronization; later runs only transfer changes. Each folder keeps its
own synchronization position.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			folder := config.FolderInbox
			if len(args) == 1 {
				folder = args[0]
			}

			app, err := newApp()
			if err != nil {
				return err
			}

			if reset {
				cursors := graph.NewCursorStore(cfg.DeltaCursorPath)
				if err := cursors.Clear(folder); err != nil {
					return err
				}
			}

			result, err := app.tracker.FetchChanges(cmd.Context(), folder)
			if err != nil {
				return err
			}

			if asJSON {
				return printJSON(result)
			}

			if result.FullSync {
				fmt.Printf("Full synchronization of %s: %d messages\n", folder, len(result.Messages))
			} else {
				fmt.Printf("Changes in %s: %d changed, %d removed\n",
					folder, len(result.Messages), len(result.RemovedIDs))
			}
			if len(result.Messages) > 0 {
				renderMessages(os.Stdout, result.Messages)
			}
			for _, id := range result.RemovedIDs {
				fmt.Printf("removed: %s\n", id)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&reset, "reset", false, "Discard the stored position and start over")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Output as JSON")

	return cmd
}
