package cmd

import (
	"github.com/spf13/cobra"

	"github.com/graphmail/graphmail/internal/config"
)

func newSentCmd() *cobra.Command {
	var flags listFlags

	cmd := &cobra.Command{
		Use:   "sent",
		Short: "List sent messages",
		Long:  `List messages from the sent folder, newest first by send time.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runList(cmd, config.FolderSentItems, &flags)
		},
	}
	flags.register(cmd)

	return cmd
}
