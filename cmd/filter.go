package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/graphmail/graphmail/internal/config"
)

func newFilterCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "filter",
		Short: "Manage the sender filter list",
		Long: `Manage the filter_senders list in the configuration file. Filtered
senders are hidden from folder listings unless --all is given; matching is a
case-insensitive substring test over the sender address and name.`,
	}

	cmd.AddCommand(newFilterListCmd())
	cmd.AddCommand(newFilterAddCmd())
	cmd.AddCommand(newFilterRemoveCmd())

	return cmd
}

func newFilterListCmd() *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "Show the filtered senders",
		RunE: func(cmd *cobra.Command, args []string) error {
			if asJSON {
				return printJSON(cfg.FilterSenders)
			}
			if len(cfg.FilterSenders) == 0 {
				fmt.Println("No filtered senders.")
				return nil
			}
			for _, s := range cfg.FilterSenders {
				fmt.Println(s)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Output as JSON")

	return cmd
}

func newFilterAddCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "add <sender>...",
		Short: "Add senders to the filter list",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			senders := append([]string(nil), cfg.FilterSenders...)
			for _, arg := range args {
				if containsFold(senders, arg) {
					continue
				}
				senders = append(senders, arg)
			}
			if len(senders) == len(cfg.FilterSenders) {
				fmt.Println("No changes.")
				return nil
			}
			if err := config.SaveFilterSenders(flagConfig, senders); err != nil {
				return err
			}
			fmt.Printf("Filter list now has %d sender(s).\n", len(senders))
			return nil
		},
	}
}

func newFilterRemoveCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "remove <sender>...",
		Aliases: []string{"rm"},
		Short:   "Remove senders from the filter list",
		Args:    cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var senders []string
			for _, s := range cfg.FilterSenders {
				if containsFold(args, s) {
					continue
				}
				senders = append(senders, s)
			}
			if len(senders) == len(cfg.FilterSenders) {
				fmt.Println("No changes.")
				return nil
			}
			if err := config.SaveFilterSenders(flagConfig, senders); err != nil {
				return err
			}
			fmt.Printf("Filter list now has %d sender(s).\n", len(senders))
			return nil
		},
	}
}

func containsFold(list []string, s string) bool {
	for _, entry := range list {
		if strings.EqualFold(entry, s) {
			return true
		}
	}
	return false
}
