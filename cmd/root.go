package cmd

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/graphmail/graphmail/internal/config"
	"github.com/graphmail/graphmail/internal/logging"
)

var (
	flagConfig  string
	flagDebug   bool
	flagJSONLog bool

	cfg    *config.Config
	logger *slog.Logger
)

// rootCmd represents the base command for the graphmail application
var rootCmd = &cobra.Command{
	Use:   "graphmail",
	Short: "Command-line mail client for Microsoft 365 mailboxes",
	Long: `graphmail reads, searches, synchronizes, and sends mail through the
Microsoft Graph API.

It signs in with OAuth2 (browser, device code, or app-only client
credentials), caches tokens locally, and tracks folder changes with delta
queries so repeated syncs only transfer what changed.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		logger = logging.Setup(flagDebug, flagJSONLog)

		var err error
		cfg, err = config.Load(flagConfig)
		return err
	},
}

// version will be set by main
var version = "dev"

// SetVersion sets the version for the root command
func SetVersion(v string) {
	version = v
	rootCmd.Version = v
}

// Execute is the main entry point for the CLI application. Commands run
// under a signal-aware context so Ctrl-C aborts a pending flow cleanly.
func Execute() {
	rootCmd.SetVersionTemplate(`{{printf "graphmail version %s\n" .Version}}`)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagConfig, "config", config.DefaultConfigPath(),
		"Path to the configuration file")
	rootCmd.PersistentFlags().BoolVar(&flagDebug, "debug", false, "Enable debug logging")
	rootCmd.PersistentFlags().BoolVar(&flagJSONLog, "json-log", false, "Log in JSON format")

	rootCmd.AddCommand(newLoginCmd())
	rootCmd.AddCommand(newLogoutCmd())
	rootCmd.AddCommand(newStatusCmd())
	rootCmd.AddCommand(newWhoamiCmd())
	rootCmd.AddCommand(newTokenCmd())
	rootCmd.AddCommand(newInboxCmd())
	rootCmd.AddCommand(newSentCmd())
	rootCmd.AddCommand(newSearchCmd())
	rootCmd.AddCommand(newRangeCmd())
	rootCmd.AddCommand(newViewCmd())
	rootCmd.AddCommand(newDeltaCmd())
	rootCmd.AddCommand(newSendCmd())
	rootCmd.AddCommand(newMarkReadCmd())
	rootCmd.AddCommand(newFilterCmd())
	rootCmd.AddCommand(newServeCmd())
	rootCmd.AddCommand(newVersionCmd())
}
