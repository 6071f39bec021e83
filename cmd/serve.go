package cmd

import (
	"github.com/spf13/cobra"

	"github.com/graphmail/graphmail/internal/server"
)

func newServeCmd() *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the mail client as a local REST API",
		Long: `Start an HTTP server exposing the mail operations as a REST API:

  GET  /api/auth/status        Authentication state
  GET  /api/auth/me            Signed-in account profile
  GET  /api/auth/token         Valid access token
  POST /api/auth/logout        Remove the cached token
  GET  /api/emails/inbox       Inbox listing
  GET  /api/emails/sent        Sent listing
  GET  /api/emails/search      Full-text search (?q=)
  GET  /api/emails/delta/:f    Changes since the previous run
  GET  /api/emails/:id         Single message
  POST /api/emails/send        Send a message
  POST /api/emails/:id/read    Flag as read

Health probes are at /healthz and /readyz, Prometheus metrics at
/metrics. The server binds to localhost; anyone who can reach it acts as
the signed-in account.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := newApp()
			if err != nil {
				return err
			}

			srv := server.New(server.Config{
				Addr:           addr,
				PageSize:       cfg.DefaultPageSize,
				ExcludeSenders: cfg.FilterSenders,
			}, app.manager, app.client, app.tracker, logger)

			return srv.Run(cmd.Context())
		},
	}

	cmd.Flags().StringVar(&addr, "addr", server.DefaultAddr, "Listen address")

	return cmd
}
