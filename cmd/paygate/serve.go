package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/dmitrymomot/paygate/pkg/httpserver"
)

func newServeCmd(load configLoader) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP server",
		Long: `Serve the billing endpoints:

  POST /billing/webhooks/{provider}   signed vendor webhooks
  POST /billing/{provider}/checkout   hosted checkout links
  POST /billing/{provider}/portal     customer portal links
  GET  /billing/plans                 public plan catalog
  GET  /billing/me                    entitlement of the signed-in user
  GET  /healthz, /metrics`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, log, err := load()
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			a, err := newApp(ctx, cfg, log)
			if err != nil {
				return err
			}
			defer a.close()

			log.InfoContext(ctx, "billing service ready",
				"providers", a.svc.Providers(),
				"processing", cfg.Processing,
				"plans", len(a.svc.Catalog().Plans()),
			)

			return httpserver.New(cfg.HTTP, log).Run(ctx, a.handler())
		},
	}
}
