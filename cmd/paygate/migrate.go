package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/dmitrymomot/paygate/pkg/customerindex"
	"github.com/dmitrymomot/paygate/pkg/pg"
)

func newMigrateCmd(load configLoader) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply database migrations",
		Long:  `Create or upgrade the billing_customers table used to resolve provider customer IDs.`,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, log, err := load()
			if err != nil {
				return err
			}
			if !cfg.Database.Enabled() {
				return errors.New("DATABASE_URL is not set")
			}

			ctx := cmd.Context()
			pool, err := pg.Connect(ctx, cfg.Database)
			if err != nil {
				return err
			}
			defer pool.Close()

			version, err := pg.Migrate(ctx, pool, customerindex.Migrations, log)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "database at version %d\n", version)
			return nil
		},
	}
}
