// Command paygate runs the billing webhook reconciliation service.
package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/dmitrymomot/paygate/pkg/environment"
	"github.com/dmitrymomot/paygate/pkg/logger"
	"github.com/dmitrymomot/paygate/pkg/requestid"
)

// Version is set at build time with -ldflags.
var Version = "dev"

const serviceName = "paygate"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var envFile string

	root := &cobra.Command{
		Use:           "paygate",
		Short:         "Billing webhook reconciliation service",
		Long:          `paygate turns Stripe, Lemon Squeezy, Polar and Paddle webhooks into entitlement metadata on identity-provider users.`,
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&envFile, "env-file", "", "dotenv file to load (defaults to .env when present)")

	load := func() (appConfig, *slog.Logger, error) {
		cfg, err := loadConfig(envFile)
		if err != nil {
			return appConfig{}, nil, err
		}
		return cfg, newLogger(cfg), nil
	}

	root.AddCommand(
		newServeCmd(load),
		newMigrateCmd(load),
		newPlansCmd(load),
	)
	return root
}

type configLoader func() (appConfig, *slog.Logger, error)

func newLogger(cfg appConfig) *slog.Logger {
	opts := []logger.Option{
		logger.WithEnvironment(cfg.Environment(), serviceName),
		logger.WithContextExtractors(
			requestid.LoggerExtractor(),
			environment.LoggerExtractor(),
		),
	}
	if cfg.LogLevel != "" {
		opts = append(opts, logger.WithLevelName(cfg.LogLevel))
	}
	log := logger.New(opts...)
	logger.SetAsDefault(log)
	return log
}
