package main

import (
	"errors"
	"fmt"

	"github.com/dmitrymomot/paygate/modules/billing"
	core "github.com/dmitrymomot/paygate/pkg/billing"
	"github.com/dmitrymomot/paygate/pkg/config"
	"github.com/dmitrymomot/paygate/pkg/email"
	"github.com/dmitrymomot/paygate/pkg/environment"
	"github.com/dmitrymomot/paygate/pkg/httpserver"
	"github.com/dmitrymomot/paygate/pkg/idempotency"
	"github.com/dmitrymomot/paygate/pkg/identity"
	"github.com/dmitrymomot/paygate/pkg/pg"
	"github.com/dmitrymomot/paygate/pkg/redis"
)

// appConfig is the complete process configuration. Nested structs own their
// env tags, so every package documents its own variables.
type appConfig struct {
	Env         string `env:"APP_ENV" envDefault:"development"`
	LogLevel    string `env:"LOG_LEVEL"`
	BaseURL     string `env:"APP_BASE_URL" envDefault:"http://localhost:8080"`
	Processing  string `env:"PAYMENT_PROCESSING" envDefault:"auto"`
	CatalogPath string `env:"CATALOG_PATH" envDefault:"plans.yaml"`

	HTTP         httpserver.Config
	Stripe       core.StripeConfig
	LemonSqueezy core.LemonSqueezyConfig
	Polar        core.PolarConfig
	Paddle       core.PaddleConfig
	Identity     identity.Config
	Database     pg.Config
	Redis        redis.Config
	Idempotency  idempotency.Config
	Email        email.Config
}

var errInvalidAppConfig = errors.New("invalid application config")

// Validate implements config.Validator.
func (c *appConfig) Validate() error {
	switch billing.ProcessingMode(c.Processing) {
	case billing.ProcessingAuto:
	case billing.ProcessingManual:
		if c.Email.AdminEmail == "" {
			return fmt.Errorf("%w: ADMIN_EMAIL is required for manual payment processing", errInvalidAppConfig)
		}
	default:
		return fmt.Errorf("%w: PAYMENT_PROCESSING must be auto or manual, got %q", errInvalidAppConfig, c.Processing)
	}
	if c.Environment().IsProduction() && !c.Identity.Enabled() {
		return fmt.Errorf("%w: CLERK_SECRET_KEY is required in production", errInvalidAppConfig)
	}
	return nil
}

func (c *appConfig) Environment() environment.Environment {
	return environment.Parse(c.Env)
}

// loadConfig reads envFile (or .env when present) and parses the process
// environment.
func loadConfig(envFile string) (appConfig, error) {
	var paths []string
	if envFile != "" {
		paths = append(paths, envFile)
	}
	if err := config.LoadEnv(paths...); err != nil {
		return appConfig{}, err
	}
	return config.Load[appConfig]()
}
