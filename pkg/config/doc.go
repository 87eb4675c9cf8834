// Package config loads typed configuration from environment variables.
//
// It wraps github.com/joho/godotenv and github.com/caarlos0/env/v11 behind a
// small generic API:
//
//   - LoadEnv reads one or more dotenv files into the process environment,
//     falling back to ".env" in the working directory when it exists.
//   - Load[T] parses the environment into a new T using its env tags,
//     including nested structs such as httpserver.Config or pg.Config.
//   - MustLoad[T] panics on failure, for configuration the process cannot
//     start without.
//
// # Usage
//
// Declare a struct with env tags. Package-level configs compose by nesting:
//
//	type AppConfig struct {
//		Env        string `env:"APP_ENV" envDefault:"development"`
//		Processing string `env:"PAYMENT_PROCESSING" envDefault:"auto"`
//
//		HTTP     httpserver.Config
//		Database pg.Config
//		Stripe   billing.StripeConfig
//	}
//
// Then load it once at startup:
//
//	import "github.com/dmitrymomot/paygate/pkg/config"
//
//	if err := config.LoadEnv(); err != nil {
//		return err
//	}
//	cfg, err := config.Load[AppConfig]()
//	if err != nil {
//		return err
//	}
//
// Values already present in the environment always win over dotenv files, so
// a deployment never picks up a stale .env by accident.
//
// # Validation
//
// A struct whose pointer implements Validator gets its Validate method called
// after parsing. That is where cross-field and mode-dependent requirements
// live, for example "manual processing needs an admin email":
//
//	func (c *AppConfig) Validate() error {
//		if c.Processing == "manual" && c.AdminEmail == "" {
//			return errors.New("ADMIN_EMAIL is required in manual mode")
//		}
//		return nil
//	}
//
// # Error Handling
//
// Failures are joined with a sentinel that can be matched with errors.Is:
//
//   - ErrLoadingEnvFile: a dotenv file could not be read.
//   - ErrParsingConfig: a variable could not be parsed or a required one is missing.
//   - ErrInvalidConfig: Validate rejected the parsed value.
//
// # Testing
//
// Load has no cache, so tests set variables with t.Setenv and call Load again.
// Those tests cannot run in parallel.
//
// # See Also
//
//   - https://github.com/joho/godotenv
//   - https://github.com/caarlos0/env
package config
