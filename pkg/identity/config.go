package identity

import "time"

// Config holds Clerk and circuit breaker settings.
type Config struct {
	SecretKey string `env:"CLERK_SECRET_KEY"`
	APIURL    string `env:"CLERK_API_URL"`

	BreakerFailureThreshold uint32        `env:"BREAKER_FAILURE_THRESHOLD" envDefault:"5"`
	BreakerTimeout          time.Duration `env:"BREAKER_TIMEOUT" envDefault:"30s"`
	BreakerInterval         time.Duration `env:"BREAKER_INTERVAL" envDefault:"1m"`
	BreakerMaxRequests      uint32        `env:"BREAKER_MAX_REQUESTS" envDefault:"1"`
}

// Enabled reports whether a Clerk secret key is configured.
func (c Config) Enabled() bool { return c.SecretKey != "" }
