// Package identity connects paygate to Clerk, the identity provider that
// owns user accounts and stores entitlement metadata.
//
// ClerkDirectory implements billing.UserDirectory over the Clerk Backend API.
// BreakerDirectory wraps any directory with a gobreaker circuit breaker so a
// Clerk outage fails fast instead of stalling every webhook. Authenticate
// and RequireSession turn Clerk session tokens into a Session on the
// request context.
//
//	dir, err := identity.NewClerkDirectory(cfg)
//	if err != nil {
//		return err
//	}
//	guarded := identity.NewBreakerDirectory(dir, cfg, identity.WithBreakerLogger(log))
package identity
