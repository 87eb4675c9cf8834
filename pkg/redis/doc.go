// Package redis connects to Redis with retries and exposes a readiness probe.
//
// The client backs the webhook delivery guard in package idempotency. Redis is
// optional: without REDIS_URL the service falls back to an in-process guard,
// which is fine for a single instance but does not deduplicate across
// replicas.
//
// # Usage
//
//	import "github.com/dmitrymomot/paygate/pkg/redis"
//
//	if cfg.Redis.Enabled() {
//		client, err := redis.Connect(ctx, cfg.Redis)
//		if err != nil {
//			return err
//		}
//		defer client.Close()
//
//		guard := idempotency.NewGuard(client, cfg.Idempotency)
//	}
//
// Connect parses the URL, then pings the server up to RetryAttempts times,
// RetryInterval apart, all within ConnectTimeout. A cancelled ctx stops the
// loop early. Healthcheck wraps Ping for httpserver.HealthHandler.
//
// # Configuration
//
//	REDIS_URL              redis://[:password@]host:port/db, empty disables Redis
//	REDIS_RETRY_ATTEMPTS   default 3
//	REDIS_RETRY_INTERVAL   default 2s
//	REDIS_CONNECT_TIMEOUT  default 30s
//
// # Error Handling
//
//   - ErrEmptyConnectionURL: Connect was called without a URL.
//   - ErrFailedToParseRedisConnString: the URL is not a redis:// or rediss:// URL.
//   - ErrRedisNotReady: no ping succeeded within the retry budget.
//   - ErrHealthcheckFailed: a readiness probe failed.
package redis
