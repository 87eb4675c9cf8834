// Package idempotency guards webhook processing against duplicate vendor
// deliveries using Redis SETNX keys that expire after a configurable TTL.
//
//	guard := idempotency.NewGuard(redisClient, cfg.Idempotency)
//	svc := billing.NewService(catalog, dir, billing.WithEventGuard(guard))
package idempotency
