package idempotency

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/dmitrymomot/paygate/pkg/billing"
)

// ErrMissingEventID is returned for deliveries without a vendor event ID.
var ErrMissingEventID = errors.New("idempotency: event id is required")

// Config holds guard settings.
type Config struct {
	TTL       time.Duration `env:"IDEMPOTENCY_TTL" envDefault:"72h"`
	KeyPrefix string        `env:"IDEMPOTENCY_KEY_PREFIX" envDefault:"paygate:webhook"`
}

// Store is the subset of redis.Cmdable the guard needs.
type Store interface {
	SetNX(ctx context.Context, key string, value any, expiration time.Duration) *redis.BoolCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
}

// Guard remembers processed webhook deliveries in Redis so vendor retries
// of the same event are acknowledged without being reconciled again.
// It implements billing.EventGuard.
type Guard struct {
	store  Store
	ttl    time.Duration
	prefix string
}

var _ billing.EventGuard = (*Guard)(nil)

// NewGuard creates a Guard. A non-positive TTL keeps marks forever.
// Panics if store is nil.
func NewGuard(store Store, cfg Config) *Guard {
	if store == nil {
		panic("idempotency: redis store is required")
	}
	prefix := strings.TrimSuffix(cfg.KeyPrefix, ":")
	if prefix == "" {
		prefix = "paygate:webhook"
	}
	return &Guard{store: store, ttl: max(cfg.TTL, 0), prefix: prefix}
}

// Key returns the Redis key marking eventID for provider.
func (g *Guard) Key(provider billing.Provider, eventID string) string {
	return g.prefix + ":" + string(provider) + ":" + eventID
}

// CheckAndMark reports whether the event was already seen and marks it
// otherwise. The check and the mark are one SETNX, so concurrent deliveries
// of the same event cannot both pass.
func (g *Guard) CheckAndMark(ctx context.Context, provider billing.Provider, eventID string) (bool, error) {
	if eventID == "" {
		return false, ErrMissingEventID
	}
	set, err := g.store.SetNX(ctx, g.Key(provider, eventID), time.Now().UTC().Format(time.RFC3339), g.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("idempotency: mark %s event: %w", provider, err)
	}
	return !set, nil
}

// Release forgets the event so a redelivery is processed again.
func (g *Guard) Release(ctx context.Context, provider billing.Provider, eventID string) error {
	if eventID == "" {
		return ErrMissingEventID
	}
	if err := g.store.Del(ctx, g.Key(provider, eventID)).Err(); err != nil {
		return fmt.Errorf("idempotency: release %s event: %w", provider, err)
	}
	return nil
}
