package identity

import (
	"context"
	"errors"
	"log/slog"

	"github.com/sony/gobreaker/v2"

	"github.com/dmitrymomot/paygate/pkg/billing"
)

// BreakerDirectory decorates a billing.UserDirectory with a circuit breaker.
// Not-found answers and caller cancellations count as successes; an open
// breaker fails fast with billing.ErrRemoteCall.
type BreakerDirectory struct {
	next    billing.UserDirectory
	breaker *gobreaker.CircuitBreaker[any]
}

var _ billing.UserDirectory = (*BreakerDirectory)(nil)

// BreakerOption configures a BreakerDirectory.
type BreakerOption func(*breakerOptions)

type breakerOptions struct {
	logger        *slog.Logger
	onStateChange func(name string, state int)
}

// WithBreakerLogger logs state transitions to l.
func WithBreakerLogger(l *slog.Logger) BreakerOption {
	return func(o *breakerOptions) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithStateObserver reports every transition as 0 closed, 1 half-open, 2 open.
func WithStateObserver(fn func(name string, state int)) BreakerOption {
	return func(o *breakerOptions) {
		o.onStateChange = fn
	}
}

// NewBreakerDirectory wraps next.
func NewBreakerDirectory(next billing.UserDirectory, cfg Config, opts ...BreakerOption) *BreakerDirectory {
	if next == nil {
		panic("identity: directory is required")
	}
	o := &breakerOptions{logger: slog.New(slog.DiscardHandler)}
	for _, opt := range opts {
		opt(o)
	}

	threshold := cfg.BreakerFailureThreshold
	if threshold == 0 {
		threshold = 5
	}

	settings := gobreaker.Settings{
		Name:        "identity",
		MaxRequests: cfg.BreakerMaxRequests,
		Interval:    cfg.BreakerInterval,
		Timeout:     cfg.BreakerTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= threshold
		},
		IsSuccessful: func(err error) bool {
			return err == nil ||
				errors.Is(err, billing.ErrUserNotFound) ||
				errors.Is(err, context.Canceled)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			o.logger.Warn("identity circuit breaker state changed",
				slog.String("breaker", name),
				slog.String("from", from.String()),
				slog.String("to", to.String()),
			)
			if o.onStateChange != nil {
				o.onStateChange(name, int(to))
			}
		},
	}

	return &BreakerDirectory{
		next:    next,
		breaker: gobreaker.NewCircuitBreaker[any](settings),
	}
}

// State returns the current breaker state.
func (d *BreakerDirectory) State() gobreaker.State {
	return d.breaker.State()
}

func (d *BreakerDirectory) user(fn func() (*billing.User, error)) (*billing.User, error) {
	v, err := d.breaker.Execute(func() (any, error) { return fn() })
	if err != nil {
		return nil, openStateError(err)
	}
	u, _ := v.(*billing.User)
	return u, nil
}

// GetUser implements billing.UserDirectory.
func (d *BreakerDirectory) GetUser(ctx context.Context, id string) (*billing.User, error) {
	return d.user(func() (*billing.User, error) { return d.next.GetUser(ctx, id) })
}

// FindUserByEmail implements billing.UserDirectory.
func (d *BreakerDirectory) FindUserByEmail(ctx context.Context, email string) (*billing.User, error) {
	return d.user(func() (*billing.User, error) { return d.next.FindUserByEmail(ctx, email) })
}

// ListUsers implements billing.UserDirectory.
func (d *BreakerDirectory) ListUsers(ctx context.Context, offset, limit int) ([]*billing.User, error) {
	v, err := d.breaker.Execute(func() (any, error) { return d.next.ListUsers(ctx, offset, limit) })
	if err != nil {
		return nil, openStateError(err)
	}
	users, _ := v.([]*billing.User)
	return users, nil
}

// CreateUser implements billing.UserDirectory.
func (d *BreakerDirectory) CreateUser(ctx context.Context, params billing.CreateUserParams) (*billing.User, error) {
	return d.user(func() (*billing.User, error) { return d.next.CreateUser(ctx, params) })
}

// UpdateMetadata implements billing.UserDirectory.
func (d *BreakerDirectory) UpdateMetadata(ctx context.Context, id string, public, private map[string]any) (*billing.User, error) {
	return d.user(func() (*billing.User, error) { return d.next.UpdateMetadata(ctx, id, public, private) })
}

func openStateError(err error) error {
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return errors.Join(billing.ErrRemoteCall, err)
	}
	return err
}
