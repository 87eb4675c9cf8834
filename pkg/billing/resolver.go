package billing

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/dmitrymomot/paygate/pkg/logger"
)

const defaultScanPageSize = 100

// ResolveParams carries the identifiers an event offers for locating its user.
type ResolveParams struct {
	Provider   Provider
	UserID     string
	CustomerID string
	Email      string
	Name       string
	// CreateIfMissing allows synthesizing a placeholder account.
	// Only set for actions that grant access after a payment.
	CreateIfMissing bool
}

// Resolution is the outcome of a successful lookup.
type Resolution struct {
	User    *User
	Created bool
	// MatchedBy names the identifier that matched: user_id, customer_id, email or created.
	MatchedBy string
}

// Resolver locates the user an event belongs to.
// Order, first match wins: user ID, customer ID, email, then creation.
type Resolver struct {
	directory    UserDirectory
	index        CustomerIndex
	scanPageSize int
	logger       *slog.Logger
}

// ResolverOption configures a Resolver.
type ResolverOption func(*Resolver)

// WithCustomerIndex sets the customer ID index consulted before the directory scan.
func WithCustomerIndex(idx CustomerIndex) ResolverOption {
	return func(r *Resolver) {
		r.index = idx
	}
}

// WithScanPageSize sets the page size of the fallback directory scan.
func WithScanPageSize(n int) ResolverOption {
	return func(r *Resolver) {
		if n > 0 {
			r.scanPageSize = n
		}
	}
}

// WithResolverLogger sets the resolver's logger.
func WithResolverLogger(l *slog.Logger) ResolverOption {
	return func(r *Resolver) {
		if l != nil {
			r.logger = l
		}
	}
}

// NewResolver creates a resolver over the identity provider's directory.
func NewResolver(directory UserDirectory, opts ...ResolverOption) *Resolver {
	if directory == nil {
		panic("billing: UserDirectory is required")
	}
	r := &Resolver{
		directory:    directory,
		scanPageSize: defaultScanPageSize,
		logger:       slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Resolve finds or, when allowed, creates the user for p.
// It returns ErrUserNotFound when nothing matches and creation is not allowed.
func (r *Resolver) Resolve(ctx context.Context, p ResolveParams) (*Resolution, error) {
	if p.UserID != "" {
		u, err := r.directory.GetUser(ctx, p.UserID)
		switch {
		case err == nil:
			return &Resolution{User: u, MatchedBy: "user_id"}, nil
		case !errors.Is(err, ErrUserNotFound):
			return nil, fmt.Errorf("get user %s: %w", p.UserID, err)
		}
		r.logger.WarnContext(ctx, "user id from payload does not resolve, falling through",
			logger.UserID(p.UserID), logger.Provider(string(p.Provider)))
	}

	if p.CustomerID != "" {
		u, err := r.byCustomerID(ctx, p.Provider, p.CustomerID)
		switch {
		case err == nil:
			return &Resolution{User: u, MatchedBy: "customer_id"}, nil
		case !errors.Is(err, ErrUserNotFound):
			return nil, err
		}
	}

	email := strings.TrimSpace(p.Email)
	if email != "" {
		u, err := r.directory.FindUserByEmail(ctx, email)
		switch {
		case err == nil:
			return &Resolution{User: u, MatchedBy: "email"}, nil
		case !errors.Is(err, ErrUserNotFound):
			return nil, fmt.Errorf("find user by email: %w", err)
		}
	}

	if !p.CreateIfMissing || email == "" {
		return nil, ErrUserNotFound
	}

	u, err := r.create(ctx, p, email)
	if err != nil {
		return nil, err
	}
	return &Resolution{User: u, Created: true, MatchedBy: "created"}, nil
}

func (r *Resolver) byCustomerID(ctx context.Context, provider Provider, customerID string) (*User, error) {
	if r.index != nil {
		userID, err := r.index.LookupUser(ctx, provider, customerID)
		switch {
		case err == nil:
			u, err := r.directory.GetUser(ctx, userID)
			if err == nil {
				return u, nil
			}
			if !errors.Is(err, ErrUserNotFound) {
				return nil, fmt.Errorf("get indexed user %s: %w", userID, err)
			}
			// Stale link: the user was deleted upstream. Fall back to the scan.
		case !errors.Is(err, ErrCustomerNotLinked):
			r.logger.WarnContext(ctx, "customer index lookup failed, scanning directory",
				logger.Provider(string(provider)), logger.CustomerID(customerID), logger.Error(err))
		}
	}

	u, err := r.scan(ctx, provider, customerID)
	if err != nil {
		return nil, err
	}

	if r.index != nil {
		if err := r.index.LinkCustomer(ctx, provider, customerID, u.ID); err != nil {
			r.logger.WarnContext(ctx, "failed to backfill customer index",
				logger.Provider(string(provider)), logger.CustomerID(customerID), logger.Error(err))
		}
	}
	return u, nil
}

// scan pages through the whole directory looking for stored linkage metadata.
// It only runs when the index has no entry, e.g. for users linked before the index existed.
func (r *Resolver) scan(ctx context.Context, provider Provider, customerID string) (*User, error) {
	for offset := 0; ; offset += r.scanPageSize {
		users, err := r.directory.ListUsers(ctx, offset, r.scanPageSize)
		if err != nil {
			return nil, fmt.Errorf("list users at offset %d: %w", offset, err)
		}
		for _, u := range users {
			if u.Entitlement().CustomerID(provider) == customerID {
				return u, nil
			}
		}
		if len(users) < r.scanPageSize {
			return nil, ErrUserNotFound
		}
	}
}

func (r *Resolver) create(ctx context.Context, p ResolveParams, email string) (*User, error) {
	password, err := placeholderPassword()
	if err != nil {
		return nil, err
	}

	first, last, _ := strings.Cut(strings.TrimSpace(p.Name), " ")
	seed := Entitlement{CreatedFromPayment: true}
	if p.CustomerID != "" {
		seed.Accounts = map[Provider]Account{p.Provider: {CustomerID: p.CustomerID}}
	}
	_, private := seed.Patch()

	u, err := r.directory.CreateUser(ctx, CreateUserParams{
		Email:           email,
		FirstName:       first,
		LastName:        strings.TrimSpace(last),
		Password:        password,
		PrivateMetadata: dropNil(private),
	})
	if err != nil {
		return nil, fmt.Errorf("create user for %s customer: %w", p.Provider, err)
	}

	r.logger.InfoContext(ctx, "created user from payment",
		logger.UserID(u.ID), logger.Provider(string(p.Provider)), logger.CustomerID(p.CustomerID))
	return u, nil
}

// placeholderPassword returns a random secret nobody knows; the buyer signs in
// through a reset or magic link.
func placeholderPassword() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate placeholder password: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

func dropNil(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		if v != nil {
			out[k] = v
		}
	}
	return out
}
