package billing

import "context"

// User is the identity-provider record the entitlement lives on.
type User struct {
	ID              string
	Email           string
	Name            string
	PublicMetadata  map[string]any
	PrivateMetadata map[string]any
}

// Entitlement decodes the user's stored entitlement record.
func (u *User) Entitlement() Entitlement {
	if u == nil {
		return Entitlement{}
	}
	return EntitlementFromMetadata(u.PublicMetadata, u.PrivateMetadata)
}

// CreateUserParams describes a placeholder account synthesized after payment.
type CreateUserParams struct {
	Email           string
	FirstName       string
	LastName        string
	Password        string
	PublicMetadata  map[string]any
	PrivateMetadata map[string]any
}

// UserDirectory is the identity provider's user store.
// Lookups return ErrUserNotFound when nothing matches.
type UserDirectory interface {
	GetUser(ctx context.Context, id string) (*User, error)
	FindUserByEmail(ctx context.Context, email string) (*User, error)
	// ListUsers returns one page ordered by creation; a short page ends the listing.
	ListUsers(ctx context.Context, offset, limit int) ([]*User, error)
	CreateUser(ctx context.Context, params CreateUserParams) (*User, error)
	// UpdateMetadata shallow-merges the patches into stored metadata; nil values delete keys.
	UpdateMetadata(ctx context.Context, id string, public, private map[string]any) (*User, error)
}

// CustomerIndex maps provider customer IDs to user IDs.
// The first link for a customer wins; later links are ignored.
type CustomerIndex interface {
	LookupUser(ctx context.Context, provider Provider, customerID string) (string, error)
	LinkCustomer(ctx context.Context, provider Provider, customerID, userID string) error
}

// EventGuard remembers processed vendor event IDs.
type EventGuard interface {
	// CheckAndMark marks the event and reports whether it had already been marked.
	CheckAndMark(ctx context.Context, provider Provider, eventID string) (bool, error)
	// Release forgets the event so a redelivery is processed again.
	Release(ctx context.Context, provider Provider, eventID string) error
}
