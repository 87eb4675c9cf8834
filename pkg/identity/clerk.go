package identity

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/clerk/clerk-sdk-go/v2"
	"github.com/clerk/clerk-sdk-go/v2/user"

	"github.com/dmitrymomot/paygate/pkg/billing"
)

// UsersAPI is the subset of the Clerk users client the directory calls.
type UsersAPI interface {
	Get(ctx context.Context, id string) (*clerk.User, error)
	List(ctx context.Context, params *user.ListParams) (*clerk.UserList, error)
	Create(ctx context.Context, params *user.CreateParams) (*clerk.User, error)
	UpdateMetadata(ctx context.Context, id string, params *user.UpdateMetadataParams) (*clerk.User, error)
}

// ClerkDirectory implements billing.UserDirectory on Clerk's Backend API.
// Entitlements live in user public and private metadata.
type ClerkDirectory struct {
	users UsersAPI
}

var _ billing.UserDirectory = (*ClerkDirectory)(nil)

// NewClerkDirectory builds a directory from the secret key in cfg.
func NewClerkDirectory(cfg Config) (*ClerkDirectory, error) {
	if cfg.SecretKey == "" {
		return nil, ErrMissingSecretKey
	}
	return NewClerkDirectoryWithAPI(user.NewClient(clientConfig(cfg))), nil
}

// NewClerkDirectoryWithAPI wraps an existing users client.
func NewClerkDirectoryWithAPI(api UsersAPI) *ClerkDirectory {
	if api == nil {
		panic("identity: clerk users API is required")
	}
	return &ClerkDirectory{users: api}
}

func clientConfig(cfg Config) *clerk.ClientConfig {
	c := &clerk.ClientConfig{}
	c.Key = clerk.String(cfg.SecretKey)
	if cfg.APIURL != "" {
		c.URL = clerk.String(cfg.APIURL)
	}
	return c
}

// GetUser implements billing.UserDirectory.
func (d *ClerkDirectory) GetUser(ctx context.Context, id string) (*billing.User, error) {
	u, err := d.users.Get(ctx, id)
	if err != nil {
		return nil, translateError("get user", err)
	}
	return toUser(u)
}

// FindUserByEmail implements billing.UserDirectory. The oldest matching
// account wins when Clerk returns several.
func (d *ClerkDirectory) FindUserByEmail(ctx context.Context, email string) (*billing.User, error) {
	email = strings.TrimSpace(email)
	if email == "" {
		return nil, billing.ErrUserNotFound
	}
	params := &user.ListParams{
		EmailAddresses: []string{email},
		OrderBy:        clerk.String("+created_at"),
	}
	params.Limit = clerk.Int64(1)

	list, err := d.users.List(ctx, params)
	if err != nil {
		return nil, translateError("find user by email", err)
	}
	if list == nil || len(list.Users) == 0 {
		return nil, billing.ErrUserNotFound
	}
	return toUser(list.Users[0])
}

// ListUsers implements billing.UserDirectory.
func (d *ClerkDirectory) ListUsers(ctx context.Context, offset, limit int) ([]*billing.User, error) {
	params := &user.ListParams{OrderBy: clerk.String("+created_at")}
	params.Limit = clerk.Int64(int64(limit))
	params.Offset = clerk.Int64(int64(offset))

	list, err := d.users.List(ctx, params)
	if err != nil {
		return nil, translateError("list users", err)
	}
	if list == nil {
		return nil, nil
	}
	// The page keeps one entry per listed user: callers treat a short page as
	// the end of the listing, so a record with unreadable metadata stays in
	// with its identity fields only and matches no stored linkage.
	out := make([]*billing.User, 0, len(list.Users))
	for _, u := range list.Users {
		if u == nil {
			continue
		}
		converted, err := toUser(u)
		if err != nil {
			converted = bareUser(u)
		}
		out = append(out, converted)
	}
	return out, nil
}

// CreateUser implements billing.UserDirectory.
func (d *ClerkDirectory) CreateUser(ctx context.Context, params billing.CreateUserParams) (*billing.User, error) {
	create := &user.CreateParams{
		EmailAddresses:     &[]string{params.Email},
		SkipPasswordChecks: clerk.Bool(true),
	}
	if params.Password != "" {
		create.Password = clerk.String(params.Password)
	}
	if params.FirstName != "" {
		create.FirstName = clerk.String(params.FirstName)
	}
	if params.LastName != "" {
		create.LastName = clerk.String(params.LastName)
	}
	var err error
	if create.PublicMetadata, err = rawMetadata(params.PublicMetadata); err != nil {
		return nil, err
	}
	if create.PrivateMetadata, err = rawMetadata(params.PrivateMetadata); err != nil {
		return nil, err
	}

	u, err := d.users.Create(ctx, create)
	if err != nil {
		return nil, translateError("create user", err)
	}
	return toUser(u)
}

// UpdateMetadata implements billing.UserDirectory. Clerk merges the patch
// into stored metadata and deletes keys set to null.
func (d *ClerkDirectory) UpdateMetadata(ctx context.Context, id string, public, private map[string]any) (*billing.User, error) {
	params := &user.UpdateMetadataParams{}
	var err error
	if params.PublicMetadata, err = rawMetadata(public); err != nil {
		return nil, err
	}
	if params.PrivateMetadata, err = rawMetadata(private); err != nil {
		return nil, err
	}

	u, err := d.users.UpdateMetadata(ctx, id, params)
	if err != nil {
		return nil, translateError("update metadata", err)
	}
	return toUser(u)
}

func rawMetadata(m map[string]any) (*json.RawMessage, error) {
	if len(m) == 0 {
		return nil, nil
	}
	b, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("identity: encode metadata: %w", err)
	}
	raw := json.RawMessage(b)
	return &raw, nil
}

func toUser(u *clerk.User) (*billing.User, error) {
	if u == nil {
		return nil, billing.ErrUserNotFound
	}
	public, err := decodeMetadata(u.PublicMetadata)
	if err != nil {
		return nil, err
	}
	private, err := decodeMetadata(u.PrivateMetadata)
	if err != nil {
		return nil, err
	}

	out := bareUser(u)
	out.PublicMetadata = public
	out.PrivateMetadata = private
	return out, nil
}

// bareUser converts the identity fields only, leaving metadata empty.
func bareUser(u *clerk.User) *billing.User {
	var first, last string
	if u.FirstName != nil {
		first = *u.FirstName
	}
	if u.LastName != nil {
		last = *u.LastName
	}

	return &billing.User{
		ID:              u.ID,
		Email:           primaryEmail(u),
		Name:            strings.TrimSpace(first + " " + last),
		PublicMetadata:  map[string]any{},
		PrivateMetadata: map[string]any{},
	}
}

func decodeMetadata(raw json.RawMessage) (map[string]any, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return map[string]any{}, nil
	}
	m := map[string]any{}
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, errors.Join(ErrMalformedUser, err)
	}
	return m, nil
}

func primaryEmail(u *clerk.User) string {
	for _, e := range u.EmailAddresses {
		if e != nil && u.PrimaryEmailAddressID != nil && e.ID == *u.PrimaryEmailAddressID {
			return e.EmailAddress
		}
	}
	if len(u.EmailAddresses) > 0 && u.EmailAddresses[0] != nil {
		return u.EmailAddresses[0].EmailAddress
	}
	return ""
}

// translateError maps Clerk 404 responses onto billing.ErrUserNotFound.
func translateError(op string, err error) error {
	var apiErr *clerk.APIErrorResponse
	if errors.As(err, &apiErr) && apiErr.HTTPStatusCode == http.StatusNotFound {
		return billing.ErrUserNotFound
	}
	return fmt.Errorf("identity: clerk %s: %w", op, err)
}
