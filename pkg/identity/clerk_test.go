package identity_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"testing"

	"github.com/clerk/clerk-sdk-go/v2"
	"github.com/clerk/clerk-sdk-go/v2/user"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/paygate/pkg/billing"
	"github.com/dmitrymomot/paygate/pkg/identity"
)

type mockUsers struct {
	mock.Mock
}

func (m *mockUsers) Get(ctx context.Context, id string) (*clerk.User, error) {
	args := m.Called(ctx, id)
	u, _ := args.Get(0).(*clerk.User)
	return u, args.Error(1)
}

func (m *mockUsers) List(ctx context.Context, params *user.ListParams) (*clerk.UserList, error) {
	args := m.Called(ctx, params)
	l, _ := args.Get(0).(*clerk.UserList)
	return l, args.Error(1)
}

func (m *mockUsers) Create(ctx context.Context, params *user.CreateParams) (*clerk.User, error) {
	args := m.Called(ctx, params)
	u, _ := args.Get(0).(*clerk.User)
	return u, args.Error(1)
}

func (m *mockUsers) UpdateMetadata(ctx context.Context, id string, params *user.UpdateMetadataParams) (*clerk.User, error) {
	args := m.Called(ctx, id, params)
	u, _ := args.Get(0).(*clerk.User)
	return u, args.Error(1)
}

func clerkUser(id, email string, public, private string) *clerk.User {
	return &clerk.User{
		ID:                    id,
		FirstName:             clerk.String("Ada"),
		LastName:              clerk.String("Lovelace"),
		PrimaryEmailAddressID: clerk.String("idn_2"),
		EmailAddresses: []*clerk.EmailAddress{
			{ID: "idn_1", EmailAddress: "old@example.com"},
			{ID: "idn_2", EmailAddress: email},
		},
		PublicMetadata:  json.RawMessage(public),
		PrivateMetadata: json.RawMessage(private),
	}
}

func TestClerkDirectoryGetUser(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("converts the clerk user", func(t *testing.T) {
		t.Parallel()
		api := &mockUsers{}
		api.On("Get", ctx, "user_1").Return(
			clerkUser("user_1", "ada@example.com", `{"hasAccess":true,"stripeCustomerId":"cus_1"}`, `null`), nil)

		u, err := identity.NewClerkDirectoryWithAPI(api).GetUser(ctx, "user_1")
		require.NoError(t, err)
		assert.Equal(t, "user_1", u.ID)
		assert.Equal(t, "ada@example.com", u.Email)
		assert.Equal(t, "Ada Lovelace", u.Name)
		assert.Equal(t, true, u.PublicMetadata["hasAccess"])
		assert.Empty(t, u.PrivateMetadata)
		assert.True(t, u.Entitlement().HasAccess)
		assert.Equal(t, "cus_1", u.Entitlement().CustomerID(billing.ProviderStripe))
	})

	t.Run("404 maps to ErrUserNotFound", func(t *testing.T) {
		t.Parallel()
		api := &mockUsers{}
		api.On("Get", ctx, "user_x").Return(nil, &clerk.APIErrorResponse{HTTPStatusCode: http.StatusNotFound})

		_, err := identity.NewClerkDirectoryWithAPI(api).GetUser(ctx, "user_x")
		require.ErrorIs(t, err, billing.ErrUserNotFound)
	})

	t.Run("other failures are wrapped", func(t *testing.T) {
		t.Parallel()
		api := &mockUsers{}
		api.On("Get", ctx, "user_1").Return(nil, errors.New("timeout"))

		_, err := identity.NewClerkDirectoryWithAPI(api).GetUser(ctx, "user_1")
		require.Error(t, err)
		assert.NotErrorIs(t, err, billing.ErrUserNotFound)
	})

	t.Run("malformed metadata", func(t *testing.T) {
		t.Parallel()
		api := &mockUsers{}
		api.On("Get", ctx, "user_1").Return(clerkUser("user_1", "a@example.com", `[1,2]`, `{}`), nil)

		_, err := identity.NewClerkDirectoryWithAPI(api).GetUser(ctx, "user_1")
		require.ErrorIs(t, err, identity.ErrMalformedUser)
	})
}

func TestClerkDirectoryFindUserByEmail(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("queries by address, oldest first", func(t *testing.T) {
		t.Parallel()
		api := &mockUsers{}
		api.On("List", ctx, mock.MatchedBy(func(p *user.ListParams) bool {
			return len(p.EmailAddresses) == 1 && p.EmailAddresses[0] == "ada@example.com" &&
				p.OrderBy != nil && *p.OrderBy == "+created_at" &&
				p.Limit != nil && *p.Limit == 1
		})).Return(&clerk.UserList{Users: []*clerk.User{clerkUser("user_1", "ada@example.com", `{}`, `{}`)}, TotalCount: 1}, nil)

		u, err := identity.NewClerkDirectoryWithAPI(api).FindUserByEmail(ctx, " ada@example.com ")
		require.NoError(t, err)
		assert.Equal(t, "user_1", u.ID)
	})

	t.Run("no match", func(t *testing.T) {
		t.Parallel()
		api := &mockUsers{}
		api.On("List", ctx, mock.Anything).Return(&clerk.UserList{}, nil)

		_, err := identity.NewClerkDirectoryWithAPI(api).FindUserByEmail(ctx, "nobody@example.com")
		require.ErrorIs(t, err, billing.ErrUserNotFound)
	})

	t.Run("empty email skips the call", func(t *testing.T) {
		t.Parallel()
		api := &mockUsers{}
		_, err := identity.NewClerkDirectoryWithAPI(api).FindUserByEmail(ctx, "")
		require.ErrorIs(t, err, billing.ErrUserNotFound)
		api.AssertNotCalled(t, "List", mock.Anything, mock.Anything)
	})
}

func TestClerkDirectoryListUsers(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	api := &mockUsers{}
	api.On("List", ctx, mock.MatchedBy(func(p *user.ListParams) bool {
		return *p.Offset == 200 && *p.Limit == 100
	})).Return(&clerk.UserList{Users: []*clerk.User{
		clerkUser("user_1", "a@example.com", `{}`, `{}`),
		clerkUser("user_bad", "b@example.com", `"oops"`, `{}`),
		clerkUser("user_2", "c@example.com", `{}`, `{}`),
	}}, nil)

	users, err := identity.NewClerkDirectoryWithAPI(api).ListUsers(ctx, 200, 100)
	require.NoError(t, err)
	require.Len(t, users, 3)
	assert.Equal(t, "user_bad", users[1].ID)
	assert.Equal(t, "b@example.com", users[1].Email)
	assert.Empty(t, users[1].PublicMetadata)
	assert.Equal(t, "user_2", users[2].ID)
}

func TestClerkDirectoryScanPastMalformedUser(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	api := &mockUsers{}
	api.On("List", ctx, mock.MatchedBy(func(p *user.ListParams) bool {
		return p.Offset != nil && *p.Offset == 0
	})).Return(&clerk.UserList{Users: []*clerk.User{
		clerkUser("user_bad", "bad@example.com", `"corrupt"`, `{}`),
		clerkUser("user_1", "one@example.com", `{}`, `{}`),
	}}, nil)
	api.On("List", ctx, mock.MatchedBy(func(p *user.ListParams) bool {
		return p.Offset != nil && *p.Offset == 2
	})).Return(&clerk.UserList{Users: []*clerk.User{
		clerkUser("user_target", "target@example.com", `{}`, `{"stripeCustomerId":"cus_9"}`),
	}}, nil)

	r := billing.NewResolver(identity.NewClerkDirectoryWithAPI(api), billing.WithScanPageSize(2))

	res, err := r.Resolve(ctx, billing.ResolveParams{Provider: billing.ProviderStripe, CustomerID: "cus_9"})

	require.NoError(t, err)
	assert.Equal(t, "user_target", res.User.ID)
	assert.Equal(t, "customer_id", res.MatchedBy)
	api.AssertExpectations(t)
}

func TestClerkDirectoryWrites(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("create user", func(t *testing.T) {
		t.Parallel()
		api := &mockUsers{}
		api.On("Create", ctx, mock.MatchedBy(func(p *user.CreateParams) bool {
			var private map[string]any
			_ = json.Unmarshal(*p.PrivateMetadata, &private)
			return (*p.EmailAddresses)[0] == "buyer@example.com" &&
				*p.SkipPasswordChecks && *p.Password == "secret" &&
				*p.FirstName == "Ada" && p.LastName == nil &&
				p.PublicMetadata == nil &&
				private["createdFromPayment"] == true
		})).Return(clerkUser("user_new", "buyer@example.com", `{}`, `{"createdFromPayment":true}`), nil)

		u, err := identity.NewClerkDirectoryWithAPI(api).CreateUser(ctx, billing.CreateUserParams{
			Email:           "buyer@example.com",
			FirstName:       "Ada",
			Password:        "secret",
			PrivateMetadata: map[string]any{"createdFromPayment": true},
		})
		require.NoError(t, err)
		assert.Equal(t, "user_new", u.ID)
		api.AssertExpectations(t)
	})

	t.Run("update metadata sends nulls for deletions", func(t *testing.T) {
		t.Parallel()
		api := &mockUsers{}
		api.On("UpdateMetadata", ctx, "user_1", mock.MatchedBy(func(p *user.UpdateMetadataParams) bool {
			return p.PublicMetadata != nil &&
				string(*p.PublicMetadata) == `{"hasAccess":false,"stripeRenewsAt":null}` &&
				p.PrivateMetadata == nil
		})).Return(clerkUser("user_1", "a@example.com", `{"hasAccess":false}`, `{}`), nil)

		u, err := identity.NewClerkDirectoryWithAPI(api).UpdateMetadata(ctx, "user_1",
			map[string]any{"hasAccess": false, "stripeRenewsAt": nil}, nil)
		require.NoError(t, err)
		assert.Equal(t, false, u.PublicMetadata["hasAccess"])
		api.AssertExpectations(t)
	})
}

func TestNewClerkDirectoryRequiresKey(t *testing.T) {
	t.Parallel()
	_, err := identity.NewClerkDirectory(identity.Config{})
	require.ErrorIs(t, err, identity.ErrMissingSecretKey)
}
