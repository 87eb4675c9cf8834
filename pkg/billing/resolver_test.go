package billing_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/paygate/pkg/billing"
)

// countingDirectory wraps a MemoryDirectory, counting calls and optionally
// failing them.
type countingDirectory struct {
	*billing.MemoryDirectory

	mu       sync.Mutex
	calls    map[string]int
	created  []billing.CreateUserParams
	failWith error
}

func newCountingDirectory(users ...*billing.User) *countingDirectory {
	return &countingDirectory{
		MemoryDirectory: billing.NewMemoryDirectory(users...),
		calls:           make(map[string]int),
	}
}

func (d *countingDirectory) record(method string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.calls[method]++
	return d.failWith
}

func (d *countingDirectory) count(method string) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.calls[method]
}

func (d *countingDirectory) total() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	n := 0
	for _, c := range d.calls {
		n += c
	}
	return n
}

func (d *countingDirectory) GetUser(ctx context.Context, id string) (*billing.User, error) {
	if err := d.record("GetUser"); err != nil {
		return nil, err
	}
	return d.MemoryDirectory.GetUser(ctx, id)
}

func (d *countingDirectory) FindUserByEmail(ctx context.Context, email string) (*billing.User, error) {
	if err := d.record("FindUserByEmail"); err != nil {
		return nil, err
	}
	return d.MemoryDirectory.FindUserByEmail(ctx, email)
}

func (d *countingDirectory) ListUsers(ctx context.Context, offset, limit int) ([]*billing.User, error) {
	if err := d.record("ListUsers"); err != nil {
		return nil, err
	}
	return d.MemoryDirectory.ListUsers(ctx, offset, limit)
}

func (d *countingDirectory) CreateUser(ctx context.Context, params billing.CreateUserParams) (*billing.User, error) {
	if err := d.record("CreateUser"); err != nil {
		return nil, err
	}
	d.mu.Lock()
	d.created = append(d.created, params)
	d.mu.Unlock()
	return d.MemoryDirectory.CreateUser(ctx, params)
}

func (d *countingDirectory) UpdateMetadata(ctx context.Context, id string, public, private map[string]any) (*billing.User, error) {
	if err := d.record("UpdateMetadata"); err != nil {
		return nil, err
	}
	return d.MemoryDirectory.UpdateMetadata(ctx, id, public, private)
}

type brokenIndex struct{}

func (brokenIndex) LookupUser(context.Context, billing.Provider, string) (string, error) {
	return "", errors.New("connection refused")
}

func (brokenIndex) LinkCustomer(context.Context, billing.Provider, string, string) error {
	return errors.New("connection refused")
}

func linkedUser(id, email string, p billing.Provider, customerID string) *billing.User {
	e := billing.Entitlement{Accounts: map[billing.Provider]billing.Account{p: {CustomerID: customerID}}}
	_, private := e.Patch()
	return &billing.User{
		ID:              id,
		Email:           email,
		PrivateMetadata: billing.MergeMetadata(nil, private),
	}
}

func TestResolver(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	t.Run("user id wins over every other identifier", func(t *testing.T) {
		t.Parallel()
		dir := newCountingDirectory(
			&billing.User{ID: "user_1", Email: "one@example.com"},
			linkedUser("user_2", "two@example.com", billing.ProviderStripe, "cus_2"),
		)
		r := billing.NewResolver(dir)

		res, err := r.Resolve(ctx, billing.ResolveParams{
			Provider:   billing.ProviderStripe,
			UserID:     "user_1",
			CustomerID: "cus_2",
			Email:      "two@example.com",
		})

		require.NoError(t, err)
		assert.Equal(t, "user_1", res.User.ID)
		assert.Equal(t, "user_id", res.MatchedBy)
		assert.Equal(t, 1, dir.total())
	})

	t.Run("unknown user id falls through to customer id", func(t *testing.T) {
		t.Parallel()
		dir := newCountingDirectory(linkedUser("user_2", "two@example.com", billing.ProviderStripe, "cus_2"))
		r := billing.NewResolver(dir)

		res, err := r.Resolve(ctx, billing.ResolveParams{
			Provider:   billing.ProviderStripe,
			UserID:     "user_deleted",
			CustomerID: "cus_2",
		})

		require.NoError(t, err)
		assert.Equal(t, "user_2", res.User.ID)
		assert.Equal(t, "customer_id", res.MatchedBy)
	})

	t.Run("indexed customer skips the scan", func(t *testing.T) {
		t.Parallel()
		dir := newCountingDirectory(&billing.User{ID: "user_1"})
		idx := billing.NewMemoryCustomerIndex()
		require.NoError(t, idx.LinkCustomer(ctx, billing.ProviderPolar, "cus_p", "user_1"))
		r := billing.NewResolver(dir, billing.WithCustomerIndex(idx))

		res, err := r.Resolve(ctx, billing.ResolveParams{Provider: billing.ProviderPolar, CustomerID: "cus_p"})

		require.NoError(t, err)
		assert.Equal(t, "user_1", res.User.ID)
		assert.Zero(t, dir.count("ListUsers"))
	})

	t.Run("scan pages the directory and backfills the index", func(t *testing.T) {
		t.Parallel()
		users := make([]*billing.User, 0, 7)
		for _, id := range []string{"u1", "u2", "u3", "u4", "u5", "u6"} {
			users = append(users, &billing.User{ID: id})
		}
		users = append(users, linkedUser("u7", "seven@example.com", billing.ProviderLemonSqueezy, "123"))
		dir := newCountingDirectory(users...)
		idx := billing.NewMemoryCustomerIndex()
		r := billing.NewResolver(dir, billing.WithCustomerIndex(idx), billing.WithScanPageSize(3))

		res, err := r.Resolve(ctx, billing.ResolveParams{Provider: billing.ProviderLemonSqueezy, CustomerID: "123"})

		require.NoError(t, err)
		assert.Equal(t, "u7", res.User.ID)
		assert.Equal(t, 3, dir.count("ListUsers"))

		linked, err := idx.LookupUser(ctx, billing.ProviderLemonSqueezy, "123")
		require.NoError(t, err)
		assert.Equal(t, "u7", linked)
	})

	t.Run("customer ids are scoped per provider", func(t *testing.T) {
		t.Parallel()
		dir := newCountingDirectory(linkedUser("user_1", "", billing.ProviderStripe, "123"))
		r := billing.NewResolver(dir)

		_, err := r.Resolve(ctx, billing.ResolveParams{Provider: billing.ProviderLemonSqueezy, CustomerID: "123"})

		assert.ErrorIs(t, err, billing.ErrUserNotFound)
	})

	t.Run("index outage falls back to the scan", func(t *testing.T) {
		t.Parallel()
		dir := newCountingDirectory(linkedUser("user_1", "", billing.ProviderPaddle, "ctm_1"))
		r := billing.NewResolver(dir, billing.WithCustomerIndex(brokenIndex{}))

		res, err := r.Resolve(ctx, billing.ResolveParams{Provider: billing.ProviderPaddle, CustomerID: "ctm_1"})

		require.NoError(t, err)
		assert.Equal(t, "user_1", res.User.ID)
	})

	t.Run("stale index entry falls back to the scan", func(t *testing.T) {
		t.Parallel()
		dir := newCountingDirectory(linkedUser("user_2", "", billing.ProviderPaddle, "ctm_1"))
		idx := billing.NewMemoryCustomerIndex()
		require.NoError(t, idx.LinkCustomer(ctx, billing.ProviderPaddle, "ctm_1", "user_gone"))
		r := billing.NewResolver(dir, billing.WithCustomerIndex(idx))

		res, err := r.Resolve(ctx, billing.ResolveParams{Provider: billing.ProviderPaddle, CustomerID: "ctm_1"})

		require.NoError(t, err)
		assert.Equal(t, "user_2", res.User.ID)
	})

	t.Run("email match is case-insensitive and picks the earliest user", func(t *testing.T) {
		t.Parallel()
		dir := newCountingDirectory(
			&billing.User{ID: "first", Email: "Ada@Example.com"},
			&billing.User{ID: "second", Email: "ada@example.com"},
		)
		r := billing.NewResolver(dir)

		res, err := r.Resolve(ctx, billing.ResolveParams{
			Provider:   billing.ProviderStripe,
			CustomerID: "cus_unknown",
			Email:      " ada@example.com ",
		})

		require.NoError(t, err)
		assert.Equal(t, "first", res.User.ID)
		assert.Equal(t, "email", res.MatchedBy)
	})

	t.Run("creates a placeholder user when allowed", func(t *testing.T) {
		t.Parallel()
		dir := newCountingDirectory()
		r := billing.NewResolver(dir)

		res, err := r.Resolve(ctx, billing.ResolveParams{
			Provider:        billing.ProviderLemonSqueezy,
			CustomerID:      "123",
			Email:           "new@example.com",
			Name:            "Grace Brewster Hopper",
			CreateIfMissing: true,
		})

		require.NoError(t, err)
		assert.True(t, res.Created)
		assert.Equal(t, "created", res.MatchedBy)
		require.Len(t, dir.created, 1)
		params := dir.created[0]
		assert.Equal(t, "Grace", params.FirstName)
		assert.Equal(t, "Brewster Hopper", params.LastName)
		assert.Len(t, params.Password, 43)

		ent := res.User.Entitlement()
		assert.True(t, ent.CreatedFromPayment)
		assert.Equal(t, "123", ent.CustomerID(billing.ProviderLemonSqueezy))
		assert.False(t, ent.HasAccess)
		assert.NotContains(t, params.PrivateMetadata, "lemonSqueezyEndsAt")
	})

	t.Run("never creates without permission", func(t *testing.T) {
		t.Parallel()
		dir := newCountingDirectory()
		r := billing.NewResolver(dir)

		_, err := r.Resolve(ctx, billing.ResolveParams{
			Provider: billing.ProviderStripe,
			Email:    "new@example.com",
		})

		assert.ErrorIs(t, err, billing.ErrUserNotFound)
		assert.Zero(t, dir.count("CreateUser"))
	})

	t.Run("never creates without an email", func(t *testing.T) {
		t.Parallel()
		dir := newCountingDirectory()
		r := billing.NewResolver(dir)

		_, err := r.Resolve(ctx, billing.ResolveParams{
			Provider:        billing.ProviderStripe,
			CustomerID:      "cus_1",
			CreateIfMissing: true,
		})

		assert.ErrorIs(t, err, billing.ErrUserNotFound)
		assert.Zero(t, dir.count("CreateUser"))
	})

	t.Run("remote failures are not reported as not found", func(t *testing.T) {
		t.Parallel()
		dir := newCountingDirectory()
		dir.failWith = errors.New("identity provider unavailable")
		r := billing.NewResolver(dir)

		_, err := r.Resolve(ctx, billing.ResolveParams{Provider: billing.ProviderStripe, UserID: "user_1"})

		require.Error(t, err)
		assert.NotErrorIs(t, err, billing.ErrUserNotFound)
	})
}
