package customerindex

import (
	"context"
	"embed"
	"fmt"
	"io/fs"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/dmitrymomot/paygate/pkg/billing"
	"github.com/dmitrymomot/paygate/pkg/pg"
)

//go:embed migrations/*.sql
var migrationFiles embed.FS

// Migrations holds the goose migrations for the billing_customers table.
var Migrations = mustSub(migrationFiles, "migrations")

func mustSub(fsys fs.FS, dir string) fs.FS {
	sub, err := fs.Sub(fsys, dir)
	if err != nil {
		panic(err)
	}
	return sub
}

const (
	lookupQuery = `SELECT user_id FROM billing_customers WHERE provider = $1 AND customer_id = $2`
	linkQuery   = `INSERT INTO billing_customers (provider, customer_id, user_id) VALUES ($1, $2, $3)
ON CONFLICT (provider, customer_id) DO NOTHING`
	unlinkQuery = `DELETE FROM billing_customers WHERE provider = $1 AND customer_id = $2`
)

// DB is the subset of *pgxpool.Pool the index uses.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Index maps provider customer IDs to identity directory user IDs.
// It implements billing.CustomerIndex.
type Index struct {
	db DB
}

var _ billing.CustomerIndex = (*Index)(nil)

// New creates an Index. Panics if db is nil.
func New(db DB) *Index {
	if db == nil {
		panic("customerindex: db is required")
	}
	return &Index{db: db}
}

// LookupUser returns the user linked to customerID, or
// billing.ErrCustomerNotLinked.
func (x *Index) LookupUser(ctx context.Context, provider billing.Provider, customerID string) (string, error) {
	var userID string
	err := x.db.QueryRow(ctx, lookupQuery, string(provider), customerID).Scan(&userID)
	if pg.IsNotFoundError(err) {
		return "", billing.ErrCustomerNotLinked
	}
	if err != nil {
		return "", fmt.Errorf("customerindex: lookup %s customer: %w", provider, err)
	}
	return userID, nil
}

// LinkCustomer records customerID as belonging to userID. An existing link
// for the same customer is kept.
func (x *Index) LinkCustomer(ctx context.Context, provider billing.Provider, customerID, userID string) error {
	if customerID == "" || userID == "" {
		return nil
	}
	if _, err := x.db.Exec(ctx, linkQuery, string(provider), customerID, userID); err != nil {
		return fmt.Errorf("customerindex: link %s customer: %w", provider, err)
	}
	return nil
}

// UnlinkCustomer removes a link, for example after the user was deleted
// from the directory. It reports whether a row was removed.
func (x *Index) UnlinkCustomer(ctx context.Context, provider billing.Provider, customerID string) (bool, error) {
	tag, err := x.db.Exec(ctx, unlinkQuery, string(provider), customerID)
	if err != nil {
		return false, fmt.Errorf("customerindex: unlink %s customer: %w", provider, err)
	}
	return tag.RowsAffected() > 0, nil
}
