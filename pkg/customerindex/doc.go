// Package customerindex stores the provider customer ID to user ID mapping in
// Postgres, so webhook events that only carry a customer ID resolve with a
// point read instead of a directory scan.
//
// The table is created by the embedded goose migrations:
//
//	if _, err := pg.Migrate(ctx, pool, customerindex.Migrations, log); err != nil {
//		return err
//	}
//	idx := customerindex.New(pool)
package customerindex
