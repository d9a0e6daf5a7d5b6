// Package dbtest prepares a migrated, empty Postgres database for
// repository integration tests.
package dbtest

import (
	"context"
	"os"
	"testing"

	"marketplace-checkout/internal/migrate"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Pool connects to TEST_DB_DSN, applies migrations and truncates every table.
// The test is skipped when TEST_DB_DSN is unset.
func Pool(t *testing.T) *pgxpool.Pool {
	t.Helper()
	dsn := os.Getenv("TEST_DB_DSN")
	if dsn == "" {
		t.Skip("TEST_DB_DSN not set")
	}
	ctx := context.Background()
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		t.Fatalf("connect db: %v", err)
	}
	t.Cleanup(pool.Close)

	if err := migrate.Apply(ctx, pool, nil); err != nil {
		t.Fatalf("apply migrations: %v", err)
	}
	if _, err := pool.Exec(ctx, `
TRUNCATE deferred_charges, webhook_events, payouts, order_items, orders, cart_items, addresses,
         product_variations, variation_type_options, variation_types, products, vendors
RESTART IDENTITY CASCADE`); err != nil {
		t.Fatalf("truncate tables: %v", err)
	}
	return pool
}

// Vendor inserts an approved vendor and returns its user id.
func Vendor(t *testing.T, pool *pgxpool.Pool, userID, payoutAccount string) string {
	t.Helper()
	_, err := pool.Exec(context.Background(), `
INSERT INTO vendors (user_id, store_name, email, status, payout_account_id)
VALUES ($1, $1 || ' store', $1 || '@example.com', 'approved', NULLIF($2, ''))
`, userID, payoutAccount)
	if err != nil {
		t.Fatalf("insert vendor: %v", err)
	}
	return userID
}

// Product inserts a published product without variations.
func Product(t *testing.T, pool *pgxpool.Pool, vendorID string, priceCents int64, quantity *int) string {
	t.Helper()
	var id string
	err := pool.QueryRow(context.Background(), `
INSERT INTO products (vendor_id, title, slug, price_cents, quantity, status)
VALUES ($1, 'Product', 'product', $2, $3, 'published')
RETURNING id::text
`, vendorID, priceCents, quantity).Scan(&id)
	if err != nil {
		t.Fatalf("insert product: %v", err)
	}
	return id
}
