package seed

import (
	"context"
	"fmt"

	"marketplace-checkout/internal/domain"
	productrepo "marketplace-checkout/internal/repository/product"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

type vendorSeed struct {
	UserID          string
	StoreName       string
	Email           string
	PayoutAccountID string
}

func intPtr(v int) *int { return &v }
func centsPtr(v int64) *int64 { return &v }

// Apply inserts demo vendors and products for manual testing. Vendors are
// upserted; products are created once and skipped when the slug exists.
func Apply(ctx context.Context, pool *pgxpool.Pool, logger *zap.Logger) error {
	vendors := []vendorSeed{
		{UserID: "vendor-demo-1", StoreName: "Demo Threads", Email: "threads@example.com", PayoutAccountID: "acct_demo_threads"},
		{UserID: "vendor-demo-2", StoreName: "Demo Kitchen", Email: "kitchen@example.com", PayoutAccountID: "acct_demo_kitchen"},
	}
	for _, v := range vendors {
		if err := upsertVendor(ctx, pool, v); err != nil {
			return fmt.Errorf("upsert vendor %s: %w", v.UserID, err)
		}
	}

	products := []domain.Product{
		{
			VendorID:   "vendor-demo-1",
			Department: "apparel",
			Title:      "Demo T-Shirt",
			Slug:       "demo-shirt",
			PriceCents: 1999,
			Status:     domain.ProductPublished,
			VariationTypes: []domain.VariationType{
				{Name: "Color", Kind: domain.VariationImage, Options: []domain.VariationOption{{Name: "Black"}, {Name: "White"}}},
				{Name: "Size", Kind: domain.VariationSelect, Options: []domain.VariationOption{{Name: "M"}, {Name: "L"}}},
			},
			Variations: []domain.ProductVariation{
				{Options: domain.NewOptionSet("Black", "L"), PriceCents: centsPtr(2199), Quantity: intPtr(5)},
				{Options: domain.NewOptionSet("White", "M"), Quantity: intPtr(0)},
			},
		},
		{
			VendorID:   "vendor-demo-2",
			Department: "kitchen",
			Title:      "Demo Mug",
			Slug:       "demo-mug",
			PriceCents: 1299,
			Quantity:   intPtr(25),
			Status:     domain.ProductPublished,
		},
	}

	repo := productrepo.NewPostgres(pool, logger)
	for i := range products {
		p := &products[i]
		exists, err := slugExists(ctx, pool, p.Slug)
		if err != nil {
			return fmt.Errorf("check product %s: %w", p.Slug, err)
		}
		if exists {
			logger.Debug("seed product exists", zap.String("slug", p.Slug))
			continue
		}
		if err := repo.Create(ctx, p); err != nil {
			return fmt.Errorf("create product %s: %w", p.Slug, err)
		}
		logger.Info("seed product created", zap.String("slug", p.Slug), zap.String("id", p.ID))
	}

	return nil
}

func upsertVendor(ctx context.Context, pool *pgxpool.Pool, v vendorSeed) error {
	const q = `
INSERT INTO vendors (user_id, store_name, email, status, payout_account_id)
VALUES ($1, $2, $3, 'approved', $4)
ON CONFLICT (user_id) DO UPDATE
SET store_name = EXCLUDED.store_name,
    email = EXCLUDED.email,
    status = EXCLUDED.status,
    payout_account_id = EXCLUDED.payout_account_id
`
	_, err := pool.Exec(ctx, q, v.UserID, v.StoreName, v.Email, v.PayoutAccountID)
	return err
}

func slugExists(ctx context.Context, pool *pgxpool.Pool, slug string) (bool, error) {
	var exists bool
	err := pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM products WHERE slug = $1)`, slug).Scan(&exists)
	return exists, err
}
