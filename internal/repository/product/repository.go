package product

import (
	"context"

	"marketplace-checkout/internal/db"
	"marketplace-checkout/internal/domain"
)

type Repository interface {
	// GetByID loads the product with its vendor status, variation types and variations.
	GetByID(ctx context.Context, id string) (*domain.Product, error)
	// GetByIDs returns the products that exist; missing ids are absent from the map.
	GetByIDs(ctx context.Context, ids []string) (map[string]domain.Product, error)
	// Create inserts the product with its variation types and variations.
	// Variations may name options as "Option" or "Type:Option"; unknown refs
	// are stored as given.
	Create(ctx context.Context, p *domain.Product) error
	// DecrementStock and DecrementVariationStock subtract qty atomically and
	// return the remaining count, which may be negative.
	DecrementStock(ctx context.Context, q db.Querier, productID string, qty int) (int, error)
	DecrementVariationStock(ctx context.Context, q db.Querier, variationID string, qty int) (int, error)
}
