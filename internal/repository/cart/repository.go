package cart

import (
	"context"

	"marketplace-checkout/internal/db"
	"marketplace-checkout/internal/domain"
)

type Repository interface {
	// List returns the owner's lines, saved-for-later included, oldest first.
	List(ctx context.Context, owner domain.Owner) ([]domain.CartItem, error)
	// Add inserts the line or, when (owner, product, options) already exists,
	// increments its quantity keeping the captured price.
	Add(ctx context.Context, owner domain.Owner, item domain.CartItem) (*domain.CartItem, error)
	// UpdateQuantity reports false when no matching line exists.
	UpdateQuantity(ctx context.Context, owner domain.Owner, productID string, options domain.OptionSet, quantity int) (bool, error)
	Remove(ctx context.Context, owner domain.Owner, productID string, options domain.OptionSet) error
	SetSavedForLater(ctx context.Context, owner domain.Owner, lineID string, saved bool) error
	// MergeAnonymous moves an anonymous cart into the user's cart, summing
	// quantities on key conflicts, and returns the number of moved lines.
	MergeAnonymous(ctx context.Context, anonymousID, userID string) (int, error)
	// DeleteProducts removes the user's checkout-eligible lines for productIDs.
	DeleteProducts(ctx context.Context, q db.Querier, userID string, productIDs []string) (int64, error)
}
