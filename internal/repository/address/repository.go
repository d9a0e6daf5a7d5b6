package address

import (
	"context"

	"marketplace-checkout/internal/domain"
)

type Repository interface {
	Create(ctx context.Context, a domain.Address) (*domain.Address, error)
	// GetForUser returns domain.ErrNotFound when the address belongs to someone else.
	GetForUser(ctx context.Context, id, userID string) (*domain.Address, error)
}
