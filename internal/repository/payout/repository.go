package payout

import (
	"context"
	"time"

	"marketplace-checkout/internal/db"
	"marketplace-checkout/internal/domain"
)

type Repository interface {
	// LastUntil returns the end of the vendor's latest payout window; ok is
	// false when the vendor was never paid.
	LastUntil(ctx context.Context, vendorID string) (until time.Time, ok bool, err error)
	// Create returns domain.ErrAlreadyExists when the window was already paid.
	Create(ctx context.Context, q db.Querier, p *domain.Payout) error
	ListByVendor(ctx context.Context, vendorID string) ([]domain.Payout, error)
}
