package order

import (
	"context"
	"time"

	"marketplace-checkout/internal/db"
	"marketplace-checkout/internal/domain"
)

// Methods taking a db.Querier run inside the caller's transaction.
type Repository interface {
	// Create inserts the order and its items, filling generated ids.
	Create(ctx context.Context, q db.Querier, o *domain.Order) error
	SetSessionID(ctx context.Context, q db.Querier, orderIDs []string, sessionID string) error
	ListBySession(ctx context.Context, q db.Querier, sessionID string) ([]domain.Order, error)
	ListByPaymentIntent(ctx context.Context, q db.Querier, paymentIntentID string) ([]domain.Order, error)
	// MarkPaid stamps a draft order once. It reports false when the order
	// already carries a payment intent and returns domain.ErrAlreadyExists
	// when the tracking number is taken.
	MarkPaid(ctx context.Context, q db.Querier, orderID string, f domain.Fulfillment) (bool, error)
	// SetFeeSplit records commissions once; false means already reconciled.
	SetFeeSplit(ctx context.Context, q db.Querier, orderID string, split domain.FeeSplit) (bool, error)

	GetByID(ctx context.Context, id string) (*domain.Order, error)
	GetByTrackingNumber(ctx context.Context, trackingNumber string) (*domain.Order, error)
	ListPaidByUser(ctx context.Context, userID string) ([]domain.Order, error)
	// UpdateShippingStatus moves from -> to and reports false when the order
	// was no longer in from.
	UpdateShippingStatus(ctx context.Context, orderID string, from, to domain.ShippingStatus) (bool, error)
	// SumVendorSubtotal totals vendor_subtotal of paid orders created in [from, until).
	SumVendorSubtotal(ctx context.Context, vendorID string, from, until time.Time) (int64, error)
}
