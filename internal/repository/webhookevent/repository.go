package webhookevent

import (
	"context"

	"marketplace-checkout/internal/db"
)

// DeferredCharge is a charge event that arrived before its orders carried
// the payment intent.
type DeferredCharge struct {
	PaymentIntentID      string
	BalanceTransactionID string
	EventID              string
}

type Repository interface {
	// Record inserts the event id if absent and reports whether it was new.
	Record(ctx context.Context, q db.Querier, eventID, eventType string) (bool, error)
	Defer(ctx context.Context, q db.Querier, c DeferredCharge) error
	// PeekDeferred returns domain.ErrNotFound when nothing is parked.
	PeekDeferred(ctx context.Context, paymentIntentID string) (*DeferredCharge, error)
	// TakeDeferred deletes and returns the parked charge.
	TakeDeferred(ctx context.Context, q db.Querier, paymentIntentID string) (*DeferredCharge, error)
}
