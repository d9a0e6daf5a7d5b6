// Package payment defines the payment provider boundary used by checkout,
// webhook reconciliation and payouts.
package payment

import "context"

// EventType names provider webhook events this system reacts to.
type EventType string

const (
	EventCheckoutSessionCompleted EventType = "checkout.session.completed"
	EventChargeUpdated            EventType = "charge.updated"
)

// LineItem is one priced row of a checkout session. UnitAmount is in minor
// currency units.
type LineItem struct {
	Name        string
	Description string
	ImageURL    string
	UnitAmount  int64
	Quantity    int
}

type SessionRequest struct {
	LineItems     []LineItem
	Currency      string
	SuccessURL    string
	CancelURL     string
	CustomerEmail string
	Metadata      map[string]string
}

type Session struct {
	ID  string
	URL string
}

// FeeTypeProcessor marks the fee detail charged by the payment processor
// itself, as opposed to taxes or application fees.
const FeeTypeProcessor = "stripe_fee"

type FeeDetail struct {
	Type   string
	Amount int64
}

// BalanceTransaction reports the settled gross amount and its fees. Fee is
// the total of all FeeDetails.
type BalanceTransaction struct {
	ID         string
	Amount     int64
	Fee        int64
	FeeDetails []FeeDetail
}

// ProcessorFee sums the processor's own fee details.
func (bt BalanceTransaction) ProcessorFee() int64 {
	var fee int64
	for _, fd := range bt.FeeDetails {
		if fd.Type == FeeTypeProcessor {
			fee += fd.Amount
		}
	}
	return fee
}

// Event is a verified webhook event reduced to the fields reconciliation
// needs. Fields irrelevant to Type are empty.
type Event struct {
	ID                   string
	Type                 EventType
	SessionID            string
	PaymentIntentID      string
	BalanceTransactionID string
}

type TransferRequest struct {
	AmountCents    int64
	Currency       string
	Destination    string
	Description    string
	IdempotencyKey string
}

type Transfer struct {
	ID string
}

// Provider is the full set of provider operations the system depends on.
type Provider interface {
	CreateCheckoutSession(ctx context.Context, req SessionRequest) (*Session, error)
	ExpireCheckoutSession(ctx context.Context, sessionID string) error
	RetrieveBalanceTransaction(ctx context.Context, id string) (*BalanceTransaction, error)
	ConstructEvent(payload []byte, signatureHeader string) (*Event, error)
	CreateTransfer(ctx context.Context, req TransferRequest) (*Transfer, error)
}
