// Package reconcile applies payment provider webhook events to orders.
// Every handler is safe under redelivery and under either arrival order of
// checkout.session.completed and charge.updated.
package reconcile

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	mathrand "math/rand/v2"
	"time"

	"marketplace-checkout/internal/db"
	"marketplace-checkout/internal/domain"
	"marketplace-checkout/internal/metrics"
	"marketplace-checkout/internal/payment"
	"marketplace-checkout/internal/pricing"
	"marketplace-checkout/internal/repository/webhookevent"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const (
	trackingDigits   = 16
	trackingAttempts = 5
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx pgx.Tx) error) error
}

type orderRepo interface {
	ListBySession(ctx context.Context, q db.Querier, sessionID string) ([]domain.Order, error)
	ListByPaymentIntent(ctx context.Context, q db.Querier, paymentIntentID string) ([]domain.Order, error)
	MarkPaid(ctx context.Context, q db.Querier, orderID string, f domain.Fulfillment) (bool, error)
	SetFeeSplit(ctx context.Context, q db.Querier, orderID string, split domain.FeeSplit) (bool, error)
}

type productRepo interface {
	GetByID(ctx context.Context, id string) (*domain.Product, error)
	DecrementStock(ctx context.Context, q db.Querier, productID string, qty int) (int, error)
	DecrementVariationStock(ctx context.Context, q db.Querier, variationID string, qty int) (int, error)
}

type cartCleaner interface {
	DeleteProducts(ctx context.Context, q db.Querier, userID string, productIDs []string) (int64, error)
}

type eventLedger interface {
	Record(ctx context.Context, q db.Querier, eventID, eventType string) (bool, error)
	Defer(ctx context.Context, q db.Querier, c webhookevent.DeferredCharge) error
	PeekDeferred(ctx context.Context, paymentIntentID string) (*webhookevent.DeferredCharge, error)
	TakeDeferred(ctx context.Context, q db.Querier, paymentIntentID string) (*webhookevent.DeferredCharge, error)
}

type provider interface {
	ConstructEvent(payload []byte, signatureHeader string) (*payment.Event, error)
	RetrieveBalanceTransaction(ctx context.Context, id string) (*payment.BalanceTransaction, error)
}

type notifier interface {
	NotifyVendorNewOrder(ctx context.Context, order domain.Order) error
	NotifyBuyerCheckoutCompleted(ctx context.Context, orders []domain.Order) error
}

type Deps struct {
	Tx       txRunner
	Orders   orderRepo
	Products productRepo
	Carts    cartCleaner
	Events   eventLedger
	Provider provider
	Notifier notifier
	Metrics  *metrics.Metrics
	Logger   *zap.Logger
}

type Service struct {
	tx          txRunner
	orders      orderRepo
	products    productRepo
	carts       cartCleaner
	events      eventLedger
	provider    provider
	notifier    notifier
	metrics     *metrics.Metrics
	logger      *zap.Logger
	platformPct decimal.Decimal

	now           func() time.Time
	trackingCode  func() (string, error)
	deliveryDelay func() time.Duration
}

func New(deps Deps, platformFeePct decimal.Decimal) *Service {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		tx:            deps.Tx,
		orders:        deps.Orders,
		products:      deps.Products,
		carts:         deps.Carts,
		events:        deps.Events,
		provider:      deps.Provider,
		notifier:      deps.Notifier,
		metrics:       deps.Metrics,
		logger:        logger,
		platformPct:   platformFeePct,
		now:           time.Now,
		trackingCode:  randomTrackingNumber,
		deliveryDelay: randomDeliveryDelay,
	}
}

// HandleWebhook verifies the payload signature before any state change and
// then applies the event. Unknown event types are acknowledged and ignored.
func (s *Service) HandleWebhook(ctx context.Context, payload []byte, signature string) error {
	ev, err := s.provider.ConstructEvent(payload, signature)
	if err != nil {
		s.metrics.WebhookEvent("unverified", "rejected")
		if errors.Is(err, domain.ErrInvalidSignature) {
			return err
		}
		return fmt.Errorf("%w: %v", domain.ErrInvalidSignature, err)
	}
	return s.Handle(ctx, *ev)
}

// Handle applies a verified event.
func (s *Service) Handle(ctx context.Context, ev payment.Event) error {
	var outcome string
	var err error
	label := string(ev.Type)
	switch ev.Type {
	case payment.EventCheckoutSessionCompleted:
		outcome, err = s.sessionCompleted(ctx, ev)
	case payment.EventChargeUpdated:
		outcome, err = s.chargeUpdated(ctx, ev)
	default:
		label, outcome = "other", "ignored"
	}
	if err != nil {
		s.metrics.WebhookEvent(label, "error")
		s.logger.Error("webhook event failed",
			zap.String("event_id", ev.ID),
			zap.String("type", string(ev.Type)),
			zap.Error(err),
		)
		return err
	}
	s.metrics.WebhookEvent(label, outcome)
	s.logger.Info("webhook event handled",
		zap.String("event_id", ev.ID),
		zap.String("type", string(ev.Type)),
		zap.String("outcome", outcome),
	)
	return nil
}

func (s *Service) sessionCompleted(ctx context.Context, ev payment.Event) (string, error) {
	if ev.SessionID == "" || ev.PaymentIntentID == "" {
		return "ignored", nil
	}

	outcome := "applied"
	err := s.tx.WithTx(ctx, func(tx pgx.Tx) error {
		fresh, err := s.events.Record(ctx, tx, ev.ID, string(ev.Type))
		if err != nil {
			return fmt.Errorf("record event: %w", err)
		}
		orders, err := s.orders.ListBySession(ctx, tx, ev.SessionID)
		if err != nil {
			return fmt.Errorf("list orders: %w", err)
		}
		if len(orders) == 0 {
			outcome = "unknown_session"
			return nil
		}
		if !fresh {
			outcome = "duplicate"
		}

		purchased := map[string][]string{}
		stamped := 0
		for _, o := range orders {
			purchased[o.UserID] = appendProductIDs(purchased[o.UserID], o.Items)
			if !fresh || o.PaymentIntentID != "" {
				continue
			}
			ok, err := s.stamp(ctx, tx, o.ID, ev.PaymentIntentID)
			if err != nil {
				return err
			}
			if !ok {
				continue
			}
			stamped++
			if err := s.decrementStock(ctx, tx, o); err != nil {
				return err
			}
		}
		if fresh && stamped == 0 {
			outcome = "already_paid"
		}

		// Runs on redelivery too; deleting absent rows is a no-op.
		for userID, productIDs := range purchased {
			if _, err := s.carts.DeleteProducts(ctx, tx, userID, productIDs); err != nil {
				return fmt.Errorf("clear cart: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return "", err
	}

	if err := s.applyDeferred(ctx, ev.PaymentIntentID); err != nil {
		s.logger.Error("apply deferred charge", zap.String("payment_intent", ev.PaymentIntentID), zap.Error(err))
	}
	return outcome, nil
}

// stamp marks the order paid with a fresh tracking number, retrying when a
// generated number is already taken.
func (s *Service) stamp(ctx context.Context, tx pgx.Tx, orderID, paymentIntentID string) (bool, error) {
	for attempt := 0; attempt < trackingAttempts; attempt++ {
		code, err := s.trackingCode()
		if err != nil {
			return false, fmt.Errorf("tracking number: %w", err)
		}
		ok, err := s.orders.MarkPaid(ctx, tx, orderID, domain.Fulfillment{
			PaymentIntentID:   paymentIntentID,
			TrackingNumber:    code,
			EstimatedDelivery: s.now().Add(s.deliveryDelay()).UTC(),
		})
		if errors.Is(err, domain.ErrAlreadyExists) {
			continue
		}
		if err != nil {
			return false, fmt.Errorf("mark order %s paid: %w", orderID, err)
		}
		return ok, nil
	}
	return false, fmt.Errorf("mark order %s paid: no unique tracking number after %d attempts", orderID, trackingAttempts)
}

// decrementStock subtracts each item's quantity from the matched variation
// when it has a count, else from the product when it has one. Unlimited
// stock is untouched. Going below zero is allowed and reported.
func (s *Service) decrementStock(ctx context.Context, tx pgx.Tx, o domain.Order) error {
	for _, it := range o.Items {
		p, err := s.products.GetByID(ctx, it.ProductID)
		if errors.Is(err, domain.ErrNotFound) {
			s.logger.Warn("stock: product gone", zap.String("order_id", o.ID), zap.String("product_id", it.ProductID))
			continue
		}
		if err != nil {
			return fmt.Errorf("load product %s: %w", it.ProductID, err)
		}

		stock := pricing.ResolveStock(*p, it.Options)
		if stock.Unlimited {
			continue
		}
		kind := "product"
		var left int
		if stock.Variation != nil {
			kind = "variation"
			left, err = s.products.DecrementVariationStock(ctx, tx, stock.Variation.ID, it.Quantity)
		} else {
			left, err = s.products.DecrementStock(ctx, tx, p.ID, it.Quantity)
		}
		if errors.Is(err, domain.ErrNotFound) {
			continue
		}
		if err != nil {
			return fmt.Errorf("decrement %s stock for %s: %w", kind, it.ProductID, err)
		}
		if left < 0 {
			s.metrics.StockWentNegative(kind)
			s.logger.Warn("stock below zero",
				zap.String("kind", kind),
				zap.String("product_id", it.ProductID),
				zap.String("options", it.Options.Key()),
				zap.Int("left", left),
			)
		}
	}
	return nil
}

func (s *Service) chargeUpdated(ctx context.Context, ev payment.Event) (string, error) {
	if ev.PaymentIntentID == "" || ev.BalanceTransactionID == "" {
		return "ignored", nil
	}
	bt, err := s.provider.RetrieveBalanceTransaction(ctx, ev.BalanceTransactionID)
	if err != nil {
		return "", err
	}

	outcome := "applied"
	var all, fresh []domain.Order
	err = s.tx.WithTx(ctx, func(tx pgx.Tx) error {
		recorded, err := s.events.Record(ctx, tx, ev.ID, string(ev.Type))
		if err != nil {
			return fmt.Errorf("record event: %w", err)
		}
		if !recorded {
			outcome = "duplicate"
			return nil
		}
		orders, err := s.orders.ListByPaymentIntent(ctx, tx, ev.PaymentIntentID)
		if err != nil {
			return fmt.Errorf("list orders: %w", err)
		}
		if len(orders) == 0 {
			outcome = "deferred"
			return s.events.Defer(ctx, tx, webhookevent.DeferredCharge{
				PaymentIntentID:      ev.PaymentIntentID,
				BalanceTransactionID: ev.BalanceTransactionID,
				EventID:              ev.ID,
			})
		}
		all, fresh, err = s.applySplit(ctx, tx, orders, bt)
		return err
	})
	if err != nil {
		return "", err
	}

	switch {
	case outcome == "deferred":
		// The session may have been stamped while this charge was parked.
		if err := s.applyDeferred(ctx, ev.PaymentIntentID); err != nil {
			s.logger.Error("apply deferred charge", zap.String("payment_intent", ev.PaymentIntentID), zap.Error(err))
		}
	case len(fresh) == 0 && outcome == "applied":
		outcome = "already_reconciled"
	default:
		s.notify(ctx, all, fresh)
	}
	return outcome, nil
}

// applyDeferred reconciles a parked charge once its orders carry the
// payment intent. It is a no-op when nothing is parked or orders are still
// unstamped.
func (s *Service) applyDeferred(ctx context.Context, paymentIntentID string) error {
	if paymentIntentID == "" {
		return nil
	}
	orders, err := s.orders.ListByPaymentIntent(ctx, nil, paymentIntentID)
	if err != nil || len(orders) == 0 {
		return err
	}
	parked, err := s.events.PeekDeferred(ctx, paymentIntentID)
	if errors.Is(err, domain.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	bt, err := s.provider.RetrieveBalanceTransaction(ctx, parked.BalanceTransactionID)
	if err != nil {
		return err
	}

	var all, fresh []domain.Order
	err = s.tx.WithTx(ctx, func(tx pgx.Tx) error {
		if _, err := s.events.TakeDeferred(ctx, tx, paymentIntentID); err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				return nil
			}
			return err
		}
		orders, err := s.orders.ListByPaymentIntent(ctx, tx, paymentIntentID)
		if err != nil {
			return err
		}
		all, fresh, err = s.applySplit(ctx, tx, orders, bt)
		return err
	})
	if err != nil {
		return err
	}
	s.metrics.WebhookEvent(string(payment.EventChargeUpdated), "deferred_applied")
	s.notify(ctx, all, fresh)
	return nil
}

// applySplit records the fee split on every order not yet reconciled. It
// returns all orders of the payment, updated, and the freshly split ones.
func (s *Service) applySplit(ctx context.Context, tx pgx.Tx, orders []domain.Order, bt *payment.BalanceTransaction) ([]domain.Order, []domain.Order, error) {
	var fresh []domain.Order
	processorFee := bt.ProcessorFee()
	for i := range orders {
		o := &orders[i]
		if o.Reconciled() {
			continue
		}
		split := SplitFees(o.TotalPriceCents, bt.Amount, processorFee, s.platformPct)
		ok, err := s.orders.SetFeeSplit(ctx, tx, o.ID, split)
		if err != nil {
			return nil, nil, fmt.Errorf("set fee split for order %s: %w", o.ID, err)
		}
		if !ok {
			continue
		}
		o.OnlinePaymentCommission = &split.OnlinePaymentCommission
		o.WebsiteCommission = &split.WebsiteCommission
		o.VendorSubtotal = &split.VendorSubtotal
		fresh = append(fresh, *o)
	}
	return orders, fresh, nil
}

// notify sends one message per freshly reconciled order and one buyer
// summary of the whole payment. Failures are logged only.
func (s *Service) notify(ctx context.Context, all, fresh []domain.Order) {
	if len(fresh) == 0 || s.notifier == nil {
		return
	}
	for _, o := range fresh {
		if err := s.notifier.NotifyVendorNewOrder(ctx, o); err != nil {
			s.logger.Warn("notify vendor", zap.String("order_id", o.ID), zap.Error(err))
		}
	}
	if err := s.notifier.NotifyBuyerCheckoutCompleted(ctx, all); err != nil {
		s.logger.Warn("notify buyer", zap.String("payment_intent", all[0].PaymentIntentID), zap.Error(err))
	}
}

func appendProductIDs(ids []string, items []domain.OrderItem) []string {
	for _, it := range items {
		dup := false
		for _, id := range ids {
			if id == it.ProductID {
				dup = true
				break
			}
		}
		if !dup {
			ids = append(ids, it.ProductID)
		}
	}
	return ids
}

var trackingSpace = new(big.Int).Exp(big.NewInt(10), big.NewInt(trackingDigits), nil)

func randomTrackingNumber() (string, error) {
	n, err := rand.Int(rand.Reader, trackingSpace)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%0*d", trackingDigits, n), nil
}

// randomDeliveryDelay is 7 to 13 days.
func randomDeliveryDelay() time.Duration {
	return time.Duration(7+mathrand.IntN(7)) * 24 * time.Hour
}
