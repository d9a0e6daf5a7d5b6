package reconcile

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"marketplace-checkout/internal/db"
	"marketplace-checkout/internal/domain"
	"marketplace-checkout/internal/metrics"
	"marketplace-checkout/internal/payment"
	"marketplace-checkout/internal/repository/webhookevent"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeStore struct {
	mu         sync.Mutex
	orders     []*domain.Order
	products   map[string]*domain.Product
	cart       map[string][]string
	events     map[string]bool
	deferred   map[string]webhookevent.DeferredCharge
	decrements int
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		products: map[string]*domain.Product{},
		cart:     map[string][]string{},
		events:   map[string]bool{},
		deferred: map[string]webhookevent.DeferredCharge{},
	}
}

func (f *fakeStore) WithTx(_ context.Context, fn func(tx pgx.Tx) error) error {
	return fn(nil)
}

func (f *fakeStore) filter(match func(o *domain.Order) bool) []domain.Order {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.Order
	for _, o := range f.orders {
		if match(o) {
			out = append(out, *o)
		}
	}
	return out
}

func (f *fakeStore) order(id string) *domain.Order {
	for _, o := range f.orders {
		if o.ID == id {
			return o
		}
	}
	return nil
}

func (f *fakeStore) ListBySession(_ context.Context, _ db.Querier, sessionID string) ([]domain.Order, error) {
	return f.filter(func(o *domain.Order) bool { return o.PaymentSessionID == sessionID }), nil
}

func (f *fakeStore) ListByPaymentIntent(_ context.Context, _ db.Querier, pi string) ([]domain.Order, error) {
	return f.filter(func(o *domain.Order) bool { return o.PaymentIntentID == pi }), nil
}

func (f *fakeStore) MarkPaid(_ context.Context, _ db.Querier, orderID string, fl domain.Fulfillment) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, o := range f.orders {
		if o.TrackingNumber == fl.TrackingNumber {
			return false, domain.ErrAlreadyExists
		}
	}
	o := f.order(orderID)
	if o == nil || o.PaymentIntentID != "" {
		return false, nil
	}
	eta := fl.EstimatedDelivery
	o.Status = domain.OrderPaid
	o.ShippingStatus = domain.ShippingPlaced
	o.PaymentIntentID = fl.PaymentIntentID
	o.TrackingNumber = fl.TrackingNumber
	o.EstimatedDelivery = &eta
	return true, nil
}

func (f *fakeStore) SetFeeSplit(_ context.Context, _ db.Querier, orderID string, s domain.FeeSplit) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	o := f.order(orderID)
	if o == nil || o.VendorSubtotal != nil {
		return false, nil
	}
	o.OnlinePaymentCommission = &s.OnlinePaymentCommission
	o.WebsiteCommission = &s.WebsiteCommission
	o.VendorSubtotal = &s.VendorSubtotal
	return true, nil
}

func (f *fakeStore) GetByID(_ context.Context, id string) (*domain.Product, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.products[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (f *fakeStore) DecrementStock(_ context.Context, _ db.Querier, productID string, qty int) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p := f.products[productID]
	if p == nil || p.Quantity == nil {
		return 0, domain.ErrNotFound
	}
	f.decrements++
	left := *p.Quantity - qty
	p.Quantity = &left
	return left, nil
}

func (f *fakeStore) DecrementVariationStock(_ context.Context, _ db.Querier, variationID string, qty int) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, p := range f.products {
		for i := range p.Variations {
			v := &p.Variations[i]
			if v.ID != variationID || v.Quantity == nil {
				continue
			}
			f.decrements++
			left := *v.Quantity - qty
			v.Quantity = &left
			return left, nil
		}
	}
	return 0, domain.ErrNotFound
}

func (f *fakeStore) DeleteProducts(_ context.Context, _ db.Querier, userID string, productIDs []string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var kept []string
	var n int64
	for _, id := range f.cart[userID] {
		drop := false
		for _, d := range productIDs {
			if d == id {
				drop = true
			}
		}
		if drop {
			n++
			continue
		}
		kept = append(kept, id)
	}
	f.cart[userID] = kept
	return n, nil
}

func (f *fakeStore) Record(_ context.Context, _ db.Querier, eventID, _ string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.events[eventID] {
		return false, nil
	}
	f.events[eventID] = true
	return true, nil
}

func (f *fakeStore) Defer(_ context.Context, _ db.Querier, c webhookevent.DeferredCharge) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deferred[c.PaymentIntentID] = c
	return nil
}

func (f *fakeStore) PeekDeferred(_ context.Context, pi string) (*webhookevent.DeferredCharge, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.deferred[pi]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &c, nil
}

func (f *fakeStore) TakeDeferred(_ context.Context, _ db.Querier, pi string) (*webhookevent.DeferredCharge, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.deferred[pi]
	if !ok {
		return nil, domain.ErrNotFound
	}
	delete(f.deferred, pi)
	return &c, nil
}

type fakeProvider struct {
	event    *payment.Event
	balances map[string]payment.BalanceTransaction
}

func (p *fakeProvider) ConstructEvent(_ []byte, sig string) (*payment.Event, error) {
	if sig != "valid" {
		return nil, domain.ErrInvalidSignature
	}
	return p.event, nil
}

func (p *fakeProvider) RetrieveBalanceTransaction(_ context.Context, id string) (*payment.BalanceTransaction, error) {
	bt, ok := p.balances[id]
	if !ok {
		return nil, errors.New("no such balance transaction")
	}
	return &bt, nil
}

type fakeNotifier struct {
	vendor []string
	buyer  [][]domain.Order
}

func (n *fakeNotifier) NotifyVendorNewOrder(_ context.Context, o domain.Order) error {
	n.vendor = append(n.vendor, o.ID)
	return nil
}

func (n *fakeNotifier) NotifyBuyerCheckoutCompleted(_ context.Context, orders []domain.Order) error {
	n.buyer = append(n.buyer, orders)
	return nil
}

type fixture struct {
	store    *fakeStore
	provider *fakeProvider
	notifier *fakeNotifier
	svc      *Service
	now      time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		store:    newFakeStore(),
		provider: &fakeProvider{balances: map[string]payment.BalanceTransaction{}},
		notifier: &fakeNotifier{},
		now:      time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC),
	}
	f.svc = New(Deps{
		Tx:       f.store,
		Orders:   f.store,
		Products: f.store,
		Carts:    f.store,
		Events:   f.store,
		Provider: f.provider,
		Notifier: f.notifier,
		Metrics:  metrics.New("test"),
	}, decimal.NewFromInt(10))
	f.svc.now = func() time.Time { return f.now }

	codes := 0
	f.svc.trackingCode = func() (string, error) {
		codes++
		return "TRK" + string(rune('0'+codes)), nil
	}
	return f
}

func intPtr(v int) *int { return &v }

func draftOrder(id, vendor, session string, items ...domain.OrderItem) *domain.Order {
	var total int64
	for _, it := range items {
		total += it.PriceCents * int64(it.Quantity)
	}
	return &domain.Order{
		ID:               id,
		UserID:           "buyer-1",
		VendorID:         vendor,
		PaymentSessionID: session,
		TotalPriceCents:  total,
		Status:           domain.OrderDraft,
		ShippingStatus:   domain.ShippingNone,
		Items:            items,
	}
}

func sessionEvent(id string) payment.Event {
	return payment.Event{ID: id, Type: payment.EventCheckoutSessionCompleted, SessionID: "cs_1", PaymentIntentID: "pi_1"}
}

func chargeEvent(id string) payment.Event {
	return payment.Event{ID: id, Type: payment.EventChargeUpdated, PaymentIntentID: "pi_1", BalanceTransactionID: "txn_1"}
}

func TestSessionCompletedStampsOrdersAndDecrementsStock(t *testing.T) {
	f := newFixture(t)
	f.store.products["p1"] = &domain.Product{ID: "p1", Quantity: intPtr(3)}
	f.store.orders = []*domain.Order{draftOrder("o1", "v1", "cs_1", domain.OrderItem{ProductID: "p1", Quantity: 2, PriceCents: 1000})}
	f.store.cart["buyer-1"] = []string{"p1", "p2"}

	require.NoError(t, f.svc.Handle(context.Background(), sessionEvent("evt_1")))

	o := f.store.orders[0]
	assert.Equal(t, domain.OrderPaid, o.Status)
	assert.Equal(t, "pi_1", o.PaymentIntentID)
	assert.Equal(t, "TRK1", o.TrackingNumber)
	require.NotNil(t, o.EstimatedDelivery)
	days := o.EstimatedDelivery.Sub(f.now).Hours() / 24
	assert.GreaterOrEqual(t, days, 7.0)
	assert.LessOrEqual(t, days, 13.0)
	assert.Equal(t, 1, *f.store.products["p1"].Quantity)
	assert.Equal(t, []string{"p2"}, f.store.cart["buyer-1"])
}

func TestSessionCompletedRedeliveryIsIdempotent(t *testing.T) {
	f := newFixture(t)
	f.store.products["p1"] = &domain.Product{ID: "p1", Quantity: intPtr(3)}
	f.store.orders = []*domain.Order{draftOrder("o1", "v1", "cs_1", domain.OrderItem{ProductID: "p1", Quantity: 2, PriceCents: 1000})}

	ctx := context.Background()
	require.NoError(t, f.svc.Handle(ctx, sessionEvent("evt_1")))
	require.NoError(t, f.svc.Handle(ctx, sessionEvent("evt_1")))
	// A resend under a new event id is still guarded by the stamped order.
	require.NoError(t, f.svc.Handle(ctx, sessionEvent("evt_2")))

	assert.Equal(t, 1, f.store.decrements)
	assert.Equal(t, 1, *f.store.products["p1"].Quantity)
	assert.Equal(t, "TRK1", f.store.orders[0].TrackingNumber)
}

func TestSessionCompletedClearsCartOnRedelivery(t *testing.T) {
	f := newFixture(t)
	f.store.products["p1"] = &domain.Product{ID: "p1"}
	f.store.orders = []*domain.Order{draftOrder("o1", "v1", "cs_1", domain.OrderItem{ProductID: "p1", Quantity: 1, PriceCents: 500})}

	ctx := context.Background()
	require.NoError(t, f.svc.Handle(ctx, sessionEvent("evt_1")))
	f.store.cart["buyer-1"] = []string{"p1"}
	require.NoError(t, f.svc.Handle(ctx, sessionEvent("evt_1")))

	assert.Empty(t, f.store.cart["buyer-1"])
}

func TestSessionCompletedLeavesUnlimitedStockAlone(t *testing.T) {
	f := newFixture(t)
	f.store.products["p1"] = &domain.Product{ID: "p1"}
	f.store.orders = []*domain.Order{draftOrder("o1", "v1", "cs_1", domain.OrderItem{ProductID: "p1", Quantity: 5, PriceCents: 100})}

	require.NoError(t, f.svc.Handle(context.Background(), sessionEvent("evt_1")))

	assert.Zero(t, f.store.decrements)
	assert.Nil(t, f.store.products["p1"].Quantity)
}

func TestSessionCompletedDecrementsMatchedVariation(t *testing.T) {
	f := newFixture(t)
	red := domain.NewOptionSet("opt-red")
	f.store.products["p1"] = &domain.Product{
		ID:       "p1",
		Quantity: intPtr(10),
		Variations: []domain.ProductVariation{
			{ID: "var-red", Options: red, Quantity: intPtr(2)},
		},
	}
	f.store.orders = []*domain.Order{draftOrder("o1", "v1", "cs_1", domain.OrderItem{ProductID: "p1", Quantity: 3, PriceCents: 100, Options: red})}

	require.NoError(t, f.svc.Handle(context.Background(), sessionEvent("evt_1")))

	p := f.store.products["p1"]
	assert.Equal(t, 10, *p.Quantity)
	assert.Equal(t, -1, *p.Variations[0].Quantity)
}

func TestSessionCompletedRetriesTrackingCollision(t *testing.T) {
	f := newFixture(t)
	f.store.products["p1"] = &domain.Product{ID: "p1"}
	taken := &domain.Order{ID: "old", TrackingNumber: "TRK1", Status: domain.OrderPaid, PaymentIntentID: "pi_old"}
	f.store.orders = []*domain.Order{taken, draftOrder("o1", "v1", "cs_1", domain.OrderItem{ProductID: "p1", Quantity: 1, PriceCents: 100})}

	require.NoError(t, f.svc.Handle(context.Background(), sessionEvent("evt_1")))

	assert.Equal(t, "TRK2", f.store.orders[1].TrackingNumber)
}

func TestSessionCompletedUnknownSessionIsNoop(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.svc.Handle(context.Background(), sessionEvent("evt_1")))
	assert.Zero(t, f.store.decrements)
}

func paidOrder(id, vendor string, total int64) *domain.Order {
	o := draftOrder(id, vendor, "cs_1", domain.OrderItem{ProductID: "p-" + id, Quantity: 1, PriceCents: total})
	o.Status = domain.OrderPaid
	o.PaymentIntentID = "pi_1"
	return o
}

func processorFee(amount int64) payment.FeeDetail {
	return payment.FeeDetail{Type: payment.FeeTypeProcessor, Amount: amount}
}

func balanceTxn(amount int64, fees ...payment.FeeDetail) payment.BalanceTransaction {
	bt := payment.BalanceTransaction{ID: "txn_1", Amount: amount, FeeDetails: fees}
	for _, fd := range fees {
		bt.Fee += fd.Amount
	}
	return bt
}

func TestChargeUpdatedSplitsFeesAcrossOrders(t *testing.T) {
	f := newFixture(t)
	f.store.orders = []*domain.Order{paidOrder("a", "v1", 2500), paidOrder("b", "v2", 2000)}
	f.provider.balances["txn_1"] = balanceTxn(4500, processorFee(161))

	ctx := context.Background()
	require.NoError(t, f.svc.Handle(ctx, chargeEvent("evt_c1")))

	a, b := f.store.orders[0], f.store.orders[1]
	require.True(t, a.Reconciled())
	require.True(t, b.Reconciled())
	assert.Equal(t, int64(89), *a.OnlinePaymentCommission)
	assert.Equal(t, int64(241), *a.WebsiteCommission)
	assert.Equal(t, int64(2170), *a.VendorSubtotal)
	assert.Equal(t, int64(72), *b.OnlinePaymentCommission)
	assert.Equal(t, int64(193), *b.WebsiteCommission)
	assert.Equal(t, int64(1735), *b.VendorSubtotal)
	for _, o := range []*domain.Order{a, b} {
		assert.Equal(t, o.TotalPriceCents, *o.OnlinePaymentCommission+*o.WebsiteCommission+*o.VendorSubtotal)
	}
	assert.ElementsMatch(t, []string{"a", "b"}, f.notifier.vendor)
	require.Len(t, f.notifier.buyer, 1)
	assert.Len(t, f.notifier.buyer[0], 2)

	// Redelivery and a resend under a new id change nothing.
	f.provider.balances["txn_1"] = balanceTxn(4500, processorFee(999))
	require.NoError(t, f.svc.Handle(ctx, chargeEvent("evt_c1")))
	require.NoError(t, f.svc.Handle(ctx, chargeEvent("evt_c2")))
	assert.Equal(t, int64(2170), *a.VendorSubtotal)
	assert.Len(t, f.notifier.vendor, 2)
	assert.Len(t, f.notifier.buyer, 1)
}

func TestChargeUpdatedChargesOnlyProcessorFee(t *testing.T) {
	f := newFixture(t)
	f.store.orders = []*domain.Order{paidOrder("a", "v1", 4500)}
	f.provider.balances["txn_1"] = balanceTxn(4500,
		processorFee(161),
		payment.FeeDetail{Type: "tax", Amount: 100},
		payment.FeeDetail{Type: "application_fee", Amount: 50},
	)

	require.NoError(t, f.svc.Handle(context.Background(), chargeEvent("evt_c1")))

	o := f.store.orders[0]
	require.True(t, o.Reconciled())
	assert.Equal(t, int64(161), *o.OnlinePaymentCommission)
	assert.Equal(t, int64(434), *o.WebsiteCommission)
	assert.Equal(t, int64(3905), *o.VendorSubtotal)
}

func TestChargeBeforeSessionConverges(t *testing.T) {
	f := newFixture(t)
	f.store.products["p1"] = &domain.Product{ID: "p1"}
	f.store.orders = []*domain.Order{draftOrder("o1", "v1", "cs_1", domain.OrderItem{ProductID: "p1", Quantity: 1, PriceCents: 4500})}
	f.provider.balances["txn_1"] = balanceTxn(4500, processorFee(161))

	ctx := context.Background()
	require.NoError(t, f.svc.Handle(ctx, chargeEvent("evt_c1")))
	assert.False(t, f.store.orders[0].Reconciled())
	assert.Contains(t, f.store.deferred, "pi_1")

	require.NoError(t, f.svc.Handle(ctx, sessionEvent("evt_s1")))

	o := f.store.orders[0]
	require.True(t, o.Reconciled())
	assert.Equal(t, int64(161), *o.OnlinePaymentCommission)
	assert.Equal(t, int64(434), *o.WebsiteCommission)
	assert.Equal(t, int64(3905), *o.VendorSubtotal)
	assert.Empty(t, f.store.deferred)
	assert.Equal(t, []string{"o1"}, f.notifier.vendor)
}

func TestChargeUpdatedWithoutBalanceTransactionIsIgnored(t *testing.T) {
	f := newFixture(t)
	f.store.orders = []*domain.Order{paidOrder("a", "v1", 1000)}

	ev := chargeEvent("evt_c1")
	ev.BalanceTransactionID = ""
	require.NoError(t, f.svc.Handle(context.Background(), ev))

	assert.False(t, f.store.orders[0].Reconciled())
	assert.Empty(t, f.store.events)
}

func TestChargeUpdatedProviderFailureIsRetryable(t *testing.T) {
	f := newFixture(t)
	f.store.orders = []*domain.Order{paidOrder("a", "v1", 1000)}

	err := f.svc.Handle(context.Background(), chargeEvent("evt_c1"))
	require.Error(t, err)
	assert.Empty(t, f.store.events)
}

func TestUnknownEventTypeIsAcknowledged(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.svc.Handle(context.Background(), payment.Event{ID: "evt_x", Type: "customer.created"}))
	assert.Empty(t, f.store.events)
}

func TestHandleWebhookRejectsBadSignature(t *testing.T) {
	f := newFixture(t)
	f.store.orders = []*domain.Order{draftOrder("o1", "v1", "cs_1")}
	ev := sessionEvent("evt_1")
	f.provider.event = &ev

	err := f.svc.HandleWebhook(context.Background(), []byte(`{}`), "forged")
	require.ErrorIs(t, err, domain.ErrInvalidSignature)
	assert.Empty(t, f.store.events)
	assert.Equal(t, domain.OrderDraft, f.store.orders[0].Status)

	require.NoError(t, f.svc.HandleWebhook(context.Background(), []byte(`{}`), "valid"))
	assert.Equal(t, domain.OrderPaid, f.store.orders[0].Status)
}
