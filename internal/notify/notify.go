// Package notify publishes notification triggers for downstream mailers.
// Delivery is fire-and-forget: callers log failures and carry on.
package notify

import (
	"context"
	"time"

	"marketplace-checkout/internal/domain"
)

type Kind string

const (
	KindVendorNewOrder         Kind = "vendor.new_order"
	KindBuyerCheckoutCompleted Kind = "buyer.checkout_completed"
	KindVendorStatusChanged    Kind = "vendor.status_changed"
)

// Notification is the payload contract consumed by the mail renderer.
type Notification struct {
	Kind       Kind           `json:"kind"`
	Recipient  string         `json:"recipient"`
	Orders     []domain.Order `json:"orders,omitempty"`
	VendorID   string         `json:"vendorId,omitempty"`
	StoreName  string         `json:"storeName,omitempty"`
	Status     string         `json:"status,omitempty"`
	OccurredAt time.Time      `json:"occurredAt"`
}

// Publisher delivers one notification.
type Publisher interface {
	Publish(ctx context.Context, key string, n Notification) error
}

type Dispatcher struct {
	pub Publisher
	now func() time.Time
}

func NewDispatcher(pub Publisher) *Dispatcher {
	return &Dispatcher{pub: pub, now: time.Now}
}

// NotifyVendorNewOrder is addressed to the vendor user and keyed by order so
// one order's notifications stay ordered.
func (d *Dispatcher) NotifyVendorNewOrder(ctx context.Context, order domain.Order) error {
	return d.pub.Publish(ctx, order.ID, Notification{
		Kind:       KindVendorNewOrder,
		Recipient:  order.VendorID,
		Orders:     []domain.Order{order},
		VendorID:   order.VendorID,
		OccurredAt: d.now().UTC(),
	})
}

// NotifyBuyerCheckoutCompleted sends one summary for all orders funded by a
// single payment.
func (d *Dispatcher) NotifyBuyerCheckoutCompleted(ctx context.Context, orders []domain.Order) error {
	if len(orders) == 0 {
		return nil
	}
	return d.pub.Publish(ctx, orders[0].PaymentIntentID, Notification{
		Kind:       KindBuyerCheckoutCompleted,
		Recipient:  orders[0].UserID,
		Orders:     orders,
		OccurredAt: d.now().UTC(),
	})
}

func (d *Dispatcher) NotifyVendorStatusChanged(ctx context.Context, vendor domain.Vendor, status domain.VendorStatus) error {
	return d.pub.Publish(ctx, vendor.UserID, Notification{
		Kind:       KindVendorStatusChanged,
		Recipient:  vendor.Email,
		VendorID:   vendor.UserID,
		StoreName:  vendor.StoreName,
		Status:     string(status),
		OccurredAt: d.now().UTC(),
	})
}
