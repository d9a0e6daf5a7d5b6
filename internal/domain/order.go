package domain

import "time"

type OrderStatus string

const (
	OrderDraft OrderStatus = "draft"
	OrderPaid  OrderStatus = "paid"
)

type ShippingStatus string

const (
	ShippingNone           ShippingStatus = "none"
	ShippingPlaced         ShippingStatus = "placed"
	ShippingShipped        ShippingStatus = "shipped"
	ShippingOutForDelivery ShippingStatus = "out_for_delivery"
	ShippingDelivered      ShippingStatus = "delivered"
)

var shippingNext = map[ShippingStatus]ShippingStatus{
	ShippingPlaced:         ShippingShipped,
	ShippingShipped:        ShippingOutForDelivery,
	ShippingOutForDelivery: ShippingDelivered,
}

// CanAdvanceTo reports whether next directly follows s.
func (s ShippingStatus) CanAdvanceTo(next ShippingStatus) bool {
	want, ok := shippingNext[s]
	return ok && want == next
}

func ParseShippingStatus(v string) (ShippingStatus, bool) {
	switch s := ShippingStatus(v); s {
	case ShippingNone, ShippingPlaced, ShippingShipped, ShippingOutForDelivery, ShippingDelivered:
		return s, true
	}
	return "", false
}

// Order is one vendor's slice of a checkout. Several orders may share a
// payment session and payment intent.
type Order struct {
	ID                      string         `json:"id"`
	UserID                  string         `json:"userId"`
	VendorID                string         `json:"vendorId"`
	AddressID               string         `json:"addressId,omitempty"`
	PaymentSessionID        string         `json:"-"`
	PaymentIntentID         string         `json:"-"`
	TotalPriceCents         int64          `json:"totalPriceCents"`
	Status                  OrderStatus    `json:"status"`
	ShippingStatus          ShippingStatus `json:"shippingStatus"`
	OnlinePaymentCommission *int64         `json:"-"`
	WebsiteCommission       *int64         `json:"-"`
	VendorSubtotal          *int64         `json:"-"`
	TrackingNumber          string         `json:"trackingNumber,omitempty"`
	EstimatedDelivery       *time.Time     `json:"estimatedDelivery,omitempty"`
	CreatedAt               time.Time      `json:"createdAt"`
	Items                   []OrderItem    `json:"items,omitempty"`
}

// Reconciled reports whether the fee split has been recorded.
func (o Order) Reconciled() bool {
	return o.VendorSubtotal != nil
}

type OrderItem struct {
	ID           string    `json:"id"`
	OrderID      string    `json:"orderId"`
	ProductID    string    `json:"productId"`
	ProductTitle string    `json:"title,omitempty"`
	Quantity     int       `json:"quantity"`
	PriceCents   int64     `json:"priceCents"`
	Options      OptionSet `json:"optionIds"`
}

// FeeSplit divides an order total between processor, platform and vendor.
type FeeSplit struct {
	OnlinePaymentCommission int64
	WebsiteCommission       int64
	VendorSubtotal          int64
}

func (f FeeSplit) Total() int64 {
	return f.OnlinePaymentCommission + f.WebsiteCommission + f.VendorSubtotal
}

// Fulfillment is what a confirmed payment stamps onto a draft order.
type Fulfillment struct {
	PaymentIntentID   string
	TrackingNumber    string
	EstimatedDelivery time.Time
}
