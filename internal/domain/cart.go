package domain

import "time"

// Owner identifies whose cart a line belongs to: an authenticated user or an
// anonymous cart token. Exactly one field is set.
type Owner struct {
	UserID      string
	AnonymousID string
}

func UserOwner(userID string) Owner { return Owner{UserID: userID} }
func AnonymousOwner(token string) Owner { return Owner{AnonymousID: token} }
func (o Owner) Authenticated() bool { return o.UserID != "" }
func (o Owner) Valid() bool { return (o.UserID == "") != (o.AnonymousID == "") }

// CartItem is a persisted cart line keyed by owner, product and option set.
type CartItem struct {
	ID            string    `json:"id"`
	ProductID     string    `json:"productId"`
	Options       OptionSet `json:"optionIds"`
	Quantity      int       `json:"quantity"`
	PriceCents    int64     `json:"priceCents"`
	SavedForLater bool      `json:"savedForLater"`
	CreatedAt     time.Time `json:"createdAt"`
}

func (i CartItem) TotalCents() int64 {
	return i.PriceCents * int64(i.Quantity)
}

// CartLine is a cart item resolved against its current product.
type CartLine struct {
	CartItem
	Title       string  `json:"title"`
	Slug        string  `json:"slug"`
	Description string  `json:"description,omitempty"`
	ImageURL    string  `json:"imageUrl,omitempty"`
	Product     Product `json:"-"`
}

// CartGroup holds one vendor's checkout-eligible lines.
type CartGroup struct {
	VendorID      string     `json:"vendorId"`
	VendorName    string     `json:"vendorName"`
	Lines         []CartLine `json:"items"`
	TotalQuantity int        `json:"totalQuantity"`
	TotalCents    int64      `json:"totalPriceCents"`
}

type CartView struct {
	Groups        []CartGroup `json:"groups"`
	SavedForLater []CartLine  `json:"savedForLater"`
	TotalQuantity int         `json:"totalQuantity"`
	TotalCents    int64       `json:"totalPriceCents"`
}

// Group returns the group for vendorID, if present.
func (v CartView) Group(vendorID string) (CartGroup, bool) {
	for _, g := range v.Groups {
		if g.VendorID == vendorID {
			return g, true
		}
	}
	return CartGroup{}, false
}
