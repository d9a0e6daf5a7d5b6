package httpserver

import (
	"strings"
	"time"

	"marketplace-checkout/internal/domain"
)

// money is rendered in cent precision with its currency so clients never
// handle floating point amounts.
type money struct {
	Type           string `json:"type"`
	CurrencyCode   string `json:"currencyCode"`
	CentAmount     int64  `json:"centAmount"`
	FractionDigits int    `json:"fractionDigits"`
}

func centPrecision(currency string, cents int64) money {
	return money{
		Type:           "centPrecision",
		CurrencyCode:   strings.ToUpper(currency),
		CentAmount:     cents,
		FractionDigits: 2,
	}
}

type cartResponse struct {
	Groups        []cartGroupResponse `json:"groups"`
	SavedForLater []cartLineResponse  `json:"savedForLater"`
	TotalQuantity int                 `json:"totalQuantity"`
	TotalPrice    money               `json:"totalPrice"`
}

type cartGroupResponse struct {
	VendorID      string             `json:"vendorId"`
	VendorName    string             `json:"vendorName"`
	Items         []cartLineResponse `json:"items"`
	TotalQuantity int                `json:"totalQuantity"`
	TotalPrice    money              `json:"totalPrice"`
}

type cartLineResponse struct {
	ID            string   `json:"id"`
	ProductID     string   `json:"productId"`
	Title         string   `json:"title"`
	Slug          string   `json:"slug,omitempty"`
	Description   string   `json:"description,omitempty"`
	ImageURL      string   `json:"imageUrl,omitempty"`
	OptionIDs     []string `json:"optionIds"`
	Quantity      int      `json:"quantity"`
	Price         money    `json:"price"`
	TotalPrice    money    `json:"totalPrice"`
	SavedForLater bool     `json:"savedForLater"`
}

func toCartResponse(view domain.CartView, currency string) cartResponse {
	out := cartResponse{
		Groups:        make([]cartGroupResponse, 0, len(view.Groups)),
		SavedForLater: toLineResponses(view.SavedForLater, currency),
		TotalQuantity: view.TotalQuantity,
		TotalPrice:    centPrecision(currency, view.TotalCents),
	}
	for _, g := range view.Groups {
		out.Groups = append(out.Groups, cartGroupResponse{
			VendorID:      g.VendorID,
			VendorName:    g.VendorName,
			Items:         toLineResponses(g.Lines, currency),
			TotalQuantity: g.TotalQuantity,
			TotalPrice:    centPrecision(currency, g.TotalCents),
		})
	}
	return out
}

func toLineResponses(lines []domain.CartLine, currency string) []cartLineResponse {
	out := make([]cartLineResponse, 0, len(lines))
	for _, l := range lines {
		out = append(out, cartLineResponse{
			ID:            l.ID,
			ProductID:     l.ProductID,
			Title:         l.Title,
			Slug:          l.Slug,
			Description:   l.Description,
			ImageURL:      l.ImageURL,
			OptionIDs:     optionIDs(l.Options),
			Quantity:      l.Quantity,
			Price:         centPrecision(currency, l.PriceCents),
			TotalPrice:    centPrecision(currency, l.TotalCents()),
			SavedForLater: l.SavedForLater,
		})
	}
	return out
}

type orderResponse struct {
	ID                string              `json:"id"`
	VendorID          string              `json:"vendorId"`
	Status            domain.OrderStatus  `json:"status"`
	ShippingStatus    string              `json:"shippingStatus"`
	TrackingNumber    string              `json:"trackingNumber,omitempty"`
	EstimatedDelivery *time.Time          `json:"estimatedDelivery,omitempty"`
	TotalPrice        money               `json:"totalPrice"`
	CreatedAt         time.Time           `json:"createdAt"`
	Items             []orderItemResponse `json:"items"`
}

type orderItemResponse struct {
	ProductID string   `json:"productId"`
	Title     string   `json:"title,omitempty"`
	OptionIDs []string `json:"optionIds"`
	Quantity  int      `json:"quantity"`
	Price     money    `json:"price"`
}

func toOrderResponse(o domain.Order, currency string) orderResponse {
	out := orderResponse{
		ID:                o.ID,
		VendorID:          o.VendorID,
		Status:            o.Status,
		ShippingStatus:    string(o.ShippingStatus),
		TrackingNumber:    o.TrackingNumber,
		EstimatedDelivery: o.EstimatedDelivery,
		TotalPrice:        centPrecision(currency, o.TotalPriceCents),
		CreatedAt:         o.CreatedAt,
		Items:             make([]orderItemResponse, 0, len(o.Items)),
	}
	for _, it := range o.Items {
		out.Items = append(out.Items, orderItemResponse{
			ProductID: it.ProductID,
			Title:     it.ProductTitle,
			OptionIDs: optionIDs(it.Options),
			Quantity:  it.Quantity,
			Price:     centPrecision(currency, it.PriceCents),
		})
	}
	return out
}

func toOrderResponses(orders []domain.Order, currency string) []orderResponse {
	out := make([]orderResponse, 0, len(orders))
	for _, o := range orders {
		out = append(out, toOrderResponse(o, currency))
	}
	return out
}

func optionIDs(s domain.OptionSet) []string {
	if s == nil {
		return []string{}
	}
	return s
}
