// Package pricing resolves the effective unit price and stock of a product
// for a chosen option combination.
package pricing

import "marketplace-checkout/internal/domain"

// Stock is a resolved stock level. Unlimited stock never blocks a sale and
// is never decremented.
type Stock struct {
	Quantity  int
	Unlimited bool
	// Variation is set when the count belongs to a product variation rather
	// than the product itself.
	Variation *domain.ProductVariation
}

// MatchVariation finds the variation whose full option set equals set.
// Partial matches do not count.
func MatchVariation(p domain.Product, set domain.OptionSet) (*domain.ProductVariation, bool) {
	if len(set) == 0 {
		return nil, false
	}
	for i := range p.Variations {
		if p.Variations[i].Options.Equal(set) {
			return &p.Variations[i], true
		}
	}
	return nil, false
}

// ResolvePrice returns the variation override when one matches, otherwise the
// base price.
func ResolvePrice(p domain.Product, set domain.OptionSet) int64 {
	if v, ok := MatchVariation(p, set); ok && v.PriceCents != nil {
		return *v.PriceCents
	}
	return p.PriceCents
}

// ResolveStock prefers a matched variation's count, then the product's own
// count; with neither the stock is unlimited.
func ResolveStock(p domain.Product, set domain.OptionSet) Stock {
	if v, ok := MatchVariation(p, set); ok && v.Quantity != nil {
		return Stock{Quantity: *v.Quantity, Variation: v}
	}
	if p.Quantity != nil {
		return Stock{Quantity: *p.Quantity}
	}
	return Stock{Unlimited: true}
}
