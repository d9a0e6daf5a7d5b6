package domain

import (
	"fmt"
	"strings"
	"time"
)

type ProductStatus string

const (
	ProductDraft     ProductStatus = "draft"
	ProductPublished ProductStatus = "published"
)

type VariationKind string

const (
	VariationSelect VariationKind = "select"
	VariationRadio  VariationKind = "radio"
	VariationImage  VariationKind = "image"
)

type VariationOption struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	ImagePath string `json:"-"`
}

// VariationType groups the options a buyer picks one of, e.g. "Color".
type VariationType struct {
	ID      string            `json:"id"`
	Name    string            `json:"name"`
	Kind    VariationKind     `json:"kind"`
	Options []VariationOption `json:"options"`
}

// ProductVariation overrides price and stock for one option combination.
// Nil fields inherit from the product.
type ProductVariation struct {
	ID         string    `json:"id"`
	Options    OptionSet `json:"optionIds"`
	PriceCents *int64    `json:"priceCents,omitempty"`
	Quantity   *int      `json:"quantity,omitempty"`
}

type Product struct {
	ID             string             `json:"id"`
	VendorID       string             `json:"vendorId"`
	VendorName     string             `json:"vendorName"`
	VendorStatus   VendorStatus       `json:"-"`
	Department     string             `json:"department,omitempty"`
	Title          string             `json:"title"`
	Slug           string             `json:"slug"`
	PriceCents     int64              `json:"priceCents"`
	Quantity       *int               `json:"quantity,omitempty"`
	Status         ProductStatus      `json:"status"`
	ImagePath      string             `json:"-"`
	VariationTypes []VariationType    `json:"variationTypes,omitempty"`
	Variations     []ProductVariation `json:"variations,omitempty"`
	CreatedAt      time.Time          `json:"createdAt"`
}

// Purchasable reports whether the product may be sold storefront-wide.
func (p Product) Purchasable() bool {
	return p.Status == ProductPublished && p.VendorStatus == VendorApproved
}

// DefaultOptions picks the first option of every variation type.
func (p Product) DefaultOptions() OptionSet {
	ids := make([]string, 0, len(p.VariationTypes))
	for _, vt := range p.VariationTypes {
		if len(vt.Options) > 0 {
			ids = append(ids, vt.Options[0].ID)
		}
	}
	return NewOptionSet(ids...)
}

// SelectionFor maps each option in set to its variation type. Unknown options
// and two options of the same type are rejected.
func (p Product) SelectionFor(set OptionSet) (Selection, error) {
	sel := make(Selection, len(set))
	for _, optionID := range set {
		vt, ok := p.typeOf(optionID)
		if !ok {
			return nil, fmt.Errorf("%w: option %s does not belong to product %s", ErrInvalidInput, optionID, p.ID)
		}
		if _, dup := sel[vt.ID]; dup {
			return nil, fmt.Errorf("%w: more than one option chosen for %s", ErrInvalidInput, vt.Name)
		}
		sel[vt.ID] = optionID
	}
	return sel, nil
}

// Describe renders "Type: Option" pairs in variation type order.
func (p Product) Describe(set OptionSet) string {
	parts := make([]string, 0, len(set))
	for _, vt := range p.VariationTypes {
		for _, opt := range vt.Options {
			if set.Contains(opt.ID) {
				parts = append(parts, vt.Name+": "+opt.Name)
			}
		}
	}
	return strings.Join(parts, ", ")
}

// ChosenOptions returns the selected options in variation type order.
func (p Product) ChosenOptions(set OptionSet) []VariationOption {
	var out []VariationOption
	for _, vt := range p.VariationTypes {
		for _, opt := range vt.Options {
			if set.Contains(opt.ID) {
				out = append(out, opt)
			}
		}
	}
	return out
}

// OptionByName finds an option by name before ids are assigned. ref is
// "Option", or "Type:Option" when several variation types share a name.
func (p Product) OptionByName(ref string) (VariationType, VariationOption, error) {
	typeName, optName, qualified := strings.Cut(ref, ":")
	if !qualified {
		typeName, optName = "", ref
	}
	typeName, optName = strings.TrimSpace(typeName), strings.TrimSpace(optName)

	var (
		found bool
		vt    VariationType
		opt   VariationOption
	)
	for _, t := range p.VariationTypes {
		if qualified && !strings.EqualFold(t.Name, typeName) {
			continue
		}
		for _, o := range t.Options {
			if o.Name != optName {
				continue
			}
			if found {
				return VariationType{}, VariationOption{}, fmt.Errorf("%w: option %q exists in %s and %s, use \"Type:%s\"", ErrInvalidInput, optName, vt.Name, t.Name, optName)
			}
			found, vt, opt = true, t, o
		}
	}
	if !found {
		return VariationType{}, VariationOption{}, fmt.Errorf("%w: option %q", ErrNotFound, ref)
	}
	return vt, opt, nil
}

func (p Product) typeOf(optionID string) (VariationType, bool) {
	for _, vt := range p.VariationTypes {
		for _, opt := range vt.Options {
			if opt.ID == optionID {
				return vt, true
			}
		}
	}
	return VariationType{}, false
}
