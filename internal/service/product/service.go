package product

import (
	"context"
	"fmt"

	"marketplace-checkout/internal/domain"
	"marketplace-checkout/internal/pricing"
	productrepo "marketplace-checkout/internal/repository/product"
)

type imageResolver interface {
	ImageFor(p domain.Product, set domain.OptionSet) string
}

type Service struct {
	repo   productrepo.Repository
	images imageResolver
}

func New(repo productrepo.Repository, images imageResolver) *Service {
	return &Service{repo: repo, images: images}
}

// Quote is what a buyer would pay for one unit of a product with a given
// option combination, and how many are available.
type Quote struct {
	Product        domain.Product
	Options        domain.OptionSet
	Description    string
	UnitPriceCents int64
	Stock          pricing.Stock
	ImageURL       string
}

// InStock reports whether at least one unit can be sold.
func (q Quote) InStock() bool {
	return q.Stock.Unlimited || q.Stock.Quantity > 0
}

// Get returns a storefront product. Drafts and products of vendors that are
// not approved are reported as not found.
func (s *Service) Get(ctx context.Context, id string) (*domain.Product, error) {
	if id == "" {
		return nil, fmt.Errorf("%w: product id is required", domain.ErrInvalidInput)
	}
	p, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !p.Purchasable() {
		return nil, domain.ErrNotFound
	}
	return p, nil
}

// Quote resolves price and stock for options, defaulting to the first option
// of every variation type when none are given.
func (s *Service) Quote(ctx context.Context, id string, options domain.OptionSet) (*Quote, error) {
	p, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if len(options) == 0 {
		options = p.DefaultOptions()
	}
	sel, err := p.SelectionFor(options)
	if err != nil {
		return nil, err
	}
	if len(sel) != len(p.VariationTypes) {
		return nil, fmt.Errorf("%w: choose one option for every variation type", domain.ErrInvalidInput)
	}

	q := &Quote{
		Product:        *p,
		Options:        options,
		Description:    p.Describe(options),
		UnitPriceCents: pricing.ResolvePrice(*p, options),
		Stock:          pricing.ResolveStock(*p, options),
	}
	if s.images != nil {
		q.ImageURL = s.images.ImageFor(*p, options)
	}
	return q, nil
}
