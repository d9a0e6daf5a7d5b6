package product

import (
	"context"
	"errors"
	"testing"

	"marketplace-checkout/internal/db"
	"marketplace-checkout/internal/domain"
)

type stubRepo struct {
	products map[string]domain.Product
}

func (s *stubRepo) GetByID(_ context.Context, id string) (*domain.Product, error) {
	p, ok := s.products[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &p, nil
}

func (s *stubRepo) GetByIDs(context.Context, []string) (map[string]domain.Product, error) {
	return s.products, nil
}

func (s *stubRepo) Create(context.Context, *domain.Product) error { return nil }

func (s *stubRepo) DecrementStock(context.Context, db.Querier, string, int) (int, error) {
	return 0, nil
}

func (s *stubRepo) DecrementVariationStock(context.Context, db.Querier, string, int) (int, error) {
	return 0, nil
}

type stubImages struct{}

func (stubImages) ImageFor(_ domain.Product, set domain.OptionSet) string {
	return "img:" + set.Key()
}

func intPtr(v int) *int { return &v }
func centsPtr(v int64) *int64 { return &v }

func shirt() domain.Product {
	return domain.Product{
		ID:           "p1",
		Title:        "Shirt",
		PriceCents:   2000,
		Quantity:     intPtr(4),
		Status:       domain.ProductPublished,
		VendorStatus: domain.VendorApproved,
		VariationTypes: []domain.VariationType{
			{ID: "t-color", Name: "Color", Options: []domain.VariationOption{{ID: "red", Name: "Red"}, {ID: "blue", Name: "Blue"}}},
			{ID: "t-size", Name: "Size", Options: []domain.VariationOption{{ID: "m", Name: "M"}, {ID: "l", Name: "L"}}},
		},
		Variations: []domain.ProductVariation{
			{ID: "v1", Options: domain.NewOptionSet("red", "l"), PriceCents: centsPtr(2500), Quantity: intPtr(0)},
		},
	}
}

func newService(products ...domain.Product) *Service {
	repo := &stubRepo{products: map[string]domain.Product{}}
	for _, p := range products {
		repo.products[p.ID] = p
	}
	return New(repo, stubImages{})
}

func TestQuoteUsesVariationOverride(t *testing.T) {
	svc := newService(shirt())

	q, err := svc.Quote(context.Background(), "p1", domain.NewOptionSet("l", "red"))
	if err != nil {
		t.Fatalf("quote: %v", err)
	}
	if q.UnitPriceCents != 2500 {
		t.Fatalf("expected variation price 2500, got %d", q.UnitPriceCents)
	}
	if q.InStock() || q.Stock.Variation == nil {
		t.Fatalf("expected variation stock of zero, got %+v", q.Stock)
	}
	if q.Description != "Color: Red, Size: L" {
		t.Fatalf("unexpected description %q", q.Description)
	}
}

func TestQuoteDefaultsToFirstOptions(t *testing.T) {
	svc := newService(shirt())

	q, err := svc.Quote(context.Background(), "p1", nil)
	if err != nil {
		t.Fatalf("quote: %v", err)
	}
	if !q.Options.Equal(domain.NewOptionSet("red", "m")) {
		t.Fatalf("expected default options, got %v", q.Options)
	}
	if q.UnitPriceCents != 2000 || q.Stock.Quantity != 4 || !q.InStock() {
		t.Fatalf("expected base price and product stock, got %d / %+v", q.UnitPriceCents, q.Stock)
	}
	if q.ImageURL != "img:"+q.Options.Key() {
		t.Fatalf("unexpected image %q", q.ImageURL)
	}
}

func TestQuoteRejectsPartialOrForeignOptions(t *testing.T) {
	svc := newService(shirt())

	for _, set := range []domain.OptionSet{
		domain.NewOptionSet("red"),
		domain.NewOptionSet("red", "blue"),
		domain.NewOptionSet("red", "xl"),
	} {
		if _, err := svc.Quote(context.Background(), "p1", set); !errors.Is(err, domain.ErrInvalidInput) {
			t.Fatalf("options %v: expected invalid input, got %v", set, err)
		}
	}
}

func TestGetHidesUnpurchasable(t *testing.T) {
	draft := shirt()
	draft.ID = "p2"
	draft.Status = domain.ProductDraft
	pending := shirt()
	pending.ID = "p3"
	pending.VendorStatus = domain.VendorPending
	svc := newService(shirt(), draft, pending)

	for _, id := range []string{"p2", "p3", "missing"} {
		if _, err := svc.Get(context.Background(), id); !errors.Is(err, domain.ErrNotFound) {
			t.Fatalf("%s: expected not found, got %v", id, err)
		}
	}
	if _, err := svc.Get(context.Background(), ""); !errors.Is(err, domain.ErrInvalidInput) {
		t.Fatalf("expected invalid input for empty id, got %v", err)
	}
	if p, err := svc.Get(context.Background(), "p1"); err != nil || p.Title != "Shirt" {
		t.Fatalf("expected product, got %v %v", p, err)
	}
}
