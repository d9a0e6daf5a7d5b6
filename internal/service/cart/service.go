package cart

import (
	"context"
	"fmt"
	"strings"

	"marketplace-checkout/internal/domain"
	"marketplace-checkout/internal/pricing"

	"go.uber.org/zap"
)

type Service struct {
	repo     cartRepo
	products productRepo
	images   imageResolver
	logger   *zap.Logger
}

type cartRepo interface {
	List(ctx context.Context, owner domain.Owner) ([]domain.CartItem, error)
	Add(ctx context.Context, owner domain.Owner, item domain.CartItem) (*domain.CartItem, error)
	UpdateQuantity(ctx context.Context, owner domain.Owner, productID string, options domain.OptionSet, quantity int) (bool, error)
	Remove(ctx context.Context, owner domain.Owner, productID string, options domain.OptionSet) error
	SetSavedForLater(ctx context.Context, owner domain.Owner, lineID string, saved bool) error
	MergeAnonymous(ctx context.Context, anonymousID, userID string) (int, error)
}

type productRepo interface {
	GetByID(ctx context.Context, id string) (*domain.Product, error)
	GetByIDs(ctx context.Context, ids []string) (map[string]domain.Product, error)
}

type imageResolver interface {
	ImageFor(p domain.Product, set domain.OptionSet) string
}

func New(repo cartRepo, products productRepo, images imageResolver, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{repo: repo, products: products, images: images, logger: logger}
}

// AddItem adds quantity of the product to the owner's cart. With no options
// the first option of every variation type is chosen. The unit price is
// resolved now and kept on the line.
func (s *Service) AddItem(ctx context.Context, owner domain.Owner, productID string, quantity int, options domain.OptionSet) (*domain.CartItem, error) {
	if err := validate(owner, productID, quantity); err != nil {
		return nil, err
	}
	p, err := s.products.GetByID(ctx, productID)
	if err != nil {
		return nil, err
	}
	if !p.Purchasable() {
		return nil, domain.ErrNotFound
	}
	if len(options) == 0 {
		options = p.DefaultOptions()
	}
	if err := requireFullSelection(*p, options); err != nil {
		return nil, err
	}

	return s.repo.Add(ctx, owner, domain.CartItem{
		ProductID:  productID,
		Options:    options,
		Quantity:   quantity,
		PriceCents: pricing.ResolvePrice(*p, options),
	})
}

// UpdateQuantity changes an existing line; a missing line is left alone.
func (s *Service) UpdateQuantity(ctx context.Context, owner domain.Owner, productID string, quantity int, options domain.OptionSet) error {
	if err := validate(owner, productID, quantity); err != nil {
		return err
	}
	found, err := s.repo.UpdateQuantity(ctx, owner, productID, options, quantity)
	if err != nil {
		return err
	}
	if !found {
		s.logger.Debug("cart: update of missing line ignored", zap.String("product_id", productID), zap.String("options", options.Key()))
	}
	return nil
}

func (s *Service) RemoveItem(ctx context.Context, owner domain.Owner, productID string, options domain.OptionSet) error {
	if err := validate(owner, productID, 1); err != nil {
		return err
	}
	return s.repo.Remove(ctx, owner, productID, options)
}

// MarkSavedForLater keeps the line but excludes it from totals and checkout.
func (s *Service) MarkSavedForLater(ctx context.Context, owner domain.Owner, lineID string) error {
	return s.setSaved(ctx, owner, lineID, true)
}

func (s *Service) MoveToCart(ctx context.Context, owner domain.Owner, lineID string) error {
	return s.setSaved(ctx, owner, lineID, false)
}

func (s *Service) setSaved(ctx context.Context, owner domain.Owner, lineID string, saved bool) error {
	if !owner.Valid() || strings.TrimSpace(lineID) == "" {
		return domain.ErrInvalidInput
	}
	return s.repo.SetSavedForLater(ctx, owner, lineID, saved)
}

// Merge moves the anonymous cart into the user's cart after login.
func (s *Service) Merge(ctx context.Context, anonymousID, userID string) (int, error) {
	if anonymousID == "" || userID == "" {
		return 0, domain.ErrInvalidInput
	}
	n, err := s.repo.MergeAnonymous(ctx, anonymousID, userID)
	if err != nil {
		return 0, err
	}
	s.logger.Info("cart: merged anonymous cart", zap.String("user_id", userID), zap.Int("lines", n))
	return n, nil
}

// View groups the owner's lines by vendor. Products are loaded once per
// call. Lines whose product is gone, unpublished or whose vendor is not
// approved are left out without error.
func (s *Service) View(ctx context.Context, owner domain.Owner) (domain.CartView, error) {
	view := domain.CartView{Groups: []domain.CartGroup{}, SavedForLater: []domain.CartLine{}}
	if !owner.Valid() {
		return view, domain.ErrInvalidInput
	}
	items, err := s.repo.List(ctx, owner)
	if err != nil {
		return view, err
	}
	if len(items) == 0 {
		return view, nil
	}

	products := s.loadProducts(ctx, items)
	groupIndex := map[string]int{}
	for _, it := range items {
		p, ok := products[it.ProductID]
		if !ok || !p.Purchasable() {
			continue
		}
		line := domain.CartLine{
			CartItem:    it,
			Title:       p.Title,
			Slug:        p.Slug,
			Description: p.Describe(it.Options),
			Product:     p,
		}
		if s.images != nil {
			line.ImageURL = s.images.ImageFor(p, it.Options)
		}
		if it.SavedForLater {
			view.SavedForLater = append(view.SavedForLater, line)
			continue
		}

		idx, ok := groupIndex[p.VendorID]
		if !ok {
			idx = len(view.Groups)
			groupIndex[p.VendorID] = idx
			view.Groups = append(view.Groups, domain.CartGroup{VendorID: p.VendorID, VendorName: p.VendorName})
		}
		g := &view.Groups[idx]
		g.Lines = append(g.Lines, line)
		g.TotalQuantity += it.Quantity
		g.TotalCents += it.TotalCents()
		view.TotalQuantity += it.Quantity
		view.TotalCents += it.TotalCents()
	}
	return view, nil
}

func (s *Service) loadProducts(ctx context.Context, items []domain.CartItem) map[string]domain.Product {
	seen := map[string]struct{}{}
	ids := make([]string, 0, len(items))
	for _, it := range items {
		if _, ok := seen[it.ProductID]; ok {
			continue
		}
		seen[it.ProductID] = struct{}{}
		ids = append(ids, it.ProductID)
	}
	products, err := s.products.GetByIDs(ctx, ids)
	if err != nil {
		s.logger.Warn("cart: resolve products", zap.Int("count", len(ids)), zap.Error(err))
		return map[string]domain.Product{}
	}
	return products
}

func validate(owner domain.Owner, productID string, quantity int) error {
	if !owner.Valid() {
		return fmt.Errorf("%w: cart owner required", domain.ErrInvalidInput)
	}
	if strings.TrimSpace(productID) == "" {
		return fmt.Errorf("%w: product id required", domain.ErrInvalidInput)
	}
	if quantity <= 0 {
		return fmt.Errorf("%w: quantity must be positive", domain.ErrInvalidInput)
	}
	return nil
}

// requireFullSelection accepts either no options for a product without
// variation types, or exactly one option for each type.
func requireFullSelection(p domain.Product, options domain.OptionSet) error {
	sel, err := p.SelectionFor(options)
	if err != nil {
		return err
	}
	want := 0
	for _, vt := range p.VariationTypes {
		if len(vt.Options) > 0 {
			want++
		}
	}
	if len(sel) != want {
		return fmt.Errorf("%w: choose one option for each of %d variation types", domain.ErrInvalidInput, want)
	}
	return nil
}

