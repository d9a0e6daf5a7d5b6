package order

import (
	"context"
	"fmt"

	"marketplace-checkout/internal/domain"
	orderrepo "marketplace-checkout/internal/repository/order"
)

type Service struct {
	repo orderrepo.Repository
}

func New(repo orderrepo.Repository) *Service {
	return &Service{repo: repo}
}

// ListForBuyer returns the buyer's paid orders, newest first.
func (s *Service) ListForBuyer(ctx context.Context, userID string) ([]domain.Order, error) {
	if userID == "" {
		return nil, domain.ErrForbidden
	}
	return s.repo.ListPaidByUser(ctx, userID)
}

// SuccessOrders returns the orders created by one checkout session for the
// buyer landing on the success page.
func (s *Service) SuccessOrders(ctx context.Context, userID, sessionID string) ([]domain.Order, error) {
	if sessionID == "" {
		return nil, fmt.Errorf("%w: session_id is required", domain.ErrInvalidInput)
	}
	orders, err := s.repo.ListBySession(ctx, nil, sessionID)
	if err != nil {
		return nil, err
	}
	if len(orders) == 0 {
		return nil, domain.ErrNotFound
	}
	for _, o := range orders {
		if o.UserID != userID {
			return nil, domain.ErrForbidden
		}
	}
	return orders, nil
}

// Track looks up a paid order by its tracking number.
func (s *Service) Track(ctx context.Context, trackingNumber string) (*domain.Order, error) {
	if trackingNumber == "" {
		return nil, domain.ErrNotFound
	}
	return s.repo.GetByTrackingNumber(ctx, trackingNumber)
}

// AdvanceShipping moves a paid order one step along
// placed -> shipped -> out_for_delivery -> delivered. Only the vendor owning
// the order may do so.
func (s *Service) AdvanceShipping(ctx context.Context, vendorID, orderID string, to domain.ShippingStatus) (*domain.Order, error) {
	o, err := s.repo.GetByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if o.VendorID != vendorID {
		return nil, domain.ErrForbidden
	}
	if o.Status != domain.OrderPaid || !o.ShippingStatus.CanAdvanceTo(to) {
		return nil, fmt.Errorf("%w: %s -> %s", domain.ErrInvalidTransition, o.ShippingStatus, to)
	}
	ok, err := s.repo.UpdateShippingStatus(ctx, orderID, o.ShippingStatus, to)
	if err != nil {
		return nil, err
	}
	if !ok {
		// Someone else moved it first.
		return nil, fmt.Errorf("%w: %s is no longer current", domain.ErrInvalidTransition, o.ShippingStatus)
	}
	o.ShippingStatus = to
	return o, nil
}
