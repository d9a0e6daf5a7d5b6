package checkout

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"marketplace-checkout/internal/db"
	"marketplace-checkout/internal/domain"
	"marketplace-checkout/internal/payment"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx pgx.Tx) error) error
}

type cartViewer interface {
	View(ctx context.Context, owner domain.Owner) (domain.CartView, error)
}

type orderRepo interface {
	Create(ctx context.Context, q db.Querier, o *domain.Order) error
	SetSessionID(ctx context.Context, q db.Querier, orderIDs []string, sessionID string) error
}

type addressRepo interface {
	Create(ctx context.Context, a domain.Address) (*domain.Address, error)
	GetForUser(ctx context.Context, id, userID string) (*domain.Address, error)
}

type sessionProvider interface {
	CreateCheckoutSession(ctx context.Context, req payment.SessionRequest) (*payment.Session, error)
	ExpireCheckoutSession(ctx context.Context, sessionID string) error
}

type Config struct {
	Currency   string
	SuccessURL string
	CancelURL  string
}

type Service struct {
	tx        txRunner
	carts     cartViewer
	orders    orderRepo
	addresses addressRepo
	provider  sessionProvider
	cfg       Config
	logger    *zap.Logger
}

func New(tx txRunner, carts cartViewer, orders orderRepo, addresses addressRepo, provider sessionProvider, cfg Config, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{tx: tx, carts: carts, orders: orders, addresses: addresses, provider: provider, cfg: cfg, logger: logger}
}

type Request struct {
	UserID    string
	Email     string
	AddressID string
	// VendorID limits the checkout to one vendor's group when set.
	VendorID string
}

type Result struct {
	SessionID string         `json:"sessionId"`
	URL       string         `json:"url"`
	Orders    []domain.Order `json:"orders"`
}

// Checkout turns the buyer's cart into one draft order per vendor group and
// a single payment session covering all of them. Orders and the session
// stamp are committed together or not at all.
func (s *Service) Checkout(ctx context.Context, req Request) (*Result, error) {
	if strings.TrimSpace(req.UserID) == "" {
		return nil, fmt.Errorf("%w: buyer required", domain.ErrInvalidInput)
	}
	if strings.TrimSpace(req.AddressID) == "" {
		return nil, fmt.Errorf("%w: shipping address required", domain.ErrInvalidInput)
	}
	if _, err := s.addresses.GetForUser(ctx, req.AddressID, req.UserID); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, fmt.Errorf("%w: unknown shipping address", domain.ErrInvalidInput)
		}
		return nil, err
	}

	view, err := s.carts.View(ctx, domain.UserOwner(req.UserID))
	if err != nil {
		return nil, err
	}
	groups := scope(view, req.VendorID)
	if len(groups) == 0 {
		return nil, domain.ErrEmptyCart
	}

	var session *payment.Session
	var orders []domain.Order
	err = s.tx.WithTx(ctx, func(tx pgx.Tx) error {
		var lineItems []payment.LineItem
		for _, g := range groups {
			o := buildOrder(req, g)
			if err := s.orders.Create(ctx, tx, &o); err != nil {
				return fmt.Errorf("create order for vendor %s: %w", g.VendorID, err)
			}
			orders = append(orders, o)
			for _, line := range g.Lines {
				lineItems = append(lineItems, payment.LineItem{
					Name:        line.Title,
					Description: line.Description,
					ImageURL:    line.ImageURL,
					UnitAmount:  line.PriceCents,
					Quantity:    line.Quantity,
				})
			}
		}

		var err error
		session, err = s.provider.CreateCheckoutSession(ctx, payment.SessionRequest{
			LineItems:     lineItems,
			Currency:      s.cfg.Currency,
			SuccessURL:    s.cfg.SuccessURL,
			CancelURL:     s.cfg.CancelURL,
			CustomerEmail: req.Email,
			Metadata:      map[string]string{"user_id": req.UserID},
		})
		if err != nil {
			return fmt.Errorf("create payment session: %w", err)
		}

		ids := make([]string, len(orders))
		for i := range orders {
			ids[i] = orders[i].ID
			orders[i].PaymentSessionID = session.ID
		}
		if err := s.orders.SetSessionID(ctx, tx, ids, session.ID); err != nil {
			return fmt.Errorf("stamp session: %w", err)
		}
		return nil
	})
	if err != nil {
		s.logger.Error("checkout failed", zap.String("user_id", req.UserID), zap.Error(err))
		if session != nil {
			s.expire(ctx, session.ID)
		}
		return nil, domain.ErrCheckoutFailed
	}

	s.logger.Info("checkout session created",
		zap.String("user_id", req.UserID),
		zap.String("session_id", session.ID),
		zap.Int("orders", len(orders)),
	)
	return &Result{SessionID: session.ID, URL: session.URL, Orders: orders}, nil
}

// SaveAddress stores a shipping address for the buyer.
func (s *Service) SaveAddress(ctx context.Context, userID string, a domain.Address) (*domain.Address, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, domain.ErrForbidden
	}
	a.UserID = userID
	for field, v := range map[string]string{"fullName": a.FullName, "line1": a.Line1, "city": a.City, "country": a.Country} {
		if strings.TrimSpace(v) == "" {
			return nil, fmt.Errorf("%w: %s is required", domain.ErrInvalidInput, field)
		}
	}
	return s.addresses.Create(ctx, a)
}

// expire cancels a provider session whose orders were never committed so
// the buyer cannot pay for nothing.
func (s *Service) expire(ctx context.Context, sessionID string) {
	if err := s.provider.ExpireCheckoutSession(context.WithoutCancel(ctx), sessionID); err != nil {
		s.logger.Error("expire orphaned session", zap.String("session_id", sessionID), zap.Error(err))
		return
	}
	s.logger.Warn("expired orphaned session", zap.String("session_id", sessionID))
}

func scope(view domain.CartView, vendorID string) []domain.CartGroup {
	if vendorID == "" {
		return view.Groups
	}
	if g, ok := view.Group(vendorID); ok {
		return []domain.CartGroup{g}
	}
	return nil
}

// buildOrder copies the group's lines into order items; the total is the
// sum of those items.
func buildOrder(req Request, g domain.CartGroup) domain.Order {
	o := domain.Order{
		UserID:         req.UserID,
		VendorID:       g.VendorID,
		AddressID:      req.AddressID,
		Status:         domain.OrderDraft,
		ShippingStatus: domain.ShippingNone,
	}
	for _, line := range g.Lines {
		o.Items = append(o.Items, domain.OrderItem{
			ProductID:    line.ProductID,
			ProductTitle: line.Title,
			Quantity:     line.Quantity,
			PriceCents:   line.PriceCents,
			Options:      line.Options,
		})
		o.TotalPriceCents += line.PriceCents * int64(line.Quantity)
	}
	return o
}
