package httpserver

import (
	"context"
	"errors"
	"time"

	"marketplace-checkout/internal/config"
	"marketplace-checkout/internal/domain"
	"marketplace-checkout/internal/metrics"
	checkoutsvc "marketplace-checkout/internal/service/checkout"
	productsvc "marketplace-checkout/internal/service/product"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

type productService interface {
	Get(ctx context.Context, id string) (*domain.Product, error)
	Quote(ctx context.Context, id string, options domain.OptionSet) (*productsvc.Quote, error)
}

type cartService interface {
	AddItem(ctx context.Context, owner domain.Owner, productID string, quantity int, options domain.OptionSet) (*domain.CartItem, error)
	UpdateQuantity(ctx context.Context, owner domain.Owner, productID string, quantity int, options domain.OptionSet) error
	RemoveItem(ctx context.Context, owner domain.Owner, productID string, options domain.OptionSet) error
	MarkSavedForLater(ctx context.Context, owner domain.Owner, lineID string) error
	MoveToCart(ctx context.Context, owner domain.Owner, lineID string) error
	Merge(ctx context.Context, anonymousID, userID string) (int, error)
	View(ctx context.Context, owner domain.Owner) (domain.CartView, error)
}

type checkoutService interface {
	Checkout(ctx context.Context, req checkoutsvc.Request) (*checkoutsvc.Result, error)
	SaveAddress(ctx context.Context, userID string, a domain.Address) (*domain.Address, error)
}

type orderService interface {
	ListForBuyer(ctx context.Context, userID string) ([]domain.Order, error)
	SuccessOrders(ctx context.Context, userID, sessionID string) ([]domain.Order, error)
	Track(ctx context.Context, trackingNumber string) (*domain.Order, error)
	AdvanceShipping(ctx context.Context, vendorID, orderID string, to domain.ShippingStatus) (*domain.Order, error)
}

type vendorService interface {
	ChangeStatus(ctx context.Context, userID, status string) (*domain.Vendor, error)
}

type webhookService interface {
	HandleWebhook(ctx context.Context, payload []byte, signature string) error
}

// Deps carries the services and settings the router needs.
type Deps struct {
	ProductSvc  productService
	CartSvc     cartService
	CheckoutSvc checkoutService
	OrderSvc    orderService
	VendorSvc   vendorService
	WebhookSvc  webhookService

	Metrics       *metrics.Metrics
	Currency      string
	CORSOrigins   []string
	CartRate      config.RateConfig
	SecureCookies bool
}

// buildRouter wires routes for the API.
func buildRouter(logger *zap.Logger, db *pgxpool.Pool, deps Deps) (*gin.Engine, error) {
	if deps.ProductSvc == nil || deps.CartSvc == nil || deps.CheckoutSvc == nil || deps.OrderSvc == nil || deps.VendorSvc == nil || deps.WebhookSvc == nil {
		return nil, errors.New("httpserver: missing service dependency")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	router := gin.New()
	router.Use(gin.Recovery(), requestLogger(logger, deps.Metrics))
	if len(deps.CORSOrigins) > 0 {
		router.Use(cors.New(cors.Config{
			AllowOrigins:     deps.CORSOrigins,
			AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
			AllowHeaders:     []string{"Origin", "Content-Type", headerUserID, headerUserEmail, headerUserRole},
			AllowCredentials: true,
			MaxAge:           12 * time.Hour,
		}))
	}

	router.GET("/healthz", healthHandler)
	router.GET("/readyz", readyHandler(db))
	router.GET("/metrics", gin.WrapH(deps.Metrics.Handler()))

	h := &handlers{
		products:      deps.ProductSvc,
		cart:          deps.CartSvc,
		checkout:      deps.CheckoutSvc,
		orders:        deps.OrderSvc,
		vendors:       deps.VendorSvc,
		webhook:       deps.WebhookSvc,
		currency:      deps.Currency,
		secureCookies: deps.SecureCookies,
		logger:        logger,
	}

	// The provider calls this one; it carries no buyer identity.
	router.POST("/payments/webhook", h.paymentWebhook)

	api := router.Group("/", identityMiddleware())

	api.GET("/products/:productId", h.getProduct)
	api.GET("/products/:productId/quote", h.quoteProduct)

	cart := api.Group("/cart")
	cart.GET("", h.getCart)
	mutate := cart.Group("", newIPRateLimiter(deps.CartRate).middleware())
	mutate.POST("/items", h.addCartItem)
	mutate.PUT("/items/:productId", h.updateCartItem)
	mutate.DELETE("/items/:productId", h.removeCartItem)
	mutate.POST("/lines/:lineId/save-for-later", h.saveForLater)
	mutate.POST("/lines/:lineId/move-to-cart", h.moveToCart)
	mutate.POST("/merge", requireUser, h.mergeCart)

	api.POST("/addresses", requireUser, h.createAddress)
	api.POST("/checkout", requireUser, h.checkout)
	api.GET("/checkout/success", requireUser, h.checkoutSuccess)

	api.GET("/orders", requireUser, h.listOrders)
	api.GET("/orders/track/:trackingNumber", h.trackOrder)
	api.PUT("/vendor/orders/:orderId/shipping", requireUser, h.advanceShipping)
	api.PUT("/admin/vendors/:vendorId/status", requireRole(roleAdmin), h.changeVendorStatus)

	return router, nil
}

type handlers struct {
	products      productService
	cart          cartService
	checkout      checkoutService
	orders        orderService
	vendors       vendorService
	webhook       webhookService
	currency      string
	secureCookies bool
	logger        *zap.Logger
}
