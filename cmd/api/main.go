package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"marketplace-checkout/internal/config"
	"marketplace-checkout/internal/db"
	"marketplace-checkout/internal/httpserver"
	"marketplace-checkout/internal/logging"
	"marketplace-checkout/internal/media"
	"marketplace-checkout/internal/metrics"
	"marketplace-checkout/internal/notify"
	"marketplace-checkout/internal/payment/stripe"
	addressrepo "marketplace-checkout/internal/repository/address"
	cartrepo "marketplace-checkout/internal/repository/cart"
	orderrepo "marketplace-checkout/internal/repository/order"
	productrepo "marketplace-checkout/internal/repository/product"
	vendorrepo "marketplace-checkout/internal/repository/vendor"
	"marketplace-checkout/internal/repository/webhookevent"
	cartsvc "marketplace-checkout/internal/service/cart"
	checkoutsvc "marketplace-checkout/internal/service/checkout"
	ordersvc "marketplace-checkout/internal/service/order"
	productsvc "marketplace-checkout/internal/service/product"
	"marketplace-checkout/internal/service/reconcile"
	vendorsvc "marketplace-checkout/internal/service/vendor"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

func main() {
	cfg := config.FromEnv()
	logger, err := logging.New(cfg.Logger, "api")
	if err != nil {
		fmt.Fprintf(os.Stderr, "init logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	platformPct, err := decimal.NewFromString(cfg.Checkout.PlatformFeePct)
	if err != nil {
		logger.Fatal("parse platform fee percentage", zap.String("value", cfg.Checkout.PlatformFeePct), zap.Error(err))
	}

	ctx := context.Background()
	dbpool, err := db.Connect(ctx, cfg.DBConnString)
	if err != nil {
		logger.Fatal("connect to db", zap.Error(err))
	}
	defer dbpool.Close()

	m := metrics.New("api")
	tx := db.NewTxRunner(dbpool)
	provider := stripe.New(cfg.Stripe.SecretKey, cfg.Stripe.WebhookSecret)

	publisher, closePublisher := notify.NewPublisher(cfg.Kafka.Brokers, cfg.Kafka.NotifyTopic, logger)
	defer func() {
		if err := closePublisher(); err != nil {
			logger.Warn("close notification publisher", zap.Error(err))
		}
	}()
	dispatcher := notify.NewDispatcher(publisher)

	productRepo := productrepo.NewPostgres(dbpool, logger)
	cartRepo := cartrepo.NewPostgres(dbpool)
	orderRepo := orderrepo.NewPostgres(dbpool, logger)
	vendorRepo := vendorrepo.NewPostgres(dbpool)

	images := media.NewResolver(cfg.FileURLHost)
	cartService := cartsvc.New(cartRepo, productRepo, images, logger)
	checkoutService := checkoutsvc.New(tx, cartService, orderRepo, addressrepo.NewPostgres(dbpool), provider, checkoutsvc.Config{
		Currency:   cfg.Checkout.Currency,
		SuccessURL: cfg.Checkout.SuccessURL,
		CancelURL:  cfg.Checkout.CancelURL,
	}, logger)
	reconcileService := reconcile.New(reconcile.Deps{
		Tx:       tx,
		Orders:   orderRepo,
		Products: productRepo,
		Carts:    cartRepo,
		Events:   webhookevent.NewPostgres(dbpool),
		Provider: provider,
		Notifier: dispatcher,
		Metrics:  m,
		Logger:   logger.Named("reconcile"),
	}, platformPct)

	srv, err := httpserver.New(cfg.HTTPAddr, logger, dbpool, httpserver.Deps{
		ProductSvc:    productsvc.New(productRepo, images),
		CartSvc:       cartService,
		CheckoutSvc:   checkoutService,
		OrderSvc:      ordersvc.New(orderRepo),
		VendorSvc:     vendorsvc.New(vendorRepo, dispatcher, logger),
		WebhookSvc:    reconcileService,
		Metrics:       m,
		Currency:      cfg.Checkout.Currency,
		CORSOrigins:   cfg.CORSOrigins,
		CartRate:      cfg.CartRate,
		SecureCookies: cfg.Logger.AppEnv != "development",
	})
	if err != nil {
		logger.Fatal("init server", zap.Error(err))
	}

	serverErr := make(chan error, 1)
	go func() {
		logger.Info("starting http server", zap.String("addr", cfg.HTTPAddr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	stopCh := make(chan os.Signal, 1)
	signal.Notify(stopCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-stopCh:
		logger.Info("received signal, shutting down", zap.String("signal", sig.String()))
	case err := <-serverErr:
		logger.Error("server error", zap.Error(err))
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("graceful shutdown failed", zap.Error(err))
	} else {
		logger.Info("server stopped")
	}
}
