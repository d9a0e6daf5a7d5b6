package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"marketplace-checkout/internal/config"
	"marketplace-checkout/internal/db"
	"marketplace-checkout/internal/lock"
	"marketplace-checkout/internal/logging"
	"marketplace-checkout/internal/metrics"
	"marketplace-checkout/internal/payment/stripe"
	orderrepo "marketplace-checkout/internal/repository/order"
	payoutrepo "marketplace-checkout/internal/repository/payout"
	vendorrepo "marketplace-checkout/internal/repository/vendor"
	"marketplace-checkout/internal/service/payout"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

func main() {
	var once bool
	flag.BoolVar(&once, "once", false, "Run a single payout pass and exit")
	flag.Parse()

	cfg := config.FromEnv()
	logger, err := logging.New(cfg.Logger, "payout")
	if err != nil {
		fmt.Fprintf(os.Stderr, "init logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	ctx := context.Background()
	dbpool, err := db.Connect(ctx, cfg.DBConnString)
	if err != nil {
		logger.Fatal("connect to db", zap.Error(err))
	}
	defer dbpool.Close()

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer rdb.Close()
	if err := rdb.Ping(ctx).Err(); err != nil {
		logger.Fatal("connect to redis", zap.Error(err))
	}

	engine := payout.NewEngine(
		db.NewTxRunner(dbpool),
		vendorrepo.NewPostgres(dbpool),
		orderrepo.NewPostgres(dbpool, logger),
		payoutrepo.NewPostgres(dbpool),
		stripe.New(cfg.Stripe.SecretKey, cfg.Stripe.WebhookSecret),
		cfg.Checkout.Currency,
		metrics.New("payout"),
		logger,
	)

	scheduler, err := payout.NewScheduler(engine, lock.New(rdb), cfg.Payout.Schedule, cfg.Payout.LockTTL, logger)
	if err != nil {
		logger.Fatal("init scheduler", zap.String("schedule", cfg.Payout.Schedule), zap.Error(err))
	}

	if once {
		if err := scheduler.RunOnce(ctx); err != nil {
			logger.Fatal("payout run", zap.Error(err))
		}
		return
	}

	scheduler.Start()
	logger.Info("payout scheduler started", zap.String("schedule", cfg.Payout.Schedule))

	stopCh := make(chan os.Signal, 1)
	signal.Notify(stopCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-stopCh
	logger.Info("received signal, waiting for running payouts", zap.String("signal", sig.String()))

	<-scheduler.Stop().Done()
	logger.Info("payout scheduler stopped")
}
