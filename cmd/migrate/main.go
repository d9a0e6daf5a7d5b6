package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"marketplace-checkout/internal/config"
	"marketplace-checkout/internal/db"
	"marketplace-checkout/internal/logging"
	"marketplace-checkout/internal/migrate"

	"go.uber.org/zap"
)

func main() {
	var statusOnly bool
	flag.BoolVar(&statusOnly, "status", false, "Print the applied schema version and exit")
	flag.Parse()

	cfg := config.FromEnv()
	logger, err := logging.New(cfg.Logger, "migrate")
	if err != nil {
		fmt.Fprintf(os.Stderr, "init logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	ctx := context.Background()
	pool, err := db.Connect(ctx, cfg.DBConnString)
	if err != nil {
		logger.Fatal("connect db", zap.Error(err))
	}
	defer pool.Close()

	if statusOnly {
		st, err := migrate.CurrentStatus(ctx, pool)
		if err != nil {
			logger.Fatal("read schema status", zap.Error(err))
		}
		logger.Info("schema status", zap.Uint("version", st.Version), zap.Bool("dirty", st.Dirty))
		return
	}

	if err := migrate.Apply(ctx, pool, logger); err != nil {
		logger.Fatal("apply migrations", zap.Error(err))
	}

	logger.Info("migrations applied")
}
