package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"marketplace-checkout/internal/config"
	"marketplace-checkout/internal/db"
	"marketplace-checkout/internal/importer"
	"marketplace-checkout/internal/logging"
	productrepo "marketplace-checkout/internal/repository/product"
	vendorrepo "marketplace-checkout/internal/repository/vendor"

	"go.uber.org/zap"
)

func main() {
	var (
		filePath string
		vendorID string
		publish  bool
	)
	flag.StringVar(&filePath, "file", "", "Path to vendor catalog CSV")
	flag.StringVar(&vendorID, "vendor", "", "Vendor user id that owns the imported products")
	flag.BoolVar(&publish, "publish", false, "Publish imported products instead of leaving them as drafts")
	flag.Parse()

	if filePath == "" || vendorID == "" {
		flag.Usage()
		os.Exit(2)
	}

	cfg := config.FromEnv()
	logger, err := logging.New(cfg.Logger, "importer")
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

	vendor, err := vendorrepo.NewPostgres(pool).GetByUserID(ctx, vendorID)
	if err != nil {
		logger.Fatal("load vendor", zap.String("vendor", vendorID), zap.Error(err))
	}

	f, err := os.Open(filePath)
	if err != nil {
		logger.Fatal("open file", zap.Error(err))
	}
	defer f.Close()

	imp := importer.NewCSVImporter(f, productrepo.NewPostgres(pool, logger), vendor.UserID, publish)

	start := time.Now()
	count, err := imp.Run(ctx)
	if err != nil {
		logger.Fatal("import failed", zap.Int("imported", count), zap.Error(err))
	}

	logger.Info("import finished",
		zap.Int("products", count),
		zap.String("store", vendor.StoreName),
		zap.Duration("took", time.Since(start).Truncate(time.Millisecond)),
	)
}
