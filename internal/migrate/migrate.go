package migrate

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"io/fs"

	"marketplace-checkout/internal/logging"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jackc/pgx/v5/pgxpool"
	_ "github.com/jackc/pgx/v5/stdlib"
	"go.uber.org/zap"
)

//go:embed sql/*.sql
var migrationsFS embed.FS

// ErrDirty is returned when a previous migration failed halfway. The schema
// must be repaired by hand before migrating again.
var ErrDirty = errors.New("database schema is dirty")

// Status is the schema version recorded by golang-migrate. Version is zero
// on an empty database.
type Status struct {
	Version uint
	Dirty   bool
}

// Apply runs all embedded migrations up and logs the version change.
func Apply(ctx context.Context, pool *pgxpool.Pool, logger *zap.Logger) error {
	logger = logging.OrNop(logger)
	return withMigrator(ctx, pool, func(m *migrate.Migrate) error {
		before, err := status(m)
		if err != nil {
			return err
		}
		if before.Dirty {
			return fmt.Errorf("%w at version %d", ErrDirty, before.Version)
		}

		if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
			if errors.Is(err, fs.ErrNotExist) {
				return fmt.Errorf("migrate up: %w (every version needs both .up.sql and .down.sql files)", err)
			}
			return fmt.Errorf("migrate up: %w", err)
		}

		after, err := status(m)
		if err != nil {
			return err
		}
		if after.Version == before.Version {
			logger.Debug("schema up to date", zap.Uint("version", after.Version))
			return nil
		}
		logger.Info("schema migrated", zap.Uint("from", before.Version), zap.Uint("to", after.Version))
		return nil
	})
}

// CurrentStatus reports the applied schema version without changing it.
func CurrentStatus(ctx context.Context, pool *pgxpool.Pool) (Status, error) {
	var st Status
	err := withMigrator(ctx, pool, func(m *migrate.Migrate) error {
		var err error
		st, err = status(m)
		return err
	})
	return st, err
}

func status(m *migrate.Migrate) (Status, error) {
	v, dirty, err := m.Version()
	if errors.Is(err, migrate.ErrNilVersion) {
		return Status{}, nil
	}
	if err != nil {
		return Status{}, fmt.Errorf("read schema version: %w", err)
	}
	return Status{Version: v, Dirty: dirty}, nil
}

func withMigrator(ctx context.Context, pool *pgxpool.Pool, fn func(m *migrate.Migrate) error) error {
	srcDriver, err := iofs.New(migrationsFS, "sql")
	if err != nil {
		return fmt.Errorf("init iofs: %w", err)
	}

	sqlDB, err := sql.Open("pgx", pool.Config().ConnString())
	if err != nil {
		return fmt.Errorf("open sql db: %w", err)
	}
	defer sqlDB.Close()

	if err := sqlDB.PingContext(ctx); err != nil {
		return fmt.Errorf("ping sql db: %w", err)
	}

	dbDriver, err := postgres.WithInstance(sqlDB, &postgres.Config{})
	if err != nil {
		return fmt.Errorf("init db driver: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", srcDriver, "pgx", dbDriver)
	if err != nil {
		return fmt.Errorf("init migrate: %w", err)
	}
	defer m.Close()

	return fn(m)
}
