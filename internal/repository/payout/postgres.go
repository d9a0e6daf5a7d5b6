package payout

import (
	"context"
	"errors"
	"time"

	"marketplace-checkout/internal/db"
	"marketplace-checkout/internal/domain"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

type postgresRepo struct {
	pool *pgxpool.Pool
}

func NewPostgres(pool *pgxpool.Pool) Repository {
	return &postgresRepo{pool: pool}
}

func (r *postgresRepo) LastUntil(ctx context.Context, vendorID string) (time.Time, bool, error) {
	var until time.Time
	err := r.pool.QueryRow(ctx, `
SELECT until FROM payouts
WHERE vendor_id = $1
ORDER BY until DESC
LIMIT 1
`, vendorID).Scan(&until)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return time.Time{}, false, nil
		}
		return time.Time{}, false, err
	}
	return until.UTC(), true, nil
}

func (r *postgresRepo) Create(ctx context.Context, q db.Querier, p *domain.Payout) error {
	if q == nil {
		q = r.pool
	}
	err := q.QueryRow(ctx, `
INSERT INTO payouts (vendor_id, amount_cents, starting_from, until)
VALUES ($1, $2, $3, $4)
RETURNING id::text, created_at
`, p.VendorID, p.AmountCents, p.StartingFrom, p.Until).Scan(&p.ID, &p.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return domain.ErrAlreadyExists
		}
		return err
	}
	return nil
}

func (r *postgresRepo) ListByVendor(ctx context.Context, vendorID string) ([]domain.Payout, error) {
	rows, err := r.pool.Query(ctx, `
SELECT id::text, vendor_id, amount_cents, starting_from, until, created_at
FROM payouts
WHERE vendor_id = $1
ORDER BY until ASC
`, vendorID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Payout
	for rows.Next() {
		var p domain.Payout
		if err := rows.Scan(&p.ID, &p.VendorID, &p.AmountCents, &p.StartingFrom, &p.Until, &p.CreatedAt); err != nil {
			return nil, err
		}
		p.StartingFrom = p.StartingFrom.UTC()
		p.Until = p.Until.UTC()
		out = append(out, p)
	}
	return out, rows.Err()
}
