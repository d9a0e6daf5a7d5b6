package address

import (
	"context"
	"errors"

	"marketplace-checkout/internal/domain"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type postgresRepo struct {
	pool *pgxpool.Pool
}

// NewPostgres returns a Repository backed by Postgres.
func NewPostgres(pool *pgxpool.Pool) Repository {
	return &postgresRepo{pool: pool}
}

const addressColumns = `id::text, user_id, full_name, line1, COALESCE(line2, ''), city, COALESCE(state, ''), COALESCE(zip_code, ''), country, is_default`

func scanAddress(row pgx.Row) (*domain.Address, error) {
	var a domain.Address
	if err := row.Scan(&a.ID, &a.UserID, &a.FullName, &a.Line1, &a.Line2, &a.City, &a.State, &a.ZipCode, &a.Country, &a.IsDefault); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return &a, nil
}

func (r *postgresRepo) Create(ctx context.Context, a domain.Address) (*domain.Address, error) {
	return scanAddress(r.pool.QueryRow(ctx, `
INSERT INTO addresses (user_id, full_name, line1, line2, city, state, zip_code, country, is_default)
VALUES ($1, $2, $3, NULLIF($4, ''), $5, NULLIF($6, ''), NULLIF($7, ''), $8, $9)
RETURNING `+addressColumns,
		a.UserID, a.FullName, a.Line1, a.Line2, a.City, a.State, a.ZipCode, a.Country, a.IsDefault))
}

func (r *postgresRepo) GetForUser(ctx context.Context, id, userID string) (*domain.Address, error) {
	return scanAddress(r.pool.QueryRow(ctx, `
SELECT `+addressColumns+`
FROM addresses
WHERE id::text = $1 AND user_id = $2
`, id, userID))
}
