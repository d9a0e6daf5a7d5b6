package cart

import (
	"context"

	"marketplace-checkout/internal/db"
	"marketplace-checkout/internal/domain"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type postgresRepo struct {
	pool *pgxpool.Pool
}

func NewPostgres(pool *pgxpool.Pool) Repository {
	return &postgresRepo{pool: pool}
}

// ownerClause matches rows of either owner kind; $1 is the user id and $2 the
// anonymous id, exactly one of them non-null.
const ownerClause = `((user_id = $1 AND $1 IS NOT NULL) OR (anonymous_id = $2 AND $2 IS NOT NULL))`

func ownerArgs(owner domain.Owner) (*string, *string) {
	if owner.Authenticated() {
		return &owner.UserID, nil
	}
	return nil, &owner.AnonymousID
}

const itemColumns = `id::text, product_id::text, option_ids, quantity, price_cents, saved_for_later, created_at`

func scanItem(row pgx.Row) (domain.CartItem, error) {
	var it domain.CartItem
	var options []string
	if err := row.Scan(&it.ID, &it.ProductID, &options, &it.Quantity, &it.PriceCents, &it.SavedForLater, &it.CreatedAt); err != nil {
		return it, err
	}
	it.Options = domain.NewOptionSet(options...)
	return it, nil
}

func (r *postgresRepo) List(ctx context.Context, owner domain.Owner) ([]domain.CartItem, error) {
	userID, anonID := ownerArgs(owner)
	rows, err := r.pool.Query(ctx, `
SELECT `+itemColumns+`
FROM cart_items
WHERE `+ownerClause+`
ORDER BY created_at ASC, id ASC
`, userID, anonID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []domain.CartItem
	for rows.Next() {
		it, err := scanItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, it)
	}
	return items, rows.Err()
}

func (r *postgresRepo) Add(ctx context.Context, owner domain.Owner, item domain.CartItem) (*domain.CartItem, error) {
	userID, anonID := ownerArgs(owner)
	conflict := `(anonymous_id, product_id, option_key) WHERE anonymous_id IS NOT NULL`
	if owner.Authenticated() {
		conflict = `(user_id, product_id, option_key) WHERE user_id IS NOT NULL`
	}
	out, err := scanItem(r.pool.QueryRow(ctx, `
INSERT INTO cart_items (user_id, anonymous_id, product_id, option_ids, option_key, quantity, price_cents)
VALUES ($1, $2, $3, $4, $5, $6, $7)
ON CONFLICT `+conflict+` DO UPDATE SET quantity = cart_items.quantity + EXCLUDED.quantity
RETURNING `+itemColumns,
		userID, anonID, item.ProductID, []string(item.Options), item.Options.Key(), item.Quantity, item.PriceCents))
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (r *postgresRepo) UpdateQuantity(ctx context.Context, owner domain.Owner, productID string, options domain.OptionSet, quantity int) (bool, error) {
	userID, anonID := ownerArgs(owner)
	cmd, err := r.pool.Exec(ctx, `
UPDATE cart_items SET quantity = $5
WHERE `+ownerClause+` AND product_id::text = $3 AND option_key = $4
`, userID, anonID, productID, options.Key(), quantity)
	if err != nil {
		return false, err
	}
	return cmd.RowsAffected() > 0, nil
}

func (r *postgresRepo) Remove(ctx context.Context, owner domain.Owner, productID string, options domain.OptionSet) error {
	userID, anonID := ownerArgs(owner)
	_, err := r.pool.Exec(ctx, `
DELETE FROM cart_items
WHERE `+ownerClause+` AND product_id::text = $3 AND option_key = $4
`, userID, anonID, productID, options.Key())
	return err
}

func (r *postgresRepo) SetSavedForLater(ctx context.Context, owner domain.Owner, lineID string, saved bool) error {
	userID, anonID := ownerArgs(owner)
	cmd, err := r.pool.Exec(ctx, `
UPDATE cart_items SET saved_for_later = $4
WHERE `+ownerClause+` AND id::text = $3
`, userID, anonID, lineID, saved)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *postgresRepo) MergeAnonymous(ctx context.Context, anonymousID, userID string) (int, error) {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return 0, err
	}
	defer tx.Rollback(ctx)

	cmd, err := tx.Exec(ctx, `
INSERT INTO cart_items (user_id, product_id, option_ids, option_key, quantity, price_cents, saved_for_later, created_at)
SELECT $2, product_id, option_ids, option_key, quantity, price_cents, saved_for_later, created_at
FROM cart_items
WHERE anonymous_id = $1
ON CONFLICT (user_id, product_id, option_key) WHERE user_id IS NOT NULL
DO UPDATE SET quantity = cart_items.quantity + EXCLUDED.quantity
`, anonymousID, userID)
	if err != nil {
		return 0, err
	}
	if _, err := tx.Exec(ctx, `DELETE FROM cart_items WHERE anonymous_id = $1`, anonymousID); err != nil {
		return 0, err
	}
	if err := tx.Commit(ctx); err != nil {
		return 0, err
	}
	return int(cmd.RowsAffected()), nil
}

func (r *postgresRepo) DeleteProducts(ctx context.Context, q db.Querier, userID string, productIDs []string) (int64, error) {
	if len(productIDs) == 0 {
		return 0, nil
	}
	if q == nil {
		q = r.pool
	}
	cmd, err := q.Exec(ctx, `
DELETE FROM cart_items
WHERE user_id = $1 AND saved_for_later = false AND product_id::text = ANY($2)
`, userID, productIDs)
	if err != nil {
		return 0, err
	}
	return cmd.RowsAffected(), nil
}
