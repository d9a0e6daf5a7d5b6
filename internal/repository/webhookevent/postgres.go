package webhookevent

import (
	"context"
	"errors"

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

func (r *postgresRepo) querier(q db.Querier) db.Querier {
	if q == nil {
		return r.pool
	}
	return q
}

func (r *postgresRepo) Record(ctx context.Context, q db.Querier, eventID, eventType string) (bool, error) {
	cmd, err := r.querier(q).Exec(ctx, `
INSERT INTO webhook_events (event_id, event_type)
VALUES ($1, $2)
ON CONFLICT (event_id) DO NOTHING
`, eventID, eventType)
	if err != nil {
		return false, err
	}
	return cmd.RowsAffected() == 1, nil
}

func (r *postgresRepo) Defer(ctx context.Context, q db.Querier, c DeferredCharge) error {
	_, err := r.querier(q).Exec(ctx, `
INSERT INTO deferred_charges (payment_intent_id, balance_transaction_id, event_id)
VALUES ($1, $2, $3)
ON CONFLICT (payment_intent_id) DO UPDATE
SET balance_transaction_id = EXCLUDED.balance_transaction_id,
    event_id = EXCLUDED.event_id
`, c.PaymentIntentID, c.BalanceTransactionID, c.EventID)
	return err
}

func (r *postgresRepo) PeekDeferred(ctx context.Context, paymentIntentID string) (*DeferredCharge, error) {
	return scanDeferred(r.pool.QueryRow(ctx, `
SELECT payment_intent_id, balance_transaction_id, event_id
FROM deferred_charges
WHERE payment_intent_id = $1
`, paymentIntentID))
}

func (r *postgresRepo) TakeDeferred(ctx context.Context, q db.Querier, paymentIntentID string) (*DeferredCharge, error) {
	return scanDeferred(r.querier(q).QueryRow(ctx, `
DELETE FROM deferred_charges
WHERE payment_intent_id = $1
RETURNING payment_intent_id, balance_transaction_id, event_id
`, paymentIntentID))
}

func scanDeferred(row pgx.Row) (*DeferredCharge, error) {
	var c DeferredCharge
	if err := row.Scan(&c.PaymentIntentID, &c.BalanceTransactionID, &c.EventID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return &c, nil
}
