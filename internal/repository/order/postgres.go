package order

import (
	"context"
	"errors"
	"time"

	"marketplace-checkout/internal/db"
	"marketplace-checkout/internal/domain"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

type postgresRepo struct {
	pool   *pgxpool.Pool
	logger *zap.Logger
}

func NewPostgres(pool *pgxpool.Pool, logger *zap.Logger) Repository {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &postgresRepo{pool: pool, logger: logger}
}

func (r *postgresRepo) querier(q db.Querier) db.Querier {
	if q == nil {
		return r.pool
	}
	return q
}

const orderColumns = `
SELECT id::text, user_id, vendor_id, COALESCE(address_id::text, ''), COALESCE(payment_session_id, ''),
       COALESCE(payment_intent_id, ''), total_price_cents, status, shipping_status,
       online_payment_commission, website_commission, vendor_subtotal,
       COALESCE(tracking_number, ''), estimated_delivery, created_at
FROM orders
`

func scanOrder(row pgx.Row) (domain.Order, error) {
	var o domain.Order
	err := row.Scan(&o.ID, &o.UserID, &o.VendorID, &o.AddressID, &o.PaymentSessionID,
		&o.PaymentIntentID, &o.TotalPriceCents, &o.Status, &o.ShippingStatus,
		&o.OnlinePaymentCommission, &o.WebsiteCommission, &o.VendorSubtotal,
		&o.TrackingNumber, &o.EstimatedDelivery, &o.CreatedAt)
	return o, err
}

func (r *postgresRepo) Create(ctx context.Context, q db.Querier, o *domain.Order) error {
	q = r.querier(q)
	if o.Status == "" {
		o.Status = domain.OrderDraft
	}
	if o.ShippingStatus == "" {
		o.ShippingStatus = domain.ShippingNone
	}
	err := q.QueryRow(ctx, `
INSERT INTO orders (user_id, vendor_id, address_id, total_price_cents, status, shipping_status)
VALUES ($1, $2, NULLIF($3, '')::uuid, $4, $5, $6)
RETURNING id::text, created_at
`, o.UserID, o.VendorID, o.AddressID, o.TotalPriceCents, o.Status, o.ShippingStatus).Scan(&o.ID, &o.CreatedAt)
	if err != nil {
		return err
	}
	for i := range o.Items {
		it := &o.Items[i]
		it.OrderID = o.ID
		if err := q.QueryRow(ctx, `
INSERT INTO order_items (order_id, product_id, quantity, price_cents, option_ids, option_key)
VALUES ($1, $2, $3, $4, $5, $6)
RETURNING id::text
`, o.ID, it.ProductID, it.Quantity, it.PriceCents, []string(it.Options), it.Options.Key()).Scan(&it.ID); err != nil {
			return err
		}
	}
	return nil
}

func (r *postgresRepo) SetSessionID(ctx context.Context, q db.Querier, orderIDs []string, sessionID string) error {
	cmd, err := r.querier(q).Exec(ctx, `
UPDATE orders SET payment_session_id = $2
WHERE id::text = ANY($1)
`, orderIDs, sessionID)
	if err != nil {
		return err
	}
	if int(cmd.RowsAffected()) != len(orderIDs) {
		return domain.ErrNotFound
	}
	return nil
}

func (r *postgresRepo) ListBySession(ctx context.Context, q db.Querier, sessionID string) ([]domain.Order, error) {
	return r.list(ctx, r.querier(q), orderColumns+`WHERE payment_session_id = $1 ORDER BY created_at, id`, sessionID)
}

func (r *postgresRepo) ListByPaymentIntent(ctx context.Context, q db.Querier, paymentIntentID string) ([]domain.Order, error) {
	return r.list(ctx, r.querier(q), orderColumns+`WHERE payment_intent_id = $1 ORDER BY created_at, id`, paymentIntentID)
}

func (r *postgresRepo) ListPaidByUser(ctx context.Context, userID string) ([]domain.Order, error) {
	return r.list(ctx, r.pool, orderColumns+`WHERE user_id = $1 AND status = 'paid' ORDER BY created_at DESC, id`, userID)
}

func (r *postgresRepo) GetByID(ctx context.Context, id string) (*domain.Order, error) {
	return r.getOne(ctx, orderColumns+`WHERE id::text = $1`, id)
}

func (r *postgresRepo) GetByTrackingNumber(ctx context.Context, trackingNumber string) (*domain.Order, error) {
	return r.getOne(ctx, orderColumns+`WHERE tracking_number = $1`, trackingNumber)
}

func (r *postgresRepo) getOne(ctx context.Context, sql string, arg string) (*domain.Order, error) {
	orders, err := r.list(ctx, r.pool, sql, arg)
	if err != nil {
		return nil, err
	}
	if len(orders) == 0 {
		return nil, domain.ErrNotFound
	}
	return &orders[0], nil
}

// list loads orders and their items in two queries.
func (r *postgresRepo) list(ctx context.Context, q db.Querier, sql string, args ...any) ([]domain.Order, error) {
	rows, err := q.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	var orders []domain.Order
	index := map[string]int{}
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			rows.Close()
			return nil, err
		}
		index[o.ID] = len(orders)
		orders = append(orders, o)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(orders) == 0 {
		return nil, nil
	}

	ids := make([]string, 0, len(orders))
	for _, o := range orders {
		ids = append(ids, o.ID)
	}
	rows, err = q.Query(ctx, `
SELECT i.id::text, i.order_id::text, i.product_id::text, COALESCE(p.title, ''), i.quantity, i.price_cents, i.option_ids
FROM order_items i
LEFT JOIN products p ON p.id = i.product_id
WHERE i.order_id::text = ANY($1)
ORDER BY i.order_id, i.id
`, ids)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var it domain.OrderItem
		var options []string
		if err := rows.Scan(&it.ID, &it.OrderID, &it.ProductID, &it.ProductTitle, &it.Quantity, &it.PriceCents, &options); err != nil {
			return nil, err
		}
		it.Options = domain.NewOptionSet(options...)
		o := &orders[index[it.OrderID]]
		o.Items = append(o.Items, it)
	}
	return orders, rows.Err()
}

// beginner opens a savepoint on a pgx.Tx and a transaction on the pool.
type beginner interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

// MarkPaid runs inside its own savepoint so a tracking number collision
// leaves the caller's transaction usable for a retry.
func (r *postgresRepo) MarkPaid(ctx context.Context, q db.Querier, orderID string, f domain.Fulfillment) (bool, error) {
	q = r.querier(q)
	b, ok := q.(beginner)
	if !ok {
		return markPaid(ctx, q, orderID, f)
	}
	sp, err := b.Begin(ctx)
	if err != nil {
		return false, err
	}
	defer sp.Rollback(ctx)

	stamped, err := markPaid(ctx, sp, orderID, f)
	if err != nil {
		return false, err
	}
	return stamped, sp.Commit(ctx)
}

func markPaid(ctx context.Context, q db.Querier, orderID string, f domain.Fulfillment) (bool, error) {
	cmd, err := q.Exec(ctx, `
UPDATE orders
SET payment_intent_id = $2,
    status = 'paid',
    shipping_status = 'placed',
    tracking_number = $3,
    estimated_delivery = $4
WHERE id::text = $1 AND payment_intent_id IS NULL
`, orderID, f.PaymentIntentID, f.TrackingNumber, f.EstimatedDelivery)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return false, domain.ErrAlreadyExists
		}
		return false, err
	}
	return cmd.RowsAffected() == 1, nil
}

func (r *postgresRepo) SetFeeSplit(ctx context.Context, q db.Querier, orderID string, split domain.FeeSplit) (bool, error) {
	cmd, err := r.querier(q).Exec(ctx, `
UPDATE orders
SET online_payment_commission = $2,
    website_commission = $3,
    vendor_subtotal = $4
WHERE id::text = $1 AND vendor_subtotal IS NULL
`, orderID, split.OnlinePaymentCommission, split.WebsiteCommission, split.VendorSubtotal)
	if err != nil {
		return false, err
	}
	return cmd.RowsAffected() == 1, nil
}

func (r *postgresRepo) UpdateShippingStatus(ctx context.Context, orderID string, from, to domain.ShippingStatus) (bool, error) {
	cmd, err := r.pool.Exec(ctx, `
UPDATE orders SET shipping_status = $3
WHERE id::text = $1 AND shipping_status = $2 AND status = 'paid'
`, orderID, from, to)
	if err != nil {
		return false, err
	}
	return cmd.RowsAffected() == 1, nil
}

func (r *postgresRepo) SumVendorSubtotal(ctx context.Context, vendorID string, from, until time.Time) (int64, error) {
	var sum int64
	err := r.pool.QueryRow(ctx, `
SELECT COALESCE(SUM(vendor_subtotal), 0)::bigint
FROM orders
WHERE vendor_id = $1 AND status = 'paid' AND created_at >= $2 AND created_at < $3
`, vendorID, from, until).Scan(&sum)
	if err != nil {
		r.logger.Error("order repo: sum vendor subtotal", zap.String("vendor_id", vendorID), zap.Error(err))
		return 0, err
	}
	return sum, nil
}
