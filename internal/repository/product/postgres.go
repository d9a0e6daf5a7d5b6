package product

import (
	"context"
	"errors"
	"fmt"

	"marketplace-checkout/internal/db"
	"marketplace-checkout/internal/domain"

	"github.com/jackc/pgx/v5"
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

const productColumns = `
SELECT p.id::text, p.vendor_id, v.store_name, v.status, COALESCE(p.department, ''), p.title, p.slug,
       p.price_cents, p.quantity, p.status, COALESCE(p.image_path, ''), p.created_at
FROM products p
JOIN vendors v ON v.user_id = p.vendor_id
`

func scanProduct(row pgx.Row) (domain.Product, error) {
	var p domain.Product
	err := row.Scan(&p.ID, &p.VendorID, &p.VendorName, &p.VendorStatus, &p.Department, &p.Title, &p.Slug,
		&p.PriceCents, &p.Quantity, &p.Status, &p.ImagePath, &p.CreatedAt)
	return p, err
}

func (r *postgresRepo) GetByID(ctx context.Context, id string) (*domain.Product, error) {
	p, err := scanProduct(r.pool.QueryRow(ctx, productColumns+`WHERE p.id::text = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		r.logger.Error("product repo: get", zap.String("id", id), zap.Error(err))
		return nil, err
	}
	products := map[string]*domain.Product{p.ID: &p}
	if err := r.loadVariations(ctx, products); err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *postgresRepo) GetByIDs(ctx context.Context, ids []string) (map[string]domain.Product, error) {
	out := make(map[string]domain.Product, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	rows, err := r.pool.Query(ctx, productColumns+`WHERE p.id::text = ANY($1)`, ids)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	byID := make(map[string]*domain.Product, len(ids))
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		byID[p.ID] = &p
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if err := r.loadVariations(ctx, byID); err != nil {
		return nil, err
	}
	for id, p := range byID {
		out[id] = *p
	}
	return out, nil
}

// loadVariations fills variation types (with ordered options) and
// variations for every product in products.
func (r *postgresRepo) loadVariations(ctx context.Context, products map[string]*domain.Product) error {
	if len(products) == 0 {
		return nil
	}
	ids := make([]string, 0, len(products))
	for id := range products {
		ids = append(ids, id)
	}

	rows, err := r.pool.Query(ctx, `
SELECT t.product_id::text, t.id::text, t.name, t.kind, o.id::text, o.name, COALESCE(o.image_path, '')
FROM variation_types t
LEFT JOIN variation_type_options o ON o.variation_type_id = t.id
WHERE t.product_id::text = ANY($1)
ORDER BY t.product_id, t.position, t.id, o.position, o.id
`, ids)
	if err != nil {
		return err
	}
	for rows.Next() {
		var productID string
		var vt domain.VariationType
		var optID, optName *string
		var optImage string
		if err := rows.Scan(&productID, &vt.ID, &vt.Name, &vt.Kind, &optID, &optName, &optImage); err != nil {
			rows.Close()
			return err
		}
		p := products[productID]
		if n := len(p.VariationTypes); n == 0 || p.VariationTypes[n-1].ID != vt.ID {
			p.VariationTypes = append(p.VariationTypes, vt)
		}
		if optID != nil {
			last := &p.VariationTypes[len(p.VariationTypes)-1]
			last.Options = append(last.Options, domain.VariationOption{ID: *optID, Name: *optName, ImagePath: optImage})
		}
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return err
	}

	rows, err = r.pool.Query(ctx, `
SELECT product_id::text, id::text, option_ids, price_cents, quantity
FROM product_variations
WHERE product_id::text = ANY($1)
ORDER BY product_id, option_key
`, ids)
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		var productID string
		var v domain.ProductVariation
		var optionIDs []string
		if err := rows.Scan(&productID, &v.ID, &optionIDs, &v.PriceCents, &v.Quantity); err != nil {
			return err
		}
		v.Options = domain.NewOptionSet(optionIDs...)
		products[productID].Variations = append(products[productID].Variations, v)
	}
	return rows.Err()
}

// Create inserts the product, its variation types and options, then its
// variations. Option references inside Variations may use option names
// when IDs are not known yet; they are translated to the generated ids.
func (r *postgresRepo) Create(ctx context.Context, p *domain.Product) error {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if p.Status == "" {
		p.Status = domain.ProductDraft
	}
	err = tx.QueryRow(ctx, `
INSERT INTO products (vendor_id, department, title, slug, price_cents, quantity, status, image_path)
VALUES ($1, NULLIF($2, ''), $3, $4, $5, $6, $7, NULLIF($8, ''))
RETURNING id::text, created_at
`, p.VendorID, p.Department, p.Title, p.Slug, p.PriceCents, p.Quantity, p.Status, p.ImagePath).Scan(&p.ID, &p.CreatedAt)
	if err != nil {
		return err
	}

	for ti := range p.VariationTypes {
		vt := &p.VariationTypes[ti]
		if vt.Kind == "" {
			vt.Kind = domain.VariationSelect
		}
		if err := tx.QueryRow(ctx, `
INSERT INTO variation_types (product_id, name, kind, position)
VALUES ($1, $2, $3, $4)
RETURNING id::text
`, p.ID, vt.Name, vt.Kind, ti).Scan(&vt.ID); err != nil {
			return err
		}
		for oi := range vt.Options {
			opt := &vt.Options[oi]
			if err := tx.QueryRow(ctx, `
INSERT INTO variation_type_options (variation_type_id, name, image_path, position)
VALUES ($1, $2, NULLIF($3, ''), $4)
RETURNING id::text
`, vt.ID, opt.Name, opt.ImagePath, oi).Scan(&opt.ID); err != nil {
				return err
			}
		}
	}

	for vi := range p.Variations {
		v := &p.Variations[vi]
		ids := make([]string, 0, len(v.Options))
		types := make(map[string]bool, len(v.Options))
		for _, ref := range v.Options {
			vt, opt, err := p.OptionByName(ref)
			if errors.Is(err, domain.ErrNotFound) {
				ids = append(ids, ref)
				continue
			}
			if err != nil {
				return err
			}
			if types[vt.ID] {
				return fmt.Errorf("%w: variation picks more than one %s", domain.ErrInvalidInput, vt.Name)
			}
			types[vt.ID] = true
			ids = append(ids, opt.ID)
		}
		v.Options = domain.NewOptionSet(ids...)
		if err := tx.QueryRow(ctx, `
INSERT INTO product_variations (product_id, option_ids, option_key, price_cents, quantity)
VALUES ($1, $2, $3, $4, $5)
RETURNING id::text
`, p.ID, []string(v.Options), v.Options.Key(), v.PriceCents, v.Quantity).Scan(&v.ID); err != nil {
			return err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return err
	}
	r.logger.Debug("product repo: created", zap.String("id", p.ID), zap.String("vendor_id", p.VendorID))
	return nil
}

func (r *postgresRepo) DecrementStock(ctx context.Context, q db.Querier, productID string, qty int) (int, error) {
	return decrement(ctx, q, `
UPDATE products SET quantity = quantity - $2
WHERE id::text = $1 AND quantity IS NOT NULL
RETURNING quantity
`, productID, qty)
}

func (r *postgresRepo) DecrementVariationStock(ctx context.Context, q db.Querier, variationID string, qty int) (int, error) {
	return decrement(ctx, q, `
UPDATE product_variations SET quantity = quantity - $2
WHERE id::text = $1 AND quantity IS NOT NULL
RETURNING quantity
`, variationID, qty)
}

func decrement(ctx context.Context, q db.Querier, sql, id string, qty int) (int, error) {
	var left int
	if err := q.QueryRow(ctx, sql, id, qty).Scan(&left); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, domain.ErrNotFound
		}
		return 0, err
	}
	return left, nil
}
