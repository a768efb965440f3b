package orders

import (
	"context"
	"errors"
	"fmt"

	"storefront/internal/apperr"
	"storefront/internal/infra/dbx"

	"github.com/jackc/pgx/v5"
)

type Repository struct {
	q   dbx.Querier
	gen *OrderNumberGenerator
}

func NewRepository(q dbx.Querier, gen *OrderNumberGenerator) *Repository {
	if gen == nil {
		panic("orders: OrderNumberGenerator is nil")
	}
	return &Repository{
		q:   q,
		gen: gen,
	}
}

const orderColumns = `
	id, tenant_id, principal_id, order_number, idempotency_key, status, payment_reference,
	payment_provider, currency, shipping_method, discount_code,
	subtotal_cents, discount_cents, tax_cents, shipping_cents, total_cents,
	cancelled_reason, created_at, updated_at, cancelled_at`

func scanOrder(row pgx.Row, o *Order) error {
	return row.Scan(
		&o.ID, &o.TenantID, &o.PrincipalID, &o.OrderNumber, &o.IdempotencyKey, &o.Status, &o.PaymentReference,
		&o.PaymentProvider, &o.Currency, &o.ShippingMethod, &o.DiscountCode,
		&o.SubtotalCents, &o.DiscountCents, &o.TaxCents, &o.ShippingCents, &o.TotalCents,
		&o.CancelledReason, &o.CreatedAt, &o.UpdatedAt, &o.CancelledAt,
	)
}

// Create must run inside the checkout transaction. The unique index on
// (tenant_id, idempotency_key) makes a duplicate submit a no-op.
func (r *Repository) Create(ctx context.Context, o *Order) (bool, error) {
	if o.OrderNumber == "" {
		o.OrderNumber = r.gen.Generate(o.TenantID, o.PrincipalID)
	}
	if o.Status == "" {
		o.Status = StatusPlaced
	}

	err := r.q.QueryRow(ctx, `
		INSERT INTO orders (
		  tenant_id, principal_id, order_number, idempotency_key, status, payment_reference,
		  payment_provider, currency, shipping_method, discount_code,
		  subtotal_cents, discount_cents, tax_cents, shipping_cents, total_cents
		) VALUES (
		  $1, $2, $3, $4, $5, $6,
		  $7, $8, $9, $10,
		  $11, $12, $13, $14, $15
		)
		ON CONFLICT (tenant_id, idempotency_key) DO NOTHING
		RETURNING id, created_at, updated_at
	`,
		o.TenantID, o.PrincipalID, o.OrderNumber, o.IdempotencyKey, o.Status, o.PaymentReference,
		o.PaymentProvider, o.Currency, o.ShippingMethod, o.DiscountCode,
		o.SubtotalCents, o.DiscountCents, o.TaxCents, o.ShippingCents, o.TotalCents,
	).Scan(&o.ID, &o.CreatedAt, &o.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return false, nil
		}
		return false, fmt.Errorf("create order: %w", err)
	}

	for i := range o.Items {
		it := &o.Items[i]
		it.OrderID = o.ID
		if err := r.q.QueryRow(ctx, `
			INSERT INTO order_items
			  (order_id, product_id, sku, product_name, quantity, unit_price_cents, total_price_cents)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
			RETURNING id
		`, o.ID, it.ProductID, it.SKU, it.ProductName, it.Quantity, it.UnitPriceCents, it.TotalPriceCents).
			Scan(&it.ID); err != nil {
			return false, fmt.Errorf("create order item: %w", err)
		}
	}
	return true, nil
}

func (r *Repository) loadItems(ctx context.Context, orderID int64) ([]Item, error) {
	rows, err := r.q.Query(ctx, `
		SELECT id, order_id, product_id, sku, product_name, quantity, unit_price_cents, total_price_cents
		FROM order_items WHERE order_id=$1 ORDER BY id
	`, orderID)
	if err != nil {
		return nil, fmt.Errorf("load order items: %w", err)
	}
	defer rows.Close()

	var out []Item
	for rows.Next() {
		var it Item
		if err := rows.Scan(&it.ID, &it.OrderID, &it.ProductID, &it.SKU, &it.ProductName,
			&it.Quantity, &it.UnitPriceCents, &it.TotalPriceCents); err != nil {
			return nil, fmt.Errorf("scan order item: %w", err)
		}
		out = append(out, it)
	}
	return out, rows.Err()
}

func (r *Repository) getOne(ctx context.Context, query string, args ...any) (*Order, error) {
	var o Order
	if err := scanOrder(r.q.QueryRow(ctx, query, args...), &o); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get order: %w", err)
	}
	items, err := r.loadItems(ctx, o.ID)
	if err != nil {
		return nil, err
	}
	o.Items = items
	return &o, nil
}

func (r *Repository) GetByIdempotencyKey(ctx context.Context, tenantID int64, key string) (*Order, error) {
	return r.getOne(ctx, `SELECT`+orderColumns+` FROM orders WHERE tenant_id=$1 AND idempotency_key=$2`, tenantID, key)
}

func (r *Repository) GetByID(ctx context.Context, tenantID, id int64) (*Order, error) {
	return r.getOne(ctx, `SELECT`+orderColumns+` FROM orders WHERE tenant_id=$1 AND id=$2`, tenantID, id)
}

func (r *Repository) LockByID(ctx context.Context, tenantID, id int64) (*Order, error) {
	return r.getOne(ctx, `SELECT`+orderColumns+` FROM orders WHERE tenant_id=$1 AND id=$2 FOR UPDATE`, tenantID, id)
}

func (r *Repository) UpdateStatus(ctx context.Context, tenantID, id int64, status string, cancelledReason *string) error {
	tag, err := r.q.Exec(ctx, `
		UPDATE orders
		   SET status = $3,
		       cancelled_reason = COALESCE($4, cancelled_reason),
		       cancelled_at = CASE WHEN $3 = 'cancelled' THEN now() ELSE cancelled_at END,
		       updated_at = now()
		 WHERE tenant_id = $1 AND id = $2
	`, tenantID, id, status, cancelledReason)
	if err != nil {
		return fmt.Errorf("update order status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound("order not found")
	}
	return nil
}

// ListByTenant supports an optional status filter ("" for all).
func (r *Repository) ListByTenant(ctx context.Context, tenantID int64, status string, limit, offset int) ([]Order, int, error) {
	rows, err := r.q.Query(ctx, `
		SELECT`+orderColumns+`, COUNT(*) OVER() AS total_count
		FROM orders
		WHERE tenant_id = $1 AND ($2 = '' OR status = $2)
		ORDER BY created_at DESC, id DESC
		LIMIT $3 OFFSET $4
	`, tenantID, status, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("list orders: %w", err)
	}
	defer rows.Close()

	var (
		out   []Order
		total int
	)
	for rows.Next() {
		var o Order
		if err := rows.Scan(
			&o.ID, &o.TenantID, &o.PrincipalID, &o.OrderNumber, &o.IdempotencyKey, &o.Status, &o.PaymentReference,
			&o.PaymentProvider, &o.Currency, &o.ShippingMethod, &o.DiscountCode,
			&o.SubtotalCents, &o.DiscountCents, &o.TaxCents, &o.ShippingCents, &o.TotalCents,
			&o.CancelledReason, &o.CreatedAt, &o.UpdatedAt, &o.CancelledAt, &total,
		); err != nil {
			return nil, 0, fmt.Errorf("scan order: %w", err)
		}
		out = append(out, o)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("rows error: %w", err)
	}
	return out, total, nil
}
