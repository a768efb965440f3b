// Package stock persists inventory records and the adjustment log in Postgres.
package stock

import (
	"context"
	"errors"
	"fmt"

	"storefront/internal/infra/dbx"
	"storefront/internal/inventory"

	"github.com/jackc/pgx/v5"
)

type Repository struct {
	q dbx.Querier
}

func NewRepository(q dbx.Querier) *Repository {
	return &Repository{q: q}
}

// LockRecord must run inside a transaction for the row lock to hold.
func (r *Repository) LockRecord(ctx context.Context, tenantID, productID int64) (*inventory.Record, error) {
	var rec inventory.Record
	err := r.q.QueryRow(ctx, `
		SELECT tenant_id, product_id, on_hand, low_stock_threshold, status, updated_at
		FROM inventory
		WHERE tenant_id = $1 AND product_id = $2
		FOR UPDATE
	`, tenantID, productID).Scan(
		&rec.TenantID, &rec.ProductID, &rec.OnHand, &rec.LowStockThreshold, &rec.Status, &rec.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("lock inventory: %w", err)
	}
	return &rec, nil
}

func (r *Repository) SaveRecord(ctx context.Context, rec *inventory.Record) error {
	tag, err := r.q.Exec(ctx, `
		UPDATE inventory
		   SET on_hand = $3, status = $4, updated_at = $5
		 WHERE tenant_id = $1 AND product_id = $2
	`, rec.TenantID, rec.ProductID, rec.OnHand, string(rec.Status), rec.UpdatedAt)
	if err != nil {
		return fmt.Errorf("save inventory: %w", err)
	}
	if tag.RowsAffected() != 1 {
		return fmt.Errorf("save inventory: product %d not found", rec.ProductID)
	}
	return nil
}

func (r *Repository) AppendAdjustment(ctx context.Context, adj *inventory.Adjustment) error {
	err := r.q.QueryRow(ctx, `
		INSERT INTO inventory_adjustments
		  (tenant_id, product_id, previous_qty, new_qty, delta, reason, actor_id, order_id, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id
	`, adj.TenantID, adj.ProductID, adj.PreviousQty, adj.NewQty, adj.Delta, string(adj.Reason),
		adj.ActorID, adj.OrderID, adj.CreatedAt).Scan(&adj.ID)
	if err != nil {
		return fmt.Errorf("append inventory adjustment: %w", err)
	}
	return nil
}

func (r *Repository) ListAdjustments(ctx context.Context, tenantID, productID int64, limit, offset int) ([]inventory.Adjustment, int, error) {
	rows, err := r.q.Query(ctx, `
		SELECT id, tenant_id, product_id, previous_qty, new_qty, delta, reason, actor_id, order_id, created_at,
		       COUNT(*) OVER() AS total_count
		FROM inventory_adjustments
		WHERE tenant_id = $1 AND product_id = $2
		ORDER BY created_at DESC, id DESC
		LIMIT $3 OFFSET $4
	`, tenantID, productID, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("list inventory adjustments: %w", err)
	}
	defer rows.Close()

	var (
		out   []inventory.Adjustment
		total int
	)
	for rows.Next() {
		var a inventory.Adjustment
		if err := rows.Scan(&a.ID, &a.TenantID, &a.ProductID, &a.PreviousQty, &a.NewQty, &a.Delta, &a.Reason,
			&a.ActorID, &a.OrderID, &a.CreatedAt, &total); err != nil {
			return nil, 0, fmt.Errorf("scan inventory adjustment: %w", err)
		}
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("rows error: %w", err)
	}
	return out, total, nil
}
