package products

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"storefront/internal/apperr"
	"storefront/internal/infra/dbx"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

type Repository struct {
	q dbx.Querier
}

func NewRepository(q dbx.Querier) *Repository {
	return &Repository{q: q}
}

const productColumns = `
	p.id, p.tenant_id, p.sku, p.name, p.description, p.price_cents, p.currency,
	p.is_active, COALESCE(i.on_hand, 0), p.created_at, p.updated_at`

func scanProduct(row pgx.Row, p *Product) error {
	return row.Scan(&p.ID, &p.TenantID, &p.SKU, &p.Name, &p.Description, &p.PriceCents, &p.Currency,
		&p.IsActive, &p.OnHand, &p.CreatedAt, &p.UpdatedAt)
}

func (r *Repository) GetByIDs(ctx context.Context, tenantID int64, ids []int64) ([]Product, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	rows, err := r.q.Query(ctx, `
		SELECT`+productColumns+`
		FROM products p
		LEFT JOIN inventory i ON i.tenant_id = p.tenant_id AND i.product_id = p.id
		WHERE p.tenant_id = $1 AND p.id = ANY($2)
		ORDER BY p.id
	`, tenantID, ids)
	if err != nil {
		return nil, fmt.Errorf("get products by ids: %w", err)
	}
	defer rows.Close()

	out := make([]Product, 0, len(ids))
	for rows.Next() {
		var p Product
		if err := scanProduct(rows, &p); err != nil {
			return nil, fmt.Errorf("scan product: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (r *Repository) GetByID(ctx context.Context, tenantID, id int64) (*Product, error) {
	var p Product
	err := scanProduct(r.q.QueryRow(ctx, `
		SELECT`+productColumns+`
		FROM products p
		LEFT JOIN inventory i ON i.tenant_id = p.tenant_id AND i.product_id = p.id
		WHERE p.tenant_id = $1 AND p.id = $2
	`, tenantID, id), &p)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get product: %w", err)
	}
	return &p, nil
}

func (r *Repository) List(ctx context.Context, tenantID int64, limit, offset int) ([]Product, int, error) {
	rows, err := r.q.Query(ctx, `
		SELECT`+productColumns+`, COUNT(*) OVER() AS total_count
		FROM products p
		LEFT JOIN inventory i ON i.tenant_id = p.tenant_id AND i.product_id = p.id
		WHERE p.tenant_id = $1
		ORDER BY p.id DESC
		LIMIT $2 OFFSET $3
	`, tenantID, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("list products: %w", err)
	}
	defer rows.Close()

	var (
		out   = make([]Product, 0, limit)
		total int
	)
	for rows.Next() {
		var p Product
		if err := rows.Scan(&p.ID, &p.TenantID, &p.SKU, &p.Name, &p.Description, &p.PriceCents, &p.Currency,
			&p.IsActive, &p.OnHand, &p.CreatedAt, &p.UpdatedAt, &total); err != nil {
			return nil, 0, fmt.Errorf("scan product: %w", err)
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("rows error: %w", err)
	}
	return out, total, nil
}

// ValidateCreate checks a CreateInput before any write.
func ValidateCreate(in CreateInput) error {
	switch {
	case strings.TrimSpace(in.SKU) == "":
		return apperr.Validation("sku is required")
	case strings.TrimSpace(in.Name) == "":
		return apperr.Validation("name is required")
	case in.PriceCents < 0:
		return apperr.Validation("price_cents cannot be negative")
	case in.InitialStock < 0:
		return apperr.Validation("initial_stock cannot be negative")
	case in.LowStockThreshold < 0:
		return apperr.Validation("low_stock_threshold cannot be negative")
	}
	return nil
}

// Create inserts the product and its inventory row. Run it inside a
// transaction so both rows appear together.
func (r *Repository) Create(ctx context.Context, tenantID int64, in CreateInput) (*Product, error) {
	if err := ValidateCreate(in); err != nil {
		return nil, err
	}

	p := &Product{
		TenantID:    tenantID,
		SKU:         in.SKU,
		Name:        in.Name,
		Description: in.Description,
		PriceCents:  in.PriceCents,
		Currency:    strings.ToUpper(in.Currency),
		IsActive:    true,
		OnHand:      in.InitialStock,
	}
	err := r.q.QueryRow(ctx, `
		INSERT INTO products (tenant_id, sku, name, description, price_cents, currency, is_active)
		VALUES ($1, $2, $3, $4, $5, $6, true)
		RETURNING id, created_at, updated_at
	`, tenantID, p.SKU, p.Name, p.Description, p.PriceCents, p.Currency).Scan(&p.ID, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return nil, apperr.Conflict("product with this sku already exists").With("sku", p.SKU)
		}
		return nil, fmt.Errorf("create product: %w", err)
	}

	if _, err := r.q.Exec(ctx, `
		INSERT INTO inventory (tenant_id, product_id, on_hand, low_stock_threshold, status)
		VALUES ($1, $2, $3, $4,
		        CASE WHEN $3 = 0 THEN 'OUT_OF_STOCK' WHEN $3 <= $4 THEN 'LOW_STOCK' ELSE 'IN_STOCK' END)
	`, tenantID, p.ID, in.InitialStock, in.LowStockThreshold); err != nil {
		return nil, fmt.Errorf("create inventory row: %w", err)
	}
	return p, nil
}

func (r *Repository) SetActive(ctx context.Context, tenantID, id int64, active bool) error {
	tag, err := r.q.Exec(ctx, `
		UPDATE products SET is_active=$3, updated_at=now() WHERE tenant_id=$1 AND id=$2
	`, tenantID, id, active)
	if err != nil {
		return fmt.Errorf("set product active: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound("product not found")
	}
	return nil
}
