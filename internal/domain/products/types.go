package products

import (
	"context"
	"time"
)

// Product is one sellable SKU. Variants of the same item are separate rows
// with their own SKU, price and stock.
type Product struct {
	ID          int64     `json:"id"`
	TenantID    int64     `json:"tenant_id"`
	SKU         string    `json:"sku"`
	Name        string    `json:"name"`
	Description *string   `json:"description,omitempty"`
	PriceCents  int64     `json:"price_cents"`
	Currency    string    `json:"currency"`
	IsActive    bool      `json:"is_active"`
	OnHand      int64     `json:"on_hand"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

type CreateInput struct {
	SKU               string
	Name              string
	Description       *string
	PriceCents        int64
	Currency          string
	InitialStock      int64
	LowStockThreshold int64
}

type Store interface {
	// GetByIDs returns the tenant's products among ids. Unknown ids are
	// absent from the result.
	GetByIDs(ctx context.Context, tenantID int64, ids []int64) ([]Product, error)
	GetByID(ctx context.Context, tenantID, id int64) (*Product, error)
	List(ctx context.Context, tenantID int64, limit, offset int) ([]Product, int, error)
	Create(ctx context.Context, tenantID int64, in CreateInput) (*Product, error)
	SetActive(ctx context.Context, tenantID, id int64, active bool) error
}
