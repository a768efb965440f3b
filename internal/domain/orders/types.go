package orders

import (
	"context"
	"time"
)

const (
	StatusPlaced    = "placed"
	StatusCancelled = "cancelled"
)

type Order struct {
	ID               int64      `json:"id"`
	TenantID         int64      `json:"tenant_id"`
	PrincipalID      int64      `json:"principal_id"`
	OrderNumber      string     `json:"order_number"`
	IdempotencyKey   string     `json:"idempotency_key"`
	Status           string     `json:"status"`
	PaymentReference string     `json:"payment_reference"`
	PaymentProvider  string     `json:"payment_provider"`
	Currency         string     `json:"currency"`
	ShippingMethod   string     `json:"shipping_method"`
	DiscountCode     *string    `json:"discount_code,omitempty"`
	SubtotalCents    int64      `json:"subtotal_cents"`
	DiscountCents    int64      `json:"discount_cents"`
	TaxCents         int64      `json:"tax_cents"`
	ShippingCents    int64      `json:"shipping_cents"`
	TotalCents       int64      `json:"total_cents"`
	CancelledReason  *string    `json:"cancelled_reason,omitempty"`
	Items            []Item     `json:"items"`
	CreatedAt        time.Time  `json:"created_at"`
	UpdatedAt        time.Time  `json:"updated_at"`
	CancelledAt      *time.Time `json:"cancelled_at,omitempty"`
}

// Item snapshots the catalog row at checkout time.
type Item struct {
	ID              int64  `json:"id"`
	OrderID         int64  `json:"order_id"`
	ProductID       int64  `json:"product_id"`
	SKU             string `json:"sku"`
	ProductName     string `json:"product_name"`
	Quantity        int64  `json:"quantity"`
	UnitPriceCents  int64  `json:"unit_price_cents"`
	TotalPriceCents int64  `json:"total_price_cents"`
}

type Store interface {
	// Create inserts o and its items, filling ID, CreatedAt and UpdatedAt. When an order
	// already exists for (tenant, idempotency key) it returns created=false
	// and leaves o untouched.
	Create(ctx context.Context, o *Order) (created bool, err error)
	GetByIdempotencyKey(ctx context.Context, tenantID int64, key string) (*Order, error)
	GetByID(ctx context.Context, tenantID, id int64) (*Order, error)
	// LockByID reads the order FOR UPDATE.
	LockByID(ctx context.Context, tenantID, id int64) (*Order, error)
	UpdateStatus(ctx context.Context, tenantID, id int64, status string, cancelledReason *string) error
	ListByTenant(ctx context.Context, tenantID int64, status string, limit, offset int) ([]Order, int, error)
}
