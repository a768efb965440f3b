package pricing

import (
	"context"
	"time"

	"storefront/internal/domain/products"
)

// Line is one requested cart line. Any client supplied price is dropped
// before it reaches the engine.
type Line struct {
	ProductID int64 `json:"product_id" validate:"required,gt=0"`
	Quantity  int64 `json:"quantity" validate:"required,gt=0"`
}

type ShippingSelection struct {
	Method      string `json:"method"`
	Destination string `json:"destination,omitempty"`
	// ClientCostCents is rejected when set; shipping is always priced here.
	ClientCostCents *int64 `json:"cost_cents,omitempty"`
}

type LineTotal struct {
	ProductID      int64  `json:"product_id"`
	SKU            string `json:"sku"`
	Name           string `json:"name"`
	Quantity       int64  `json:"quantity"`
	UnitPriceCents int64  `json:"unit_price_cents"`
	TotalCents     int64  `json:"total_cents"`
}

// Result is immutable once returned.
type Result struct {
	Lines          []LineTotal `json:"lines"`
	SubtotalCents  int64       `json:"subtotal_cents"`
	DiscountCents  int64       `json:"discount_cents"`
	ShippingCents  int64       `json:"shipping_cents"`
	TaxCents       int64       `json:"tax_cents"`
	TotalCents     int64       `json:"total_cents"`
	Currency       string      `json:"currency"`
	DiscountCode   string      `json:"discount_code,omitempty"`
	ShippingMethod string      `json:"shipping_method,omitempty"`
}

// Catalog resolves current product rows for a tenant.
type Catalog interface {
	GetByIDs(ctx context.Context, tenantID int64, ids []int64) ([]products.Product, error)
}

type Discount struct {
	Code           string
	PercentOff     int64 // 0-100
	AmountOffCents int64
	MinSubtotal    int64
	ExpiresAt      *time.Time
}

// DiscountSource looks up a tenant's discount code. A nil Discount means the
// code does not exist.
type DiscountSource interface {
	Lookup(ctx context.Context, tenantID int64, code string) (*Discount, error)
}

// TaxCalculator computes tax on the discounted subtotal.
type TaxCalculator interface {
	Tax(ctx context.Context, tenantID int64, taxableCents int64, destination string) (int64, error)
}
