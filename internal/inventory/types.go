package inventory

import (
	"context"
	"time"
)

type Status string

const (
	StatusInStock    Status = "IN_STOCK"
	StatusLowStock   Status = "LOW_STOCK"
	StatusOutOfStock Status = "OUT_OF_STOCK"
)

// StatusFor derives the stock status from a quantity.
func StatusFor(onHand, threshold int64) Status {
	switch {
	case onHand <= 0:
		return StatusOutOfStock
	case onHand <= threshold:
		return StatusLowStock
	default:
		return StatusInStock
	}
}

type Reason string

const (
	ReasonSale         Reason = "sale"
	ReasonCancellation Reason = "cancellation"
	ReasonRefund       Reason = "refund"
	ReasonRestock      Reason = "restock"
	ReasonCorrection   Reason = "correction"
	ReasonDamage       Reason = "damage"
)

func (r Reason) Valid() bool {
	switch r {
	case ReasonSale, ReasonCancellation, ReasonRefund, ReasonRestock, ReasonCorrection, ReasonDamage:
		return true
	}
	return false
}

type Record struct {
	TenantID          int64     `json:"tenant_id"`
	ProductID         int64     `json:"product_id"`
	OnHand            int64     `json:"on_hand"`
	LowStockThreshold int64     `json:"low_stock_threshold"`
	Status            Status    `json:"status"`
	UpdatedAt         time.Time `json:"updated_at"`
}

// Adjustment is an append-only log row.
type Adjustment struct {
	ID          int64     `json:"id"`
	TenantID    int64     `json:"tenant_id"`
	ProductID   int64     `json:"product_id"`
	PreviousQty int64     `json:"previous_qty"`
	NewQty      int64     `json:"new_qty"`
	Delta       int64     `json:"delta"`
	Reason      Reason    `json:"reason"`
	ActorID     int64     `json:"actor_id"`
	OrderID     *int64    `json:"order_id,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

type Line struct {
	ProductID int64 `json:"product_id"`
	Quantity  int64 `json:"quantity"`
}

// Mutation is either a relative Delta or an Absolute quantity.
type Mutation struct {
	Delta    int64
	Absolute *int64
}

type LowStockEvent struct {
	TenantID  int64     `json:"tenant_id"`
	ProductID int64     `json:"product_id"`
	OnHand    int64     `json:"on_hand"`
	Threshold int64     `json:"threshold"`
	Status    Status    `json:"status"`
	At        time.Time `json:"at"`
}

// Store is the tx-scoped inventory surface.
type Store interface {
	// LockRecord reads and row-locks the record. Returns nil, nil when absent.
	LockRecord(ctx context.Context, tenantID, productID int64) (*Record, error)
	SaveRecord(ctx context.Context, rec *Record) error
	AppendAdjustment(ctx context.Context, adj *Adjustment) error
}

type HistoryReader interface {
	ListAdjustments(ctx context.Context, tenantID, productID int64, limit, offset int) ([]Adjustment, int, error)
}

// Backend runs inventory units of work.
type Backend interface {
	WithInventoryTx(ctx context.Context, fn func(s Store) error) error
	HistoryReader
}

type Notifier interface {
	NotifyLowStock(ctx context.Context, events []LowStockEvent) error
}
