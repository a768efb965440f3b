package paymentsrepo

import (
	"context"
	"time"
)

const (
	StatusPending   = "pending"
	StatusCompleted = "completed"
	StatusRefunded  = "refunded"
	StatusDisputed  = "disputed"
)

// Reference is the local record of a provider payment reference.
type Reference struct {
	ReferenceID     string    `json:"reference_id"`
	TenantID        int64     `json:"tenant_id"`
	Provider        string    `json:"provider"` // khalti, static, ...
	AmountCents     int64     `json:"amount_cents"`
	Currency        string    `json:"currency"`
	Status          string    `json:"status"`
	ConsumedOrderID *int64    `json:"consumed_order_id,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

func (r *Reference) Consumed() bool { return r != nil && r.ConsumedOrderID != nil }

type ConsumeInput struct {
	ReferenceID string
	TenantID    int64
	Provider    string
	AmountCents int64
	Currency    string
	OrderID     int64
}

type Store interface {
	// GetReference returns nil, nil when the reference is unknown locally.
	GetReference(ctx context.Context, referenceID string) (*Reference, error)
	// Consume binds the reference to an order. It fails with ALREADY_CONSUMED
	// when another order already holds it.
	Consume(ctx context.Context, in ConsumeInput) error
	// CreatePending records a freshly initiated reference so ownership is
	// known locally before the provider confirms it.
	CreatePending(ctx context.Context, ref Reference) error
	SetStatus(ctx context.Context, referenceID, status string) error
}

type PaymentLog struct {
	ID          int64     `json:"id"`
	ReferenceID string    `json:"reference_id"`
	LogType     string    `json:"log_type"` // lookup, response, error
	Payload     any       `json:"payload,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

type LogsStore interface {
	InsertPaymentLog(ctx context.Context, referenceID, logType string, payload any) error
}
