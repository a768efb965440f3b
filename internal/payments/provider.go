package payments

import (
	"context"
	"errors"
	"fmt"
)

// ErrReferenceNotFound is returned by a Provider that has no record of a reference.
var ErrReferenceNotFound = errors.New("payment reference not found at provider")

const (
	ProviderStatusCompleted = "completed"
	ProviderStatusPending   = "pending"
	ProviderStatusRefunded  = "refunded"
	ProviderStatusExpired   = "expired"
	ProviderStatusCanceled  = "canceled"
)

// LookupResult is the provider's view of a payment reference.
type LookupResult struct {
	ReferenceID string
	Status      string // normalized lower case, see ProviderStatus*
	AmountCents int64
	Currency    string
	// TenantID comes from metadata attached at initiation, 0 when unknown.
	TenantID int64
	Raw      map[string]any
}

// Provider looks up a payment reference.
type Provider interface {
	Name() string
	ValidReference(ref string) bool
	Lookup(ctx context.Context, ref string) (*LookupResult, error)
}

type InitiateRequest struct {
	TransactionID string
	AmountCents   int64
	ProductName   string
	TenantID      int64
	CustomerName  string
	CustomerEmail string
	CustomerPhone string
}

type InitiateResult struct {
	ReferenceID string            `json:"reference_id"`
	PaymentURL  string            `json:"payment_url"`
	Data        map[string]string `json:"data,omitempty"`
}

// Initiator is implemented by providers that can open a payment session.
type Initiator interface {
	Initiate(ctx context.Context, req InitiateRequest) (InitiateResult, error)
}

// StatusError is a non-2xx response from a provider.
type StatusError struct {
	Provider string
	Code     int
	Body     string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s: http=%d body=%s", e.Provider, e.Code, e.Body)
}

func (e *StatusError) StatusCode() int { return e.Code }
