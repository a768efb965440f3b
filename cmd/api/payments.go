package main

import (
	"net/http"
	"strings"

	"storefront/internal/apperr"
	"storefront/internal/domain/paymentsrepo"
	"storefront/internal/payments"

	"github.com/google/uuid"
)

type validatePaymentPayload struct {
	PaymentReference string `json:"payment_reference" validate:"required,max=128"`
	AmountCents      int64  `json:"amount_cents" validate:"required,gt=0"`
	Currency         string `json:"currency" validate:"omitempty,len=3,alpha"`
}

type initiatePaymentPayload struct {
	AmountCents   int64  `json:"amount_cents" validate:"required,gt=0"`
	ProductName   string `json:"product_name" validate:"required,max=255"`
	CustomerName  string `json:"customer_name" validate:"max=100"`
	CustomerEmail string `json:"customer_email" validate:"omitempty,email"`
	CustomerPhone string `json:"customer_phone" validate:"omitempty,numeric,max=15"`
}

// validatePaymentHandler reports whether a reference can pay for an order of
// amount_cents in currency (the store currency when omitted). A rejected
// reference is a 200 with is_valid false.
func (app *application) validatePaymentHandler(w http.ResponseWriter, r *http.Request) {
	var in validatePaymentPayload
	if err := readValidated(w, r, &in); err != nil {
		app.errorResponse(w, r, err)
		return
	}
	tenantID, _, err := currentIDs(r)
	if err != nil {
		app.errorResponse(w, r, err)
		return
	}

	currency := in.Currency
	if currency == "" {
		currency = app.config.currency
	}

	v, err := app.validator.ValidatePaymentReference(
		r.Context(),
		strings.TrimSpace(in.PaymentReference),
		in.AmountCents,
		currency,
		tenantID,
		strings.TrimSpace(r.Header.Get("Idempotency-Key")),
	)
	if err != nil {
		app.errorResponse(w, r, err)
		return
	}
	app.jsonResponse(w, http.StatusOK, v)
}

// initiatePaymentHandler opens a provider session: POST /payments/initiate?method=khalti
// The reference is recorded as pending so checkout can later match it to
// this tenant.
func (app *application) initiatePaymentHandler(w http.ResponseWriter, r *http.Request) {
	method := strings.ToLower(strings.TrimSpace(r.URL.Query().Get("method")))
	if method == "" {
		app.errorResponse(w, r, apperr.Validation("missing method query param"))
		return
	}
	var in initiatePaymentPayload
	if err := readValidated(w, r, &in); err != nil {
		app.errorResponse(w, r, err)
		return
	}
	tenantID, _, err := currentIDs(r)
	if err != nil {
		app.errorResponse(w, r, err)
		return
	}
	if _, ok := app.providers.Provider(method); !ok {
		app.errorResponse(w, r, apperr.Validation("unknown payment method").With("method", method))
		return
	}

	res, err := app.providers.Initiate(r.Context(), method, payments.InitiateRequest{
		TransactionID: uuid.NewString(),
		AmountCents:   in.AmountCents,
		ProductName:   in.ProductName,
		TenantID:      tenantID,
		CustomerName:  in.CustomerName,
		CustomerEmail: in.CustomerEmail,
		CustomerPhone: in.CustomerPhone,
	})
	if err != nil {
		app.errorResponse(w, r, apperr.Transient("failed to initiate payment", err))
		return
	}

	if err := app.store.Payments.CreatePending(r.Context(), paymentsrepo.Reference{
		ReferenceID: res.ReferenceID,
		TenantID:    tenantID,
		Provider:    method,
		AmountCents: in.AmountCents,
		Currency:    app.config.currency,
	}); err != nil {
		app.errorResponse(w, r, err)
		return
	}

	app.jsonResponse(w, http.StatusCreated, res)
}
