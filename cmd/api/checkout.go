package main

import (
	"net/http"
	"strings"

	"storefront/internal/checkout"
	"storefront/internal/pricing"
)

type checkoutLinePayload struct {
	ProductID int64 `json:"product_id" validate:"required,gt=0"`
	Quantity  int64 `json:"quantity" validate:"required,gt=0,lte=10000"`
	// UnitPriceCents is accepted for client convenience and ignored.
	UnitPriceCents *int64 `json:"unit_price_cents,omitempty"`
}

type checkoutPayload struct {
	Lines            []checkoutLinePayload      `json:"lines" validate:"required,min=1,max=100,dive"`
	Shipping         *pricing.ShippingSelection `json:"shipping"`
	DiscountCode     string                     `json:"discount_code" validate:"max=64"`
	PaymentReference string                     `json:"payment_reference" validate:"required,max=128"`
}

// checkoutHandler godoc
//
//	@Summary		Place an order
//	@Description	Prices the cart server-side, verifies the payment and commits the order with its stock deduction. Repeating a request with the same Idempotency-Key returns the original order.
//	@Tags			checkout
//	@Accept			json
//	@Produce		json
//	@Param			Idempotency-Key	header		string			false	"Client idempotency key"
//	@Param			payload			body		checkoutPayload	true	"Cart and payment"
//	@Success		201				{object}	checkout.Result
//	@Success		200				{object}	checkout.Result	"Replay of an earlier request"
//	@Failure		409				{object}	errorBody
//	@Failure		422				{object}	errorBody
//	@Security		ApiKeyAuth
//	@Router			/checkout [post]
func (app *application) checkoutHandler(w http.ResponseWriter, r *http.Request) {
	var in checkoutPayload
	if err := readValidated(w, r, &in); err != nil {
		app.errorResponse(w, r, err)
		return
	}

	lines := make([]pricing.Line, 0, len(in.Lines))
	for _, l := range in.Lines {
		lines = append(lines, pricing.Line{ProductID: l.ProductID, Quantity: l.Quantity})
	}

	res, err := app.checkout.Checkout(r.Context(), checkout.Request{
		IdempotencyKey:   strings.TrimSpace(r.Header.Get("Idempotency-Key")),
		Lines:            lines,
		Shipping:         in.Shipping,
		DiscountCode:     in.DiscountCode,
		PaymentReference: in.PaymentReference,
	})
	if err != nil {
		app.errorResponse(w, r, err)
		return
	}

	status := http.StatusCreated
	if res.Replayed {
		status = http.StatusOK
		w.Header().Set("Idempotent-Replayed", "true")
	}
	app.jsonResponse(w, status, res)
}
