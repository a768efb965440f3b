package main

import (
	"net/http"

	"storefront/internal/domain/orders"
	"storefront/internal/inventory"
	"storefront/internal/params"
)

type cancelOrderPayload struct {
	Reason string `json:"reason" validate:"omitempty,oneof=cancellation refund"`
}

type ordersPage struct {
	Orders     []orders.Order    `json:"orders"`
	Pagination params.Pagination `json:"pagination"`
}

func (app *application) getOrderHandler(w http.ResponseWriter, r *http.Request) {
	orderID, err := idParam(r, "orderID")
	if err != nil {
		app.errorResponse(w, r, err)
		return
	}
	o, err := app.checkout.Order(r.Context(), orderID)
	if err != nil {
		app.errorResponse(w, r, err)
		return
	}
	app.jsonResponse(w, http.StatusOK, o)
}

// listOrdersHandler serves GET /orders?status=placed&page=1&limit=15
func (app *application) listOrdersHandler(w http.ResponseWriter, r *http.Request) {
	p, err := params.ParsePagination(r.URL.Query())
	if err != nil {
		app.errorResponse(w, r, err)
		return
	}
	list, total, err := app.checkout.Orders(r.Context(), r.URL.Query().Get("status"), p.Limit, p.Offset)
	if err != nil {
		app.errorResponse(w, r, err)
		return
	}
	if list == nil {
		list = []orders.Order{}
	}
	p.ComputeMeta(total)
	app.jsonResponse(w, http.StatusOK, ordersPage{Orders: list, Pagination: p})
}

// cancelOrderHandler restores stock and cancels a placed order. The body is
// optional; an empty reason means cancellation.
func (app *application) cancelOrderHandler(w http.ResponseWriter, r *http.Request) {
	orderID, err := idParam(r, "orderID")
	if err != nil {
		app.errorResponse(w, r, err)
		return
	}

	var in cancelOrderPayload
	if r.ContentLength != 0 {
		if err := readValidated(w, r, &in); err != nil {
			app.errorResponse(w, r, err)
			return
		}
	}

	o, err := app.checkout.Cancel(r.Context(), orderID, inventory.Reason(in.Reason))
	if err != nil {
		app.errorResponse(w, r, err)
		return
	}
	app.jsonResponse(w, http.StatusOK, o)
}
