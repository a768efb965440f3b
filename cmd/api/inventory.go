package main

import (
	"net/http"

	"storefront/internal/apperr"
	"storefront/internal/inventory"
	"storefront/internal/params"
)

// adjustInventoryPayload carries exactly one of Delta or Quantity.
type adjustInventoryPayload struct {
	Delta    *int64 `json:"delta"`
	Quantity *int64 `json:"quantity" validate:"omitempty,gte=0"`
	Reason   string `json:"reason" validate:"required"`
}

type adjustmentsPage struct {
	Adjustments []inventory.Adjustment `json:"adjustments"`
	Pagination  params.Pagination      `json:"pagination"`
}

// adjustInventoryHandler godoc
//
//	@Summary		Adjust stock
//	@Description	Applies a relative delta or sets an absolute quantity. Each change is written to the adjustment log.
//	@Tags			inventory
//	@Accept			json
//	@Produce		json
//	@Param			productID	path		int						true	"Product ID"
//	@Param			payload		body		adjustInventoryPayload	true	"Adjustment"
//	@Success		201			{object}	inventory.Adjustment
//	@Failure		409			{object}	errorBody	"Insufficient stock"
//	@Failure		422			{object}	errorBody
//	@Security		ApiKeyAuth
//	@Router			/inventory/{productID}/adjustments [post]
func (app *application) adjustInventoryHandler(w http.ResponseWriter, r *http.Request) {
	productID, err := idParam(r, "productID")
	if err != nil {
		app.errorResponse(w, r, err)
		return
	}
	tenantID, principalID, err := currentIDs(r)
	if err != nil {
		app.errorResponse(w, r, err)
		return
	}

	var in adjustInventoryPayload
	if err := readValidated(w, r, &in); err != nil {
		app.errorResponse(w, r, err)
		return
	}

	var m inventory.Mutation
	switch {
	case in.Delta != nil && in.Quantity != nil:
		app.errorResponse(w, r, apperr.Validation("send either delta or quantity, not both"))
		return
	case in.Delta != nil:
		m.Delta = *in.Delta
	case in.Quantity != nil:
		m.Absolute = in.Quantity
	default:
		app.errorResponse(w, r, apperr.Validation("delta or quantity is required"))
		return
	}

	adj, err := app.ledger.Adjust(r.Context(), tenantID, productID, m, inventory.Reason(in.Reason), principalID)
	if err != nil {
		app.errorResponse(w, r, err)
		return
	}
	app.jsonResponse(w, http.StatusCreated, adj)
}

func (app *application) listAdjustmentsHandler(w http.ResponseWriter, r *http.Request) {
	productID, err := idParam(r, "productID")
	if err != nil {
		app.errorResponse(w, r, err)
		return
	}
	tenantID, _, err := currentIDs(r)
	if err != nil {
		app.errorResponse(w, r, err)
		return
	}
	p, err := params.ParsePagination(r.URL.Query())
	if err != nil {
		app.errorResponse(w, r, err)
		return
	}

	list, total, err := app.ledger.History(r.Context(), tenantID, productID, p.Limit, p.Offset)
	if err != nil {
		app.errorResponse(w, r, err)
		return
	}
	if list == nil {
		list = []inventory.Adjustment{}
	}
	p.ComputeMeta(total)
	app.jsonResponse(w, http.StatusOK, adjustmentsPage{Adjustments: list, Pagination: p})
}
