package main

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"storefront/internal/apperr"
	"storefront/internal/domain/products"
	"storefront/internal/params"
)

type createProductPayload struct {
	SKU               string  `json:"sku" validate:"required,max=64"`
	Name              string  `json:"name" validate:"required,max=255"`
	Description       *string `json:"description" validate:"omitempty,max=2000"`
	PriceCents        int64   `json:"price_cents" validate:"gte=0"`
	Currency          string  `json:"currency" validate:"omitempty,len=3,alpha"`
	InitialStock      int64   `json:"initial_stock" validate:"gte=0"`
	LowStockThreshold int64   `json:"low_stock_threshold" validate:"gte=0"`
}

type setActivePayload struct {
	Active *bool `json:"active" validate:"required"`
}

func (app *application) listProductsHandler(w http.ResponseWriter, r *http.Request) {
	pg, err := params.ParsePagination(r.URL.Query())
	if err != nil {
		app.errorResponse(w, r, err)
		return
	}
	tenantID, _, err := currentIDs(r)
	if err != nil {
		app.errorResponse(w, r, err)
		return
	}

	items, total, err := app.store.Products.List(r.Context(), tenantID, pg.Limit, pg.Offset)
	if err != nil {
		app.errorResponse(w, r, fmt.Errorf("list products: %w", err))
		return
	}
	if items == nil {
		items = []products.Product{}
	}
	pg.ComputeMeta(total)

	app.jsonResponse(w, http.StatusOK, map[string]any{
		"products":   items,
		"pagination": pg,
	})
}

func (app *application) getProductHandler(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "productID")
	if err != nil {
		app.errorResponse(w, r, err)
		return
	}
	tenantID, _, err := currentIDs(r)
	if err != nil {
		app.errorResponse(w, r, err)
		return
	}

	p, err := app.store.Products.GetByID(r.Context(), tenantID, id)
	if err != nil {
		app.errorResponse(w, r, err)
		return
	}
	if p == nil {
		app.errorResponse(w, r, apperr.NotFound("product not found").With("product_id", id))
		return
	}
	app.jsonResponse(w, http.StatusOK, p)
}

// createProductHandler adds a SKU and its inventory record.
func (app *application) createProductHandler(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 8*time.Second)
	defer cancel()

	var in createProductPayload
	if err := readValidated(w, r, &in); err != nil {
		app.errorResponse(w, r, err)
		return
	}
	tenantID, _, err := currentIDs(r)
	if err != nil {
		app.errorResponse(w, r, err)
		return
	}
	if in.Currency == "" {
		in.Currency = app.config.currency
	}

	input := products.CreateInput{
		SKU:               strings.TrimSpace(in.SKU),
		Name:              strings.TrimSpace(in.Name),
		Description:       in.Description,
		PriceCents:        in.PriceCents,
		Currency:          strings.ToUpper(in.Currency),
		InitialStock:      in.InitialStock,
		LowStockThreshold: in.LowStockThreshold,
	}
	if err := products.ValidateCreate(input); err != nil {
		app.errorResponse(w, r, err)
		return
	}

	created, err := app.store.Products.Create(ctx, tenantID, input)
	if err != nil {
		app.errorResponse(w, r, err)
		return
	}

	w.Header().Set("Location", fmt.Sprintf("/v1/products/%d", created.ID))
	app.jsonResponse(w, http.StatusCreated, created)
}

// setProductActiveHandler publishes or hides a product. Inactive products
// are rejected at checkout.
func (app *application) setProductActiveHandler(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "productID")
	if err != nil {
		app.errorResponse(w, r, err)
		return
	}
	tenantID, _, err := currentIDs(r)
	if err != nil {
		app.errorResponse(w, r, err)
		return
	}
	var in setActivePayload
	if err := readValidated(w, r, &in); err != nil {
		app.errorResponse(w, r, err)
		return
	}

	if err := app.store.Products.SetActive(r.Context(), tenantID, id, *in.Active); err != nil {
		app.errorResponse(w, r, err)
		return
	}
	app.jsonResponse(w, http.StatusOK, map[string]any{
		"product_id": id,
		"active":     *in.Active,
	})
}
