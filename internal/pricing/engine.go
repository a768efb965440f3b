// Package pricing recomputes cart totals from the catalog. Client submitted
// prices are never trusted.
package pricing

import (
	"context"
	"math"
	"sort"
	"strings"
	"time"

	"storefront/internal/apperr"
	"storefront/internal/domain/products"
)

// ShippingRates are flat per-method costs in minor units.
var ShippingRates = map[string]int64{
	"standard": 500,
	"express":  1500,
	"pickup":   0,
}

const DefaultShippingMethod = "standard"

type Engine struct {
	catalog   Catalog
	discounts DiscountSource
	tax       TaxCalculator
	shipping  map[string]int64
	now       func() time.Time
}

func NewEngine(catalog Catalog, discounts DiscountSource, tax TaxCalculator) *Engine {
	if discounts == nil {
		discounts = StaticDiscounts{}
	}
	if tax == nil {
		tax = NoTax{}
	}
	return &Engine{
		catalog:   catalog,
		discounts: discounts,
		tax:       tax,
		shipping:  ShippingRates,
		now:       time.Now,
	}
}

// MergeLines folds duplicate product ids together, keeping first-seen order.
func MergeLines(lines []Line) ([]Line, error) {
	idx := make(map[int64]int, len(lines))
	out := make([]Line, 0, len(lines))
	for _, l := range lines {
		if i, ok := idx[l.ProductID]; ok {
			q, ok := addCents(out[i].Quantity, l.Quantity)
			if !ok {
				return nil, apperr.Validation("quantity overflows").With("product_id", l.ProductID)
			}
			out[i].Quantity = q
			continue
		}
		idx[l.ProductID] = len(out)
		out = append(out, l)
	}
	return out, nil
}

func (e *Engine) ComputePricing(
	ctx context.Context,
	tenantID int64,
	lines []Line,
	shipping *ShippingSelection,
	discountCode string,
) (Result, error) {
	if len(lines) == 0 {
		return Result{}, apperr.Validation("cart is empty")
	}
	for _, l := range lines {
		if l.ProductID <= 0 || l.Quantity <= 0 {
			return Result{}, apperr.Validation("every line needs a product_id and a positive quantity").
				With("product_id", l.ProductID)
		}
	}
	lines, err := MergeLines(lines)
	if err != nil {
		return Result{}, err
	}

	ids := make([]int64, len(lines))
	for i, l := range lines {
		ids[i] = l.ProductID
	}
	rows, err := e.catalog.GetByIDs(ctx, tenantID, ids)
	if err != nil {
		return Result{}, err
	}
	byID := make(map[int64]products.Product, len(rows))
	for _, p := range rows {
		if p.TenantID == tenantID && p.IsActive {
			byID[p.ID] = p
		}
	}

	var missing []int64
	for _, id := range ids {
		if _, ok := byID[id]; !ok {
			missing = append(missing, id)
		}
	}
	if len(missing) > 0 {
		sort.Slice(missing, func(i, j int) bool { return missing[i] < missing[j] })
		return Result{}, apperr.NotFound("products not found").With("product_ids", missing)
	}

	res := Result{Lines: make([]LineTotal, 0, len(lines))}
	for _, l := range lines {
		p := byID[l.ProductID]
		if l.Quantity > p.OnHand {
			return Result{}, apperr.Validation("requested quantity exceeds available stock").
				With("product_id", p.ID).
				With("available", p.OnHand).
				With("requested", l.Quantity)
		}
		cur := strings.ToUpper(p.Currency)
		if res.Currency == "" {
			res.Currency = cur
		} else if res.Currency != cur {
			return Result{}, apperr.Validation("cart mixes currencies").
				With("currencies", []string{res.Currency, cur})
		}

		total, ok := mulCents(p.PriceCents, l.Quantity)
		if !ok {
			return Result{}, apperr.Validation("line total overflows").With("product_id", p.ID)
		}
		if res.SubtotalCents, ok = addCents(res.SubtotalCents, total); !ok {
			return Result{}, apperr.Validation("subtotal overflows")
		}
		res.Lines = append(res.Lines, LineTotal{
			ProductID:      p.ID,
			SKU:            p.SKU,
			Name:           p.Name,
			Quantity:       l.Quantity,
			UnitPriceCents: p.PriceCents,
			TotalCents:     total,
		})
	}

	if res.DiscountCents, err = e.discountFor(ctx, tenantID, discountCode, res.SubtotalCents); err != nil {
		return Result{}, err
	}
	if res.DiscountCents > 0 {
		res.DiscountCode = strings.ToUpper(strings.TrimSpace(discountCode))
	}

	method := DefaultShippingMethod
	destination := ""
	if shipping != nil {
		if shipping.ClientCostCents != nil {
			return Result{}, apperr.Validation("shipping cost is computed by the server and cannot be submitted")
		}
		if m := strings.ToLower(strings.TrimSpace(shipping.Method)); m != "" {
			method = m
		}
		destination = shipping.Destination
	}
	cost, ok := e.shipping[method]
	if !ok {
		return Result{}, apperr.Validation("unknown shipping method").With("method", method)
	}
	res.ShippingCents = cost
	res.ShippingMethod = method

	taxable := res.SubtotalCents - res.DiscountCents
	if res.TaxCents, err = e.tax.Tax(ctx, tenantID, taxable, destination); err != nil {
		return Result{}, err
	}

	total, ok := addCents(taxable, res.ShippingCents)
	if ok {
		total, ok = addCents(total, res.TaxCents)
	}
	if !ok {
		return Result{}, apperr.Validation("order total overflows")
	}
	res.TotalCents = total
	return res, nil
}

func (e *Engine) discountFor(ctx context.Context, tenantID int64, code string, subtotal int64) (int64, error) {
	code = strings.ToUpper(strings.TrimSpace(code))
	if code == "" {
		return 0, nil
	}
	d, err := e.discounts.Lookup(ctx, tenantID, code)
	if err != nil {
		return 0, err
	}
	if d == nil {
		return 0, nil
	}
	if d.ExpiresAt != nil && !e.now().Before(*d.ExpiresAt) {
		return 0, nil
	}
	if subtotal < d.MinSubtotal {
		return 0, nil
	}

	var off int64
	switch {
	case d.PercentOff > 0:
		pct := min(d.PercentOff, 100)
		off = subtotal / 100 * pct
		off += subtotal % 100 * pct / 100
	case d.AmountOffCents > 0:
		off = d.AmountOffCents
	}
	return min(off, subtotal), nil
}

func mulCents(a, b int64) (int64, bool) {
	if a == 0 || b == 0 {
		return 0, true
	}
	if a > math.MaxInt64/b {
		return 0, false
	}
	return a * b, true
}

func addCents(a, b int64) (int64, bool) {
	if (b > 0 && a > math.MaxInt64-b) || (b < 0 && a < math.MinInt64-b) {
		return 0, false
	}
	return a + b, true
}
