package pricing

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

// RateTable taxes by tenant and destination. Rates are fractions, e.g. 0.13.
// A destination without an entry falls back to the tenant's "" entry.
type RateTable map[int64]map[string]decimal.Decimal

func (t RateTable) Tax(_ context.Context, tenantID int64, taxableCents int64, destination string) (int64, error) {
	rates, ok := t[tenantID]
	if !ok || taxableCents <= 0 {
		return 0, nil
	}
	rate, ok := rates[strings.ToUpper(destination)]
	if !ok {
		if rate, ok = rates[""]; !ok {
			return 0, nil
		}
	}
	// Round half up to whole minor units.
	tax := decimal.NewFromInt(taxableCents).Mul(rate).Round(0)
	return tax.IntPart(), nil
}

// ParseTaxRates reads "1=0.13,2:US=0.0725" (tenant[:destination]=rate).
func ParseTaxRates(raw string) (RateTable, error) {
	out := RateTable{}
	for _, item := range strings.Split(raw, ",") {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}
		key, val, ok := strings.Cut(item, "=")
		if !ok {
			return nil, fmt.Errorf("tax rate %q: want TENANT[:DEST]=RATE", item)
		}
		tenant, dest, _ := strings.Cut(strings.TrimSpace(key), ":")
		tenantID, err := strconv.ParseInt(tenant, 10, 64)
		if err != nil || tenantID <= 0 {
			return nil, fmt.Errorf("tax rate %q: bad tenant id", item)
		}
		rate, err := decimal.NewFromString(strings.TrimSpace(val))
		if err != nil || rate.IsNegative() || rate.GreaterThan(decimal.NewFromInt(1)) {
			return nil, fmt.Errorf("tax rate %q: rate must be between 0 and 1", item)
		}
		if out[tenantID] == nil {
			out[tenantID] = map[string]decimal.Decimal{}
		}
		out[tenantID][strings.ToUpper(strings.TrimSpace(dest))] = rate
	}
	return out, nil
}
