package pricing

import (
	"context"
	"fmt"
	"strconv"
	"strings"
)

// StaticDiscounts is a fixed table of codes keyed by tenant. Tenant 0 holds
// codes valid for every tenant.
type StaticDiscounts map[int64]map[string]Discount

func (s StaticDiscounts) Lookup(_ context.Context, tenantID int64, code string) (*Discount, error) {
	code = strings.ToUpper(code)
	for _, t := range []int64{tenantID, 0} {
		if d, ok := s[t][code]; ok {
			return &d, nil
		}
	}
	return nil, nil
}

// ParseDiscounts reads "CODE:10%,CODE2:500" into codes valid for every
// tenant. A percent suffix means percent off, otherwise minor units off.
func ParseDiscounts(raw string) (StaticDiscounts, error) {
	out := StaticDiscounts{0: {}}
	for _, item := range strings.Split(raw, ",") {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}
		code, val, ok := strings.Cut(item, ":")
		code = strings.ToUpper(strings.TrimSpace(code))
		if !ok || code == "" {
			return nil, fmt.Errorf("discount %q: want CODE:VALUE", item)
		}
		d := Discount{Code: code}
		val = strings.TrimSpace(val)
		if pct, isPct := strings.CutSuffix(val, "%"); isPct {
			n, err := strconv.ParseInt(pct, 10, 64)
			if err != nil || n <= 0 || n > 100 {
				return nil, fmt.Errorf("discount %q: percent must be 1-100", item)
			}
			d.PercentOff = n
		} else {
			n, err := strconv.ParseInt(val, 10, 64)
			if err != nil || n <= 0 {
				return nil, fmt.Errorf("discount %q: amount must be positive", item)
			}
			d.AmountOffCents = n
		}
		out[0][code] = d
	}
	return out, nil
}

// NoTax is used until a tenant configures tax rates.
type NoTax struct{}

func (NoTax) Tax(context.Context, int64, int64, string) (int64, error) { return 0, nil }
