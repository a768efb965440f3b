package params

import (
	"math"
	"net/url"
	"strconv"
	"strings"

	"storefront/internal/apperr"
)

const (
	DefaultLimit = 15
	MaxLimit     = 30
)

// GET /v1/inventory/7/adjustments?page=2&limit=10
// → Parse() → Pagination{Limit:10, Page:2, Offset:10}
// → repository LIMIT/OFFSET with COUNT(*) OVER()
// → ComputeMeta(total) fills the rest
type Pagination struct {
	Limit      int  `json:"limit"`
	Offset     int  `json:"-"`
	Page       int  `json:"page"`
	Total      int  `json:"total"`
	TotalPages int  `json:"total_pages"`
	HasNext    bool `json:"has_next"`
	HasPrev    bool `json:"has_prev"`
}

// ParsePagination reads ?limit and ?page. An out-of-range limit is clamped,
// but anything that is not a number is rejected.
func ParsePagination(q url.Values) (Pagination, error) {
	p := Pagination{Limit: DefaultLimit, Page: 1}

	if raw := strings.TrimSpace(q.Get("limit")); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil {
			return p, apperr.Validation("limit must be an integer").With("limit", raw)
		}
		switch {
		case limit <= 0:
			p.Limit = DefaultLimit
		case limit > MaxLimit:
			p.Limit = MaxLimit
		default:
			p.Limit = limit
		}
	}

	if raw := strings.TrimSpace(q.Get("page")); raw != "" {
		page, err := strconv.Atoi(raw)
		if err != nil || page <= 0 {
			return p, apperr.Validation("page must be a positive integer").With("page", raw)
		}
		p.Page = page
	}

	p.Offset = (p.Page - 1) * p.Limit
	return p, nil
}

func (p *Pagination) ComputeMeta(total int) {
	p.Total = total
	if p.Limit > 0 {
		p.TotalPages = int(math.Ceil(float64(total) / float64(p.Limit)))
	}
	p.HasPrev = p.Page > 1
	p.HasNext = p.Page*p.Limit < total
}
