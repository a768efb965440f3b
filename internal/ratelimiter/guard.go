package ratelimiter

import (
	"context"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"storefront/internal/apperr"
	"storefront/internal/reqctx"

	"go.uber.org/zap"
)

type Tier string

const (
	TierFree       Tier = "free"
	TierStarter    Tier = "starter"
	TierPro        Tier = "pro"
	TierEnterprise Tier = "enterprise"
)

// Tiers maps subscription tiers to requests per window.
var Tiers = map[Tier]int{
	TierFree:       60,
	TierStarter:    300,
	TierPro:        1200,
	TierEnterprise: 6000,
}

// LowestTier is used for unknown tiers and anonymous callers.
const LowestTier = TierFree

// TierLookup resolves a tenant's subscription tier.
type TierLookup interface {
	TierForTenant(ctx context.Context, tenantID int64) (string, error)
}

type Config struct {
	Enabled bool
	Window  time.Duration
}

// Guard applies tier limits to the identity bound on the request context.
type Guard struct {
	limiter *FixedWindowLimiter
	tiers   TierLookup
	window  time.Duration
	logger  *zap.SugaredLogger
}

func NewGuard(limiter *FixedWindowLimiter, tiers TierLookup, window time.Duration, logger *zap.SugaredLogger) *Guard {
	if window <= 0 {
		window = time.Minute
	}
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &Guard{limiter: limiter, tiers: tiers, window: window, logger: logger}
}

func LimitForTier(tier string) int {
	if n, ok := Tiers[Tier(strings.ToLower(tier))]; ok {
		return n
	}
	return Tiers[LowestTier]
}

// Identify picks the limiter key: tenant, then principal, then client IP.
func Identify(info reqctx.Info, r *http.Request) string {
	switch {
	case info.TenantID != 0:
		return "tenant:" + strconv.FormatInt(info.TenantID, 10)
	case info.PrincipalID != 0:
		return "principal:" + strconv.FormatInt(info.PrincipalID, 10)
	}
	if ip := ClientIP(r); ip != "" {
		return "ip:" + ip
	}
	return "unknown"
}

// ClientIP returns the first X-Forwarded-For hop or the peer address.
func ClientIP(r *http.Request) string {
	if r == nil {
		return ""
	}
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		first, _, _ := strings.Cut(fwd, ",")
		if ip := strings.TrimSpace(first); ip != "" {
			return ip
		}
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return strings.TrimSpace(r.RemoteAddr)
	}
	return host
}

func (g *Guard) limitFor(ctx context.Context, tenantID int64) int {
	if tenantID == 0 || g.tiers == nil {
		return Tiers[LowestTier]
	}
	tier, err := g.tiers.TierForTenant(ctx, tenantID)
	if err != nil {
		g.logger.Warnw("tier lookup failed, applying lowest tier", "tenant_id", tenantID, "error", err)
		return Tiers[LowestTier]
	}
	return LimitForTier(tier)
}

// Enforce checks the limit for the bound identity. The Result is returned
// even on rejection so callers can set rate limit headers.
func (g *Guard) Enforce(ctx context.Context, r *http.Request) (Result, error) {
	info, _ := reqctx.Current(ctx)
	id := Identify(info, r)
	limit := g.limitFor(ctx, info.TenantID)

	res := g.limiter.CheckLimit(ctx, id, limit, g.window)
	if res.Allowed {
		return res, nil
	}
	g.logger.Infow("rate limit exceeded", "identifier", id, "limit", limit, "retry_after", res.RetryAfter)
	err := apperr.RateLimited(res.RetryAfter).
		With("limit", res.Limit).
		With("remaining", res.Remaining).
		With("reset_at", res.ResetAt.UTC().Format(time.RFC3339))
	return res, err
}
