package reqctx

import (
	"context"

	"storefront/internal/apperr"
)

// Info is the identity bound to one request.
type Info struct {
	TenantID     int64    `json:"tenant_id"`
	PrincipalID  int64    `json:"principal_id"`
	Role         string   `json:"role"`
	Permissions  []string `json:"permissions"`
	IsSuperAdmin bool     `json:"is_super_admin"`
	RequestID    string   `json:"request_id"`
	ClientIP     string   `json:"client_ip"`
}

type ctxKey struct{}

// Begin binds info to ctx. A context may be bound only once.
func Begin(ctx context.Context, info Info) (context.Context, error) {
	if _, ok := ctx.Value(ctxKey{}).(*Info); ok {
		return ctx, apperr.New(apperr.CodeInternal, "request context already bound")
	}
	cp := info
	cp.Permissions = append([]string(nil), info.Permissions...)
	return context.WithValue(ctx, ctxKey{}, &cp), nil
}

// Current returns a copy of the bound Info.
func Current(ctx context.Context) (Info, error) {
	p, ok := ctx.Value(ctxKey{}).(*Info)
	if !ok || p == nil {
		return Info{}, apperr.ContextMissing()
	}
	out := *p
	out.Permissions = append([]string(nil), p.Permissions...)
	return out, nil
}

func Bound(ctx context.Context) bool {
	_, ok := ctx.Value(ctxKey{}).(*Info)
	return ok
}

func RequireTenant(ctx context.Context) (int64, error) {
	info, err := Current(ctx)
	if err != nil {
		return 0, err
	}
	if info.TenantID == 0 {
		return 0, apperr.TenantIsolation("no tenant bound to request")
	}
	return info.TenantID, nil
}

func RequirePrincipal(ctx context.Context) (int64, error) {
	info, err := Current(ctx)
	if err != nil {
		return 0, err
	}
	if info.PrincipalID == 0 {
		return 0, apperr.Unauthorized("no authenticated principal")
	}
	return info.PrincipalID, nil
}

// EnsureTenantAccess rejects access to tenantID unless it is the bound tenant
// or the principal is a super-admin.
func EnsureTenantAccess(ctx context.Context, tenantID int64) error {
	info, err := Current(ctx)
	if err != nil {
		return err
	}
	if info.IsSuperAdmin {
		return nil
	}
	if info.TenantID == 0 || info.TenantID != tenantID {
		return apperr.TenantIsolation("resource belongs to another tenant").With("tenant_id", tenantID)
	}
	return nil
}
