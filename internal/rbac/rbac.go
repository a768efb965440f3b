// Package rbac evaluates role hierarchy and permission checks against the
// identity bound to the request context.
package rbac

import (
	"context"
	"strings"

	"storefront/internal/apperr"
	"storefront/internal/reqctx"
)

type Role string

const (
	RoleOwner   Role = "owner"
	RoleAdmin   Role = "admin"
	RoleManager Role = "manager"
	RoleStaff   Role = "staff"
	RoleViewer  Role = "viewer"
)

var ranks = map[Role]int{
	RoleOwner:   5,
	RoleAdmin:   4,
	RoleManager: 3,
	RoleStaff:   2,
	RoleViewer:  1,
}

// Rank is 0 for unknown roles.
func (r Role) Rank() int { return ranks[r] }

func (r Role) Valid() bool { return ranks[r] > 0 }

func ParseRole(s string) (Role, bool) {
	r := Role(strings.ToLower(strings.TrimSpace(s)))
	return r, r.Valid()
}

var rolePermissions = map[Role][]string{
	RoleOwner: {"*"},
	RoleAdmin: {
		"orders.*", "inventory.*", "products.*", "payments.*", "users.*",
	},
	RoleManager: {
		"orders.*", "inventory.*", "products.read", "payments.validate",
	},
	RoleStaff: {
		"orders.create", "orders.read", "inventory.read", "products.read",
	},
	RoleViewer: {
		"orders.read", "inventory.read", "products.read",
	},
}

var compiledRoles = func() map[Role][]Pattern {
	out := make(map[Role][]Pattern, len(rolePermissions))
	for role, perms := range rolePermissions {
		out[role] = Compile(perms)
	}
	return out
}()

// RolePermissions lists the default grants of a role.
func RolePermissions(r Role) []string {
	return append([]string(nil), rolePermissions[r]...)
}

// HasPermission reports whether info grants required. An empty explicit list
// falls back to the role's default set.
func HasPermission(info reqctx.Info, required string) bool {
	if info.IsSuperAdmin {
		return true
	}
	var patterns []Pattern
	if len(info.Permissions) > 0 {
		patterns = Compile(info.Permissions)
	} else {
		patterns = compiledRoles[Role(info.Role)]
	}
	for _, p := range patterns {
		if p.Matches(required) {
			return true
		}
	}
	return false
}

func HasRoleOrHigher(info reqctx.Info, min Role) bool {
	if info.IsSuperAdmin {
		return true
	}
	return Role(info.Role).Rank() >= min.Rank() && min.Rank() > 0
}

func RequirePermission(ctx context.Context, required string) error {
	info, err := reqctx.Current(ctx)
	if err != nil {
		return err
	}
	if !HasPermission(info, required) {
		return apperr.Forbidden(required, info.Role)
	}
	return nil
}

func RequireRoleOrHigher(ctx context.Context, min Role) error {
	info, err := reqctx.Current(ctx)
	if err != nil {
		return err
	}
	if !HasRoleOrHigher(info, min) {
		return apperr.Forbidden("role:"+string(min), info.Role)
	}
	return nil
}

// RequireRole is RequireRoleOrHigher.
func RequireRole(ctx context.Context, min Role) error {
	return RequireRoleOrHigher(ctx, min)
}

func RequireAnyPermission(ctx context.Context, required ...string) error {
	info, err := reqctx.Current(ctx)
	if err != nil {
		return err
	}
	for _, p := range required {
		if HasPermission(info, p) {
			return nil
		}
	}
	return apperr.Forbidden(strings.Join(required, "|"), info.Role)
}

func RequireAllPermissions(ctx context.Context, required ...string) error {
	info, err := reqctx.Current(ctx)
	if err != nil {
		return err
	}
	for _, p := range required {
		if !HasPermission(info, p) {
			return apperr.Forbidden(p, info.Role)
		}
	}
	return nil
}
