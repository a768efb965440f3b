package rbac

import (
	"context"
	"testing"

	"storefront/internal/apperr"
	"storefront/internal/reqctx"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPatternMatches(t *testing.T) {
	tests := []struct {
		grant    string
		required string
		want     bool
	}{
		{"orders.create", "orders.create", true},
		{"orders.create", "orders.read", false},
		{"orders.*", "orders.create", true},
		{"orders.*", "orders.refund.partial", true},
		{"orders.*", "orders", false},
		{"orders.*", "ordersx.read", false},
		{"*", "anything.at.all", true},
	}
	for _, tt := range tests {
		t.Run(tt.grant+"->"+tt.required, func(t *testing.T) {
			assert.Equal(t, tt.want, ParsePattern(tt.grant).Matches(tt.required))
		})
	}
}

func TestHasPermissionWildcardSubsumes(t *testing.T) {
	info := reqctx.Info{Role: "staff", Permissions: []string{"orders.*"}}
	for _, p := range []string{"orders.create", "orders.cancel", "orders.read"} {
		assert.True(t, HasPermission(info, p), p)
	}
	assert.False(t, HasPermission(info, "inventory.adjust"))
}

func TestHasPermissionRoleFallback(t *testing.T) {
	assert.True(t, HasPermission(reqctx.Info{Role: "staff"}, "orders.create"))
	assert.False(t, HasPermission(reqctx.Info{Role: "viewer"}, "orders.create"))
	assert.True(t, HasPermission(reqctx.Info{Role: "owner"}, "settings.billing"))
	assert.False(t, HasPermission(reqctx.Info{Role: "ghost"}, "orders.read"))
}

func TestExplicitListOverridesRole(t *testing.T) {
	info := reqctx.Info{Role: "admin", Permissions: []string{"orders.read"}}
	assert.False(t, HasPermission(info, "inventory.adjust"))
}

func TestSuperAdminShortCircuits(t *testing.T) {
	info := reqctx.Info{IsSuperAdmin: true}
	assert.True(t, HasPermission(info, "anything"))
	assert.True(t, HasRoleOrHigher(info, RoleOwner))
}

func TestHasRoleOrHigher(t *testing.T) {
	assert.True(t, HasRoleOrHigher(reqctx.Info{Role: "owner"}, RoleManager))
	assert.True(t, HasRoleOrHigher(reqctx.Info{Role: "manager"}, RoleManager))
	assert.False(t, HasRoleOrHigher(reqctx.Info{Role: "staff"}, RoleManager))
	assert.False(t, HasRoleOrHigher(reqctx.Info{Role: "unknown"}, RoleViewer))
}

func TestRequirePermissionForbiddenDetails(t *testing.T) {
	ctx, err := reqctx.Begin(context.Background(), reqctx.Info{TenantID: 1, PrincipalID: 1, Role: "viewer"})
	require.NoError(t, err)

	err = RequirePermission(ctx, "orders.create")
	ae, ok := apperr.As(err)
	require.True(t, ok)
	assert.Equal(t, apperr.CodeForbidden, ae.Code)
	assert.Equal(t, "orders.create", ae.Details["required"])
	assert.Equal(t, "viewer", ae.Details["actual_role"])
}

func TestRequirePermissionWithoutContext(t *testing.T) {
	err := RequirePermission(context.Background(), "orders.read")
	assert.Equal(t, apperr.CodeContextMissing, apperr.CodeOf(err))
}

func TestRequireAnyAndAll(t *testing.T) {
	ctx, _ := reqctx.Begin(context.Background(), reqctx.Info{Role: "staff"})

	assert.NoError(t, RequireAnyPermission(ctx, "inventory.adjust", "orders.create"))
	assert.Error(t, RequireAnyPermission(ctx, "inventory.adjust", "users.manage"))

	assert.NoError(t, RequireAllPermissions(ctx, "orders.create", "orders.read"))
	err := RequireAllPermissions(ctx, "orders.create", "inventory.adjust")
	ae, _ := apperr.As(err)
	require.NotNil(t, ae)
	assert.Equal(t, "inventory.adjust", ae.Details["required"])
}

func TestRequireRole(t *testing.T) {
	ctx, _ := reqctx.Begin(context.Background(), reqctx.Info{Role: "manager"})
	assert.NoError(t, RequireRole(ctx, RoleStaff))
	assert.Equal(t, apperr.CodeForbidden, apperr.CodeOf(RequireRole(ctx, RoleAdmin)))
}
