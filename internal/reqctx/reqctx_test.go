package reqctx

import (
	"context"
	"testing"

	"storefront/internal/apperr"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCurrentOutsideRequest(t *testing.T) {
	_, err := Current(context.Background())
	require.Error(t, err)
	assert.Equal(t, apperr.CodeContextMissing, apperr.CodeOf(err))
}

func TestBeginOnce(t *testing.T) {
	ctx, err := Begin(context.Background(), Info{TenantID: 1, PrincipalID: 2, Role: "staff"})
	require.NoError(t, err)

	_, err = Begin(ctx, Info{TenantID: 9})
	require.Error(t, err)

	info, err := Current(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), info.TenantID)
}

func TestCurrentReturnsCopy(t *testing.T) {
	ctx, err := Begin(context.Background(), Info{TenantID: 1, Permissions: []string{"orders.read"}})
	require.NoError(t, err)

	info, _ := Current(ctx)
	info.Permissions[0] = "*"

	again, _ := Current(ctx)
	assert.Equal(t, "orders.read", again.Permissions[0])
}

func TestRequireTenant(t *testing.T) {
	ctx, _ := Begin(context.Background(), Info{PrincipalID: 3})
	_, err := RequireTenant(ctx)
	assert.Equal(t, apperr.CodeTenantIsolation, apperr.CodeOf(err))

	ctx, _ = Begin(context.Background(), Info{TenantID: 5})
	id, err := RequireTenant(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(5), id)
}

func TestRequirePrincipal(t *testing.T) {
	ctx, _ := Begin(context.Background(), Info{TenantID: 5})
	_, err := RequirePrincipal(ctx)
	assert.Equal(t, apperr.CodeUnauthorized, apperr.CodeOf(err))
}

func TestEnsureTenantAccess(t *testing.T) {
	ctx, _ := Begin(context.Background(), Info{TenantID: 1})
	assert.NoError(t, EnsureTenantAccess(ctx, 1))
	assert.Equal(t, apperr.CodeTenantIsolation, apperr.CodeOf(EnsureTenantAccess(ctx, 2)))

	admin, _ := Begin(context.Background(), Info{TenantID: 1, IsSuperAdmin: true})
	assert.NoError(t, EnsureTenantAccess(admin, 2))
}
