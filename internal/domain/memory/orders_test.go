package memory

import (
	"context"
	"testing"
	"time"

	"storefront/internal/domain/orders"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUpdateStatusStampsUpdatedAt(t *testing.T) {
	db := New(nil)
	at := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	db.now = func() time.Time { return at }
	repo := &orderRepo{run: db.access, db: db}
	ctx := context.Background()

	o := &orders.Order{TenantID: 1, PrincipalID: 2, IdempotencyKey: "key-updated-at", Currency: "NPR"}
	created, err := repo.Create(ctx, o)
	require.NoError(t, err)
	require.True(t, created)
	assert.Equal(t, o.CreatedAt, o.UpdatedAt)

	at = at.Add(time.Hour)
	reason := "customer request"
	require.NoError(t, repo.UpdateStatus(ctx, 1, o.ID, orders.StatusCancelled, &reason))

	got, err := repo.GetByID(ctx, 1, o.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, at, got.UpdatedAt)
	assert.True(t, got.UpdatedAt.After(got.CreatedAt))
	require.NotNil(t, got.CancelledAt)
	assert.Equal(t, at, *got.CancelledAt)
}
