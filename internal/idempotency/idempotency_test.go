package idempotency

import (
	"context"
	"strings"
	"testing"
	"time"

	"storefront/internal/apperr"
	"storefront/internal/kvstore"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type record struct {
	OrderID int64  `json:"order_id"`
	Status  string `json:"status"`
}

func TestCachePutGet(t *testing.T) {
	store := kvstore.NewMemoryStore(0)
	defer store.Close()
	c := NewCache(store, 0)
	ctx := context.Background()

	var got record
	ok, err := c.Get(ctx, "checkout:abc", &got)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, c.Put(ctx, "checkout:abc", record{OrderID: 9, Status: "placed"}, 0))

	ok, err = c.Get(ctx, "checkout:abc", &got)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, record{OrderID: 9, Status: "placed"}, got)
}

func TestCacheForget(t *testing.T) {
	store := kvstore.NewMemoryStore(0)
	defer store.Close()
	c := NewCache(store, time.Hour)
	ctx := context.Background()

	require.NoError(t, c.Put(ctx, "k", record{OrderID: 1}, 0))
	require.NoError(t, c.Forget(ctx, "k"))

	ok, err := c.Get(ctx, "k", &record{})
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestValidateKey(t *testing.T) {
	tests := []struct {
		key   string
		valid bool
	}{
		{"short", false},
		{"abcdefgh", true},
		{"order-2024:retry.1_x", true},
		{"has space in it", false},
		{strings.Repeat("a", 255), true},
		{strings.Repeat("a", 256), false},
	}
	for _, tt := range tests {
		err := ValidateKey(tt.key)
		if tt.valid {
			assert.NoError(t, err, tt.key)
		} else {
			assert.Equal(t, apperr.CodeValidation, apperr.CodeOf(err), tt.key)
		}
	}
}

func TestFingerprintStable(t *testing.T) {
	a := Fingerprint("1", "2", "cart")
	assert.Equal(t, a, Fingerprint("1", "2", "cart"))
	assert.NotEqual(t, a, Fingerprint("12", "", "cart"))
	assert.Len(t, a, 64)
}
