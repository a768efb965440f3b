// Package idempotency caches the outcome of an operation under a caller
// supplied or derived key so repeated requests return the original result.
package idempotency

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"regexp"
	"time"

	"storefront/internal/apperr"
	"storefront/internal/kvstore"
)

const DefaultTTL = 24 * time.Hour

var keyPattern = regexp.MustCompile(`^[A-Za-z0-9_:.\-]{8,255}$`)

func ValidateKey(key string) error {
	if !keyPattern.MatchString(key) {
		return apperr.Validation("idempotency key must be 8-255 characters of [A-Za-z0-9_:.-]")
	}
	return nil
}

// Fingerprint hashes parts into a stable key.
func Fingerprint(parts ...string) string {
	h := sha256.New()
	for _, p := range parts {
		h.Write([]byte(p))
		h.Write([]byte{0})
	}
	return hex.EncodeToString(h.Sum(nil))
}

type Cache struct {
	store kvstore.Store
	ttl   time.Duration
}

func NewCache(store kvstore.Store, ttl time.Duration) *Cache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Cache{store: store, ttl: ttl}
}

// Get decodes the stored value into dst and reports whether it was present.
func (c *Cache) Get(ctx context.Context, key string, dst any) (bool, error) {
	raw, ok, err := c.store.Get(ctx, "idem:"+key)
	if err != nil || !ok {
		return false, err
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return false, fmt.Errorf("decode idempotency record %q: %w", key, err)
	}
	return true, nil
}

// Put stores value under key. A ttl of zero uses the cache default.
func (c *Cache) Put(ctx context.Context, key string, value any, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = c.ttl
	}
	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encode idempotency record %q: %w", key, err)
	}
	return c.store.Set(ctx, "idem:"+key, raw, ttl)
}

func (c *Cache) Forget(ctx context.Context, key string) error {
	return c.store.Delete(ctx, "idem:"+key)
}
