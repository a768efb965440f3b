package tenants

import (
	"context"
	"errors"
	"fmt"
	"time"

	"storefront/internal/infra/dbx"

	"github.com/jackc/pgx/v5"
)

type Tenant struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	Slug      string    `json:"slug"`
	Tier      string    `json:"tier"`
	CreatedAt time.Time `json:"created_at"`
}

type Store interface {
	GetByID(ctx context.Context, id int64) (*Tenant, error)
	TierForTenant(ctx context.Context, tenantID int64) (string, error)
}

type Repository struct {
	q dbx.Querier
}

func NewRepository(q dbx.Querier) *Repository {
	return &Repository{q: q}
}

func (r *Repository) GetByID(ctx context.Context, id int64) (*Tenant, error) {
	var t Tenant
	err := r.q.QueryRow(ctx, `
		SELECT id, name, slug, tier, created_at FROM tenants WHERE id = $1
	`, id).Scan(&t.ID, &t.Name, &t.Slug, &t.Tier, &t.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get tenant: %w", err)
	}
	return &t, nil
}

// TierForTenant returns "" for an unknown tenant; the rate limiter treats
// that as the lowest tier.
func (r *Repository) TierForTenant(ctx context.Context, tenantID int64) (string, error) {
	var tier string
	err := r.q.QueryRow(ctx, `SELECT tier FROM tenants WHERE id = $1`, tenantID).Scan(&tier)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", nil
		}
		return "", fmt.Errorf("tenant tier: %w", err)
	}
	return tier, nil
}
