package accesscontrol

import (
	"context"
	"errors"
	"fmt"

	"storefront/internal/apperr"
	"storefront/internal/infra/dbx"

	"github.com/jackc/pgx/v5"
)

type Repository struct {
	q dbx.Querier
}

func NewRepository(q dbx.Querier) *Repository {
	return &Repository{q: q}
}

func (r *Repository) GetMembership(ctx context.Context, tenantID, principalID int64) (*Membership, error) {
	var m Membership
	query := `
        SELECT tm.tenant_id, tm.principal_id, tm.role, tm.permissions, p.is_super_admin,
               tm.created_at, tm.updated_at
        FROM tenant_members tm
        JOIN principals p ON p.id = tm.principal_id
        WHERE tm.tenant_id = $1 AND tm.principal_id = $2
    `
	err := r.q.QueryRow(ctx, query, tenantID, principalID).Scan(
		&m.TenantID, &m.PrincipalID, &m.Role, &m.Permissions, &m.IsSuperAdmin, &m.CreatedAt, &m.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get membership: %w", err)
	}
	return &m, nil
}

func (r *Repository) IsSuperAdmin(ctx context.Context, principalID int64) (bool, error) {
	var sa bool
	err := r.q.QueryRow(ctx, `SELECT is_super_admin FROM principals WHERE id = $1`, principalID).Scan(&sa)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return false, nil
		}
		return false, fmt.Errorf("principal lookup: %w", err)
	}
	return sa, nil
}

func (r *Repository) AssignRole(ctx context.Context, tenantID, principalID int64, role string) error {
	query := `
        INSERT INTO tenant_members (tenant_id, principal_id, role)
        VALUES ($1, $2, $3)
        ON CONFLICT (tenant_id, principal_id)
        DO UPDATE SET role = EXCLUDED.role, updated_at = now()
    `
	_, err := r.q.Exec(ctx, query, tenantID, principalID, role)
	return err
}

func (r *Repository) RemoveMember(ctx context.Context, tenantID, principalID int64) error {
	query := `DELETE FROM tenant_members WHERE tenant_id = $1 AND principal_id = $2`
	result, err := r.q.Exec(ctx, query, tenantID, principalID)
	if err != nil {
		return err
	}
	if result.RowsAffected() == 0 {
		return apperr.NotFound("membership not found").With("principal_id", principalID)
	}
	return nil
}

func (r *Repository) ListMembers(ctx context.Context, tenantID int64) ([]Membership, error) {
	query := `
        SELECT tm.tenant_id, tm.principal_id, tm.role, tm.permissions, p.is_super_admin,
               tm.created_at, tm.updated_at
        FROM tenant_members tm
        JOIN principals p ON p.id = tm.principal_id
        WHERE tm.tenant_id = $1
        ORDER BY tm.principal_id
    `
	rows, err := r.q.Query(ctx, query, tenantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Membership
	for rows.Next() {
		var m Membership
		if err := rows.Scan(&m.TenantID, &m.PrincipalID, &m.Role, &m.Permissions, &m.IsSuperAdmin,
			&m.CreatedAt, &m.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

func (r *Repository) PrincipalsWithRoles(ctx context.Context, tenantID int64, roles []string) ([]int64, error) {
	if len(roles) == 0 {
		return nil, nil
	}
	rows, err := r.q.Query(ctx, `
        SELECT principal_id FROM tenant_members
        WHERE tenant_id = $1 AND role = ANY($2)
        ORDER BY principal_id
    `, tenantID, roles)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
