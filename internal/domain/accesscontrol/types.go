package accesscontrol

import (
	"context"
	"time"
)

// Membership is a principal's standing inside one tenant. Permissions holds
// grants on top of the role's defaults.
type Membership struct {
	TenantID     int64     `json:"tenant_id"`
	PrincipalID  int64     `json:"principal_id"`
	Role         string    `json:"role"`
	Permissions  []string  `json:"permissions"`
	IsSuperAdmin bool      `json:"is_super_admin"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

type Store interface {
	// GetMembership returns nil, nil when the principal is not a member.
	GetMembership(ctx context.Context, tenantID, principalID int64) (*Membership, error)
	IsSuperAdmin(ctx context.Context, principalID int64) (bool, error)
	AssignRole(ctx context.Context, tenantID, principalID int64, role string) error
	RemoveMember(ctx context.Context, tenantID, principalID int64) error
	ListMembers(ctx context.Context, tenantID int64) ([]Membership, error)
	// PrincipalsWithRoles lists members holding any of roles.
	PrincipalsWithRoles(ctx context.Context, tenantID int64, roles []string) ([]int64, error)
}
