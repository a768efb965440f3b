package memory

import (
	"context"
	"encoding/json"
	"sort"
	"time"

	"storefront/internal/apperr"
	"storefront/internal/domain/accesscontrol"
	"storefront/internal/domain/tenants"
)

type tenantRepo struct {
	run access
}

func (r *tenantRepo) GetByID(ctx context.Context, id int64) (*tenants.Tenant, error) {
	var out *tenants.Tenant
	err := r.run(false, func(s *state) error {
		if t, ok := s.tenants[id]; ok {
			out = &t
		}
		return nil
	})
	return out, err
}

func (r *tenantRepo) TierForTenant(ctx context.Context, tenantID int64) (string, error) {
	var tier string
	err := r.run(false, func(s *state) error {
		tier = s.tenants[tenantID].Tier
		return nil
	})
	return tier, err
}

type accessRepo struct {
	run access
	db  *DB
}

func (r *accessRepo) GetMembership(ctx context.Context, tenantID, principalID int64) (*accesscontrol.Membership, error) {
	var out *accesscontrol.Membership
	err := r.run(false, func(s *state) error {
		m, ok := s.members[tkey{tenantID, principalID}]
		if !ok {
			return nil
		}
		m.Permissions = append([]string(nil), m.Permissions...)
		m.IsSuperAdmin = s.superAdmins[principalID]
		out = &m
		return nil
	})
	return out, err
}

func (r *accessRepo) IsSuperAdmin(ctx context.Context, principalID int64) (bool, error) {
	var sa bool
	err := r.run(false, func(s *state) error {
		sa = s.superAdmins[principalID]
		return nil
	})
	return sa, err
}

func (r *accessRepo) AssignRole(ctx context.Context, tenantID, principalID int64, role string) error {
	return r.run(true, func(s *state) error {
		now := r.db.now().UTC()
		k := tkey{tenantID, principalID}
		m, ok := s.members[k]
		if !ok {
			m = accesscontrol.Membership{TenantID: tenantID, PrincipalID: principalID, CreatedAt: now}
		}
		m.Role = role
		m.UpdatedAt = now
		s.members[k] = m
		return nil
	})
}

func (r *accessRepo) RemoveMember(ctx context.Context, tenantID, principalID int64) error {
	return r.run(true, func(s *state) error {
		k := tkey{tenantID, principalID}
		if _, ok := s.members[k]; !ok {
			return apperr.NotFound("membership not found").With("principal_id", principalID)
		}
		delete(s.members, k)
		return nil
	})
}

func (r *accessRepo) ListMembers(ctx context.Context, tenantID int64) ([]accesscontrol.Membership, error) {
	var out []accesscontrol.Membership
	err := r.run(false, func(s *state) error {
		for k, m := range s.members {
			if k.tenant != tenantID {
				continue
			}
			m.Permissions = append([]string(nil), m.Permissions...)
			m.IsSuperAdmin = s.superAdmins[m.PrincipalID]
			out = append(out, m)
		}
		return nil
	})
	sort.Slice(out, func(i, j int) bool { return out[i].PrincipalID < out[j].PrincipalID })
	return out, err
}

func (r *accessRepo) PrincipalsWithRoles(ctx context.Context, tenantID int64, roles []string) ([]int64, error) {
	want := make(map[string]bool, len(roles))
	for _, role := range roles {
		want[role] = true
	}
	var ids []int64
	err := r.run(false, func(s *state) error {
		for k, m := range s.members {
			if k.tenant == tenantID && want[m.Role] {
				ids = append(ids, m.PrincipalID)
			}
		}
		return nil
	})
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids, err
}

type pushRepo struct {
	run access
	db  *DB
}

func (r *pushRepo) AddOrUpdatePushToken(ctx context.Context, principalID int64, token string, _ json.RawMessage) error {
	return r.run(true, func(s *state) error {
		toks, ok := s.pushTokens[principalID]
		if !ok {
			toks = make(map[string]time.Time)
			s.pushTokens[principalID] = toks
		}
		toks[token] = r.db.now()
		return nil
	})
}

func (r *pushRepo) RemovePushToken(ctx context.Context, principalID int64, token string) error {
	return r.run(true, func(s *state) error {
		delete(s.pushTokens[principalID], token)
		return nil
	})
}

func (r *pushRepo) RemoveTokensByTokenList(ctx context.Context, tokens []string) error {
	if len(tokens) == 0 {
		return nil
	}
	return r.run(true, func(s *state) error {
		for _, toks := range s.pushTokens {
			for _, t := range tokens {
				delete(toks, t)
			}
		}
		return nil
	})
}

func (r *pushRepo) GetTokensByPrincipalIDs(ctx context.Context, principalIDs []int64) (map[int64][]string, error) {
	out := make(map[int64][]string)
	err := r.run(false, func(s *state) error {
		for _, pid := range principalIDs {
			for t := range s.pushTokens[pid] {
				out[pid] = append(out[pid], t)
			}
			sort.Strings(out[pid])
		}
		return nil
	})
	return out, err
}

func (r *pushRepo) PruneStaleTokens(ctx context.Context, olderThan time.Duration) (int64, error) {
	var n int64
	err := r.run(true, func(s *state) error {
		cutoff := r.db.now().Add(-olderThan)
		for _, toks := range s.pushTokens {
			for t, at := range toks {
				if at.Before(cutoff) {
					delete(toks, t)
					n++
				}
			}
		}
		return nil
	})
	return n, err
}
