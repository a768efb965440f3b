package memory

import (
	"context"
	"time"

	"storefront/internal/domain/accesscontrol"
	"storefront/internal/domain/paymentsrepo"
	"storefront/internal/domain/products"
	"storefront/internal/domain/tenants"
	"storefront/internal/inventory"
)

func (db *DB) SeedTenant(id int64, name, tier string) {
	_ = db.access(true, func(s *state) error {
		s.tenants[id] = tenants.Tenant{ID: id, Name: name, Slug: name, Tier: tier, CreatedAt: db.now().UTC()}
		return nil
	})
}

func (db *DB) SeedMember(tenantID, principalID int64, role string, extra ...string) {
	_ = db.access(true, func(s *state) error {
		now := db.now().UTC()
		s.members[tkey{tenantID, principalID}] = accesscontrol.Membership{
			TenantID:    tenantID,
			PrincipalID: principalID,
			Role:        role,
			Permissions: append([]string(nil), extra...),
			CreatedAt:   now,
			UpdatedAt:   now,
		}
		return nil
	})
}

func (db *DB) SeedSuperAdmin(principalID int64) {
	_ = db.access(true, func(s *state) error {
		s.superAdmins[principalID] = true
		return nil
	})
}

func (db *DB) SeedProduct(tenantID int64, in products.CreateInput) (*products.Product, error) {
	repo := &productRepo{run: db.access, db: db}
	return repo.Create(context.Background(), tenantID, in)
}

func (db *DB) SeedReference(ref paymentsrepo.Reference) {
	_ = db.access(true, func(s *state) error {
		now := db.now().UTC()
		if ref.CreatedAt.IsZero() {
			ref.CreatedAt = now
		}
		ref.UpdatedAt = now
		s.refs[ref.ReferenceID] = ref
		return nil
	})
}

func (db *DB) SeedPushToken(principalID int64, token string, lastUpdated time.Time) {
	_ = db.access(true, func(s *state) error {
		toks, ok := s.pushTokens[principalID]
		if !ok {
			toks = make(map[string]time.Time)
			s.pushTokens[principalID] = toks
		}
		toks[token] = lastUpdated
		return nil
	})
}

// OnHand reports the committed quantity, or -1 when there is no record.
func (db *DB) OnHand(tenantID, productID int64) int64 {
	n := int64(-1)
	_ = db.access(false, func(s *state) error {
		if rec, ok := s.inventory[tkey{tenantID, productID}]; ok {
			n = rec.OnHand
		}
		return nil
	})
	return n
}

func (db *DB) Record(tenantID, productID int64) (inventory.Record, bool) {
	var (
		rec inventory.Record
		ok  bool
	)
	_ = db.access(false, func(s *state) error {
		rec, ok = s.inventory[tkey{tenantID, productID}]
		return nil
	})
	return rec, ok
}

func (db *DB) Adjustments() []inventory.Adjustment {
	var out []inventory.Adjustment
	_ = db.access(false, func(s *state) error {
		out = append(out, s.adjustments...)
		return nil
	})
	return out
}

func (db *DB) PaymentLogs() []paymentsrepo.PaymentLog {
	var out []paymentsrepo.PaymentLog
	_ = db.access(false, func(s *state) error {
		out = append(out, s.payLogs...)
		return nil
	})
	return out
}

func (db *DB) OrderCount(tenantID int64) int {
	n := 0
	_ = db.access(false, func(s *state) error {
		for _, o := range s.orders {
			if o.TenantID == tenantID {
				n++
			}
		}
		return nil
	})
	return n
}
