package memory

import (
	"context"
	"sort"

	"storefront/internal/apperr"
	"storefront/internal/domain/orders"
	"storefront/internal/domain/paymentsrepo"
)

type orderRepo struct {
	run access
	db  *DB
}

func (r *orderRepo) Create(ctx context.Context, o *orders.Order) (bool, error) {
	created := false
	err := r.run(true, func(s *state) error {
		k := okey{o.TenantID, o.IdempotencyKey}
		if _, ok := s.orderKeys[k]; ok {
			return nil
		}
		if o.OrderNumber == "" {
			o.OrderNumber = r.db.gen.Generate(o.TenantID, o.PrincipalID)
		}
		if o.Status == "" {
			o.Status = orders.StatusPlaced
		}
		o.ID = s.nextID()
		o.CreatedAt = r.db.now().UTC()
		o.UpdatedAt = o.CreatedAt
		for i := range o.Items {
			o.Items[i].ID = s.nextID()
			o.Items[i].OrderID = o.ID
		}
		s.orders[o.ID] = copyOrder(*o)
		s.orderKeys[k] = o.ID
		created = true
		return nil
	})
	return created, err
}

func (r *orderRepo) find(tenantID, id int64) (*orders.Order, error) {
	var out *orders.Order
	err := r.run(false, func(s *state) error {
		if o, ok := s.orders[id]; ok && o.TenantID == tenantID {
			c := copyOrder(o)
			out = &c
		}
		return nil
	})
	return out, err
}

func (r *orderRepo) GetByIdempotencyKey(ctx context.Context, tenantID int64, key string) (*orders.Order, error) {
	var id int64
	_ = r.run(false, func(s *state) error {
		id = s.orderKeys[okey{tenantID, key}]
		return nil
	})
	if id == 0 {
		return nil, nil
	}
	return r.find(tenantID, id)
}

func (r *orderRepo) GetByID(ctx context.Context, tenantID, id int64) (*orders.Order, error) {
	return r.find(tenantID, id)
}

// LockByID needs no lock here; transactions are already serialized.
func (r *orderRepo) LockByID(ctx context.Context, tenantID, id int64) (*orders.Order, error) {
	return r.find(tenantID, id)
}

func (r *orderRepo) UpdateStatus(ctx context.Context, tenantID, id int64, status string, cancelledReason *string) error {
	return r.run(true, func(s *state) error {
		o, ok := s.orders[id]
		if !ok || o.TenantID != tenantID {
			return apperr.NotFound("order not found")
		}
		now := r.db.now().UTC()
		o.Status = status
		o.UpdatedAt = now
		if cancelledReason != nil {
			o.CancelledReason = cancelledReason
		}
		if status == orders.StatusCancelled {
			o.CancelledAt = &now
		}
		s.orders[id] = o
		return nil
	})
}

func (r *orderRepo) ListByTenant(ctx context.Context, tenantID int64, status string, limit, offset int) ([]orders.Order, int, error) {
	var all []orders.Order
	err := r.run(false, func(s *state) error {
		for _, o := range s.orders {
			if o.TenantID == tenantID && (status == "" || o.Status == status) {
				all = append(all, copyOrder(o))
			}
		}
		return nil
	})
	sort.Slice(all, func(i, j int) bool {
		if !all[i].CreatedAt.Equal(all[j].CreatedAt) {
			return all[i].CreatedAt.After(all[j].CreatedAt)
		}
		return all[i].ID > all[j].ID
	})
	return page(all, limit, offset), len(all), err
}

type refRepo struct {
	run access
	db  *DB
}

func (r *refRepo) GetReference(ctx context.Context, referenceID string) (*paymentsrepo.Reference, error) {
	var out *paymentsrepo.Reference
	err := r.run(false, func(s *state) error {
		if ref, ok := s.refs[referenceID]; ok {
			out = &ref
		}
		return nil
	})
	return out, err
}

func (r *refRepo) Consume(ctx context.Context, in paymentsrepo.ConsumeInput) error {
	return r.run(true, func(s *state) error {
		now := r.db.now().UTC()
		orderID := in.OrderID
		ref, ok := s.refs[in.ReferenceID]
		if !ok {
			s.refs[in.ReferenceID] = paymentsrepo.Reference{
				ReferenceID:     in.ReferenceID,
				TenantID:        in.TenantID,
				Provider:        in.Provider,
				AmountCents:     in.AmountCents,
				Currency:        in.Currency,
				Status:          paymentsrepo.StatusCompleted,
				ConsumedOrderID: &orderID,
				CreatedAt:       now,
				UpdatedAt:       now,
			}
			return nil
		}
		if ref.Consumed() || ref.TenantID != in.TenantID {
			return apperr.New(apperr.CodeAlreadyConsumed, "payment reference already used").
				With("payment_reference", in.ReferenceID)
		}
		ref.ConsumedOrderID = &orderID
		ref.UpdatedAt = now
		s.refs[in.ReferenceID] = ref
		return nil
	})
}

func (r *refRepo) CreatePending(ctx context.Context, ref paymentsrepo.Reference) error {
	return r.run(true, func(s *state) error {
		if _, ok := s.refs[ref.ReferenceID]; ok {
			return apperr.Conflict("payment reference already recorded").With("payment_reference", ref.ReferenceID)
		}
		now := r.db.now().UTC()
		ref.Status = paymentsrepo.StatusPending
		ref.ConsumedOrderID = nil
		ref.CreatedAt, ref.UpdatedAt = now, now
		s.refs[ref.ReferenceID] = ref
		return nil
	})
}

func (r *refRepo) SetStatus(ctx context.Context, referenceID, status string) error {
	return r.run(true, func(s *state) error {
		ref, ok := s.refs[referenceID]
		if !ok {
			return apperr.NotFound("payment reference not found")
		}
		ref.Status = status
		ref.UpdatedAt = r.db.now().UTC()
		s.refs[referenceID] = ref
		return nil
	})
}

type logRepo struct {
	run access
	db  *DB
}

func (r *logRepo) InsertPaymentLog(ctx context.Context, referenceID, logType string, payload any) error {
	return r.run(true, func(s *state) error {
		s.payLogs = append(s.payLogs, paymentsrepo.PaymentLog{
			ID:          s.nextID(),
			ReferenceID: referenceID,
			LogType:     logType,
			Payload:     payload,
			CreatedAt:   r.db.now().UTC(),
		})
		return nil
	})
}
