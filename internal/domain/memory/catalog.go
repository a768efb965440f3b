package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"storefront/internal/apperr"
	"storefront/internal/domain/products"
	"storefront/internal/inventory"
)

type productRepo struct {
	run access
	db  *DB
}

func (s *state) productView(p products.Product) products.Product {
	if rec, ok := s.inventory[tkey{p.TenantID, p.ID}]; ok {
		p.OnHand = rec.OnHand
	}
	return p
}

func (r *productRepo) GetByIDs(ctx context.Context, tenantID int64, ids []int64) ([]products.Product, error) {
	var out []products.Product
	err := r.run(false, func(s *state) error {
		seen := make(map[int64]bool, len(ids))
		for _, id := range ids {
			p, ok := s.products[id]
			if !ok || p.TenantID != tenantID || seen[id] {
				continue
			}
			seen[id] = true
			out = append(out, s.productView(p))
		}
		return nil
	})
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, err
}

func (r *productRepo) GetByID(ctx context.Context, tenantID, id int64) (*products.Product, error) {
	var out *products.Product
	err := r.run(false, func(s *state) error {
		if p, ok := s.products[id]; ok && p.TenantID == tenantID {
			v := s.productView(p)
			out = &v
		}
		return nil
	})
	return out, err
}

func (r *productRepo) List(ctx context.Context, tenantID int64, limit, offset int) ([]products.Product, int, error) {
	var all []products.Product
	err := r.run(false, func(s *state) error {
		for _, p := range s.products {
			if p.TenantID == tenantID {
				all = append(all, s.productView(p))
			}
		}
		return nil
	})
	sort.Slice(all, func(i, j int) bool { return all[i].ID > all[j].ID })
	return page(all, limit, offset), len(all), err
}

func (r *productRepo) Create(ctx context.Context, tenantID int64, in products.CreateInput) (*products.Product, error) {
	if err := products.ValidateCreate(in); err != nil {
		return nil, err
	}
	var out products.Product
	err := r.run(true, func(s *state) error {
		for _, p := range s.products {
			if p.TenantID == tenantID && p.SKU == in.SKU {
				return apperr.Conflict("product with this sku already exists").With("sku", in.SKU)
			}
		}
		now := r.db.now().UTC()
		out = products.Product{
			ID:          s.nextID(),
			TenantID:    tenantID,
			SKU:         in.SKU,
			Name:        in.Name,
			Description: in.Description,
			PriceCents:  in.PriceCents,
			Currency:    strings.ToUpper(in.Currency),
			IsActive:    true,
			OnHand:      in.InitialStock,
			CreatedAt:   now,
			UpdatedAt:   now,
		}
		s.products[out.ID] = out
		s.inventory[tkey{tenantID, out.ID}] = inventory.Record{
			TenantID:          tenantID,
			ProductID:         out.ID,
			OnHand:            in.InitialStock,
			LowStockThreshold: in.LowStockThreshold,
			Status:            inventory.StatusFor(in.InitialStock, in.LowStockThreshold),
			UpdatedAt:         now,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (r *productRepo) SetActive(ctx context.Context, tenantID, id int64, active bool) error {
	return r.run(true, func(s *state) error {
		p, ok := s.products[id]
		if !ok || p.TenantID != tenantID {
			return apperr.NotFound("product not found")
		}
		p.IsActive = active
		p.UpdatedAt = r.db.now().UTC()
		s.products[id] = p
		return nil
	})
}

type inventoryRepo struct {
	run access
}

func (r *inventoryRepo) LockRecord(ctx context.Context, tenantID, productID int64) (*inventory.Record, error) {
	var out *inventory.Record
	err := r.run(false, func(s *state) error {
		if rec, ok := s.inventory[tkey{tenantID, productID}]; ok {
			out = &rec
		}
		return nil
	})
	return out, err
}

func (r *inventoryRepo) SaveRecord(ctx context.Context, rec *inventory.Record) error {
	return r.run(true, func(s *state) error {
		k := tkey{rec.TenantID, rec.ProductID}
		if _, ok := s.inventory[k]; !ok {
			return fmt.Errorf("save inventory: product %d not found", rec.ProductID)
		}
		s.inventory[k] = *rec
		return nil
	})
}

func (r *inventoryRepo) AppendAdjustment(ctx context.Context, adj *inventory.Adjustment) error {
	return r.run(true, func(s *state) error {
		adj.ID = s.nextID()
		s.adjustments = append(s.adjustments, *adj)
		return nil
	})
}

func (r *inventoryRepo) ListAdjustments(ctx context.Context, tenantID, productID int64, limit, offset int) ([]inventory.Adjustment, int, error) {
	var all []inventory.Adjustment
	err := r.run(false, func(s *state) error {
		for i := len(s.adjustments) - 1; i >= 0; i-- {
			a := s.adjustments[i]
			if a.TenantID == tenantID && a.ProductID == productID {
				all = append(all, a)
			}
		}
		return nil
	})
	return page(all, limit, offset), len(all), err
}

func page[T any](all []T, limit, offset int) []T {
	if offset >= len(all) {
		return []T{}
	}
	end := len(all)
	if limit > 0 && offset+limit < end {
		end = offset + limit
	}
	return all[offset:end]
}
