package inventory_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"storefront/internal/apperr"
	"storefront/internal/domain/memory"
	"storefront/internal/domain/products"
	"storefront/internal/inventory"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recorder struct {
	mu     sync.Mutex
	events []inventory.LowStockEvent
	err    error
	panic  bool
}

func (r *recorder) NotifyLowStock(_ context.Context, evs []inventory.LowStockEvent) error {
	if r.panic {
		panic("notifier exploded")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, evs...)
	return r.err
}

func (r *recorder) all() []inventory.LowStockEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]inventory.LowStockEvent(nil), r.events...)
}

func setup(t *testing.T, stock, threshold int64) (*memory.DB, *inventory.Ledger, *recorder, int64) {
	t.Helper()
	db := memory.New(nil)
	p, err := db.SeedProduct(1, products.CreateInput{
		SKU: "WIDGET", Name: "Widget", PriceCents: 100, Currency: "NPR",
		InitialStock: stock, LowStockThreshold: threshold,
	})
	require.NoError(t, err)
	rec := &recorder{}
	return db, inventory.NewLedger(db.Container(nil), rec, nil), rec, p.ID
}

func ptr(v int64) *int64 { return &v }

func TestStatusFor(t *testing.T) {
	tests := []struct {
		onHand, threshold int64
		want              inventory.Status
	}{
		{0, 5, inventory.StatusOutOfStock},
		{5, 5, inventory.StatusLowStock},
		{1, 5, inventory.StatusLowStock},
		{6, 5, inventory.StatusInStock},
		{1, 0, inventory.StatusInStock},
	}
	for _, tc := range tests {
		assert.Equal(t, tc.want, inventory.StatusFor(tc.onHand, tc.threshold), "on_hand=%d threshold=%d", tc.onHand, tc.threshold)
	}
}

func TestAdjust(t *testing.T) {
	ctx := context.Background()

	t.Run("delta writes quantity status and log", func(t *testing.T) {
		db, l, _, pid := setup(t, 10, 2)
		adj, err := l.Adjust(ctx, 1, pid, inventory.Mutation{Delta: 5}, inventory.ReasonRestock, 7)
		require.NoError(t, err)
		assert.Equal(t, int64(10), adj.PreviousQty)
		assert.Equal(t, int64(15), adj.NewQty)
		assert.Equal(t, int64(5), adj.Delta)
		assert.Equal(t, int64(7), adj.ActorID)
		assert.Nil(t, adj.OrderID)

		rec, ok := db.Record(1, pid)
		require.True(t, ok)
		assert.Equal(t, int64(15), rec.OnHand)
		assert.Equal(t, inventory.StatusInStock, rec.Status)
		assert.Len(t, db.Adjustments(), 1)
	})

	t.Run("absolute sets quantity", func(t *testing.T) {
		db, l, _, pid := setup(t, 10, 2)
		adj, err := l.Adjust(ctx, 1, pid, inventory.Mutation{Absolute: ptr(0)}, inventory.ReasonDamage, 7)
		require.NoError(t, err)
		assert.Equal(t, int64(-10), adj.Delta)
		rec, _ := db.Record(1, pid)
		assert.Equal(t, inventory.StatusOutOfStock, rec.Status)
	})

	t.Run("below zero is insufficient stock", func(t *testing.T) {
		db, l, _, pid := setup(t, 3, 0)
		_, err := l.Adjust(ctx, 1, pid, inventory.Mutation{Delta: -4}, inventory.ReasonCorrection, 7)
		e, ok := apperr.As(err)
		require.True(t, ok)
		assert.Equal(t, apperr.CodeInsufficientStock, e.Code)
		assert.Equal(t, int64(3), db.OnHand(1, pid))
		assert.Empty(t, db.Adjustments())
	})

	t.Run("validation", func(t *testing.T) {
		_, l, _, pid := setup(t, 3, 0)
		cases := map[string]struct {
			m      inventory.Mutation
			reason inventory.Reason
		}{
			"unknown reason":     {inventory.Mutation{Delta: 1}, "gift"},
			"zero delta":         {inventory.Mutation{}, inventory.ReasonRestock},
			"negative absolute":  {inventory.Mutation{Absolute: ptr(-1)}, inventory.ReasonCorrection},
			"unchanged absolute": {inventory.Mutation{Absolute: ptr(3)}, inventory.ReasonCorrection},
		}
		for name, tc := range cases {
			_, err := l.Adjust(ctx, 1, pid, tc.m, tc.reason, 7)
			assert.Equal(t, apperr.CodeValidation, apperr.CodeOf(err), name)
		}
	})

	t.Run("unknown product", func(t *testing.T) {
		_, l, _, _ := setup(t, 3, 0)
		_, err := l.Adjust(ctx, 1, 999, inventory.Mutation{Delta: 1}, inventory.ReasonRestock, 7)
		assert.Equal(t, apperr.CodeNotFound, apperr.CodeOf(err))
	})

	t.Run("other tenant cannot see the record", func(t *testing.T) {
		_, l, _, pid := setup(t, 3, 0)
		_, err := l.Adjust(ctx, 2, pid, inventory.Mutation{Delta: 1}, inventory.ReasonRestock, 7)
		assert.Equal(t, apperr.CodeNotFound, apperr.CodeOf(err))
	})
}

func TestLowStockNotification(t *testing.T) {
	ctx := context.Background()

	t.Run("entering low stock notifies once", func(t *testing.T) {
		_, l, rec, pid := setup(t, 10, 5)
		_, err := l.Adjust(ctx, 1, pid, inventory.Mutation{Delta: -5}, inventory.ReasonCorrection, 1)
		require.NoError(t, err)
		_, err = l.Adjust(ctx, 1, pid, inventory.Mutation{Delta: -1}, inventory.ReasonCorrection, 1)
		require.NoError(t, err)
		l.Wait()

		evs := rec.all()
		require.Len(t, evs, 1)
		assert.Equal(t, int64(5), evs[0].OnHand)
		assert.Equal(t, int64(5), evs[0].Threshold)
	})

	t.Run("in stock straight to out of stock notifies", func(t *testing.T) {
		_, l, rec, pid := setup(t, 10, 2)
		_, err := l.Deduct(ctx, 1, []inventory.Line{{ProductID: pid, Quantity: 10}}, 44, 1)
		require.NoError(t, err)
		l.Wait()
		evs := rec.all()
		require.Len(t, evs, 1)
		assert.Equal(t, inventory.StatusOutOfStock, evs[0].Status)
	})

	t.Run("notifier failure never fails the mutation", func(t *testing.T) {
		db, l, rec, pid := setup(t, 10, 5)
		rec.err = errors.New("push gateway down")
		_, err := l.Adjust(ctx, 1, pid, inventory.Mutation{Delta: -6}, inventory.ReasonCorrection, 1)
		require.NoError(t, err)
		l.Wait()
		assert.Equal(t, int64(4), db.OnHand(1, pid))
	})

	t.Run("notifier panic is contained", func(t *testing.T) {
		db, l, rec, pid := setup(t, 10, 5)
		rec.panic = true
		_, err := l.Adjust(ctx, 1, pid, inventory.Mutation{Delta: -6}, inventory.ReasonCorrection, 1)
		require.NoError(t, err)
		l.Wait()
		assert.Equal(t, int64(4), db.OnHand(1, pid))
	})
}

func TestDeductAndRestore(t *testing.T) {
	ctx := context.Background()
	db := memory.New(nil)
	a, err := db.SeedProduct(1, products.CreateInput{SKU: "A", Name: "A", PriceCents: 1, InitialStock: 5})
	require.NoError(t, err)
	b, err := db.SeedProduct(1, products.CreateInput{SKU: "B", Name: "B", PriceCents: 1, InitialStock: 1})
	require.NoError(t, err)
	l := inventory.NewLedger(db.Container(nil), nil, nil)

	t.Run("all or nothing", func(t *testing.T) {
		_, err := l.Deduct(ctx, 1, []inventory.Line{{ProductID: a.ID, Quantity: 2}, {ProductID: b.ID, Quantity: 2}}, 1, 9)
		assert.Equal(t, apperr.CodeInsufficientStock, apperr.CodeOf(err))
		assert.Equal(t, int64(5), db.OnHand(1, a.ID))
		assert.Equal(t, int64(1), db.OnHand(1, b.ID))
		assert.Empty(t, db.Adjustments())
	})

	t.Run("duplicate lines merge", func(t *testing.T) {
		adjs, err := l.Deduct(ctx, 1, []inventory.Line{{ProductID: a.ID, Quantity: 1}, {ProductID: a.ID, Quantity: 2}}, 2, 9)
		require.NoError(t, err)
		require.Len(t, adjs, 1)
		assert.Equal(t, int64(-3), adjs[0].Delta)
		assert.Equal(t, int64(2), db.OnHand(1, a.ID))
	})

	t.Run("restore reverses", func(t *testing.T) {
		adjs, err := l.Restore(ctx, 1, []inventory.Line{{ProductID: a.ID, Quantity: 3}}, 2, "", 9)
		require.NoError(t, err)
		require.Len(t, adjs, 1)
		assert.Equal(t, inventory.ReasonCancellation, adjs[0].Reason)
		require.NotNil(t, adjs[0].OrderID)
		assert.Equal(t, int64(2), *adjs[0].OrderID)
		assert.Equal(t, int64(5), db.OnHand(1, a.ID))
	})

	t.Run("history is newest first", func(t *testing.T) {
		hist, total, err := l.History(ctx, 1, a.ID, 10, 0)
		require.NoError(t, err)
		assert.Equal(t, 2, total)
		require.Len(t, hist, 2)
		assert.Equal(t, inventory.ReasonCancellation, hist[0].Reason)
		assert.Equal(t, inventory.ReasonSale, hist[1].Reason)
	})

	t.Run("bad lines", func(t *testing.T) {
		_, err := l.Deduct(ctx, 1, []inventory.Line{{ProductID: a.ID, Quantity: 0}}, 3, 9)
		assert.Equal(t, apperr.CodeValidation, apperr.CodeOf(err))
	})
}

func TestConcurrentDeductNeverOversells(t *testing.T) {
	ctx := context.Background()
	db, l, _, pid := setup(t, 1, 0)

	const n = 8
	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		ok   int
		fail int
	)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := l.Deduct(ctx, 1, []inventory.Line{{ProductID: pid, Quantity: 1}}, int64(100+i), 1)
			mu.Lock()
			defer mu.Unlock()
			if err == nil {
				ok++
			} else if apperr.IsCode(err, apperr.CodeInsufficientStock) {
				fail++
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 1, ok)
	assert.Equal(t, n-1, fail)
	assert.Equal(t, int64(0), db.OnHand(1, pid))
	assert.Len(t, db.Adjustments(), 1)
}
