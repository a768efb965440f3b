// Package inventory owns stock quantities. Every mutation locks the record,
// writes the new quantity and status, and appends an adjustment row in the
// same transaction.
package inventory

import (
	"context"
	"sort"
	"sync"
	"time"

	"storefront/internal/apperr"

	"go.uber.org/zap"
)

const defaultNotifyTimeout = 10 * time.Second

type Ledger struct {
	backend       Backend
	notifier      Notifier
	logger        *zap.SugaredLogger
	notifyTimeout time.Duration
	now           func() time.Time
	wg            sync.WaitGroup
}

func NewLedger(backend Backend, notifier Notifier, logger *zap.SugaredLogger) *Ledger {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &Ledger{
		backend:       backend,
		notifier:      notifier,
		logger:        logger,
		notifyTimeout: defaultNotifyTimeout,
		now:           time.Now,
	}
}

func (l *Ledger) apply(ctx context.Context, s Store, tenantID, productID, delta int64, reason Reason, actorID int64, orderID *int64) (*Adjustment, *LowStockEvent, error) {
	rec, err := s.LockRecord(ctx, tenantID, productID)
	if err != nil {
		return nil, nil, err
	}
	if rec == nil {
		return nil, nil, apperr.NotFound("inventory record not found").With("product_id", productID)
	}

	prev := rec.OnHand
	next := prev + delta
	if next < 0 {
		return nil, nil, apperr.InsufficientStock(productID, prev, -delta)
	}

	prevStatus := rec.Status
	rec.OnHand = next
	rec.Status = StatusFor(next, rec.LowStockThreshold)
	rec.UpdatedAt = l.now().UTC()
	if err := s.SaveRecord(ctx, rec); err != nil {
		return nil, nil, err
	}

	adj := &Adjustment{
		TenantID:    tenantID,
		ProductID:   productID,
		PreviousQty: prev,
		NewQty:      next,
		Delta:       delta,
		Reason:      reason,
		ActorID:     actorID,
		OrderID:     orderID,
		CreatedAt:   rec.UpdatedAt,
	}
	if err := s.AppendAdjustment(ctx, adj); err != nil {
		return nil, nil, err
	}

	var ev *LowStockEvent
	if lowStockTransition(prevStatus, rec.Status) {
		ev = &LowStockEvent{
			TenantID:  tenantID,
			ProductID: productID,
			OnHand:    next,
			Threshold: rec.LowStockThreshold,
			Status:    rec.Status,
			At:        rec.UpdatedAt,
		}
	}
	return adj, ev, nil
}

// lowStockTransition is true when stock enters LOW_STOCK, or drops from
// IN_STOCK straight to OUT_OF_STOCK without passing through it.
func lowStockTransition(prev, next Status) bool {
	if next == StatusLowStock && prev != StatusLowStock {
		return true
	}
	return next == StatusOutOfStock && prev == StatusInStock
}

// Adjust applies a manual change. The event, if any, is published after commit.
func (l *Ledger) Adjust(ctx context.Context, tenantID, productID int64, m Mutation, reason Reason, actorID int64) (*Adjustment, error) {
	if !reason.Valid() {
		return nil, apperr.Validation("unknown adjustment reason").With("reason", string(reason))
	}
	if m.Absolute != nil && *m.Absolute < 0 {
		return nil, apperr.Validation("absolute quantity cannot be negative")
	}
	if m.Absolute == nil && m.Delta == 0 {
		return nil, apperr.Validation("delta cannot be zero")
	}

	var (
		adj *Adjustment
		ev  *LowStockEvent
	)
	err := l.backend.WithInventoryTx(ctx, func(s Store) error {
		delta := m.Delta
		if m.Absolute != nil {
			rec, err := s.LockRecord(ctx, tenantID, productID)
			if err != nil {
				return err
			}
			if rec == nil {
				return apperr.NotFound("inventory record not found").With("product_id", productID)
			}
			delta = *m.Absolute - rec.OnHand
			if delta == 0 {
				return apperr.Validation("quantity is unchanged")
			}
		}
		var err error
		adj, ev, err = l.apply(ctx, s, tenantID, productID, delta, reason, actorID, nil)
		return err
	})
	if err != nil {
		return nil, err
	}
	if ev != nil {
		l.Publish([]LowStockEvent{*ev})
	}
	return adj, nil
}

func sortedLines(lines []Line) ([]Line, error) {
	merged := make(map[int64]int64, len(lines))
	for _, ln := range lines {
		if ln.ProductID <= 0 || ln.Quantity <= 0 {
			return nil, apperr.Validation("inventory lines need a product and a positive quantity")
		}
		merged[ln.ProductID] += ln.Quantity
	}
	out := make([]Line, 0, len(merged))
	for id, q := range merged {
		out = append(out, Line{ProductID: id, Quantity: q})
	}
	// Ascending product id keeps lock order stable across concurrent checkouts.
	sort.Slice(out, func(i, j int) bool { return out[i].ProductID < out[j].ProductID })
	return out, nil
}

func (l *Ledger) applyLines(ctx context.Context, s Store, tenantID int64, lines []Line, sign int64, reason Reason, actorID int64, orderID *int64) ([]Adjustment, []LowStockEvent, error) {
	ordered, err := sortedLines(lines)
	if err != nil {
		return nil, nil, err
	}
	adjs := make([]Adjustment, 0, len(ordered))
	var events []LowStockEvent
	for _, ln := range ordered {
		adj, ev, err := l.apply(ctx, s, tenantID, ln.ProductID, sign*ln.Quantity, reason, actorID, orderID)
		if err != nil {
			return nil, nil, err
		}
		adjs = append(adjs, *adj)
		if ev != nil {
			events = append(events, *ev)
		}
	}
	return adjs, events, nil
}

// DeductIn removes stock for an order inside the caller's transaction. The
// returned events must be published only after that transaction commits.
func (l *Ledger) DeductIn(ctx context.Context, s Store, tenantID int64, lines []Line, orderID, actorID int64) ([]Adjustment, []LowStockEvent, error) {
	return l.applyLines(ctx, s, tenantID, lines, -1, ReasonSale, actorID, &orderID)
}

// RestoreIn returns an order's stock inside the caller's transaction.
func (l *Ledger) RestoreIn(ctx context.Context, s Store, tenantID int64, lines []Line, orderID int64, reason Reason, actorID int64) ([]Adjustment, []LowStockEvent, error) {
	if reason == "" {
		reason = ReasonCancellation
	}
	return l.applyLines(ctx, s, tenantID, lines, 1, reason, actorID, &orderID)
}

func (l *Ledger) Deduct(ctx context.Context, tenantID int64, lines []Line, orderID, actorID int64) ([]Adjustment, error) {
	var (
		adjs   []Adjustment
		events []LowStockEvent
	)
	err := l.backend.WithInventoryTx(ctx, func(s Store) error {
		var err error
		adjs, events, err = l.DeductIn(ctx, s, tenantID, lines, orderID, actorID)
		return err
	})
	if err != nil {
		return nil, err
	}
	l.Publish(events)
	return adjs, nil
}

func (l *Ledger) Restore(ctx context.Context, tenantID int64, lines []Line, orderID int64, reason Reason, actorID int64) ([]Adjustment, error) {
	var (
		adjs   []Adjustment
		events []LowStockEvent
	)
	err := l.backend.WithInventoryTx(ctx, func(s Store) error {
		var err error
		adjs, events, err = l.RestoreIn(ctx, s, tenantID, lines, orderID, reason, actorID)
		return err
	})
	if err != nil {
		return nil, err
	}
	l.Publish(events)
	return adjs, nil
}

func (l *Ledger) History(ctx context.Context, tenantID, productID int64, limit, offset int) ([]Adjustment, int, error) {
	return l.backend.ListAdjustments(ctx, tenantID, productID, limit, offset)
}

// Publish hands events to the notifier on a detached goroutine. Failures are
// logged and never reach the caller.
func (l *Ledger) Publish(events []LowStockEvent) {
	if len(events) == 0 || l.notifier == nil {
		return
	}
	evs := append([]LowStockEvent(nil), events...)
	l.wg.Add(1)
	go func() {
		defer l.wg.Done()
		defer func() {
			if r := recover(); r != nil {
				l.logger.Errorw("low stock notifier panicked", "panic", r)
			}
		}()
		ctx, cancel := context.WithTimeout(context.Background(), l.notifyTimeout)
		defer cancel()
		if err := l.notifier.NotifyLowStock(ctx, evs); err != nil {
			l.logger.Warnw("low stock notification failed", "events", len(evs), "error", err)
		}
	}()
}

// Wait blocks until in-flight notifications finish.
func (l *Ledger) Wait() { l.wg.Wait() }
