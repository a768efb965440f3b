// Package checkout finalizes orders. Pricing and payment validation run
// first; order creation, payment consumption and stock deduction then commit
// together or not at all.
package checkout

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"storefront/internal/apperr"
	"storefront/internal/domain/orders"
	"storefront/internal/domain/paymentsrepo"
	"storefront/internal/domain/storage"
	"storefront/internal/idempotency"
	"storefront/internal/inventory"
	"storefront/internal/payments"
	"storefront/internal/pricing"
	"storefront/internal/rbac"
	"storefront/internal/reqctx"
	"storefront/internal/retry"

	"go.uber.org/zap"
)

type State string

const (
	StateStarted           State = "STARTED"
	StatePriced            State = "PRICED"
	StatePaymentValidated  State = "PAYMENT_VALIDATED"
	StateInventoryReserved State = "INVENTORY_RESERVED"
	StateCommitted         State = "COMMITTED"
	StateRejected          State = "REJECTED"
)

const (
	PermCreate = "orders.create"
	PermRead   = "orders.read"
	PermCancel = "orders.cancel"
)

type Request struct {
	// IdempotencyKey is the client-supplied key. When empty the cart
	// fingerprint stands in for it.
	IdempotencyKey   string
	Lines            []pricing.Line
	Shipping         *pricing.ShippingSelection
	DiscountCode     string
	PaymentReference string
}

var errDuplicateCheckout = errors.New("duplicate checkout")

type Result struct {
	Order    *orders.Order `json:"order"`
	Replayed bool          `json:"replayed"`
}

type Pricer interface {
	ComputePricing(ctx context.Context, tenantID int64, lines []pricing.Line, shipping *pricing.ShippingSelection, discountCode string) (pricing.Result, error)
}

type PaymentValidator interface {
	ValidatePaymentReference(ctx context.Context, referenceID string, expectedAmountCents int64, currency string, tenantID int64, idempotencyKey string) (*payments.Validation, error)
}

type OrderReader interface {
	GetByIdempotencyKey(ctx context.Context, tenantID int64, key string) (*orders.Order, error)
	GetByID(ctx context.Context, tenantID, id int64) (*orders.Order, error)
	ListByTenant(ctx context.Context, tenantID int64, status string, limit, offset int) ([]orders.Order, int, error)
}

type Orchestrator struct {
	pricer   Pricer
	payments PaymentValidator
	ledger   *inventory.Ledger
	tx       storage.TxRunner
	orders   OrderReader
	cache    *idempotency.Cache
	logger   *zap.SugaredLogger
}

func NewOrchestrator(
	pricer Pricer,
	validator PaymentValidator,
	ledger *inventory.Ledger,
	tx storage.TxRunner,
	orderReader OrderReader,
	cache *idempotency.Cache,
	logger *zap.SugaredLogger,
) *Orchestrator {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &Orchestrator{
		pricer:   pricer,
		payments: validator,
		ledger:   ledger,
		tx:       tx,
		orders:   orderReader,
		cache:    cache,
		logger:   logger,
	}
}

type run struct {
	o     *Orchestrator
	key   string
	state State
}

func (r *run) to(next State) {
	r.o.logger.Infow("checkout transition", "key", shortKey(r.key), "from", r.state, "to", next)
	r.state = next
}

func (r *run) reject(err error) error {
	r.o.logger.Infow("checkout transition", "key", shortKey(r.key), "from", r.state, "to", StateRejected,
		"code", apperr.CodeOf(err))
	r.state = StateRejected
	return err
}

func shortKey(k string) string {
	if len(k) > 12 {
		return k[:12]
	}
	return k
}

// CartFingerprint identifies a cart independent of line order. A cart whose
// merged quantities overflow is fingerprinted line by line; pricing rejects it
// anyway.
func CartFingerprint(req Request) string {
	lines, err := pricing.MergeLines(req.Lines)
	if err != nil {
		lines = append([]pricing.Line(nil), req.Lines...)
	}
	sort.Slice(lines, func(i, j int) bool { return lines[i].ProductID < lines[j].ProductID })

	parts := make([]string, 0, len(lines)+3)
	for _, l := range lines {
		parts = append(parts, fmt.Sprintf("%d:%d", l.ProductID, l.Quantity))
	}
	method := ""
	if req.Shipping != nil {
		method = strings.ToLower(strings.TrimSpace(req.Shipping.Method)) + "@" + req.Shipping.Destination
	}
	parts = append(parts, "ship="+method, "disc="+strings.ToUpper(strings.TrimSpace(req.DiscountCode)),
		"pay="+req.PaymentReference)
	return idempotency.Fingerprint(parts...)
}

// Key derives the stored idempotency key for a principal's request. The
// cart fingerprint is always part of it, so a client key reused with a
// different cart is a different checkout.
func Key(tenantID, principalID int64, req Request) (string, error) {
	parts := []string{strconv.FormatInt(tenantID, 10), strconv.FormatInt(principalID, 10), "cart:" + CartFingerprint(req)}
	if client := strings.TrimSpace(req.IdempotencyKey); client != "" {
		if err := idempotency.ValidateKey(client); err != nil {
			return "", err
		}
		parts = append(parts, "client:"+client)
	}
	return idempotency.Fingerprint(parts...), nil
}

func cacheKey(key string) string { return "checkout:" + key }

func (o *Orchestrator) replay(ctx context.Context, tenantID int64, key string) (*Result, error) {
	var cached Result
	if ok, err := o.cache.Get(ctx, cacheKey(key), &cached); err != nil {
		o.logger.Warnw("checkout cache read failed", "key", shortKey(key), "error", err)
	} else if ok && cached.Order != nil {
		cached.Replayed = true
		return &cached, nil
	}

	existing, err := o.orders.GetByIdempotencyKey(ctx, tenantID, key)
	if err != nil {
		return nil, err
	}
	if existing == nil {
		return nil, nil
	}
	o.remember(ctx, key, existing)
	return &Result{Order: existing, Replayed: true}, nil
}

func (o *Orchestrator) remember(ctx context.Context, key string, order *orders.Order) {
	if err := o.cache.Put(ctx, cacheKey(key), Result{Order: order}, 0); err != nil {
		o.logger.Warnw("checkout cache write failed", "key", shortKey(key), "error", err)
	}
}

func paymentError(v *payments.Validation) error {
	if v.Reason == payments.ReasonAlreadyConsumed {
		return apperr.New(apperr.CodeAlreadyConsumed, "payment reference already used").
			With("payment_reference", v.ReferenceID)
	}
	return apperr.Validation("payment validation failed").
		With("reason", v.Reason).
		With("payment_reference", v.ReferenceID)
}

func transientFromExhausted(err error) error {
	var ex *retry.ExhaustedError
	if errors.As(err, &ex) {
		return apperr.Transient("payment provider unavailable", err).With("attempts", ex.Attempts)
	}
	return err
}

func buildOrder(tenantID, principalID int64, key string, req Request, priced pricing.Result, v *payments.Validation) *orders.Order {
	o := &orders.Order{
		TenantID:         tenantID,
		PrincipalID:      principalID,
		IdempotencyKey:   key,
		Status:           orders.StatusPlaced,
		PaymentReference: req.PaymentReference,
		PaymentProvider:  v.Provider,
		Currency:         priced.Currency,
		ShippingMethod:   priced.ShippingMethod,
		SubtotalCents:    priced.SubtotalCents,
		DiscountCents:    priced.DiscountCents,
		TaxCents:         priced.TaxCents,
		ShippingCents:    priced.ShippingCents,
		TotalCents:       priced.TotalCents,
		Items:            make([]orders.Item, 0, len(priced.Lines)),
	}
	if priced.DiscountCode != "" {
		code := priced.DiscountCode
		o.DiscountCode = &code
	}
	for _, l := range priced.Lines {
		o.Items = append(o.Items, orders.Item{
			ProductID:       l.ProductID,
			SKU:             l.SKU,
			ProductName:     l.Name,
			Quantity:        l.Quantity,
			UnitPriceCents:  l.UnitPriceCents,
			TotalPriceCents: l.TotalCents,
		})
	}
	return o
}

func itemLines(items []orders.Item) []inventory.Line {
	out := make([]inventory.Line, len(items))
	for i, it := range items {
		out[i] = inventory.Line{ProductID: it.ProductID, Quantity: it.Quantity}
	}
	return out
}

// rejectOrReplay covers an identical request that committed while this one
// was pricing or validating: its stock and payment are already spent.
func (o *Orchestrator) rejectOrReplay(ctx context.Context, r *run, tenantID int64, cause error) (*Result, error) {
	existing, err := o.orders.GetByIdempotencyKey(ctx, tenantID, r.key)
	if err != nil || existing == nil {
		return nil, r.reject(cause)
	}
	o.logger.Infow("checkout replayed", "key", shortKey(r.key), "order_id", existing.ID)
	return &Result{Order: existing, Replayed: true}, nil
}

// Checkout prices the cart, validates the payment and commits the order.
// Repeating a request with the same key returns the original order.
func (o *Orchestrator) Checkout(ctx context.Context, req Request) (*Result, error) {
	if err := rbac.RequirePermission(ctx, PermCreate); err != nil {
		return nil, err
	}
	tenantID, err := reqctx.RequireTenant(ctx)
	if err != nil {
		return nil, err
	}
	principalID, err := reqctx.RequirePrincipal(ctx)
	if err != nil {
		return nil, err
	}

	req.PaymentReference = strings.TrimSpace(req.PaymentReference)
	if req.PaymentReference == "" {
		return nil, apperr.Validation("payment_reference is required")
	}
	key, err := Key(tenantID, principalID, req)
	if err != nil {
		return nil, err
	}

	r := &run{o: o, key: key, state: StateStarted}

	if prior, err := o.replay(ctx, tenantID, key); err != nil {
		return nil, r.reject(err)
	} else if prior != nil {
		o.logger.Infow("checkout replayed", "key", shortKey(key), "order_id", prior.Order.ID)
		return prior, nil
	}

	priced, err := o.pricer.ComputePricing(ctx, tenantID, req.Lines, req.Shipping, req.DiscountCode)
	if err != nil {
		return o.rejectOrReplay(ctx, r, tenantID, err)
	}
	r.to(StatePriced)

	v, err := o.payments.ValidatePaymentReference(ctx, req.PaymentReference, priced.TotalCents, priced.Currency, tenantID, "payment:"+key)
	if err != nil {
		return nil, r.reject(transientFromExhausted(err))
	}
	if !v.IsValid {
		return o.rejectOrReplay(ctx, r, tenantID, paymentError(v))
	}
	r.to(StatePaymentValidated)

	order := buildOrder(tenantID, principalID, key, req, priced, v)
	var (
		events   []inventory.LowStockEvent
		original *orders.Order
	)
	err = o.tx.WithCheckoutTx(ctx, func(tx *storage.CheckoutTx) error {
		created, err := tx.Orders.Create(ctx, order)
		if err != nil {
			return err
		}
		if !created {
			if original, err = tx.Orders.GetByIdempotencyKey(ctx, tenantID, key); err != nil {
				return err
			}
			return errDuplicateCheckout
		}

		if err := tx.Payments.Consume(ctx, paymentsrepo.ConsumeInput{
			ReferenceID: req.PaymentReference,
			TenantID:    tenantID,
			Provider:    v.Provider,
			AmountCents: v.AmountCents,
			Currency:    v.Currency,
			OrderID:     order.ID,
		}); err != nil {
			return err
		}

		_, evs, err := o.ledger.DeductIn(ctx, tx.Inventory, tenantID, itemLines(order.Items), order.ID, principalID)
		if err != nil {
			return err
		}
		events = evs
		r.to(StateInventoryReserved)
		return nil
	})
	if errors.Is(err, errDuplicateCheckout) && original != nil {
		o.logger.Infow("checkout lost race to an identical request", "key", shortKey(key), "order_id", original.ID)
		o.remember(ctx, key, original)
		return &Result{Order: original, Replayed: true}, nil
	}
	if err != nil {
		return nil, r.reject(err)
	}
	r.to(StateCommitted)

	o.ledger.Publish(events)
	o.remember(ctx, key, order)
	o.logger.Infow("order placed", "order_id", order.ID, "order_number", order.OrderNumber,
		"tenant_id", tenantID, "total_cents", order.TotalCents)
	return &Result{Order: order}, nil
}

// Cancel returns an order's stock and marks it cancelled. With
// ReasonRefund the payment reference is marked refunded as well.
func (o *Orchestrator) Cancel(ctx context.Context, orderID int64, reason inventory.Reason) (*orders.Order, error) {
	if err := rbac.RequirePermission(ctx, PermCancel); err != nil {
		return nil, err
	}
	tenantID, err := reqctx.RequireTenant(ctx)
	if err != nil {
		return nil, err
	}
	principalID, err := reqctx.RequirePrincipal(ctx)
	if err != nil {
		return nil, err
	}
	if reason == "" {
		reason = inventory.ReasonCancellation
	}
	if reason != inventory.ReasonCancellation && reason != inventory.ReasonRefund {
		return nil, apperr.Validation("reason must be cancellation or refund").With("reason", string(reason))
	}

	var (
		cancelled *orders.Order
		events    []inventory.LowStockEvent
	)
	err = o.tx.WithCheckoutTx(ctx, func(tx *storage.CheckoutTx) error {
		order, err := tx.Orders.LockByID(ctx, tenantID, orderID)
		if err != nil {
			return err
		}
		if order == nil {
			return apperr.NotFound("order not found").With("order_id", orderID)
		}
		if order.Status != orders.StatusPlaced {
			return apperr.Conflict("order is not cancellable").With("status", order.Status)
		}

		_, evs, err := o.ledger.RestoreIn(ctx, tx.Inventory, tenantID, itemLines(order.Items), order.ID, reason, principalID)
		if err != nil {
			return err
		}
		events = evs

		note := string(reason)
		if err := tx.Orders.UpdateStatus(ctx, tenantID, order.ID, orders.StatusCancelled, &note); err != nil {
			return err
		}
		if reason == inventory.ReasonRefund && order.PaymentReference != "" {
			if err := tx.Payments.SetStatus(ctx, order.PaymentReference, paymentsrepo.StatusRefunded); err != nil {
				return err
			}
		}
		if cancelled, err = tx.Orders.GetByID(ctx, tenantID, order.ID); err != nil {
			return err
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	o.ledger.Publish(events)
	if err := o.cache.Forget(ctx, cacheKey(cancelled.IdempotencyKey)); err != nil {
		o.logger.Warnw("checkout cache evict failed", "order_id", orderID, "error", err)
	}
	o.logger.Infow("order cancelled", "order_id", orderID, "tenant_id", tenantID, "reason", reason)
	return cancelled, nil
}

func (o *Orchestrator) Order(ctx context.Context, orderID int64) (*orders.Order, error) {
	if err := rbac.RequirePermission(ctx, PermRead); err != nil {
		return nil, err
	}
	tenantID, err := reqctx.RequireTenant(ctx)
	if err != nil {
		return nil, err
	}
	order, err := o.orders.GetByID(ctx, tenantID, orderID)
	if err != nil {
		return nil, err
	}
	if order == nil {
		return nil, apperr.NotFound("order not found").With("order_id", orderID)
	}
	return order, nil
}

func (o *Orchestrator) Orders(ctx context.Context, status string, limit, offset int) ([]orders.Order, int, error) {
	if err := rbac.RequirePermission(ctx, PermRead); err != nil {
		return nil, 0, err
	}
	tenantID, err := reqctx.RequireTenant(ctx)
	if err != nil {
		return nil, 0, err
	}
	if status != "" && status != orders.StatusPlaced && status != orders.StatusCancelled {
		return nil, 0, apperr.Validation("unknown order status").With("status", status)
	}
	return o.orders.ListByTenant(ctx, tenantID, status, limit, offset)
}
