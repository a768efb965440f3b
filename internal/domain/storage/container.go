package storage

import (
	"context"
	"errors"

	"storefront/internal/domain/accesscontrol"
	"storefront/internal/domain/orders"
	"storefront/internal/domain/paymentsrepo"
	"storefront/internal/domain/products"
	"storefront/internal/domain/pushtokens"
	"storefront/internal/domain/stock"
	"storefront/internal/domain/tenants"
	"storefront/internal/inventory"
	"storefront/internal/kvstore"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// CheckoutTx is a tx-scoped set of repos for one checkout or cancellation.
type CheckoutTx struct {
	Inventory inventory.Store
	Orders    orders.Store
	Payments  paymentsrepo.Store
	PayLogs   paymentsrepo.LogsStore
}

// TxRunner opens a unit of work. A non-nil error from fn rolls everything back.
type TxRunner interface {
	WithCheckoutTx(ctx context.Context, fn func(tx *CheckoutTx) error) error
}

type Container struct {
	Products   products.Store
	Orders     orders.Store
	Payments   paymentsrepo.Store
	PayLogs    paymentsrepo.LogsStore
	Tenants    tenants.Store
	Access     accesscontrol.Store
	PushTokens pushtokens.Store
	Stock      inventory.HistoryReader
	KV         kvstore.Store

	tx TxRunner
}

// New wraps repos built elsewhere (the in-memory backend) around tx.
func New(c Container, tx TxRunner) *Container {
	c.tx = tx
	return &c
}

func NewContainer(db *pgxpool.Pool, gen *orders.OrderNumberGenerator) *Container {
	return &Container{
		Products:   products.NewRepository(db),
		Orders:     orders.NewRepository(db, gen),
		Payments:   paymentsrepo.NewRepository(db),
		PayLogs:    paymentsrepo.NewLogsRepository(db),
		Tenants:    tenants.NewRepository(db),
		Access:     accesscontrol.NewRepository(db),
		PushTokens: pushtokens.NewRepository(db),
		Stock:      stock.NewRepository(db),
		KV:         kvstore.NewPostgresStore(db),
		tx:         &pgRunner{pool: db, gen: gen},
	}
}

func (c *Container) WithCheckoutTx(ctx context.Context, fn func(tx *CheckoutTx) error) error {
	if c.tx == nil {
		return errors.New("storage container has no transaction runner")
	}
	return c.tx.WithCheckoutTx(ctx, fn)
}

// WithInventoryTx lets the container serve as an inventory.Backend.
func (c *Container) WithInventoryTx(ctx context.Context, fn func(s inventory.Store) error) error {
	return c.WithCheckoutTx(ctx, func(tx *CheckoutTx) error {
		return fn(tx.Inventory)
	})
}

func (c *Container) ListAdjustments(ctx context.Context, tenantID, productID int64, limit, offset int) ([]inventory.Adjustment, int, error) {
	return c.Stock.ListAdjustments(ctx, tenantID, productID, limit, offset)
}

type pgRunner struct {
	pool *pgxpool.Pool
	gen  *orders.OrderNumberGenerator
}

func (r *pgRunner) WithCheckoutTx(ctx context.Context, fn func(tx *CheckoutTx) error) error {
	if r.pool == nil {
		return errors.New("storage container pool is nil")
	}

	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		return err
	}

	defer func() {
		_ = tx.Rollback(ctx) // safe even if already committed
	}()

	s := &CheckoutTx{
		Inventory: stock.NewRepository(tx),
		Orders:    orders.NewRepository(tx, r.gen),
		Payments:  paymentsrepo.NewRepository(tx),
		PayLogs:   paymentsrepo.NewLogsRepository(tx),
	}

	if err := fn(s); err != nil {
		return err
	}

	return tx.Commit(ctx)
}
