// Package memory is an in-process backend for local runs and tests. One
// transaction runs at a time against a copy of the state; the copy replaces
// the live state on commit and is dropped on error.
package memory

import (
	"context"
	"sync"
	"time"

	"storefront/internal/domain/accesscontrol"
	"storefront/internal/domain/orders"
	"storefront/internal/domain/paymentsrepo"
	"storefront/internal/domain/products"
	"storefront/internal/domain/storage"
	"storefront/internal/domain/tenants"
	"storefront/internal/inventory"
	"storefront/internal/kvstore"
)

type tkey struct{ tenant, id int64 }

type okey struct {
	tenant int64
	key    string
}

type state struct {
	seq         int64
	products    map[int64]products.Product
	inventory   map[tkey]inventory.Record
	adjustments []inventory.Adjustment
	orders      map[int64]orders.Order
	orderKeys   map[okey]int64
	refs        map[string]paymentsrepo.Reference
	payLogs     []paymentsrepo.PaymentLog
	tenants     map[int64]tenants.Tenant
	members     map[tkey]accesscontrol.Membership
	superAdmins map[int64]bool
	pushTokens  map[int64]map[string]time.Time
}

func newState() *state {
	return &state{
		products:    make(map[int64]products.Product),
		inventory:   make(map[tkey]inventory.Record),
		orders:      make(map[int64]orders.Order),
		orderKeys:   make(map[okey]int64),
		refs:        make(map[string]paymentsrepo.Reference),
		tenants:     make(map[int64]tenants.Tenant),
		members:     make(map[tkey]accesscontrol.Membership),
		superAdmins: make(map[int64]bool),
		pushTokens:  make(map[int64]map[string]time.Time),
	}
}

func (s *state) nextID() int64 {
	s.seq++
	return s.seq
}

func (s *state) clone() *state {
	c := newState()
	c.seq = s.seq
	for k, v := range s.products {
		c.products[k] = v
	}
	for k, v := range s.inventory {
		c.inventory[k] = v
	}
	c.adjustments = append([]inventory.Adjustment(nil), s.adjustments...)
	for k, v := range s.orders {
		c.orders[k] = copyOrder(v)
	}
	for k, v := range s.orderKeys {
		c.orderKeys[k] = v
	}
	for k, v := range s.refs {
		c.refs[k] = v
	}
	c.payLogs = append([]paymentsrepo.PaymentLog(nil), s.payLogs...)
	for k, v := range s.tenants {
		c.tenants[k] = v
	}
	for k, v := range s.members {
		v.Permissions = append([]string(nil), v.Permissions...)
		c.members[k] = v
	}
	for k, v := range s.superAdmins {
		c.superAdmins[k] = v
	}
	for pid, toks := range s.pushTokens {
		m := make(map[string]time.Time, len(toks))
		for t, at := range toks {
			m[t] = at
		}
		c.pushTokens[pid] = m
	}
	return c
}

func copyOrder(o orders.Order) orders.Order {
	o.Items = append([]orders.Item(nil), o.Items...)
	return o
}

type access func(write bool, fn func(s *state) error) error

// DB holds the live state.
type DB struct {
	txMu sync.Mutex
	mu   sync.RWMutex
	cur  *state
	gen  *orders.OrderNumberGenerator
	now  func() time.Time
}

func New(gen *orders.OrderNumberGenerator) *DB {
	if gen == nil {
		gen = orders.NewOrderNumberGenerator("memory", "")
	}
	return &DB{cur: newState(), gen: gen, now: time.Now}
}

// access runs fn against the live state. Writes wait for any open
// transaction so its commit cannot overwrite them.
func (db *DB) access(write bool, fn func(s *state) error) error {
	if write {
		db.txMu.Lock()
		defer db.txMu.Unlock()
		db.mu.Lock()
		defer db.mu.Unlock()
		return fn(db.cur)
	}
	db.mu.RLock()
	defer db.mu.RUnlock()
	return fn(db.cur)
}

func (db *DB) WithCheckoutTx(ctx context.Context, fn func(tx *storage.CheckoutTx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	db.txMu.Lock()
	defer db.txMu.Unlock()

	db.mu.RLock()
	work := db.cur.clone()
	db.mu.RUnlock()

	run := func(_ bool, f func(s *state) error) error { return f(work) }
	tx := &storage.CheckoutTx{
		Inventory: &inventoryRepo{run: run},
		Orders:    &orderRepo{run: run, db: db},
		Payments:  &refRepo{run: run, db: db},
		PayLogs:   &logRepo{run: run, db: db},
	}
	if err := fn(tx); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	db.mu.Lock()
	db.cur = work
	db.mu.Unlock()
	return nil
}

// Container exposes the backend through the same surface as Postgres.
func (db *DB) Container(kv kvstore.Store) *storage.Container {
	if kv == nil {
		kv = kvstore.NewMemoryStore(0)
	}
	return storage.New(storage.Container{
		Products:   &productRepo{run: db.access, db: db},
		Orders:     &orderRepo{run: db.access, db: db},
		Payments:   &refRepo{run: db.access, db: db},
		PayLogs:    &logRepo{run: db.access, db: db},
		Tenants:    &tenantRepo{run: db.access},
		Access:     &accessRepo{run: db.access, db: db},
		PushTokens: &pushRepo{run: db.access, db: db},
		Stock:      &inventoryRepo{run: db.access},
		KV:         kv,
	}, db)
}
