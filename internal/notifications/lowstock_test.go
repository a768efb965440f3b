package notifications

import (
	"context"
	"errors"
	"sync"
	"testing"

	"storefront/internal/inventory"

	"github.com/9ssi7/exponent"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakePush struct {
	mu   sync.Mutex
	msgs []*exponent.Message
	err  error
}

func (f *fakePush) Publish(_ context.Context, msgs []*exponent.Message) ([]*exponent.MessageResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.msgs = append(f.msgs, msgs...)
	return nil, f.err
}

type fakeDirectory struct {
	admins map[int64][]int64
	tokens map[int64][]string
}

func (f fakeDirectory) PrincipalsWithRoles(_ context.Context, tenantID int64, roles []string) ([]int64, error) {
	return f.admins[tenantID], nil
}

func (f fakeDirectory) GetTokensByPrincipalIDs(_ context.Context, ids []int64) (map[int64][]string, error) {
	out := make(map[int64][]string)
	for _, id := range ids {
		out[id] = f.tokens[id]
	}
	return out, nil
}

type fakeMail struct {
	calls []string
	err   error
}

func (f *fakeMail) Send(_ context.Context, tmpl string, to []string, _ any) error {
	f.calls = append(f.calls, tmpl+"->"+to[0])
	return f.err
}

func events() []inventory.LowStockEvent {
	return []inventory.LowStockEvent{
		{TenantID: 1, ProductID: 10, OnHand: 2, Threshold: 5, Status: inventory.StatusLowStock},
		{TenantID: 2, ProductID: 20, OnHand: 0, Threshold: 1, Status: inventory.StatusOutOfStock},
	}
}

func TestExpoNotifierTargetsTenantAdmins(t *testing.T) {
	push := &fakePush{}
	dir := fakeDirectory{
		admins: map[int64][]int64{1: {100, 101}, 2: {200}},
		tokens: map[int64][]string{100: {"ExponentPushToken[a]"}, 200: {"ExponentPushToken[b]", "ExponentPushToken[c]"}},
	}
	n := NewExpoNotifier(push, dir, dir)

	require.NoError(t, n.NotifyLowStock(context.Background(), events()))
	require.Len(t, push.msgs, 3)

	assert.Equal(t, "Low stock", push.msgs[0].Title)
	assert.Equal(t, "1", push.msgs[0].Data["tenantId"])
	assert.Equal(t, "Out of stock", push.msgs[1].Title)
	assert.Equal(t, "20", push.msgs[2].Data["productId"])
}

func TestExpoNotifierReportsPublishFailure(t *testing.T) {
	push := &fakePush{err: errors.New("expo down")}
	dir := fakeDirectory{admins: map[int64][]int64{1: {100}}, tokens: map[int64][]string{100: {"ExponentPushToken[a]"}}}

	err := NewExpoNotifier(push, dir, dir).NotifyLowStock(context.Background(), events()[:1])
	assert.ErrorContains(t, err, "expo down")
}

func TestMailNotifierSendsOnePerTenant(t *testing.T) {
	m := &fakeMail{}
	n := NewMailNotifier(m, []string{"ops@example.com"})

	require.NoError(t, n.NotifyLowStock(context.Background(), events()))
	assert.Equal(t, []string{"low_stock.tmpl->ops@example.com", "low_stock.tmpl->ops@example.com"}, m.calls)

	assert.NoError(t, NewMailNotifier(m, nil).NotifyLowStock(context.Background(), events()))
}

func TestFanoutJoinsErrors(t *testing.T) {
	good := &fakeMail{}
	bad := &fakeMail{err: errors.New("smtp refused")}
	f := Fanout{
		NewLogNotifier(zap.NewNop().Sugar()),
		NewMailNotifier(good, []string{"a@example.com"}),
		NewMailNotifier(bad, []string{"b@example.com"}),
	}

	err := f.NotifyLowStock(context.Background(), events()[:1])
	assert.ErrorContains(t, err, "smtp refused")
	assert.Len(t, good.calls, 1)
}
