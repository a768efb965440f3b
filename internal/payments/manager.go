package payments

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

type PaymentManager struct {
	mu        sync.RWMutex
	providers map[string]Provider
}

func NewPaymentManager() *PaymentManager {
	return &PaymentManager{providers: make(map[string]Provider)}
}

func (m *PaymentManager) RegisterProvider(p Provider) {
	m.mu.Lock()
	m.providers[p.Name()] = p
	m.mu.Unlock()
}

func (m *PaymentManager) Provider(name string) (Provider, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.providers[name]
	return p, ok
}

// Resolve returns the first provider, by name, whose format accepts ref.
func (m *PaymentManager) Resolve(ref string) (Provider, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	names := make([]string, 0, len(m.providers))
	for n := range m.providers {
		names = append(names, n)
	}
	sort.Strings(names)
	for _, n := range names {
		if p := m.providers[n]; p.ValidReference(ref) {
			return p, true
		}
	}
	return nil, false
}

func (m *PaymentManager) Initiate(ctx context.Context, method string, req InitiateRequest) (InitiateResult, error) {
	p, ok := m.Provider(method)
	if !ok {
		return InitiateResult{}, fmt.Errorf("provider not registered: %s", method)
	}
	in, ok := p.(Initiator)
	if !ok {
		return InitiateResult{}, fmt.Errorf("provider %s cannot initiate payments", method)
	}
	return in.Initiate(ctx, req)
}
