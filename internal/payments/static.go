package payments

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
)

// StaticProvider serves payments from an in-process book. References look
// like "pay_<anything>". It backs local runs and tests.
type StaticProvider struct {
	mu       sync.Mutex
	book     map[string]LookupResult
	failures []error
	lookups  atomic.Int64
}

func NewStaticProvider() *StaticProvider {
	return &StaticProvider{book: make(map[string]LookupResult)}
}

func (s *StaticProvider) Name() string { return "static" }

func (s *StaticProvider) ValidReference(ref string) bool {
	return strings.HasPrefix(ref, "pay_") && len(ref) >= 8 && len(ref) <= 64
}

// Add records a payment the provider will report.
func (s *StaticProvider) Add(r LookupResult) {
	s.mu.Lock()
	s.book[r.ReferenceID] = r
	s.mu.Unlock()
}

// FailNext makes the following lookups fail with errs, in order.
func (s *StaticProvider) FailNext(errs ...error) {
	s.mu.Lock()
	s.failures = append(s.failures, errs...)
	s.mu.Unlock()
}

func (s *StaticProvider) Lookups() int64 { return s.lookups.Load() }

func (s *StaticProvider) Lookup(ctx context.Context, ref string) (*LookupResult, error) {
	s.lookups.Add(1)
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.failures) > 0 {
		err := s.failures[0]
		s.failures = s.failures[1:]
		return nil, err
	}
	r, ok := s.book[ref]
	if !ok {
		return nil, ErrReferenceNotFound
	}
	cp := r
	return &cp, nil
}

func (s *StaticProvider) Initiate(ctx context.Context, req InitiateRequest) (InitiateResult, error) {
	if req.AmountCents <= 0 {
		return InitiateResult{}, fmt.Errorf("static initiate: amount must be positive")
	}
	ref := "pay_" + strings.ReplaceAll(uuid.NewString(), "-", "")
	s.Add(LookupResult{
		ReferenceID: ref,
		Status:      ProviderStatusCompleted,
		AmountCents: req.AmountCents,
		Currency:    "NPR",
		TenantID:    req.TenantID,
	})
	return InitiateResult{ReferenceID: ref, PaymentURL: "static://" + ref}, nil
}
