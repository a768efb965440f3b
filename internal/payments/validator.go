package payments

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"time"

	"storefront/internal/domain/paymentsrepo"
	"storefront/internal/idempotency"
	"storefront/internal/retry"

	"go.uber.org/zap"
)

// AmountToleranceCents absorbs provider rounding.
const AmountToleranceCents = 1

const (
	ReasonInvalidFormat    = "invalid format"
	ReasonAlreadyConsumed  = "already consumed"
	ReasonNotFound         = "payment not found"
	ReasonNotCompleted     = "payment not completed"
	ReasonAmountMismatch   = "amount mismatch"
	ReasonCurrencyMismatch = "currency mismatch"
	ReasonTenantMismatch   = "tenant mismatch"
)

// Validation is the outcome of checking a payment reference. A failed check is
// a value with IsValid false, never an error.
type Validation struct {
	ReferenceID string    `json:"reference_id"`
	Provider    string    `json:"provider,omitempty"`
	IsValid     bool      `json:"is_valid"`
	Reason      string    `json:"reason,omitempty"`
	AmountCents int64     `json:"amount_cents"`
	Currency    string    `json:"currency,omitempty"`
	TenantID    int64     `json:"tenant_id"`
	ValidatedAt time.Time `json:"validated_at"`
}

// ReferenceReader is the read side of paymentsrepo.Store.
type ReferenceReader interface {
	GetReference(ctx context.Context, referenceID string) (*paymentsrepo.Reference, error)
}

type Validator struct {
	providers *PaymentManager
	refs      ReferenceReader
	logs      paymentsrepo.LogsStore
	cache     *idempotency.Cache
	exec      *retry.Executor
	logger    *zap.SugaredLogger
	now       func() time.Time
}

func NewValidator(
	providers *PaymentManager,
	refs ReferenceReader,
	logs paymentsrepo.LogsStore,
	cache *idempotency.Cache,
	exec *retry.Executor,
	logger *zap.SugaredLogger,
) *Validator {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &Validator{
		providers: providers,
		refs:      refs,
		logs:      logs,
		cache:     cache,
		exec:      exec,
		logger:    logger,
		now:       time.Now,
	}
}

// ValidatePaymentReference confirms referenceID is a completed, unconsumed
// payment of expectedAmountCents in currency owned by tenantID. An empty
// currency skips the currency check. Successful results are cached and
// returned verbatim on repeat calls with the same idempotencyKey, tenant,
// reference, amount and currency.
func (v *Validator) ValidatePaymentReference(
	ctx context.Context,
	referenceID string,
	expectedAmountCents int64,
	currency string,
	tenantID int64,
	idempotencyKey string,
) (*Validation, error) {
	currency = strings.ToUpper(strings.TrimSpace(currency))
	cacheKey, err := validationCacheKey(referenceID, expectedAmountCents, currency, tenantID, idempotencyKey)
	if err != nil {
		return nil, err
	}

	var cached Validation
	if ok, err := v.cache.Get(ctx, cacheKey, &cached); err != nil {
		v.logger.Warnw("payment validation cache read failed", "key", cacheKey, "error", err)
	} else if ok {
		return &cached, nil
	}

	res, err := retry.Execute(ctx, v.exec, func(ctx context.Context) (*Validation, error) {
		return v.check(ctx, referenceID, expectedAmountCents, currency, tenantID)
	})
	if err != nil {
		return nil, err
	}

	if res.IsValid {
		if err := v.cache.Put(ctx, cacheKey, res, 0); err != nil {
			v.logger.Warnw("payment validation cache write failed", "key", cacheKey, "error", err)
		}
	} else {
		v.logger.Infow("payment reference rejected", "reference_id", referenceID, "tenant_id", tenantID, "reason", res.Reason)
	}
	return res, nil
}

// validationCacheKey scopes a cached result to everything the check
// depended on, so a client key never replays a result for another tenant,
// reference or amount.
func validationCacheKey(referenceID string, expected int64, currency string, tenantID int64, clientKey string) (string, error) {
	parts := []string{"payment", strconv.FormatInt(tenantID, 10), referenceID,
		strconv.FormatInt(expected, 10), currency}
	if clientKey = strings.TrimSpace(clientKey); clientKey != "" {
		if err := idempotency.ValidateKey(clientKey); err != nil {
			return "", err
		}
		parts = append(parts, clientKey)
	}
	return "payment:" + idempotency.Fingerprint(parts...), nil
}

func (v *Validator) check(ctx context.Context, referenceID string, expected int64, currency string, tenantID int64) (*Validation, error) {
	out := &Validation{ReferenceID: referenceID, TenantID: tenantID, ValidatedAt: v.now().UTC()}
	reject := func(reason string) (*Validation, error) {
		out.IsValid = false
		out.Reason = reason
		return out, nil
	}

	provider, ok := v.providers.Resolve(referenceID)
	if !ok {
		return reject(ReasonInvalidFormat)
	}
	out.Provider = provider.Name()

	local, err := v.refs.GetReference(ctx, referenceID)
	if err != nil {
		return nil, err
	}
	if local.Consumed() {
		return reject(ReasonAlreadyConsumed)
	}
	if local != nil && (local.Status == paymentsrepo.StatusRefunded || local.Status == paymentsrepo.StatusDisputed) {
		return reject(local.Status)
	}

	found, err := provider.Lookup(ctx, referenceID)
	v.logLookup(ctx, referenceID, found, err)
	if err != nil {
		if errors.Is(err, ErrReferenceNotFound) {
			return reject(ReasonNotFound)
		}
		return nil, err
	}

	out.AmountCents = found.AmountCents
	out.Currency = found.Currency

	if found.Status != ProviderStatusCompleted {
		if found.Status == ProviderStatusRefunded {
			return reject(paymentsrepo.StatusRefunded)
		}
		return reject(ReasonNotCompleted)
	}
	if diff := found.AmountCents - expected; diff > AmountToleranceCents || diff < -AmountToleranceCents {
		return reject(ReasonAmountMismatch)
	}
	if currency != "" && !strings.EqualFold(found.Currency, currency) {
		return reject(ReasonCurrencyMismatch)
	}

	owner := found.TenantID
	if local != nil {
		owner = local.TenantID
	}
	if owner == 0 || owner != tenantID {
		return reject(ReasonTenantMismatch)
	}

	out.IsValid = true
	return out, nil
}

func (v *Validator) logLookup(ctx context.Context, ref string, res *LookupResult, err error) {
	if v.logs == nil {
		return
	}
	if err != nil {
		_ = v.logs.InsertPaymentLog(ctx, ref, "error", map[string]any{"error": err.Error()})
		return
	}
	_ = v.logs.InsertPaymentLog(ctx, ref, "lookup", map[string]any{
		"status":       res.Status,
		"amount_cents": res.AmountCents,
		"raw":          res.Raw,
	})
}
