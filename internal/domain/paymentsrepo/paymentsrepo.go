package paymentsrepo

import (
	"context"
	"errors"
	"fmt"

	"storefront/internal/apperr"
	"storefront/internal/infra/dbx"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

type Repository struct{ q dbx.Querier }

func NewRepository(q dbx.Querier) *Repository { return &Repository{q: q} }

func (r *Repository) GetReference(ctx context.Context, referenceID string) (*Reference, error) {
	var p Reference
	err := r.q.QueryRow(ctx, `
		SELECT reference_id, tenant_id, provider, amount_cents, currency, status,
		       consumed_order_id, created_at, updated_at
		FROM payment_references WHERE reference_id=$1
	`, referenceID).Scan(
		&p.ReferenceID, &p.TenantID, &p.Provider, &p.AmountCents, &p.Currency, &p.Status,
		&p.ConsumedOrderID, &p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get payment reference: %w", err)
	}
	return &p, nil
}

// Consume is a single upsert so two orders racing on one reference cannot
// both succeed: the update arm only fires while consumed_order_id is NULL.
func (r *Repository) Consume(ctx context.Context, in ConsumeInput) error {
	tag, err := r.q.Exec(ctx, `
		INSERT INTO payment_references
		  (reference_id, tenant_id, provider, amount_cents, currency, status, consumed_order_id)
		VALUES ($1, $2, $3, $4, $5, 'completed', $6)
		ON CONFLICT (reference_id) DO UPDATE
		   SET consumed_order_id = EXCLUDED.consumed_order_id,
		       updated_at = now()
		 WHERE payment_references.consumed_order_id IS NULL
		   AND payment_references.tenant_id = EXCLUDED.tenant_id
	`, in.ReferenceID, in.TenantID, in.Provider, in.AmountCents, in.Currency, in.OrderID)
	if err != nil {
		return fmt.Errorf("consume payment reference: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperr.New(apperr.CodeAlreadyConsumed, "payment reference already used").
			With("payment_reference", in.ReferenceID)
	}
	return nil
}

func (r *Repository) CreatePending(ctx context.Context, ref Reference) error {
	_, err := r.q.Exec(ctx, `
		INSERT INTO payment_references
		  (reference_id, tenant_id, provider, amount_cents, currency, status)
		VALUES ($1, $2, $3, $4, $5, 'pending')
	`, ref.ReferenceID, ref.TenantID, ref.Provider, ref.AmountCents, ref.Currency)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return apperr.Conflict("payment reference already recorded").With("payment_reference", ref.ReferenceID)
		}
		return fmt.Errorf("create payment reference: %w", err)
	}
	return nil
}

func (r *Repository) SetStatus(ctx context.Context, referenceID, status string) error {
	tag, err := r.q.Exec(ctx, `
		UPDATE payment_references
		   SET status=$2, updated_at=now()
		 WHERE reference_id=$1
	`, referenceID, status)
	if err != nil {
		return fmt.Errorf("set payment reference status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound("payment reference not found")
	}
	return nil
}
