package pushtokens

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"storefront/internal/infra/dbx"
)

const QueryTimeoutDuration = 5 * time.Second

type Store interface {
	AddOrUpdatePushToken(ctx context.Context, principalID int64, token string, deviceInfo json.RawMessage) error
	RemovePushToken(ctx context.Context, principalID int64, token string) error
	RemoveTokensByTokenList(ctx context.Context, tokens []string) error
	GetTokensByPrincipalIDs(ctx context.Context, principalIDs []int64) (map[int64][]string, error)
	PruneStaleTokens(ctx context.Context, olderThan time.Duration) (int64, error)
}

type Repository struct {
	q dbx.Querier
}

func NewRepository(q dbx.Querier) *Repository {
	return &Repository{q: q}
}

// AddOrUpdatePushToken upserts token + device info, updates last_updated
func (r *Repository) AddOrUpdatePushToken(ctx context.Context, principalID int64, token string, deviceInfo json.RawMessage) error {
	ctx, cancel := context.WithTimeout(ctx, QueryTimeoutDuration)
	defer cancel()

	q := `
	INSERT INTO principal_push_tokens (principal_id, expo_push_token, device_info, last_updated)
	VALUES ($1, $2, $3, NOW())
	ON CONFLICT (principal_id, expo_push_token)
	DO UPDATE SET device_info = EXCLUDED.device_info, last_updated = NOW();
	`
	_, err := r.q.Exec(ctx, q, principalID, token, deviceInfo)
	return err
}

func (r *Repository) RemovePushToken(ctx context.Context, principalID int64, token string) error {
	ctx, cancel := context.WithTimeout(ctx, QueryTimeoutDuration)
	defer cancel()

	q := `DELETE FROM principal_push_tokens WHERE principal_id = $1 AND expo_push_token = $2`
	_, err := r.q.Exec(ctx, q, principalID, token)
	return err
}

// RemoveTokensByTokenList drops tokens Expo reported as unregistered.
func (r *Repository) RemoveTokensByTokenList(ctx context.Context, tokens []string) error {
	if len(tokens) == 0 {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, QueryTimeoutDuration)
	defer cancel()

	q := `DELETE FROM principal_push_tokens WHERE expo_push_token = ANY($1)`
	_, err := r.q.Exec(ctx, q, tokens)
	return err
}

// GetTokensByPrincipalIDs returns principal id -> tokens.
func (r *Repository) GetTokensByPrincipalIDs(ctx context.Context, principalIDs []int64) (map[int64][]string, error) {
	result := make(map[int64][]string)
	if len(principalIDs) == 0 {
		return result, nil
	}

	ctx, cancel := context.WithTimeout(ctx, QueryTimeoutDuration)
	defer cancel()

	q := `SELECT principal_id, expo_push_token FROM principal_push_tokens WHERE principal_id = ANY($1)`
	rows, err := r.q.Query(ctx, q, principalIDs)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var pid int64
	var token string
	for rows.Next() {
		if err := rows.Scan(&pid, &token); err != nil {
			return nil, err
		}
		result[pid] = append(result[pid], token)
	}
	return result, rows.Err()
}

// PruneStaleTokens deletes tokens not updated in olderThan duration
func (r *Repository) PruneStaleTokens(ctx context.Context, olderThan time.Duration) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, QueryTimeoutDuration)
	defer cancel()

	interval := fmt.Sprintf("%d seconds", int64(olderThan.Seconds()))
	q := `DELETE FROM principal_push_tokens WHERE last_updated < NOW() - $1::interval`
	tag, err := r.q.Exec(ctx, q, interval)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}
