package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/Mohamedseffine/01Blog/internal/apperrors"
	"github.com/Mohamedseffine/01Blog/internal/models"
)

type RefreshTokenRepo struct {
	DB DBTX
}

const refreshColumns = `id, user_id, token_hash, created_at, expires_at, revoked_at`

const upsertToken = `-- name: Upsert user refresh token
INSERT INTO refresh_tokens (id, user_id, token_hash, created_at, expires_at, revoked_at)
VALUES ($1, $2, $3, $4, $5, NULL)
ON CONFLICT (user_id) DO UPDATE
SET token_hash = EXCLUDED.token_hash,
    expires_at = EXCLUDED.expires_at,
    revoked_at = NULL
RETURNING ` + refreshColumns

func (r *RefreshTokenRepo) Upsert(ctx context.Context, record models.RefreshRecord) (models.RefreshRecord, error) {
	rows, _ := r.DB.Query(ctx, upsertToken, record.ID, record.UserID, record.TokenHash, record.CreatedAt, record.ExpiresAt)
	saved, err := pgx.CollectOneRow(rows, rowToRecord)
	if err != nil {
		return saved, fmt.Errorf("db error: %w", err)
	}
	return saved, nil
}

const getByUser = `-- name: GetByUser
SELECT ` + refreshColumns + `
FROM refresh_tokens
WHERE user_id = $1
`

// Get the user record
// It should return result even it expired or revoked already
func (r *RefreshTokenRepo) GetByUser(ctx context.Context, userID int64) (models.RefreshRecord, error) {
	rows, _ := r.DB.Query(ctx, getByUser, userID)
	record, err := pgx.CollectOneRow(rows, rowToRecord)

	switch {
	case err == nil:
		return record, nil
	case errors.Is(err, pgx.ErrNoRows):
		return record, fmt.Errorf("repo error: %w", apperrors.ErrRefreshTokenNotFound)
	default:
		return record, fmt.Errorf("db error: %w", err)
	}
}

// Row is locked by the first updater; the second one re-checks token_hash on the committed row and matches nothing
const replaceToken = `-- name: Replace live token if hash not changed
UPDATE refresh_tokens
SET token_hash = $3,
    expires_at = $4,
    revoked_at = NULL
WHERE user_id = $1
  AND token_hash = $2
  AND revoked_at IS NULL
  AND expires_at > $5
RETURNING ` + refreshColumns

func (r *RefreshTokenRepo) Replace(ctx context.Context, oldHash string, next models.RefreshRecord, now time.Time) (models.RefreshRecord, error) {
	rows, _ := r.DB.Query(ctx, replaceToken, next.UserID, oldHash, next.TokenHash, next.ExpiresAt, now)
	record, err := pgx.CollectOneRow(rows, rowToRecord)

	switch {
	case err == nil:
		return record, nil
	case errors.Is(err, pgx.ErrNoRows):
		return record, fmt.Errorf("repo error: %w", apperrors.ErrRefreshTokenMismatch)
	default:
		return record, fmt.Errorf("db error: %w", err)
	}
}

const revokeToken = `-- name: Revoke live token
UPDATE refresh_tokens
SET revoked_at = $3
WHERE user_id = $1
  AND token_hash = $2
  AND revoked_at IS NULL
`

func (r *RefreshTokenRepo) Revoke(ctx context.Context, userID int64, hash string, now time.Time) error {
	tag, err := r.DB.Exec(ctx, revokeToken, userID, hash, now)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}

	if tag.RowsAffected() == 0 {
		return fmt.Errorf("repo error: %w", apperrors.ErrRefreshTokenNotFound)
	}

	return nil
}

func rowToRecord(row pgx.CollectableRow) (models.RefreshRecord, error) {
	var t models.RefreshRecord
	err := row.Scan(&t.ID, &t.UserID, &t.TokenHash, &t.CreatedAt, &t.ExpiresAt, &t.RevokedAt)
	return t, err
}
