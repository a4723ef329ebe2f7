package memory

import (
	"context"
	"time"

	"github.com/Mohamedseffine/01Blog/internal/apperrors"
	"github.com/Mohamedseffine/01Blog/internal/models"
)

// RefreshTokenRepo keeps one record per user
// Every method holds the state lock, so Replace is a compare-and-swap
type RefreshTokenRepo struct {
	state   *state
	journal *journal
}

// Undo step that puts back the record of user as it is now
func restoreRefresh(s *state, userID int64) func(s *state) {
	prev, existed := s.refresh[userID]
	return func(s *state) {
		if existed {
			s.refresh[userID] = prev
		} else {
			delete(s.refresh, userID)
		}
	}
}

func (r *RefreshTokenRepo) Upsert(ctx context.Context, record models.RefreshRecord) (models.RefreshRecord, error) {
	r.state.mu.Lock()
	defer r.state.mu.Unlock()

	r.journal.record(restoreRefresh(r.state, record.UserID))
	if current, ok := r.state.refresh[record.UserID]; ok {
		record.ID = current.ID
		record.CreatedAt = current.CreatedAt
	}
	record.RevokedAt = nil
	r.state.refresh[record.UserID] = record

	return record, nil
}

func (r *RefreshTokenRepo) GetByUser(ctx context.Context, userID int64) (models.RefreshRecord, error) {
	r.state.mu.Lock()
	defer r.state.mu.Unlock()

	record, ok := r.state.refresh[userID]
	if !ok {
		return models.RefreshRecord{}, apperrors.ErrRefreshTokenNotFound
	}
	return record, nil
}

func (r *RefreshTokenRepo) Replace(ctx context.Context, oldHash string, next models.RefreshRecord, now time.Time) (models.RefreshRecord, error) {
	r.state.mu.Lock()
	defer r.state.mu.Unlock()

	current, ok := r.state.refresh[next.UserID]
	if !ok || !current.Usable(now, oldHash) {
		return models.RefreshRecord{}, apperrors.ErrRefreshTokenMismatch
	}

	r.journal.record(restoreRefresh(r.state, next.UserID))
	current.TokenHash = next.TokenHash
	current.ExpiresAt = next.ExpiresAt
	current.RevokedAt = nil
	r.state.refresh[next.UserID] = current

	return current, nil
}

func (r *RefreshTokenRepo) Revoke(ctx context.Context, userID int64, hash string, now time.Time) error {
	r.state.mu.Lock()
	defer r.state.mu.Unlock()

	current, ok := r.state.refresh[userID]
	if !ok || current.Revoked() || !current.HashMatches(hash) {
		return apperrors.ErrRefreshTokenNotFound
	}

	r.journal.record(restoreRefresh(r.state, userID))
	current.RevokedAt = &now
	r.state.refresh[userID] = current

	return nil
}
