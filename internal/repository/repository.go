package repository

import (
	"context"
	"time"

	"github.com/Mohamedseffine/01Blog/internal/models"
)

type CreateUserParams struct {
	Username       string
	Email          string
	HashedPassword string
	Role           models.Role
}

// User repository interface
type UserRepo interface {
	// Create user
	// If user with username or email exists already has to return error apperrors.ErrUserAlreadyExists
	CreateUser(ctx context.Context, arg CreateUserParams) (models.User, error)

	// Get user by it's id, username or login (username or email)
	// If user not found must return apperrors.ErrUserNotFound
	GetUserByID(ctx context.Context, userID int64) (models.User, error)
	GetUserByUsername(ctx context.Context, username string) (models.User, error)
	GetUserByLogin(ctx context.Context, usernameOrEmail string) (models.User, error)

	// Set banned flag, return updated user
	SetBanned(ctx context.Context, userID int64, banned bool) (models.User, error)
}

// RefreshToken repository interface
// There is at most one record per user
type RefreshTokenRepo interface {
	// Create the user record or overwrite the existing one: hash, expiry and revocation are replaced,
	// creation time stays the same
	Upsert(ctx context.Context, record models.RefreshRecord) (models.RefreshRecord, error)

	// Return the user record even if it is expired or revoked
	// If there is no record must return apperrors.ErrRefreshTokenNotFound
	GetByUser(ctx context.Context, userID int64) (models.RefreshRecord, error)

	// Replace the live record hash only if it still equals oldHash
	// Must be applied atomically: of concurrent callers with the same oldHash only one succeeds,
	// others get apperrors.ErrRefreshTokenMismatch
	Replace(ctx context.Context, oldHash string, next models.RefreshRecord, now time.Time) (models.RefreshRecord, error)

	// Mark the live record with the hash as revoked
	// If no such live record must return apperrors.ErrRefreshTokenNotFound
	Revoke(ctx context.Context, userID int64, hash string, now time.Time) error
}

type Storage interface {
	User() UserRepo
	Refresh() RefreshTokenRepo

	// Run fn in transaction: commit if fn returns nil, rollback otherwise
	InTx(ctx context.Context, fn func(Storage) error) error
}
