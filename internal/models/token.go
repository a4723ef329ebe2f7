package models

import (
	"crypto/subtle"
	"time"

	"github.com/google/uuid"
)

// RefreshRecord is the single live refresh session of a user
// Only the digest of the raw token is stored
type RefreshRecord struct {
	ID        uuid.UUID
	UserID    int64
	TokenHash string
	CreatedAt time.Time
	ExpiresAt time.Time
	RevokedAt *time.Time // nil if record is not revoked
}

func (r RefreshRecord) Revoked() bool {
	return r.RevokedAt != nil
}

func (r RefreshRecord) Expired(now time.Time) bool {
	return !r.ExpiresAt.After(now)
}

// HashMatches compares digests in constant time
func (r RefreshRecord) HashMatches(hash string) bool {
	return subtle.ConstantTimeCompare([]byte(r.TokenHash), []byte(hash)) == 1
}

// Usable reports whether the record may be exchanged for a new pair
func (r RefreshRecord) Usable(now time.Time, hash string) bool {
	return !r.Revoked() && !r.Expired(now) && r.HashMatches(hash)
}

type IssuedToken struct {
	Value     string
	ExpiresAt time.Time
}

// Token pair issued by the auth service
type TokenPair struct {
	Access  IssuedToken
	Refresh IssuedToken
}
