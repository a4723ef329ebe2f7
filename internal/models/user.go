package models

import (
	"fmt"
	"strings"
	"time"

	"github.com/Mohamedseffine/01Blog/internal/apperrors"
)

// Role is a privilege tag carried in access tokens
// It is not enforced by the token core itself
type Role string

const (
	RoleUser  Role = "USER"
	RoleAdmin Role = "ADMIN"
)

func (r Role) Valid() bool {
	switch r {
	case RoleUser, RoleAdmin:
		return true
	default:
		return false
	}
}

func (r Role) String() string {
	return string(r)
}

// ParseRole accepts role names in any case
func ParseRole(value string) (Role, error) {
	r := Role(strings.ToUpper(strings.TrimSpace(value)))
	if !r.Valid() {
		return "", fmt.Errorf("%w: %q", apperrors.ErrInvalidRole, value)
	}
	return r, nil
}

// UnmarshalText rejects unknown roles, so a typo never becomes a privilege state
func (r *Role) UnmarshalText(text []byte) error {
	parsed, err := ParseRole(string(text))
	if err != nil {
		return err
	}
	*r = parsed
	return nil
}

type User struct {
	ID             int64
	CreatedAt      time.Time
	Username       string
	Email          string
	HashedPassword string
	Role           Role
	Banned         bool
}

// Identity resolved for an authenticated request
type Identity struct {
	UserID   int64
	Username string
	Email    string
	Role     Role
}

func (u User) Identity() Identity {
	return Identity{
		UserID:   u.ID,
		Username: u.Username,
		Email:    u.Email,
		Role:     u.Role,
	}
}
