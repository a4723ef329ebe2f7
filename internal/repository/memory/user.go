package memory

import (
	"context"
	"time"

	"github.com/Mohamedseffine/01Blog/internal/apperrors"
	"github.com/Mohamedseffine/01Blog/internal/models"
	"github.com/Mohamedseffine/01Blog/internal/repository"
)

type UserRepo struct {
	state   *state
	journal *journal
}

func (r *UserRepo) CreateUser(ctx context.Context, arg repository.CreateUserParams) (models.User, error) {
	r.state.mu.Lock()
	defer r.state.mu.Unlock()

	for _, u := range r.state.users {
		if u.Username == arg.Username || u.Email == arg.Email {
			return models.User{}, apperrors.ErrUserAlreadyExists
		}
	}

	role := arg.Role
	if role == "" {
		role = models.RoleUser
	}

	r.state.lastUserID++
	user := models.User{
		ID:             r.state.lastUserID,
		CreatedAt:      time.Now(),
		Username:       arg.Username,
		Email:          arg.Email,
		HashedPassword: arg.HashedPassword,
		Role:           role,
	}
	r.state.users[user.ID] = user
	r.journal.record(func(s *state) { delete(s.users, user.ID) })

	return user, nil
}

func (r *UserRepo) GetUserByID(ctx context.Context, userID int64) (models.User, error) {
	r.state.mu.Lock()
	defer r.state.mu.Unlock()

	user, ok := r.state.users[userID]
	if !ok {
		return models.User{}, apperrors.ErrUserNotFound
	}
	return user, nil
}

func (r *UserRepo) GetUserByUsername(ctx context.Context, username string) (models.User, error) {
	return r.find(func(u models.User) bool { return u.Username == username })
}

// Email match wins when one user's username equals other user's email
func (r *UserRepo) GetUserByLogin(ctx context.Context, usernameOrEmail string) (models.User, error) {
	user, err := r.find(func(u models.User) bool { return u.Email == usernameOrEmail })
	if err == nil {
		return user, nil
	}
	return r.find(func(u models.User) bool { return u.Username == usernameOrEmail })
}

func (r *UserRepo) SetBanned(ctx context.Context, userID int64, banned bool) (models.User, error) {
	r.state.mu.Lock()
	defer r.state.mu.Unlock()

	user, ok := r.state.users[userID]
	if !ok {
		return models.User{}, apperrors.ErrUserNotFound
	}

	prev := user
	user.Banned = banned
	r.state.users[userID] = user
	r.journal.record(func(s *state) { s.users[userID] = prev })

	return user, nil
}

func (r *UserRepo) find(match func(models.User) bool) (models.User, error) {
	r.state.mu.Lock()
	defer r.state.mu.Unlock()

	for _, u := range r.state.users {
		if match(u) {
			return u, nil
		}
	}
	return models.User{}, apperrors.ErrUserNotFound
}
