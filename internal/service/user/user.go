package user

import (
	"context"
	"errors"
	"fmt"

	"github.com/Mohamedseffine/01Blog/internal/apperrors"
	"github.com/Mohamedseffine/01Blog/internal/models"
	"github.com/Mohamedseffine/01Blog/internal/repository"
	"github.com/Mohamedseffine/01Blog/internal/service/auth"
)

var DefaultHasher = auth.DefaultHasher

type UserService struct {
	hasher  auth.PasswordHasher
	storage repository.Storage
}

type CreateUserParams struct {
	Username string
	Email    string
	Password string
	Role     models.Role
}

func NewService(hasher auth.PasswordHasher, storage repository.Storage) *UserService {
	if hasher == nil {
		hasher = DefaultHasher
	}

	return &UserService{
		hasher:  hasher,
		storage: storage,
	}
}

func (s *UserService) CreateUser(ctx context.Context, params CreateUserParams) (models.User, error) {
	var user models.User
	if params.Password == "" {
		return user, errors.New("password must not be empty")
	}

	hash, err := s.hasher.Hash(params.Password)
	if err != nil {
		return user, fmt.Errorf("can't use this as password, Err: %w", err)
	}

	user, err = s.storage.User().CreateUser(ctx, repository.CreateUserParams{
		Username:       params.Username,
		Email:          params.Email,
		HashedPassword: hash,
		Role:           params.Role,
	})
	if err != nil {
		return user, fmt.Errorf("can't create user. Err: %w", err)
	}

	return user, nil
}

func (s *UserService) GetUserByID(ctx context.Context, userID int64) (models.User, error) {
	return s.storage.User().GetUserByID(ctx, userID)
}

// Set or clear banned flag. Access tokens of the user stop working on the next request
func (s *UserService) SetBanned(ctx context.Context, userID int64, banned bool) (models.User, error) {
	user, err := s.storage.User().SetBanned(ctx, userID, banned)
	if err != nil {
		return user, fmt.Errorf("can't update user. Err: %w", err)
	}
	return user, nil
}

// Create admin account if there is no user with such username
// Returns created flag, existing user is returned as is
func (s *UserService) EnsureAdmin(ctx context.Context, username string, email string, password string) (models.User, bool, error) {
	user, err := s.storage.User().GetUserByUsername(ctx, username)
	switch {
	case err == nil:
		return user, false, nil
	case !errors.Is(err, apperrors.ErrUserNotFound):
		return user, false, err
	}

	user, err = s.CreateUser(ctx, CreateUserParams{
		Username: username,
		Email:    email,
		Password: password,
		Role:     models.RoleAdmin,
	})
	if err != nil {
		return user, false, err
	}

	return user, true, nil
}
