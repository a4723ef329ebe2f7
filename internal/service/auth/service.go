package auth

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/Mohamedseffine/01Blog/internal/apperrors"
	"github.com/Mohamedseffine/01Blog/internal/logger"
	"github.com/Mohamedseffine/01Blog/internal/models"
	"github.com/Mohamedseffine/01Blog/internal/repository"
	"github.com/Mohamedseffine/01Blog/internal/service/auth/tokenmanager"
)

const (
	defaultAccessHeaderName  = "Authorization"
	defaultAccessAuthScheme  = "Bearer"
	defaultRefreshCookieName = "refresh_token"
	defaultRefreshCookiePath = "/auth"
)

type Config struct {
	// Hasher to use during user registration or login process
	// DefaultHasher if not set
	Hasher PasswordHasher

	// NoOp logger if not set
	Logger logger.Logger

	// Where access token is read from: '<AccessAuthScheme> <token>' in AccessHeaderName header
	AccessHeaderName string
	AccessAuthScheme string

	// Refresh token cookie settings
	RefreshCookieName   string
	RefreshCookiePath   string
	RefreshCookieSecure bool
}

// Auth service: issues, rotates and revokes token pairs and authenticates access tokens
type Service struct {
	tokens  *tokenmanager.TokenManager
	storage repository.Storage
	hasher  PasswordHasher
	logger  logger.Logger

	accessHeaderName    string
	accessAuthScheme    string
	refreshCookieName   string
	refreshCookiePath   string
	refreshCookieSecure bool
}

type RegisterParams struct {
	Username string
	Email    string
	Password string
}

func NewService(cfg Config, tokens *tokenmanager.TokenManager, storage repository.Storage) (*Service, error) {
	if tokens == nil || storage == nil {
		return nil, errors.New("token manager and storage must not be nil")
	}

	setDefault := func(field *string, def string) {
		if *field == "" {
			*field = def
		}
	}
	setDefault(&cfg.AccessHeaderName, defaultAccessHeaderName)
	setDefault(&cfg.AccessAuthScheme, defaultAccessAuthScheme)
	setDefault(&cfg.RefreshCookieName, defaultRefreshCookieName)
	setDefault(&cfg.RefreshCookiePath, defaultRefreshCookiePath)

	if cfg.Hasher == nil {
		cfg.Hasher = DefaultHasher
	}
	if cfg.Logger == nil {
		cfg.Logger = logger.NewNoOpLogger()
	}

	return &Service{
		tokens:              tokens,
		storage:             storage,
		hasher:              cfg.Hasher,
		logger:              cfg.Logger,
		accessHeaderName:    cfg.AccessHeaderName,
		accessAuthScheme:    cfg.AccessAuthScheme,
		refreshCookieName:   cfg.RefreshCookieName,
		refreshCookiePath:   cfg.RefreshCookiePath,
		refreshCookieSecure: cfg.RefreshCookieSecure,
	}, nil
}

func unauthorized(cause error) error {
	return fmt.Errorf("%w: %w", apperrors.ErrUnauthorized, cause)
}

// Issue token pair for the user and make the refresh token the only live one
func (s *Service) Issue(ctx context.Context, user models.User) (models.TokenPair, error) {
	return s.issue(ctx, s.storage.Refresh(), user)
}

func (s *Service) issue(ctx context.Context, refreshRepo repository.RefreshTokenRepo, user models.User) (models.TokenPair, error) {
	pair, err := s.mint(user)
	if err != nil {
		return models.TokenPair{}, err
	}

	_, err = refreshRepo.Upsert(ctx, models.RefreshRecord{
		ID:        uuid.New(),
		UserID:    user.ID,
		TokenHash: s.tokens.Digest(pair.Refresh.Value),
		CreatedAt: s.tokens.Now(),
		ExpiresAt: pair.Refresh.ExpiresAt,
	})
	if err != nil {
		return models.TokenPair{}, fmt.Errorf("error while saving refresh token. Err: %w", err)
	}

	return pair, nil
}

func (s *Service) mint(user models.User) (models.TokenPair, error) {
	access, err := s.tokens.IssueAccess(user)
	if err != nil {
		return models.TokenPair{}, err
	}

	refresh, err := s.tokens.IssueOpaque(user.Username)
	if err != nil {
		return models.TokenPair{}, err
	}

	return models.TokenPair{Access: access, Refresh: refresh}, nil
}

// Register user and issue tokens in one transaction
// Has to return apperrors.ErrUserAlreadyExists if username or email is taken
func (s *Service) Register(ctx context.Context, params RegisterParams) (models.TokenPair, error) {
	var pair models.TokenPair

	hash, err := s.hasher.Hash(params.Password)
	if err != nil {
		return pair, fmt.Errorf("can't use this as password, Err: %w", err)
	}

	err = s.storage.InTx(ctx, func(tx repository.Storage) error {
		user, err := tx.User().CreateUser(ctx, repository.CreateUserParams{
			Username:       params.Username,
			Email:          params.Email,
			HashedPassword: hash,
			Role:           models.RoleUser,
		})
		if err != nil {
			return err
		}

		pair, err = s.issue(ctx, tx.Refresh(), user)
		return err
	})
	if err != nil {
		return models.TokenPair{}, err
	}

	return pair, nil
}

// Login with username or email
// Unknown user or wrong password are both apperrors.ErrUnauthorized, banned user is apperrors.ErrForbidden
func (s *Service) Login(ctx context.Context, usernameOrEmail string, password string) (models.TokenPair, error) {
	user, err := s.storage.User().GetUserByLogin(ctx, usernameOrEmail)
	switch {
	case errors.Is(err, apperrors.ErrUserNotFound):
		return models.TokenPair{}, unauthorized(err)
	case err != nil:
		return models.TokenPair{}, err
	}

	if err := s.hasher.Compare(user.HashedPassword, password); err != nil {
		return models.TokenPair{}, unauthorized(errors.New("password does not match"))
	}

	if user.Banned {
		return models.TokenPair{}, fmt.Errorf("%w: %w", apperrors.ErrForbidden, apperrors.ErrAccountBanned)
	}

	return s.Issue(ctx, user)
}

// Exchange refresh token for a new pair. Token may be used only once
// Every rejection is apperrors.ErrUnauthorized wrapping the specific cause
func (s *Service) Rotate(ctx context.Context, refresh string) (models.TokenPair, error) {
	claims, err := s.tokens.VerifyRefresh(refresh)
	if err != nil {
		return models.TokenPair{}, unauthorized(err)
	}

	user, err := s.storage.User().GetUserByUsername(ctx, claims.Subject)
	switch {
	case errors.Is(err, apperrors.ErrUserNotFound):
		return models.TokenPair{}, unauthorized(err)
	case err != nil:
		return models.TokenPair{}, err
	}

	record, err := s.storage.Refresh().GetByUser(ctx, user.ID)
	switch {
	case errors.Is(err, apperrors.ErrRefreshTokenNotFound):
		return models.TokenPair{}, unauthorized(err)
	case err != nil:
		return models.TokenPair{}, err
	}

	now := s.tokens.Now()
	hash := s.tokens.Digest(refresh)

	switch {
	case record.Revoked():
		return models.TokenPair{}, unauthorized(apperrors.ErrRefreshTokenRevoked)
	case record.Expired(now):
		return models.TokenPair{}, unauthorized(apperrors.ErrRefreshTokenExpired)
	case !record.HashMatches(hash):
		s.logger.Warn("refresh token does not match the live one, possible reuse", "user_id", user.ID)
		return models.TokenPair{}, unauthorized(apperrors.ErrRefreshTokenMismatch)
	}

	pair, err := s.mint(user)
	if err != nil {
		return models.TokenPair{}, err
	}

	next := record
	next.TokenHash = s.tokens.Digest(pair.Refresh.Value)
	next.ExpiresAt = pair.Refresh.ExpiresAt

	_, err = s.storage.Refresh().Replace(ctx, hash, next, now)
	switch {
	case errors.Is(err, apperrors.ErrRefreshTokenMismatch):
		s.logger.Warn("refresh token was rotated concurrently", "user_id", user.ID)
		return models.TokenPair{}, unauthorized(err)
	case err != nil:
		return models.TokenPair{}, err
	}

	return pair, nil
}

// Revoke the refresh token if it is the live one
// Best effort: garbage, unknown or already revoked tokens are ignored
func (s *Service) Revoke(ctx context.Context, refresh string) {
	claims, err := s.tokens.VerifyRefresh(refresh)
	if err != nil {
		s.logger.Debug("skip revoke of invalid refresh token", "error", err)
		return
	}

	user, err := s.storage.User().GetUserByUsername(ctx, claims.Subject)
	if err != nil {
		s.logger.Debug("skip revoke, user not loaded", "error", err)
		return
	}

	err = s.storage.Refresh().Revoke(ctx, user.ID, s.tokens.Digest(refresh), s.tokens.Now())
	switch {
	case errors.Is(err, apperrors.ErrRefreshTokenNotFound):
		s.logger.Debug("nothing to revoke", "user_id", user.ID)
	case err != nil:
		s.logger.Warn("refresh token revoke failed", "user_id", user.ID, "error", err)
	}
}

// Authenticate access token against the live account
// Unknown account or account that does not match the token is apperrors.ErrUnauthorized, banned is apperrors.ErrForbidden
func (s *Service) Authenticate(ctx context.Context, access string) (models.Identity, error) {
	claims, err := s.tokens.VerifyAccess(access)
	if err != nil {
		return models.Identity{}, unauthorized(err)
	}

	user, err := s.storage.User().GetUserByUsername(ctx, claims.Subject)
	switch {
	case errors.Is(err, apperrors.ErrUserNotFound):
		return models.Identity{}, unauthorized(err)
	case err != nil:
		return models.Identity{}, err
	}

	if user.ID != claims.UserID {
		return models.Identity{}, unauthorized(errors.New("token subject belongs to other account"))
	}

	if user.Banned {
		return models.Identity{}, fmt.Errorf("%w: %w", apperrors.ErrForbidden, apperrors.ErrAccountBanned)
	}

	return user.Identity(), nil
}
