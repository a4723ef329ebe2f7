package handlers

import (
	"context"
	"net/http"

	"github.com/Mohamedseffine/01Blog/internal/handlers/middleware"
	"github.com/Mohamedseffine/01Blog/internal/logger"
	"github.com/Mohamedseffine/01Blog/internal/models"
	"github.com/Mohamedseffine/01Blog/internal/service/auth"
)

// chain applies middlewares in the given order: m1(m2(...(h)))
func chain(h http.Handler, mds ...func(next http.Handler) http.Handler) http.Handler {
	for i := len(mds) - 1; i >= 0; i-- {
		h = mds[i](h)
	}
	return h
}

func NewRouter(
	authService authService,
	userService userService,
	admitter admitter,
	logger logger.Logger,
) http.Handler {
	// Credential routes stay reachable with a stale bearer header, so identity is resolved on protected routes only
	authMiddleware := middleware.AuthMiddleware(authService, logger)
	withAuth := func(h http.Handler) http.Handler {
		return chain(h, authMiddleware, middleware.RequireAuth)
	}
	withAdmin := func(h http.Handler) http.Handler {
		return chain(h, authMiddleware, middleware.RequireRole(models.RoleAdmin))
	}

	mux := http.NewServeMux()

	mux.Handle("POST /auth/register", handleRegister(authService, logger))
	mux.Handle("POST /auth/login", handleLogin(authService, logger))
	mux.Handle("POST /auth/refresh", handleRefresh(authService, logger))
	mux.Handle("POST /auth/logout", handleLogout(authService))
	mux.Handle("GET /auth/me", withAuth(handleMe(userService, logger)))

	mux.Handle("POST /admin/users/{id}/ban", withAdmin(handleSetBanned(userService, true, logger)))
	mux.Handle("POST /admin/users/{id}/unban", withAdmin(handleSetBanned(userService, false, logger)))

	handler := chain(mux,
		middleware.LoggerMiddleware(logger),
		middleware.RateLimitMiddleware(admitter, logger),
	)

	return handler
}

type authService interface {
	// Register user and issue first token pair
	// Has to return apperrors.ErrUserAlreadyExists if username or email is taken
	Register(ctx context.Context, params auth.RegisterParams) (models.TokenPair, error)

	// Login user by username or email
	// Has to return apperrors.ErrUnauthorized for bad credentials and apperrors.ErrForbidden for banned account
	Login(ctx context.Context, usernameOrEmail string, password string) (models.TokenPair, error)

	// Exchange refresh token for new pair, the old one stops working
	// Has to return apperrors.ErrUnauthorized if token can't be exchanged
	Rotate(ctx context.Context, refresh string) (models.TokenPair, error)

	// Revoke refresh token, never fails
	Revoke(ctx context.Context, refresh string)

	// Resolve access token to the live identity
	Authenticate(ctx context.Context, access string) (models.Identity, error)

	// Set auth tokens (access, refresh) to response
	SetTokenPairToResponse(w http.ResponseWriter, pair models.TokenPair)

	// Expire refresh cookie on client
	ClearRefreshCookie(w http.ResponseWriter)

	// Get refresh token from request
	GetRefreshString(r *http.Request) (string, error)

	// Get access token from request
	GetAccessString(r *http.Request) (string, bool)
}

type userService interface {
	// Has to return apperrors.ErrUserNotFound if user does not exist
	GetUserByID(ctx context.Context, userID int64) (models.User, error)

	// Has to return apperrors.ErrUserNotFound if user does not exist
	SetBanned(ctx context.Context, userID int64, banned bool) (models.User, error)
}

type admitter interface {
	Admit(ctx context.Context, r *http.Request) (bool, error)
}
