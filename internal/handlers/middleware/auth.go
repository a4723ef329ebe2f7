package middleware

import (
	"context"
	"errors"
	"net/http"

	"github.com/Mohamedseffine/01Blog/internal/apperrors"
	"github.com/Mohamedseffine/01Blog/internal/handlers/render"
	"github.com/Mohamedseffine/01Blog/internal/handlers/userctx"
	"github.com/Mohamedseffine/01Blog/internal/models"
)

type warnLogger interface {
	Warn(msg string, args ...any)
}

type authenticator interface {
	// Access token from request, false if request carries none
	GetAccessString(r *http.Request) (string, bool)

	// Resolve access token to the live identity
	// Has to return apperrors.ErrUnauthorized or apperrors.ErrForbidden for rejected tokens
	Authenticate(ctx context.Context, access string) (models.Identity, error)
}

// AuthMiddleware puts identity of the bearer into request context
// Requests without bearer token pass through anonymous, protected routes are guarded by RequireAuth
func AuthMiddleware(a authenticator, l warnLogger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			access, ok := a.GetAccessString(r)
			if !ok {
				next.ServeHTTP(w, r)
				return
			}

			identity, err := a.Authenticate(r.Context(), access)
			switch {
			case errors.Is(err, apperrors.ErrForbidden):
				render.ServiceError(w, "Account is banned", http.StatusForbidden)
				return
			case errors.Is(err, apperrors.ErrUnauthorized):
				render.ServiceError(w, "Invalid token", http.StatusUnauthorized)
				return
			case err != nil:
				l.Warn("authentication failed", "error", err)
				render.ServiceError(w, "Internal server error", http.StatusInternalServerError)
				return
			}

			next.ServeHTTP(w, r.WithContext(userctx.New(r.Context(), identity)))
		})
	}
}

// RequireAuth rejects anonymous requests
func RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := userctx.FromContext(r.Context()); !ok {
			render.ServiceError(w, "Unauthenticated", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// RequireRole rejects requests of identities without the role
func RequireRole(role models.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			identity, ok := userctx.FromContext(r.Context())
			switch {
			case !ok:
				render.ServiceError(w, "Unauthenticated", http.StatusUnauthorized)
				return
			case identity.Role != role:
				render.ServiceError(w, "Access denied", http.StatusForbidden)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
