package middleware

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/Mohamedseffine/01Blog/internal/apperrors"
	"github.com/Mohamedseffine/01Blog/internal/handlers/userctx"
	applogger "github.com/Mohamedseffine/01Blog/internal/logger"
	"github.com/Mohamedseffine/01Blog/internal/models"
)

// Allow to use a function as authenticator
// Token is read from Authorization header as is
type authFunc func(ctx context.Context, access string) (models.Identity, error)

func (f authFunc) GetAccessString(r *http.Request) (string, bool) {
	token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
	return token, ok
}

func (f authFunc) Authenticate(ctx context.Context, access string) (models.Identity, error) {
	return f(ctx, access)
}

// Handler writes username of identity or 'anonymous'
var whoami = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
	identity, ok := userctx.FromContext(r.Context())
	if !ok {
		_, _ = w.Write([]byte("anonymous"))
		return
	}
	_, _ = w.Write([]byte(identity.Username))
})

func do(t *testing.T, h http.Handler, access string) (int, string) {
	t.Helper()

	srv := httptest.NewServer(h)
	defer srv.Close()

	req, err := http.NewRequest(http.MethodGet, srv.URL+"/test", nil)
	require.NoError(t, err)
	if access != "" {
		req.Header.Set("Authorization", "Bearer "+access)
	}

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err, "should make request to test server")
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err, "should read response body")
	defer resp.Body.Close() // nolint:errcheck

	return resp.StatusCode, string(body)
}

func TestAuthMiddleware(t *testing.T) {
	alice := models.Identity{UserID: 1, Username: "alice", Role: models.RoleUser}

	auth := authFunc(func(_ context.Context, access string) (models.Identity, error) {
		switch access {
		case "good":
			return alice, nil
		case "banned":
			return models.Identity{}, fmt.Errorf("%w: %w", apperrors.ErrForbidden, apperrors.ErrAccountBanned)
		case "broken":
			return models.Identity{}, errors.New("storage is down")
		default:
			return models.Identity{}, fmt.Errorf("%w: %w", apperrors.ErrUnauthorized, apperrors.ErrTokenMalformed)
		}
	})
	h := AuthMiddleware(auth, applogger.NewNoOpLogger())(whoami)

	tests := []struct {
		name           string
		access         string
		expectedStatus int
		expectedBody   string
	}{
		{
			name:           "auth ok",
			access:         "good",
			expectedStatus: http.StatusOK,
			expectedBody:   "alice",
		},
		{
			name:           "no token is anonymous",
			expectedStatus: http.StatusOK,
			expectedBody:   "anonymous",
		},
		{
			name:           "invalid token",
			access:         "garbage",
			expectedStatus: http.StatusUnauthorized,
			expectedBody:   `{"success": false, "message": "Invalid token"}`,
		},
		{
			name:           "banned account",
			access:         "banned",
			expectedStatus: http.StatusForbidden,
			expectedBody:   `{"success": false, "message": "Account is banned"}`,
		},
		{
			name:           "internal error",
			access:         "broken",
			expectedStatus: http.StatusInternalServerError,
			expectedBody:   `{"success": false, "message": "Internal server error"}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, body := do(t, h, tt.access)

			require.Equalf(t, tt.expectedStatus, status, "not expected code. Body: %s", body)
			if status == http.StatusOK {
				require.Equal(t, tt.expectedBody, body)
			} else {
				require.JSONEq(t, tt.expectedBody, body)
			}
		})
	}
}

func TestRequireAuth(t *testing.T) {
	auth := authFunc(func(context.Context, string) (models.Identity, error) {
		return models.Identity{UserID: 1, Username: "alice", Role: models.RoleUser}, nil
	})
	h := AuthMiddleware(auth, applogger.NewNoOpLogger())(RequireAuth(whoami))

	status, body := do(t, h, "")
	require.Equal(t, http.StatusUnauthorized, status)
	require.JSONEq(t, `{"success": false, "message": "Unauthenticated"}`, body)

	status, body = do(t, h, "good")
	require.Equal(t, http.StatusOK, status)
	require.Equal(t, "alice", body)
}

func TestRequireRole(t *testing.T) {
	auth := authFunc(func(_ context.Context, access string) (models.Identity, error) {
		if access == "admin" {
			return models.Identity{UserID: 1, Username: "root", Role: models.RoleAdmin}, nil
		}
		return models.Identity{UserID: 2, Username: "alice", Role: models.RoleUser}, nil
	})
	h := AuthMiddleware(auth, applogger.NewNoOpLogger())(RequireRole(models.RoleAdmin)(whoami))

	status, body := do(t, h, "admin")
	require.Equal(t, http.StatusOK, status)
	require.Equal(t, "root", body)

	status, body = do(t, h, "user")
	require.Equal(t, http.StatusForbidden, status)
	require.JSONEq(t, `{"success": false, "message": "Access denied"}`, body)

	status, body = do(t, h, "")
	require.Equal(t, http.StatusUnauthorized, status)
	require.JSONEq(t, `{"success": false, "message": "Unauthenticated"}`, body)
}
