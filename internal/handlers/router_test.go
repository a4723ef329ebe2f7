package handlers

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/Mohamedseffine/01Blog/internal/logger"
	"github.com/Mohamedseffine/01Blog/internal/models"
	"github.com/Mohamedseffine/01Blog/internal/ratelimit"
	"github.com/Mohamedseffine/01Blog/internal/repository/memory"
	"github.com/Mohamedseffine/01Blog/internal/service/auth"
	"github.com/Mohamedseffine/01Blog/internal/service/auth/tokenmanager"
	"github.com/Mohamedseffine/01Blog/internal/service/user"
)

const alicePassword = "StrongEnoughPassword"

type testServer struct {
	url   string
	auth  *auth.Service
	users *user.UserService
}

// Run http server with production services on top of memory storage
func newTestServer(t *testing.T) testServer {
	t.Helper()

	hasher := auth.BcryptHasher{Cost: bcrypt.MinCost}
	storage := memory.NewStorage()

	tokens, err := tokenmanager.New(tokenmanager.Config{
		SecretKey:  "test-secret",
		RefreshTTL: 24 * time.Hour,
	})
	require.NoError(t, err, "token manager should be created without errors")

	authService, err := auth.NewService(auth.Config{Hasher: hasher}, tokens, storage)
	require.NoError(t, err, "auth service starting error")
	userService := user.NewService(hasher, storage)

	buckets, err := ratelimit.NewMemoryStore(ratelimit.MemoryConfig{})
	require.NoError(t, err)
	admitter := ratelimit.NewController(ratelimit.DefaultPolicy(), buckets)

	srv := httptest.NewServer(NewRouter(authService, userService, admitter, logger.NewNoOpLogger()))
	t.Cleanup(srv.Close)

	return testServer{url: srv.URL, auth: authService, users: userService}
}

type response struct {
	status  int
	body    string
	cookies []*http.Cookie
}

// Access token from response body
func (r response) accessToken(t *testing.T) string {
	t.Helper()

	var body struct {
		Data struct {
			AccessToken string `json:"accessToken"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(r.body), &body))
	require.NotEmpty(t, body.Data.AccessToken, "access token should be in response body")
	return body.Data.AccessToken
}

func (r response) refreshCookie(t *testing.T) *http.Cookie {
	t.Helper()

	for _, c := range r.cookies {
		if c.Name == "refresh_token" {
			return c
		}
	}
	require.FailNow(t, "refresh cookie not set")
	return nil
}

type requestOption func(r *http.Request)

func withBearer(token string) requestOption {
	return func(r *http.Request) { r.Header.Set("Authorization", "Bearer "+token) }
}

func withRefresh(token string) requestOption {
	return func(r *http.Request) { r.AddCookie(&http.Cookie{Name: "refresh_token", Value: token}) }
}

func (s testServer) do(t *testing.T, method string, path string, body string, opts ...requestOption) response {
	t.Helper()

	req, err := http.NewRequest(method, s.url+path, strings.NewReader(body))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	for _, opt := range opts {
		opt(req)
	}

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()

	return response{status: resp.StatusCode, body: string(data), cookies: resp.Cookies()}
}

func (s testServer) registerAlice(t *testing.T) response {
	t.Helper()

	resp := s.do(t, http.MethodPost, "/auth/register", fmt.Sprintf(`{
		"username": "alice",
		"email": "alice@example.com",
		"password": %q,
		"confirmPassword": %q
	}`, alicePassword, alicePassword))
	require.Equalf(t, http.StatusCreated, resp.status, "not expected code. Body: %s", resp.body)
	return resp
}

func (s testServer) createAdmin(t *testing.T) (models.User, string) {
	t.Helper()

	admin, err := s.users.CreateUser(t.Context(), user.CreateUserParams{
		Username: "root",
		Email:    "root@example.com",
		Password: "AdminPassword1",
		Role:     models.RoleAdmin,
	})
	require.NoError(t, err)

	pair, err := s.auth.Issue(t.Context(), admin)
	require.NoError(t, err)
	return admin, pair.Access.Value
}

func Test_AuthHandlers(t *testing.T) {
	t.Parallel()

	t.Run("register ok", func(t *testing.T) {
		s := newTestServer(t)

		resp := s.registerAlice(t)

		require.JSONEq(t, fmt.Sprintf(`{
			"success": true,
			"message": "User registered successfully",
			"data": {"accessToken": %q}
		}`, resp.accessToken(t)), resp.body)

		cookie := resp.refreshCookie(t)
		require.True(t, cookie.HttpOnly, "refresh cookie should be HttpOnly")
		require.Equal(t, "/auth", cookie.Path, "refresh cookie should be scoped to auth routes")
		require.Equal(t, http.SameSiteLaxMode, cookie.SameSite)
		require.InDelta(t, (24 * time.Hour).Seconds(), cookie.MaxAge, 1, "max age should be refresh TTL with 1 second delta")
		require.NotEmpty(t, cookie.Value)
	})

	t.Run("register user exists", func(t *testing.T) {
		s := newTestServer(t)
		s.registerAlice(t)

		resp := s.do(t, http.MethodPost, "/auth/register", `{
			"username": "alice",
			"email": "other@example.com",
			"password": "StrongEnoughPassword",
			"confirmPassword": "StrongEnoughPassword"
		}`)

		require.Equal(t, http.StatusConflict, resp.status)
		require.JSONEq(t, `{"success": false, "message": "User already exists"}`, resp.body)
		require.Empty(t, resp.cookies, "no cookies should be set on register error")
	})

	t.Run("register validation failed", func(t *testing.T) {
		s := newTestServer(t)

		resp := s.do(t, http.MethodPost, "/auth/register", `{
			"username": "al",
			"email": "not-email",
			"password": "short",
			"confirmPassword": "other"
		}`)

		require.Equal(t, http.StatusBadRequest, resp.status)
		require.JSONEq(t, `{
			"success": false,
			"message": "Request validation failed",
			"fields": {
				"username": "Value is too short (minimum 3)",
				"email": "Email is not valid",
				"password": "Value is too short (minimum 10)",
				"confirmPassword": "Passwords do not match"
			}
		}`, resp.body)
	})

	t.Run("register username with at sign", func(t *testing.T) {
		s := newTestServer(t)

		resp := s.do(t, http.MethodPost, "/auth/register", `{
			"username": "bob@mail.io",
			"email": "bob@example.com",
			"password": "StrongEnoughPassword",
			"confirmPassword": "StrongEnoughPassword"
		}`)

		require.Equal(t, http.StatusBadRequest, resp.status)
		require.JSONEq(t, `{
			"success": false,
			"message": "Request validation failed",
			"fields": {"username": "Value must not contain \"@\""}
		}`, resp.body)
	})

	t.Run("login ok", func(t *testing.T) {
		for _, login := range []string{"alice", "alice@example.com"} {
			t.Run(login, func(t *testing.T) {
				s := newTestServer(t)
				s.registerAlice(t)

				resp := s.do(t, http.MethodPost, "/auth/login",
					fmt.Sprintf(`{"usernameOrEmail": %q, "password": %q}`, login, alicePassword))

				require.Equalf(t, http.StatusOK, resp.status, "not expected code. Body: %s", resp.body)
				require.JSONEq(t, fmt.Sprintf(`{
					"success": true,
					"message": "Login successful",
					"data": {"accessToken": %q}
				}`, resp.accessToken(t)), resp.body)
				require.NotEmpty(t, resp.refreshCookie(t).Value)
			})
		}
	})

	t.Run("login invalid credentials", func(t *testing.T) {
		s := newTestServer(t)
		s.registerAlice(t)

		for _, body := range []string{
			`{"usernameOrEmail": "alice", "password": "WrongPassword"}`,
			`{"usernameOrEmail": "bob", "password": "StrongEnoughPassword"}`,
		} {
			resp := s.do(t, http.MethodPost, "/auth/login", body)

			require.Equal(t, http.StatusUnauthorized, resp.status)
			require.JSONEq(t, `{"success": false, "message": "Invalid credentials"}`, resp.body, "unknown user and wrong password look the same")
			require.Empty(t, resp.cookies)
		}
	})

	t.Run("login banned", func(t *testing.T) {
		s := newTestServer(t)
		s.registerAlice(t)
		alice, err := s.auth.Login(t.Context(), "alice", alicePassword)
		require.NoError(t, err)
		identity, err := s.auth.Authenticate(t.Context(), alice.Access.Value)
		require.NoError(t, err)
		_, err = s.users.SetBanned(t.Context(), identity.UserID, true)
		require.NoError(t, err)

		resp := s.do(t, http.MethodPost, "/auth/login",
			fmt.Sprintf(`{"usernameOrEmail": "alice", "password": %q}`, alicePassword))

		require.Equal(t, http.StatusForbidden, resp.status)
		require.JSONEq(t, `{"success": false, "message": "Account is banned"}`, resp.body)
	})

	t.Run("refresh ok", func(t *testing.T) {
		s := newTestServer(t)
		registered := s.registerAlice(t)
		old := registered.refreshCookie(t).Value

		resp := s.do(t, http.MethodPost, "/auth/refresh", "", withRefresh(old), withBearer("stale-access-token"))

		require.Equalf(t, http.StatusOK, resp.status, "not expected code. Body: %s", resp.body)
		require.JSONEq(t, fmt.Sprintf(`{
			"success": true,
			"message": "Token refreshed",
			"data": {"accessToken": %q}
		}`, resp.accessToken(t)), resp.body)
		require.NotEqual(t, old, resp.refreshCookie(t).Value, "refresh token should be rotated")

		again := s.do(t, http.MethodPost, "/auth/refresh", "", withRefresh(old))
		require.Equal(t, http.StatusUnauthorized, again.status, "used refresh token should not work twice")
		require.JSONEq(t, `{"success": false, "message": "Invalid refresh token"}`, again.body)
	})

	t.Run("refresh missing or invalid", func(t *testing.T) {
		s := newTestServer(t)

		resp := s.do(t, http.MethodPost, "/auth/refresh", "")
		require.Equal(t, http.StatusUnauthorized, resp.status)
		require.JSONEq(t, `{"success": false, "message": "Missing refresh token"}`, resp.body)

		resp = s.do(t, http.MethodPost, "/auth/refresh", "", withRefresh("garbage"))
		require.Equal(t, http.StatusUnauthorized, resp.status)
		require.JSONEq(t, `{"success": false, "message": "Invalid refresh token"}`, resp.body)
	})

	t.Run("logout", func(t *testing.T) {
		s := newTestServer(t)
		refresh := s.registerAlice(t).refreshCookie(t).Value

		resp := s.do(t, http.MethodPost, "/auth/logout", "", withRefresh(refresh))

		require.Equal(t, http.StatusOK, resp.status)
		require.JSONEq(t, `{"success": true, "message": "Logged out successfully"}`, resp.body)
		cleared := resp.refreshCookie(t)
		require.Empty(t, cleared.Value)
		require.Negative(t, cleared.MaxAge, "cookie should be expired")

		after := s.do(t, http.MethodPost, "/auth/refresh", "", withRefresh(refresh))
		require.Equal(t, http.StatusUnauthorized, after.status, "revoked token should not refresh")

		anonymous := s.do(t, http.MethodPost, "/auth/logout", "")
		require.Equal(t, http.StatusOK, anonymous.status, "logout never fails")
	})

	t.Run("me", func(t *testing.T) {
		s := newTestServer(t)
		access := s.registerAlice(t).accessToken(t)

		resp := s.do(t, http.MethodGet, "/auth/me", "", withBearer(access))

		require.Equalf(t, http.StatusOK, resp.status, "not expected code. Body: %s", resp.body)
		require.JSONEq(t, `{
			"success": true,
			"message": "Current user retrieved",
			"data": {"id": 1, "username": "alice", "email": "alice@example.com", "roles": ["USER"]}
		}`, resp.body)
	})

	t.Run("me unauthenticated", func(t *testing.T) {
		s := newTestServer(t)

		resp := s.do(t, http.MethodGet, "/auth/me", "")
		require.Equal(t, http.StatusUnauthorized, resp.status)
		require.JSONEq(t, `{"success": false, "message": "Unauthenticated"}`, resp.body)

		resp = s.do(t, http.MethodGet, "/auth/me", "", withBearer("garbage"))
		require.Equal(t, http.StatusUnauthorized, resp.status)
		require.JSONEq(t, `{"success": false, "message": "Invalid token"}`, resp.body)
	})
}

func Test_AdminHandlers(t *testing.T) {
	t.Parallel()

	t.Run("ban takes effect on issued tokens", func(t *testing.T) {
		s := newTestServer(t)
		aliceAccess := s.registerAlice(t).accessToken(t)
		_, adminAccess := s.createAdmin(t)

		resp := s.do(t, http.MethodPost, "/admin/users/1/ban", "", withBearer(adminAccess))
		require.Equalf(t, http.StatusOK, resp.status, "not expected code. Body: %s", resp.body)
		require.JSONEq(t, `{"success": true, "message": "User banned successfully"}`, resp.body)

		me := s.do(t, http.MethodGet, "/auth/me", "", withBearer(aliceAccess))
		require.Equal(t, http.StatusForbidden, me.status)
		require.JSONEq(t, `{"success": false, "message": "Account is banned"}`, me.body)

		resp = s.do(t, http.MethodPost, "/admin/users/1/unban", "", withBearer(adminAccess))
		require.Equal(t, http.StatusOK, resp.status)
		require.JSONEq(t, `{"success": true, "message": "User unbanned successfully"}`, resp.body)

		me = s.do(t, http.MethodGet, "/auth/me", "", withBearer(aliceAccess))
		require.Equal(t, http.StatusOK, me.status, "unban restores access with the same token")
	})

	t.Run("admin only", func(t *testing.T) {
		s := newTestServer(t)
		aliceAccess := s.registerAlice(t).accessToken(t)

		resp := s.do(t, http.MethodPost, "/admin/users/1/ban", "", withBearer(aliceAccess))
		require.Equal(t, http.StatusForbidden, resp.status)
		require.JSONEq(t, `{"success": false, "message": "Access denied"}`, resp.body)

		resp = s.do(t, http.MethodPost, "/admin/users/1/ban", "")
		require.Equal(t, http.StatusUnauthorized, resp.status)
	})

	t.Run("bad requests", func(t *testing.T) {
		s := newTestServer(t)
		admin, adminAccess := s.createAdmin(t)

		tests := []struct {
			name           string
			path           string
			expectedStatus int
			expectedBody   string
		}{
			{
				name:           "unknown user",
				path:           "/admin/users/999/ban",
				expectedStatus: http.StatusNotFound,
				expectedBody:   `{"success": false, "message": "User not found"}`,
			},
			{
				name:           "invalid id",
				path:           "/admin/users/abc/ban",
				expectedStatus: http.StatusBadRequest,
				expectedBody:   `{"success": false, "message": "Invalid user id"}`,
			},
			{
				name:           "ban yourself",
				path:           fmt.Sprintf("/admin/users/%d/ban", admin.ID),
				expectedStatus: http.StatusForbidden,
				expectedBody:   `{"success": false, "message": "You cannot ban yourself"}`,
			},
		}

		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				resp := s.do(t, http.MethodPost, tt.path, "", withBearer(adminAccess))

				require.Equal(t, tt.expectedStatus, resp.status)
				require.JSONEq(t, tt.expectedBody, resp.body)
			})
		}
	})
}

func Test_RateLimit(t *testing.T) {
	t.Parallel()

	s := newTestServer(t)
	body := `{"usernameOrEmail": "nobody", "password": "WrongPassword"}`

	for i := range 5 {
		resp := s.do(t, http.MethodPost, "/auth/login", body)
		require.Equalf(t, http.StatusUnauthorized, resp.status, "request %d should reach the handler", i+1)
	}

	resp := s.do(t, http.MethodPost, "/auth/login", body)
	require.Equal(t, http.StatusTooManyRequests, resp.status)
	require.JSONEq(t, `{"success": false, "message": "Too many requests"}`, resp.body)

	other := s.do(t, http.MethodPost, "/auth/login", body, func(r *http.Request) {
		r.Header.Set("X-Forwarded-For", "203.0.113.7")
	})
	require.Equal(t, http.StatusUnauthorized, other.status, "other client has own quota")
}
