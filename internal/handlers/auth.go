package handlers

import (
	"errors"
	"net/http"

	"github.com/Mohamedseffine/01Blog/internal/apperrors"
	"github.com/Mohamedseffine/01Blog/internal/handlers/render"
	"github.com/Mohamedseffine/01Blog/internal/handlers/userctx"
	"github.com/Mohamedseffine/01Blog/internal/logger"
	"github.com/Mohamedseffine/01Blog/internal/models"
	"github.com/Mohamedseffine/01Blog/internal/service/auth"
)

type tokenResponse struct {
	AccessToken string `json:"accessToken"`
}

func handleRegister(authService authService, logger logger.Logger) http.Handler {
	type request struct {
		Username        string `json:"username" validate:"required,min=3,max=15,excludes=@"`
		Email           string `json:"email" validate:"required,email"`
		Password        string `json:"password" validate:"required,min=10,max=32"`
		ConfirmPassword string `json:"confirmPassword" validate:"required,eqfield=Password"`
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		data, err := render.BindAndValidate[request](w, r)
		if err != nil {
			return
		}

		pair, err := authService.Register(r.Context(), auth.RegisterParams{
			Username: data.Username,
			Email:    data.Email,
			Password: data.Password,
		})
		switch {
		case errors.Is(err, apperrors.ErrUserAlreadyExists):
			render.ServiceError(w, "User already exists", http.StatusConflict)
			return
		case err != nil:
			logger.Error("registration failed", "username", data.Username, "error", err)
			render.ServiceError(w, "Internal server error", http.StatusInternalServerError)
			return
		}

		authService.SetTokenPairToResponse(w, pair)
		render.Success(w, "User registered successfully", tokenResponse{AccessToken: pair.Access.Value}, http.StatusCreated)
	})
}

func handleLogin(authService authService, logger logger.Logger) http.Handler {
	type request struct {
		UsernameOrEmail string `json:"usernameOrEmail" validate:"required"`
		Password        string `json:"password" validate:"required"`
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		data, err := render.BindAndValidate[request](w, r)
		if err != nil {
			return
		}

		pair, err := authService.Login(r.Context(), data.UsernameOrEmail, data.Password)
		switch {
		case errors.Is(err, apperrors.ErrForbidden):
			render.ServiceError(w, "Account is banned", http.StatusForbidden)
			return
		case errors.Is(err, apperrors.ErrUnauthorized):
			render.ServiceError(w, "Invalid credentials", http.StatusUnauthorized)
			return
		case err != nil:
			logger.Error("login failed", "error", err)
			render.ServiceError(w, "Internal server error", http.StatusInternalServerError)
			return
		}

		authService.SetTokenPairToResponse(w, pair)
		render.OK(w, "Login successful", tokenResponse{AccessToken: pair.Access.Value})
	})
}

func handleRefresh(authService authService, logger logger.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		refresh, err := authService.GetRefreshString(r)
		if err != nil {
			render.ServiceError(w, "Missing refresh token", http.StatusUnauthorized)
			return
		}

		pair, err := authService.Rotate(r.Context(), refresh)
		switch {
		case errors.Is(err, apperrors.ErrUnauthorized):
			render.ServiceError(w, "Invalid refresh token", http.StatusUnauthorized)
			return
		case err != nil:
			logger.Error("refresh failed", "error", err)
			render.ServiceError(w, "Internal server error", http.StatusInternalServerError)
			return
		}

		authService.SetTokenPairToResponse(w, pair)
		render.OK(w, "Token refreshed", tokenResponse{AccessToken: pair.Access.Value})
	})
}

func handleLogout(authService authService) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if refresh, err := authService.GetRefreshString(r); err == nil {
			authService.Revoke(r.Context(), refresh)
		}

		authService.ClearRefreshCookie(w)
		render.OK(w, "Logged out successfully", nil)
	})
}

// Current account as stored, the identity only tells whose account it is
func handleMe(userService userService, logger logger.Logger) http.Handler {
	type response struct {
		ID       int64         `json:"id"`
		Username string        `json:"username"`
		Email    string        `json:"email"`
		Roles    []models.Role `json:"roles"`
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		identity, _ := userctx.FromContext(r.Context())

		user, err := userService.GetUserByID(r.Context(), identity.UserID)
		switch {
		case errors.Is(err, apperrors.ErrUserNotFound):
			render.ServiceError(w, "User not found", http.StatusNotFound)
			return
		case err != nil:
			logger.Error("can't load current user", "user_id", identity.UserID, "error", err)
			render.ServiceError(w, "Internal server error", http.StatusInternalServerError)
			return
		}

		render.OK(w, "Current user retrieved", response{
			ID:       user.ID,
			Username: user.Username,
			Email:    user.Email,
			Roles:    []models.Role{user.Role},
		})
	})
}
