package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/Mohamedseffine/01Blog/internal/apperrors"
	"github.com/Mohamedseffine/01Blog/internal/handlers/render"
	"github.com/Mohamedseffine/01Blog/internal/handlers/userctx"
	"github.com/Mohamedseffine/01Blog/internal/logger"
)

// Set or clear banned flag of user from path
// Takes effect on the next request of the user, already issued tokens are rejected too
func handleSetBanned(userService userService, banned bool, logger logger.Logger) http.Handler {
	message := "User unbanned successfully"
	if banned {
		message = "User banned successfully"
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userID, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
		if err != nil || userID <= 0 {
			render.ServiceError(w, "Invalid user id", http.StatusBadRequest)
			return
		}

		admin, _ := userctx.FromContext(r.Context())
		if banned && admin.UserID == userID {
			render.ServiceError(w, "You cannot ban yourself", http.StatusForbidden)
			return
		}

		_, err = userService.SetBanned(r.Context(), userID, banned)
		switch {
		case errors.Is(err, apperrors.ErrUserNotFound):
			render.ServiceError(w, "User not found", http.StatusNotFound)
			return
		case err != nil:
			logger.Error("can't change banned flag", "user_id", userID, "banned", banned, "error", err)
			render.ServiceError(w, "Internal server error", http.StatusInternalServerError)
			return
		}

		logger.Info("banned flag changed", "user_id", userID, "banned", banned, "by", admin.UserID)
		render.OK(w, message, nil)
	})
}
