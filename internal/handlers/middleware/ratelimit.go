package middleware

import (
	"context"
	"net/http"

	"github.com/Mohamedseffine/01Blog/internal/handlers/render"
)

type admitter interface {
	// Report whether request fits the quota of its client and route
	Admit(ctx context.Context, r *http.Request) (bool, error)
}

// RateLimitMiddleware rejects requests over quota with 429
// If quota can't be checked the request is admitted
func RateLimitMiddleware(a admitter, l warnLogger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ok, err := a.Admit(r.Context(), r)
			if err != nil {
				l.Warn("rate limit check failed, request admitted", "path", r.URL.Path, "error", err)
				ok = true
			}

			if !ok {
				render.ServiceError(w, "Too many requests", http.StatusTooManyRequests)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
