package middleware

import (
	"net/http"
	"strconv"

	"github.com/AnshRaj112/soconnect-backend/internal/services"
)

// SendRateLimit caps messages per sender using the Redis fixed-window limiter.
// It must run after RequireSession. A nil limiter disables it.
func SendRateLimit(limiter *services.SendLimiter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if limiter == nil {
				next.ServeHTTP(w, r)
				return
			}
			remaining, ok := limiter.Allow(r.Context(), UserCode(r.Context()))
			w.Header().Set("X-RateLimit-Limit", strconv.Itoa(limiter.Limit()))
			w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(remaining))
			if !ok {
				w.Header().Set("Retry-After", strconv.Itoa(int(limiter.Window().Seconds())))
				writeError(w, http.StatusTooManyRequests, "RateLimited", "You are sending messages too quickly. Please wait a moment.")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
