package middleware

import (
	"context"
	"crypto/subtle"
	"errors"
	"net/http"
	"strings"

	"github.com/AnshRaj112/soconnect-backend/internal/models"
)

type contextKey string

const (
	userCodeKey     contextKey = "user_code"
	sessionTokenKey contextKey = "session_token"
)

// Authorizer resolves a session token to a user code.
type Authorizer interface {
	Authorize(ctx context.Context, token string) (string, error)
}

// WithSession stores the authenticated user code and token on ctx.
func WithSession(ctx context.Context, code, token string) context.Context {
	ctx = context.WithValue(ctx, userCodeKey, code)
	return context.WithValue(ctx, sessionTokenKey, token)
}

// UserCode returns the authenticated user code, or "" outside RequireSession.
func UserCode(ctx context.Context) string {
	code, _ := ctx.Value(userCodeKey).(string)
	return code
}

// SessionToken returns the token the request was authenticated with.
func SessionToken(ctx context.Context) string {
	token, _ := ctx.Value(sessionTokenKey).(string)
	return token
}

// BearerToken extracts the token from "Authorization: Bearer <token>".
func BearerToken(r *http.Request) string {
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	if len(header) < 7 || !strings.EqualFold(header[:7], "bearer ") {
		return ""
	}
	return strings.TrimSpace(header[7:])
}

// RequireSession rejects requests without a valid session with 401. Clients
// treat a 401 as a forced logout.
func RequireSession(auth Authorizer) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := BearerToken(r)
			if token == "" {
				// Browser WebSocket clients cannot set headers.
				token = r.URL.Query().Get("token")
			}

			code, err := auth.Authorize(r.Context(), token)
			switch {
			case err == nil:
				next.ServeHTTP(w, r.WithContext(WithSession(r.Context(), code, token)))
			case errors.Is(err, models.ErrTransient):
				writeError(w, http.StatusServiceUnavailable, "TryAgain", "Temporary failure, please try again.")
			default:
				writeError(w, http.StatusUnauthorized, "Unauthenticated", "Session is missing or expired. Please log in again.")
			}
		})
	}
}

// RequireAdmin checks the X-Admin-Token header against token. An empty token
// disables every route behind it.
func RequireAdmin(token string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			given := r.Header.Get("X-Admin-Token")
			if token == "" || subtle.ConstantTimeCompare([]byte(given), []byte(token)) != 1 {
				writeError(w, http.StatusUnauthorized, "Unauthenticated", "Admin authentication required.")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
