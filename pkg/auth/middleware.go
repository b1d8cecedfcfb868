package auth

import (
	"context"
	"net"
	"net/http"
	"strings"

	"github.com/kcmh-data/sqlbot-engine/pkg/models"
)

type contextKey string

const userContextKey contextKey = "user"

// UserFromContext returns the authenticated caller attached by RequireAuth.
func UserFromContext(ctx context.Context) (*models.UserInfo, bool) {
	u, ok := ctx.Value(userContextKey).(*models.UserInfo)
	return u, ok
}

// WithUser attaches a caller to the context, for handlers and tests.
func WithUser(ctx context.Context, u *models.UserInfo) context.Context {
	return context.WithValue(ctx, userContextKey, u)
}

// RequireAuth resolves the login cookie to a user and attaches it to the
// request context. Requests without a valid cookie get 401.
func RequireAuth(cookies *CookieManager, users *UserStore, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		email, ok := cookies.CurrentUser(r)
		if !ok {
			http.Error(w, `{"error":"authentication required"}`, http.StatusUnauthorized)
			return
		}
		user, ok := users.Lookup(email)
		if !ok {
			http.Error(w, `{"error":"authentication required"}`, http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r.WithContext(WithUser(r.Context(), user)))
	})
}

// ClientIP extracts the caller's IP for the login limiter, honoring the
// first X-Forwarded-For hop when present.
func ClientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		if first := strings.TrimSpace(strings.Split(fwd, ",")[0]); first != "" {
			return first
		}
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
