package auth

import (
	"context"
	"net/http"
	"strings"
)

type authUserKey struct{}

// UserFromContext returns the authenticated user's claims, or nil.
func UserFromContext(ctx context.Context) *Claims {
	if c, ok := ctx.Value(authUserKey{}).(*Claims); ok {
		return c
	}
	return nil
}

// WithClaims returns ctx carrying c.
func WithClaims(ctx context.Context, c *Claims) context.Context {
	return context.WithValue(ctx, authUserKey{}, c)
}

var publicPaths = map[string]bool{
	"/api/v1/auth/login":        true,
	"/api/v1/auth/refresh":      true,
	"/api/v1/auth/logout":       true,
	"/api/v1/auth/setup":        true,
	"/api/v1/auth/setup/status": true,
}

func isRead(method string) bool {
	return method == http.MethodGet || method == http.MethodHead || method == http.MethodOptions
}

// AuthMiddleware validates JWT access tokens on API routes and refuses
// writes from viewers. Non-API paths (healthz, readyz, metrics, swagger)
// and the public auth endpoints pass through.
func AuthMiddleware(tokens *TokenService) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !strings.HasPrefix(r.URL.Path, "/api/") || publicPaths[r.URL.Path] {
				next.ServeHTTP(w, r)
				return
			}
			// The websocket handler authenticates via query parameter.
			if strings.HasPrefix(r.URL.Path, "/api/v1/ws/") {
				next.ServeHTTP(w, r)
				return
			}

			header := r.Header.Get("Authorization")
			raw, ok := strings.CutPrefix(header, "Bearer ")
			if !ok || raw == "" {
				writeAuthError(w, http.StatusUnauthorized, "missing or invalid authorization header")
				return
			}
			claims, err := tokens.ValidateAccessToken(raw)
			if err != nil {
				writeAuthError(w, http.StatusUnauthorized, "invalid or expired access token")
				return
			}
			if !isRead(r.Method) && !Role(claims.Role).CanWrite() {
				writeAuthError(w, http.StatusForbidden, "read-only account")
				return
			}
			next.ServeHTTP(w, r.WithContext(WithClaims(r.Context(), claims)))
		})
	}
}
