package middleware

import (
	"net/http"
	"strings"

	"github.com/flowmesh/dexterity/internal/api/auth"
)

// Auth authenticates requests using API tokens
func Auth(tokenStore auth.TokenStore) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				http.Error(w, `{"error":"missing authorization header"}`, http.StatusUnauthorized)
				return
			}

			// Extract Bearer token
			token := extractBearerToken(authHeader)
			if token == "" {
				http.Error(w, `{"error":"invalid authorization header format"}`, http.StatusUnauthorized)
				return
			}

			// Validate token
			apiToken, err := tokenStore.ValidateToken(token)
			if err != nil {
				http.Error(w, `{"error":"unauthorized"}`, http.StatusUnauthorized)
				return
			}

			ctx := auth.WithAuthContext(r.Context(), auth.NewAuthContext(apiToken))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// System attaches a context granting every permission on site. It stands
// in for Auth when authentication is disabled.
func System(site string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := auth.WithAuthContext(r.Context(), auth.SystemContext(site))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// extractBearerToken extracts the Bearer token from the authorization header
func extractBearerToken(authHeader string) string {
	const bearerPrefix = "Bearer "
	if len(authHeader) < len(bearerPrefix) {
		return ""
	}
	if !strings.HasPrefix(authHeader, bearerPrefix) {
		return ""
	}
	return authHeader[len(bearerPrefix):]
}
