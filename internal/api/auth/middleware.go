package auth

import "context"

// Context key for auth context
type contextKey string

const authContextKey contextKey = "auth_context"

// WithAuthContext attaches an AuthContext to a context
func WithAuthContext(ctx context.Context, authCtx *AuthContext) context.Context {
	return context.WithValue(ctx, authContextKey, authCtx)
}

// FromContext extracts an AuthContext from a context
func FromContext(ctx context.Context) (*AuthContext, bool) {
	authCtx, ok := ctx.Value(authContextKey).(*AuthContext)
	return authCtx, ok
}
