package auth

import "context"

type ctxKey struct{}

// WithUsername records the authenticated username on the request context.
func WithUsername(ctx context.Context, username string) context.Context {
	return context.WithValue(ctx, ctxKey{}, username)
}

// UsernameFromContext returns the username stored by WithUsername.
func UsernameFromContext(ctx context.Context) (string, bool) {
	if ctx == nil {
		return "", false
	}
	username, ok := ctx.Value(ctxKey{}).(string)
	return username, ok && username != ""
}
