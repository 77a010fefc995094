package middleware

import (
	"context"

	identity "bikecare/backend/internal/identity/domain"
)

type contextKey struct{ name string }

var (
	principalKey       = contextKey{"principal"}
	cookiePrincipalKey = contextKey{"cookie_principal"}
	clientIPKey        = contextKey{"client_ip"}
)

// WithPrincipal returns a context carrying the bearer-resolved principal.
func WithPrincipal(ctx context.Context, p identity.Principal) context.Context {
	return context.WithValue(ctx, principalKey, p)
}

// PrincipalFrom returns the bearer-resolved principal and true if one was attached.
func PrincipalFrom(ctx context.Context) (identity.Principal, bool) {
	p, ok := ctx.Value(principalKey).(identity.Principal)
	return p, ok
}

// WithCookiePrincipal returns a context carrying the cookie-session principal.
func WithCookiePrincipal(ctx context.Context, p identity.Principal) context.Context {
	return context.WithValue(ctx, cookiePrincipalKey, p)
}

// CookiePrincipalFrom returns the cookie-session principal and true if one was attached.
func CookiePrincipalFrom(ctx context.Context) (identity.Principal, bool) {
	p, ok := ctx.Value(cookiePrincipalKey).(identity.Principal)
	return p, ok
}

// WithClientIP returns a context carrying the caller IP.
func WithClientIP(ctx context.Context, ip string) context.Context {
	return context.WithValue(ctx, clientIPKey, ip)
}

// ClientIPFrom returns the caller IP attached by ResolveIdentity, or "".
func ClientIPFrom(ctx context.Context) string {
	ip, _ := ctx.Value(clientIPKey).(string)
	return ip
}
