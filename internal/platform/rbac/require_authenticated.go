package rbac

import (
	"context"
	"errors"

	identity "bikecare/backend/internal/identity/domain"
	"bikecare/backend/internal/server/middleware"
)

var (
	// ErrUnauthenticated means no usable credential was presented.
	ErrUnauthenticated = errors.New("authentication required")
	// ErrForbidden means the caller is authenticated but is not an administrator.
	ErrForbidden = errors.New("admin access required")
)

// RequireAuthenticated returns the bearer principal, else the cookie-session principal.
// Returns ErrUnauthenticated when neither was resolved.
func RequireAuthenticated(ctx context.Context) (identity.Principal, error) {
	if p, ok := middleware.PrincipalFrom(ctx); ok && p.Valid() {
		return p, nil
	}
	if p, ok := middleware.CookiePrincipalFrom(ctx); ok && p.Valid() {
		return p, nil
	}
	return identity.Principal{}, ErrUnauthenticated
}

// candidates returns the resolved principals, bearer first.
func candidates(ctx context.Context) []identity.Principal {
	var out []identity.Principal
	if p, ok := middleware.PrincipalFrom(ctx); ok && p.Valid() {
		out = append(out, p)
	}
	if p, ok := middleware.CookiePrincipalFrom(ctx); ok && p.Valid() {
		out = append(out, p)
	}
	return out
}
