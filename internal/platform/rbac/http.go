package rbac

import (
	"errors"
	"net/http"

	"bikecare/backend/internal/apperr"
	identity "bikecare/backend/internal/identity/domain"
	"bikecare/backend/internal/policy/engine"
	"bikecare/backend/internal/server/middleware"
)

// DeniedFunc is called when an authenticated caller is refused admin access.
type DeniedFunc func(r *http.Request, p identity.Principal)

// Authenticated rejects requests without a principal with 401 UNAUTHENTICATED.
func Authenticated(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, err := RequireAuthenticated(r.Context()); err != nil {
			writeGateError(w, err)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// Admin rejects unauthenticated requests with 401 and non-admins with 403 FORBIDDEN. On success
// the admin principal replaces the one in its context slot. denied may be nil.
func Admin(users UserGetter, policy engine.Evaluator, denied DeniedFunc) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			p, err := RequireAdmin(r.Context(), users, policy)
			if err != nil {
				if errors.Is(err, ErrForbidden) && denied != nil {
					denied(r, p)
				}
				writeGateError(w, err)
				return
			}
			ctx := r.Context()
			if p.Source == identity.SourceCookieSession {
				ctx = middleware.WithCookiePrincipal(ctx, p)
			} else {
				ctx = middleware.WithPrincipal(ctx, p)
			}
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func writeGateError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrUnauthenticated):
		apperr.Write(w, apperr.New(apperr.Unauthenticated, "authentication required"))
	case errors.Is(err, ErrForbidden):
		apperr.Write(w, apperr.New(apperr.Forbidden, "admin access required"))
	default:
		apperr.Write(w, err)
	}
}
