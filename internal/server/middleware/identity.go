package middleware

import (
	"context"
	"errors"
	"net"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"bikecare/backend/internal/cookiesession"
	"bikecare/backend/internal/identity/allowlist"
	identity "bikecare/backend/internal/identity/domain"
)

const bearerPrefix = "bearer "

// CookieSessions looks up the legacy cookie session of a request.
type CookieSessions interface {
	Lookup(ctx context.Context, r *http.Request) (*cookiesession.Session, error)
}

// ResolveIdentity attaches the bearer principal and, independently, the cookie-session principal
// to the request context. It never rejects a request; route guards decide.
// cookies may be nil.
func ResolveIdentity(resolver *Resolver, cookies CookieSessions, admins *allowlist.AdminList, logger *zap.Logger) func(http.Handler) http.Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := WithClientIP(r.Context(), ClientIP(r))
			if p, ok := resolver.Resolve(ctx, ExtractBearer(r)); ok {
				ctx = WithPrincipal(ctx, p)
			}
			if cookies != nil {
				sess, err := cookies.Lookup(ctx, r)
				switch {
				case err == nil:
					ctx = WithCookiePrincipal(ctx, identity.Principal{
						SubjectID: sess.UserID,
						Email:     sess.Email,
						IsAdmin:   sess.IsAdmin || admins.IsAdminEmail(sess.Email),
						Source:    identity.SourceCookieSession,
					})
				case !errors.Is(err, cookiesession.ErrNotFound):
					logger.Warn("cookie session lookup failed", zap.Error(err))
				}
			}
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// ExtractBearer returns the token of an "Authorization: Bearer <token>" header, or "" if the
// header is missing or uses another scheme. The scheme is matched case-insensitively.
func ExtractBearer(r *http.Request) string {
	v := strings.TrimSpace(r.Header.Get("Authorization"))
	if len(v) < len(bearerPrefix) {
		return ""
	}
	if !strings.EqualFold(v[:len(bearerPrefix)], bearerPrefix) {
		return ""
	}
	return strings.TrimSpace(v[len(bearerPrefix):])
}

// ClientIP returns the client IP from X-Forwarded-For, X-Real-IP or RemoteAddr, or "unknown".
func ClientIP(r *http.Request) string {
	if s := strings.TrimSpace(r.Header.Get("X-Forwarded-For")); s != "" {
		if i := strings.Index(s, ","); i > 0 {
			s = strings.TrimSpace(s[:i])
		}
		return s
	}
	if s := strings.TrimSpace(r.Header.Get("X-Real-IP")); s != "" {
		return s
	}
	if r.RemoteAddr != "" {
		if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
			return host
		}
		return r.RemoteAddr
	}
	return "unknown"
}
