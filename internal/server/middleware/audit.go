package middleware

import (
	"net/http"

	"github.com/gorilla/mux"

	"bikecare/backend/internal/audit"
)

// Audit records an audit entry after each request that carried a principal. Routes are keyed by
// "METHOD template" (e.g. "POST /api/admin/sessions/sweep"); keys in skip are not audited.
// Best-effort: entries never change the response.
func Audit(trail audit.Trail, skip map[string]bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(rec, r)
			if trail == nil {
				return
			}
			template := routeTemplate(r)
			if skip[r.Method+" "+template] {
				return
			}
			p, ok := PrincipalFrom(r.Context())
			if !ok {
				if p, ok = CookiePrincipalFrom(r.Context()); !ok {
					return
				}
			}
			ar := audit.ParseRoute(r.Method, template)
			trail.Record(r.Context(), audit.Entry{
				UserID:   p.SubjectID,
				Action:   ar.Action,
				Resource: ar.Resource,
				Metadata: map[string]interface{}{"status": rec.status, "source": string(p.Source)},
			})
		})
	}
}

func routeTemplate(r *http.Request) string {
	if route := mux.CurrentRoute(r); route != nil {
		if t, err := route.GetPathTemplate(); err == nil {
			return t
		}
	}
	return r.URL.Path
}
