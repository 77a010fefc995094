package server

import (
	"net/http"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"bikecare/backend/internal/apperr"
	"bikecare/backend/internal/audit"
	healthhandler "bikecare/backend/internal/health/handler"
	"bikecare/backend/internal/identity/allowlist"
	identity "bikecare/backend/internal/identity/domain"
	identityhandler "bikecare/backend/internal/identity/handler"
	"bikecare/backend/internal/identity/service"
	"bikecare/backend/internal/platform/rbac"
	"bikecare/backend/internal/policy/engine"
	"bikecare/backend/internal/server/middleware"
	telemetrydomain "bikecare/backend/internal/telemetry/domain"
)

// MarketplacePrefixes are the collaborator APIs mounted behind the authentication gate. They are
// served by other deployments; this router only guards them.
var MarketplacePrefixes = []string{"/bookings", "/catalog", "/payments", "/uploads", "/invoices"}

// Deps holds the collaborators of the HTTP router.
type Deps struct {
	// Auth serves /api/auth, /api/login and /api/admin.
	Auth *identityhandler.Handler
	// Health serves /health and /ready. If nil, both routes are omitted.
	Health *healthhandler.Handler
	// Resolver turns bearer credentials into principals.
	Resolver *middleware.Resolver
	// Cookies looks up the legacy cookie session. May be nil.
	Cookies middleware.CookieSessions
	Admins  *allowlist.AdminList
	// Users is consulted by the admin gate for the persisted admin flag.
	Users rbac.UserGetter
	// Policy decides admin access. Nil uses the built-in rule.
	Policy engine.Evaluator
	// Audit records admin requests. May be nil.
	Audit audit.Trail
	// Events records denied admin attempts. May be nil.
	Events *service.Recorder
	Logger *zap.Logger
	// Marketplace, if set, serves the marketplace prefixes after authentication. Nil answers 404.
	Marketplace http.Handler
}

// auditedElsewhere are admin routes whose service already records a richer event.
var auditedElsewhere = map[string]bool{
	"PUT /api/admin/users/{id}/admin": true,
}

// NewRouter returns the HTTP handler for the API.
//
// Route map:
//   - /health, /ready                 → internal/health/handler
//   - /api/auth/*, /api/login         → internal/identity/handler (public)
//   - /api/admin/*                    → internal/identity/handler behind rbac.Admin
//   - /api/{bookings,catalog,...}     → Marketplace behind rbac.Authenticated
func NewRouter(d Deps) *mux.Router {
	logger := d.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	r := mux.NewRouter()
	r.Use(middleware.Telemetry())
	r.Use(middleware.SecurityHeaders)
	r.Use(middleware.ResolveIdentity(d.Resolver, d.Cookies, d.Admins, logger))
	r.Use(middleware.RequestLogger(logger))

	if d.Health != nil {
		r.HandleFunc("/health", d.Health.Live).Methods(http.MethodGet)
		r.HandleFunc("/ready", d.Health.Ready).Methods(http.MethodGet)
	}

	api := r.PathPrefix("/api").Subrouter()
	d.Auth.RegisterAuth(api)

	admin := api.PathPrefix("/admin").Subrouter()
	admin.Use(rbac.Admin(d.Users, d.Policy, deniedHook(d.Events, logger)))
	admin.Use(middleware.Audit(d.Audit, auditedElsewhere))
	d.Auth.RegisterAdmin(admin)

	market := d.Marketplace
	if market == nil {
		market = http.HandlerFunc(notServed)
	}
	for _, prefix := range MarketplacePrefixes {
		api.PathPrefix(prefix).Handler(rbac.Authenticated(market))
	}

	r.NotFoundHandler = http.HandlerFunc(notServed)
	return r
}

func deniedHook(events *service.Recorder, logger *zap.Logger) rbac.DeniedFunc {
	return func(r *http.Request, p identity.Principal) {
		logger.Info("admin access denied",
			zap.String("subject", p.SubjectID),
			zap.String("source", string(p.Source)),
			zap.String("path", r.URL.Path))
		events.Record(r.Context(), telemetrydomain.EventAdminDenied, p.SubjectID, string(p.Source), "denied", "admin", map[string]interface{}{
			"path": r.URL.Path,
		})
	}
}

func notServed(w http.ResponseWriter, r *http.Request) {
	apperr.Write(w, apperr.New(apperr.NotFound, "not found"))
}
