package handler

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"bikecare/backend/internal/apperr"
	auditdomain "bikecare/backend/internal/audit/domain"
	auditrepo "bikecare/backend/internal/audit/repository"
	"bikecare/backend/internal/cookiesession"
	identity "bikecare/backend/internal/identity/domain"
	"bikecare/backend/internal/identity/provider/oauth"
	"bikecare/backend/internal/identity/service"
	"bikecare/backend/internal/platform/rbac"
	"bikecare/backend/internal/security"
	"bikecare/backend/internal/server/middleware"
	sessiondomain "bikecare/backend/internal/session/domain"
	telemetrydomain "bikecare/backend/internal/telemetry/domain"
	userdomain "bikecare/backend/internal/user/domain"
)

const (
	maxBodyBytes      = 1 << 20
	defaultAuditLimit = 50
	maxAuditLimit     = 200
)

// CookieManager issues and clears the legacy cookie session.
type CookieManager interface {
	Create(ctx context.Context, w http.ResponseWriter, userID, email string, isAdmin bool) (*cookiesession.Session, error)
	Destroy(ctx context.Context, w http.ResponseWriter, r *http.Request) error
}

// SessionRevoker deletes a phone session by its bearer token.
type SessionRevoker interface {
	Revoke(ctx context.Context, token string) error
}

// AuditLister pages through the audit log, newest first.
type AuditLister interface {
	List(ctx context.Context, f auditrepo.Filter) ([]*auditdomain.AuditLog, error)
}

// Deps are the collaborators of Handler. Password, Admin and Audit may be nil; their routes then
// answer 404 or are not mounted.
type Deps struct {
	Phone    *service.PhoneAuthService
	OAuth    *service.OAuthService
	Password *service.PasswordLoginService
	Admin    *service.AdminService
	Cookies  CookieManager
	Sessions SessionRevoker
	Audit    AuditLister
	Events   *service.Recorder
	Logger   *zap.Logger
}

// Handler serves the authentication and admin endpoints.
type Handler struct {
	d   Deps
	log *zap.Logger
}

// New returns a Handler.
func New(d Deps) *Handler {
	log := d.Logger
	if log == nil {
		log = zap.NewNop()
	}
	return &Handler{d: d, log: log}
}

// RegisterAuth mounts the public /auth endpoints and the cookie login on r, which is expected to be
// the /api subrouter.
func (h *Handler) RegisterAuth(r *mux.Router) {
	r.HandleFunc("/auth/send-code", h.SendCode).Methods(http.MethodPost)
	r.HandleFunc("/auth/verify-code", h.VerifyCode).Methods(http.MethodPost)
	r.HandleFunc("/auth/oauth/start", h.OAuthStart).Methods(http.MethodGet)
	r.HandleFunc("/auth/oauth/callback", h.OAuthCallback).Methods(http.MethodGet)
	r.HandleFunc("/auth/logout", h.Logout).Methods(http.MethodPost)
	r.Handle("/auth/user", rbac.Authenticated(http.HandlerFunc(h.CurrentUser))).Methods(http.MethodGet)
	r.HandleFunc("/login", h.PasswordLogin).Methods(http.MethodPost)
}

// RegisterAdmin mounts the admin endpoints on r, which must already be guarded by rbac.Admin.
func (h *Handler) RegisterAdmin(r *mux.Router) {
	r.HandleFunc("/me", h.CurrentUser).Methods(http.MethodGet)
	r.HandleFunc("/users/{id}/admin", h.SetAdmin).Methods(http.MethodPut)
	r.HandleFunc("/sessions/sweep", h.Sweep).Methods(http.MethodPost)
	r.HandleFunc("/audit", h.ListAudit).Methods(http.MethodGet)
}

type sendCodeRequest struct {
	PhoneNumber string `json:"phoneNumber"`
}

type sendCodeResponse struct {
	SessionID string `json:"sessionId"`
}

// SendCode handles POST /api/auth/send-code.
func (h *Handler) SendCode(w http.ResponseWriter, r *http.Request) {
	var req sendCodeRequest
	if err := decode(r, &req); err != nil {
		apperr.Write(w, err)
		return
	}
	if strings.TrimSpace(req.PhoneNumber) == "" {
		apperr.Write(w, apperr.New(apperr.InvalidRequest, "phoneNumber is required"))
		return
	}
	id, err := h.d.Phone.SendCode(r.Context(), req.PhoneNumber)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sendCodeResponse{SessionID: id})
}

type verifyCodeRequest struct {
	SessionID string `json:"sessionId"`
	Code      string `json:"code"`
}

type verifyCodeResponse struct {
	Credential             string `json:"credential"`
	SubjectID              string `json:"subjectId"`
	UsesFallbackCredential bool   `json:"usesFallbackCredential"`
}

// VerifyCode handles POST /api/auth/verify-code.
func (h *Handler) VerifyCode(w http.ResponseWriter, r *http.Request) {
	var req verifyCodeRequest
	if err := decode(r, &req); err != nil {
		apperr.Write(w, err)
		return
	}
	if req.SessionID == "" {
		apperr.Write(w, apperr.New(apperr.InvalidRequest, "sessionId is required"))
		return
	}
	res, err := h.d.Phone.VerifyCode(r.Context(), req.SessionID, req.Code)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, verifyCodeResponse{
		Credential:             res.Credential,
		SubjectID:              res.SubjectID,
		UsesFallbackCredential: res.UsesFallback,
	})
}

// OAuthStart handles GET /api/auth/oauth/start by redirecting to the provider.
func (h *Handler) OAuthStart(w http.ResponseWriter, r *http.Request) {
	target, err := h.d.OAuth.Start(r.URL.Query().Get("redirectTarget"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	http.Redirect(w, r, target, http.StatusFound)
}

// OAuthCallback handles GET /api/auth/oauth/callback. Failures redirect to the client callback
// with an error code instead of a credential.
func (h *Handler) OAuthCallback(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	if e := q.Get("error"); e != "" {
		h.log.Info("oauth provider returned error", zap.String("error", e))
		http.Redirect(w, r, h.d.OAuth.FailureURL(string(apperr.InvalidCredential)), http.StatusFound)
		return
	}
	target, err := h.d.OAuth.Callback(r.Context(), q.Get("code"), q.Get("state"))
	if err != nil {
		ae := classify(err)
		if ae.Code == apperr.Internal || ae.Code == apperr.Unavailable {
			h.log.Error("oauth callback failed", zap.Error(err))
		}
		http.Redirect(w, r, h.d.OAuth.FailureURL(string(ae.Code)), http.StatusFound)
		return
	}
	http.Redirect(w, r, target, http.StatusFound)
}

// Logout handles POST /api/auth/logout: clears the cookie session and revokes a presented phone
// session token. Always 204.
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	subject := ""
	if p, err := rbac.RequireAuthenticated(ctx); err == nil {
		subject = p.SubjectID
	}
	if h.d.Cookies != nil {
		if err := h.d.Cookies.Destroy(ctx, w, r); err != nil {
			h.log.Warn("cookie session destroy failed", zap.Error(err))
		}
	}
	if bearer := middleware.ExtractBearer(r); h.d.Sessions != nil && strings.HasPrefix(bearer, sessiondomain.TokenPrefix) {
		if err := h.d.Sessions.Revoke(ctx, bearer); err != nil {
			h.log.Warn("phone session revoke failed", zap.Error(err))
		}
	}
	if subject != "" {
		h.d.Events.Record(ctx, telemetrydomain.EventLogout, subject, "", "success", "session", nil)
	}
	w.WriteHeader(http.StatusNoContent)
}

type principalResponse struct {
	SubjectID string `json:"subjectId"`
	Email     string `json:"email,omitempty"`
	Phone     string `json:"phone,omitempty"`
	IsAdmin   bool   `json:"isAdmin"`
	Source    string `json:"source"`
}

func toPrincipalResponse(p identity.Principal) principalResponse {
	return principalResponse{SubjectID: p.SubjectID, Email: p.Email, Phone: p.Phone, IsAdmin: p.IsAdmin, Source: string(p.Source)}
}

// CurrentUser returns the authenticated principal. Used by GET /api/auth/user and GET /api/admin/me.
func (h *Handler) CurrentUser(w http.ResponseWriter, r *http.Request) {
	p, err := rbac.RequireAuthenticated(r.Context())
	if err != nil {
		apperr.Write(w, apperr.Wrap(apperr.Unauthenticated, err.Error(), err))
		return
	}
	writeJSON(w, http.StatusOK, toPrincipalResponse(p))
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// PasswordLogin handles POST /api/login and sets the cookie session.
func (h *Handler) PasswordLogin(w http.ResponseWriter, r *http.Request) {
	if h.d.Password == nil || h.d.Cookies == nil {
		apperr.Write(w, apperr.New(apperr.NotFound, "not found"))
		return
	}
	var req loginRequest
	if err := decode(r, &req); err != nil {
		apperr.Write(w, err)
		return
	}
	u, isAdmin, err := h.d.Password.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		h.writeError(w, err)
		return
	}
	if _, err := h.d.Cookies.Create(r.Context(), w, u.ID, u.Email, isAdmin); err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, principalResponse{
		SubjectID: u.ID,
		Email:     u.Email,
		IsAdmin:   isAdmin,
		Source:    string(identity.SourceCookieSession),
	})
}

type setAdminRequest struct {
	IsAdmin *bool `json:"isAdmin"`
}

// SetAdmin handles PUT /api/admin/users/{id}/admin.
func (h *Handler) SetAdmin(w http.ResponseWriter, r *http.Request) {
	var req setAdminRequest
	if err := decode(r, &req); err != nil {
		apperr.Write(w, err)
		return
	}
	if req.IsAdmin == nil {
		apperr.Write(w, apperr.New(apperr.InvalidRequest, "isAdmin is required"))
		return
	}
	actor, _ := rbac.RequireAuthenticated(r.Context())
	id := mux.Vars(r)["id"]
	if err := h.d.Admin.SetAdmin(r.Context(), actor.SubjectID, id, *req.IsAdmin); err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"userId": id, "isAdmin": *req.IsAdmin})
}

// Sweep handles POST /api/admin/sessions/sweep.
func (h *Handler) Sweep(w http.ResponseWriter, r *http.Request) {
	res, err := h.d.Admin.Sweep(r.Context())
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// ListAudit handles GET /api/admin/audit?limit=&offset=&user_id=&action=.
func (h *Handler) ListAudit(w http.ResponseWriter, r *http.Request) {
	if h.d.Audit == nil {
		apperr.Write(w, apperr.New(apperr.NotFound, "audit log not enabled"))
		return
	}
	limit, err := queryInt(r, "limit", defaultAuditLimit)
	if err != nil {
		apperr.Write(w, err)
		return
	}
	offset, err := queryInt(r, "offset", 0)
	if err != nil {
		apperr.Write(w, err)
		return
	}
	if limit <= 0 || limit > maxAuditLimit {
		limit = maxAuditLimit
	}
	q := r.URL.Query()
	logs, err := h.d.Audit.List(r.Context(), auditrepo.Filter{
		UserID: strings.TrimSpace(q.Get("user_id")),
		Action: strings.TrimSpace(q.Get("action")),
		Limit:  int32(limit),
		Offset: int32(offset),
	})
	if err != nil {
		h.writeError(w, err)
		return
	}
	if logs == nil {
		logs = []*auditdomain.AuditLog{}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"entries": logs, "limit": limit, "offset": offset})
}

// writeError logs internal failures and writes the classified error.
func (h *Handler) writeError(w http.ResponseWriter, err error) {
	ae := classify(err)
	if ae.Code == apperr.Internal {
		h.log.Error("request failed", zap.Error(err))
	}
	apperr.Write(w, ae)
}

// classify extends apperr.From with the errors of the identity services.
func classify(err error) *apperr.Error {
	switch {
	case errors.Is(err, service.ErrInvalidCredentials):
		return apperr.Wrap(apperr.InvalidCredential, "invalid email or password", err)
	case errors.Is(err, security.ErrInvalidState):
		return apperr.Wrap(apperr.InvalidRequest, "invalid or expired oauth state", err)
	case errors.Is(err, service.ErrMissingCode):
		return apperr.Wrap(apperr.InvalidRequest, "missing authorization code", err)
	case errors.Is(err, oauth.ErrNotConfigured):
		return apperr.Wrap(apperr.ConfigurationError, "oauth provider is not configured", err)
	case errors.Is(err, oauth.ErrExchange), errors.Is(err, oauth.ErrProfile):
		return apperr.Wrap(apperr.InvalidCredential, "oauth sign-in failed", err)
	case errors.Is(err, userdomain.ErrNotFound):
		return apperr.Wrap(apperr.NotFound, "user not found", err)
	}
	return apperr.From(err)
}

func decode(r *http.Request, v interface{}) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	if err := dec.Decode(v); err != nil {
		return apperr.Wrap(apperr.InvalidRequest, "request body must be valid JSON", err)
	}
	return nil
}

func queryInt(r *http.Request, key string, def int) (int, error) {
	v := r.URL.Query().Get(key)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return 0, apperr.New(apperr.InvalidRequest, key+" must be a non-negative integer")
	}
	return n, nil
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v == nil {
		return
	}
	_ = json.NewEncoder(w).Encode(v)
}
