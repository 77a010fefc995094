package middleware

import (
	"context"
	"errors"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"

	"bikecare/backend/internal/identity/allowlist"
	identity "bikecare/backend/internal/identity/domain"
	"bikecare/backend/internal/identity/provider/firebase"
	"bikecare/backend/internal/security"
	"bikecare/backend/internal/session"
	sessiondomain "bikecare/backend/internal/session/domain"
)

const instrumentationName = "bikecare/server/middleware"

// PhoneSessions resolves durable phone session tokens.
type PhoneSessions interface {
	Resolve(ctx context.Context, token string) (*sessiondomain.PhoneSession, error)
}

// IDTokenVerifier verifies provider-issued ID tokens.
type IDTokenVerifier interface {
	Verify(ctx context.Context, idToken string) (*firebase.Identity, error)
}

// CredentialVerifier verifies self-signed credentials.
type CredentialVerifier interface {
	Verify(token string) (*security.Claims, bool)
}

// ResolverConfig wires a Resolver. Firebase may be nil when no provider project is configured.
type ResolverConfig struct {
	Sessions PhoneSessions
	Firebase IDTokenVerifier
	Codec    CredentialVerifier
	Admins   *allowlist.AdminList
	Logger   *zap.Logger
	Meter    metric.Meter
}

// Resolver turns a bearer value into a Principal.
type Resolver struct {
	sessions PhoneSessions
	firebase IDTokenVerifier
	codec    CredentialVerifier
	admins   *allowlist.AdminList
	log      *zap.Logger
	resolved metric.Int64Counter
}

// NewResolver returns a Resolver. A nil Meter uses the global meter provider.
func NewResolver(cfg ResolverConfig) *Resolver {
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	if cfg.Meter == nil {
		cfg.Meter = otel.Meter(instrumentationName)
	}
	counter, err := cfg.Meter.Int64Counter("auth.resolutions",
		metric.WithDescription("Bearer credential resolutions by outcome and source"))
	if err != nil {
		cfg.Logger.Warn("create resolution counter", zap.Error(err))
	}
	return &Resolver{
		sessions: cfg.Sessions,
		firebase: cfg.Firebase,
		codec:    cfg.Codec,
		admins:   cfg.Admins,
		log:      cfg.Logger,
		resolved: counter,
	}
}

// Resolve classifies bearer and evaluates exactly that classification. It never returns an
// error: a credential that cannot be resolved yields (Principal{}, false).
func (r *Resolver) Resolve(ctx context.Context, bearer string) (identity.Principal, bool) {
	var (
		p  identity.Principal
		ok bool
	)
	switch c := Classify(bearer).(type) {
	case NoCredential:
		return identity.Principal{}, false
	case PhoneSessionCredential:
		p, ok = r.resolvePhoneSession(ctx, c)
	case LegacyPhoneCredential:
		p, ok = r.resolveLegacy(c)
	case ExternalCredential:
		p, ok = r.resolveExternal(ctx, c)
	}
	r.count(ctx, p, ok)
	return p, ok
}

func (r *Resolver) resolvePhoneSession(ctx context.Context, c PhoneSessionCredential) (identity.Principal, bool) {
	if r.sessions == nil {
		return identity.Principal{}, false
	}
	sess, err := r.sessions.Resolve(ctx, c.Token)
	if err != nil {
		if !errors.Is(err, session.ErrNotFound) {
			r.log.Warn("phone session lookup failed", zap.Error(err))
		}
		return identity.Principal{}, false
	}
	return identity.Principal{
		SubjectID: sess.UserID,
		Phone:     sess.Phone,
		IsAdmin:   r.admins.IsAdminPhone(sess.Phone),
		Source:    identity.SourcePhoneSession,
	}, true
}

func (r *Resolver) resolveLegacy(c LegacyPhoneCredential) (identity.Principal, bool) {
	if c.Digits == "" {
		return identity.Principal{}, false
	}
	return identity.Principal{
		SubjectID: c.Token,
		Phone:     c.Digits,
		IsAdmin:   r.admins.IsAdminPhone(c.Digits),
		Source:    identity.SourceLegacyPhoneToken,
	}, true
}

// resolveExternal tries the provider first, then the local codec.
func (r *Resolver) resolveExternal(ctx context.Context, c ExternalCredential) (identity.Principal, bool) {
	if r.firebase != nil {
		id, err := r.firebase.Verify(ctx, c.Raw)
		if err == nil {
			return identity.Principal{
				SubjectID: id.UID,
				Email:     id.Email,
				Phone:     id.Phone,
				IsAdmin:   id.AdminClaim || r.admins.IsAdminEmail(id.Email),
				Source:    identity.SourceExternalToken,
			}, true
		}
		r.log.Debug("provider token rejected", zap.Error(err))
	}
	if r.codec == nil {
		return identity.Principal{}, false
	}
	claims, ok := r.codec.Verify(c.Raw)
	if !ok {
		return identity.Principal{}, false
	}
	return identity.Principal{
		SubjectID: claims.Subject,
		Email:     claims.Email,
		IsAdmin:   claims.IsAdmin || r.admins.IsAdminEmail(claims.Email),
		Source:    identity.SourceExternalToken,
	}, true
}

func (r *Resolver) count(ctx context.Context, p identity.Principal, ok bool) {
	if r.resolved == nil {
		return
	}
	source := "none"
	if ok {
		source = string(p.Source)
	}
	r.resolved.Add(ctx, 1, metric.WithAttributes(
		attribute.String("source", source),
		attribute.Bool("resolved", ok),
	))
}
