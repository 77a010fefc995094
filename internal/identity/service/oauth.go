package service

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"go.uber.org/zap"

	"bikecare/backend/internal/identity/allowlist"
	identitydomain "bikecare/backend/internal/identity/domain"
	"bikecare/backend/internal/identity/provider/oauth"
	"bikecare/backend/internal/security"
	telemetrydomain "bikecare/backend/internal/telemetry/domain"
	userdomain "bikecare/backend/internal/user/domain"
)

// ErrMissingCode is returned by Callback when the provider did not send an authorization code.
var ErrMissingCode = errors.New("oauth: missing authorization code")

// OAuthProvider is the part of oauth.Client the redirect flow needs.
type OAuthProvider interface {
	Configured() bool
	AuthorizeURL(state string) (string, error)
	Exchange(ctx context.Context, code string) (string, error)
	Profile(ctx context.Context, accessToken string) (*oauth.Profile, error)
}

// StateCodec signs OAuth state values and self-signed credentials.
type StateCodec interface {
	SignState(redirectTarget string) (string, error)
	VerifyState(state string) (string, error)
	Sign(claims security.Claims) (string, error)
}

// OAuthService runs the authorization-code redirect flow and issues a self-signed credential.
type OAuthService struct {
	provider       OAuthProvider
	codec          StateCodec
	users          UserStore
	admins         *allowlist.AdminList
	clientCallback string
	events         *Recorder
	log            *zap.Logger
}

// NewOAuthService returns an OAuthService. clientCallback is the web client URL that receives the
// issued credential.
func NewOAuthService(provider OAuthProvider, codec StateCodec, users UserStore, admins *allowlist.AdminList, clientCallback string, events *Recorder, logger *zap.Logger) *OAuthService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &OAuthService{
		provider:       provider,
		codec:          codec,
		users:          users,
		admins:         admins,
		clientCallback: clientCallback,
		events:         events,
		log:            logger,
	}
}

// ClientCallback returns the web client callback URL.
func (s *OAuthService) ClientCallback() string { return s.clientCallback }

// Start returns the provider authorization URL carrying a signed state for redirectTarget.
func (s *OAuthService) Start(redirectTarget string) (string, error) {
	if !s.provider.Configured() {
		return "", oauth.ErrNotConfigured
	}
	state, err := s.codec.SignState(SafeRedirect(redirectTarget))
	if err != nil {
		return "", fmt.Errorf("oauth: sign state: %w", err)
	}
	return s.provider.AuthorizeURL(state)
}

// Callback completes the flow and returns the client callback URL carrying the credential and the
// original redirect target.
func (s *OAuthService) Callback(ctx context.Context, code, state string) (string, error) {
	target, err := s.codec.VerifyState(state)
	if err != nil {
		return "", err
	}
	if code == "" {
		return "", ErrMissingCode
	}
	accessToken, err := s.provider.Exchange(ctx, code)
	if err != nil {
		return "", err
	}
	profile, err := s.provider.Profile(ctx, accessToken)
	if err != nil {
		return "", err
	}

	userID := profile.Subject
	isAdmin := s.admins.IsAdminEmail(profile.Email)
	if profile.Email != "" {
		// An account seeded or created earlier under this email keeps its id.
		existing, err := s.users.GetByEmail(ctx, profile.Email)
		if err != nil {
			return "", fmt.Errorf("oauth: lookup user: %w", err)
		}
		if existing != nil {
			userID = existing.ID
		}
		if err := s.users.Upsert(ctx, &userdomain.User{
			ID:        userID,
			Email:     profile.Email,
			FirstName: profile.FirstName,
			LastName:  profile.LastName,
			AvatarURL: profile.AvatarURL,
		}); err != nil {
			return "", fmt.Errorf("oauth: record user: %w", err)
		}
		u, err := s.users.GetByID(ctx, userID)
		if err != nil {
			return "", fmt.Errorf("oauth: load user: %w", err)
		}
		if flag, set := u.AdminFlag(); set {
			isAdmin = flag
		}
	} else {
		s.log.Info("oauth profile without email, user not recorded", zap.String("subject", profile.Subject))
	}

	token, err := s.codec.Sign(security.Claims{
		Subject:   userID,
		Email:     profile.Email,
		FirstName: profile.FirstName,
		LastName:  profile.LastName,
		AvatarURL: profile.AvatarURL,
		IsAdmin:   isAdmin,
	})
	if err != nil {
		return "", fmt.Errorf("oauth: sign credential: %w", err)
	}
	s.events.Record(ctx, telemetrydomain.EventOAuthLogin, userID, string(identitydomain.SourceExternalToken), "success", "session", map[string]interface{}{
		"is_admin": isAdmin,
	})
	return s.callbackURL(url.Values{"token": {token}, "redirect": {target}}), nil
}

// FailureURL returns the client callback URL reporting errorCode instead of a credential.
func (s *OAuthService) FailureURL(errorCode string) string {
	return s.callbackURL(url.Values{"error": {errorCode}})
}

func (s *OAuthService) callbackURL(q url.Values) string {
	sep := "?"
	if strings.Contains(s.clientCallback, "?") {
		sep = "&"
	}
	return s.clientCallback + sep + q.Encode()
}

// SafeRedirect returns target if it is a same-origin relative path, otherwise "/".
func SafeRedirect(target string) string {
	if target == "" || !strings.HasPrefix(target, "/") || strings.HasPrefix(target, "//") || strings.Contains(target, "\\") {
		return "/"
	}
	return target
}
