package service

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"bikecare/backend/internal/identity/allowlist"
	identitydomain "bikecare/backend/internal/identity/domain"
	"bikecare/backend/internal/otp"
	"bikecare/backend/internal/platform/phone"
	sessiondomain "bikecare/backend/internal/session/domain"
	telemetrydomain "bikecare/backend/internal/telemetry/domain"
	userdomain "bikecare/backend/internal/user/domain"
)

// OTPService is the part of otp.Service the phone flow needs.
type OTPService interface {
	CreateSession(ctx context.Context, rawPhone string) (otp.Issued, error)
	VerifySession(ctx context.Context, sessionID, code string) (string, error)
}

// UserStore is the minimal user repository needed by the identity services.
type UserStore interface {
	GetByID(ctx context.Context, id string) (*userdomain.User, error)
	GetByEmail(ctx context.Context, email string) (*userdomain.User, error)
	Upsert(ctx context.Context, u *userdomain.User) error
}

// PhoneSessionIssuer creates durable phone sessions.
type PhoneSessionIssuer interface {
	Create(ctx context.Context, userID, phone string) (string, *sessiondomain.PhoneSession, error)
}

// CustomTokenMinter mints provider custom tokens.
type CustomTokenMinter interface {
	MintCustomToken(uid string, claims map[string]interface{}) (string, error)
}

// VerifyResult is the outcome of a successful verify-code.
type VerifyResult struct {
	Credential   string
	SubjectID    string
	UsesFallback bool
}

// PhoneAuthService runs send-code and verify-code and issues the resulting credential.
type PhoneAuthService struct {
	otp      OTPService
	users    UserStore
	sessions PhoneSessionIssuer
	minter   CustomTokenMinter
	admins   *allowlist.AdminList
	events   *Recorder
	log      *zap.Logger
}

// NewPhoneAuthService returns a PhoneAuthService. minter may be nil; verified phones then always
// receive a phone session. events may be nil.
func NewPhoneAuthService(o OTPService, users UserStore, sessions PhoneSessionIssuer, minter CustomTokenMinter, admins *allowlist.AdminList, events *Recorder, logger *zap.Logger) *PhoneAuthService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PhoneAuthService{otp: o, users: users, sessions: sessions, minter: minter, admins: admins, events: events, log: logger}
}

// SendCode starts verification of rawPhone and returns the opaque session id. The response is
// the same whether or not the admin bypass applied.
func (s *PhoneAuthService) SendCode(ctx context.Context, rawPhone string) (string, error) {
	issued, err := s.otp.CreateSession(ctx, rawPhone)
	if err != nil {
		if !errors.Is(err, otp.ErrInvalidPhone) {
			s.events.Record(ctx, telemetrydomain.EventOTPFailed, phone.UserID(rawPhone), "", "send_failed", "otp", map[string]interface{}{"reason": err.Error()})
		}
		return "", err
	}
	s.events.Record(ctx, telemetrydomain.EventOTPSent, phone.UserID(rawPhone), "", "success", "otp", map[string]interface{}{
		"session_id": issued.SessionID,
		"bypass":     issued.Bypass,
	})
	return issued.SessionID, nil
}

// VerifyCode checks the code, records the phone user, and returns a credential: a provider custom
// token when a minter is configured and succeeds, otherwise a durable phone session token.
func (s *PhoneAuthService) VerifyCode(ctx context.Context, sessionID, code string) (*VerifyResult, error) {
	digits, err := s.otp.VerifySession(ctx, sessionID, code)
	if err != nil {
		s.events.Record(ctx, telemetrydomain.EventOTPFailed, "", "", otpOutcome(err), "otp", map[string]interface{}{"session_id": sessionID})
		return nil, err
	}
	userID := phone.UserID(digits)
	if err := s.users.Upsert(ctx, &userdomain.User{ID: userID, Phone: digits}); err != nil {
		return nil, fmt.Errorf("identity: record phone user: %w", err)
	}
	isAdmin := s.admins.IsAdminPhone(digits)

	res := &VerifyResult{SubjectID: userID}
	if s.minter != nil {
		token, err := s.minter.MintCustomToken(userID, map[string]interface{}{
			"admin":        isAdmin,
			"phone_number": "+" + digits,
		})
		if err == nil {
			res.Credential = token
		} else {
			s.log.Warn("custom token minting failed, issuing phone session", zap.Error(err))
		}
	}
	source := identitydomain.SourceExternalToken
	if res.Credential == "" {
		token, _, err := s.sessions.Create(ctx, userID, digits)
		if err != nil {
			return nil, err
		}
		res.Credential = token
		res.UsesFallback = true
		source = identitydomain.SourcePhoneSession
	}
	s.events.Record(ctx, telemetrydomain.EventOTPVerified, userID, string(source), "success", "session", map[string]interface{}{
		"uses_fallback": res.UsesFallback,
	})
	return res, nil
}

func otpOutcome(err error) string {
	switch {
	case errors.Is(err, otp.ErrInvalidCodeFormat):
		return "code_format_invalid"
	case errors.Is(err, otp.ErrSessionNotFound):
		return "session_not_found"
	case errors.Is(err, otp.ErrCodeMismatch):
		return "code_mismatch"
	case errors.Is(err, otp.ErrCodeExpired):
		return "code_expired"
	case errors.Is(err, otp.ErrCodeAlreadyUsed):
		return "code_already_used"
	default:
		return "error"
	}
}
