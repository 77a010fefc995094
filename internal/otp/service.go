package otp

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"bikecare/backend/internal/otp/sms"
	"bikecare/backend/internal/platform/phone"
)

// Config holds the OTP flow settings.
type Config struct {
	// AdminPhone is the operator phone that may use AdminBypassCode. Any representation is accepted.
	AdminPhone string
	// AdminBypass enables the fixed admin code. Config loading refuses it in production.
	AdminBypass bool
	// SendLimitPerHour caps codes per phone; 0 disables the limit.
	SendLimitPerHour int
}

// Issued is the result of CreateSession. Code is returned for the caller's own use (tests, audit
// of bypass); it must never be sent back to the HTTP client.
type Issued struct {
	SessionID string
	Code      string
	Bypass    bool
}

// Service runs the send-code / verify-code flow.
type Service struct {
	store   Store
	sender  sms.Sender
	limiter *SendLimiter
	cfg     Config
	log     *zap.Logger
	nowF    func() time.Time
	newID   func() string
	genCode func() (string, error)
}

// NewService returns an OTP service. sender may be nil only when every phone is the bypass phone.
func NewService(store Store, sender sms.Sender, cfg Config, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		store:   store,
		sender:  sender,
		limiter: NewSendLimiter(cfg.SendLimitPerHour),
		cfg:     cfg,
		log:     logger,
		nowF:    time.Now,
		newID:   uuid.NewString,
		genCode: GenerateCode,
	}
}

// IsAdminBypassPhone reports whether rawPhone receives the fixed code.
func (s *Service) IsAdminBypassPhone(rawPhone string) bool {
	return s.cfg.AdminBypass && s.cfg.AdminPhone != "" && phone.Equal(rawPhone, s.cfg.AdminPhone)
}

// CreateSession issues a code for rawPhone and dispatches it by SMS, unless the admin bypass applies.
func (s *Service) CreateSession(ctx context.Context, rawPhone string) (Issued, error) {
	if !phone.Valid(rawPhone) {
		return Issued{}, ErrInvalidPhone
	}
	digits := phone.International(rawPhone)
	bypass := s.IsAdminBypassPhone(rawPhone)

	var code string
	if bypass {
		code = AdminBypassCode
	} else {
		if !s.limiter.Allow(phone.Canonical(rawPhone)) {
			return Issued{}, ErrRateLimited
		}
		var err error
		if code, err = s.genCode(); err != nil {
			return Issued{}, fmt.Errorf("otp: generate code: %w", err)
		}
	}

	sess := &Session{
		ID:        s.newID(),
		Phone:     digits,
		CodeHash:  HashCode(code),
		CreatedAt: s.nowF().UTC(),
	}
	if err := s.store.Create(ctx, sess); err != nil {
		return Issued{}, err
	}

	if bypass {
		s.log.Warn("otp admin bypass code issued", zap.String("session_id", sess.ID))
		return Issued{SessionID: sess.ID, Code: code, Bypass: true}, nil
	}
	if err := s.sender.SendCode(ctx, digits, code); err != nil {
		_ = s.store.Delete(ctx, sess.ID)
		s.log.Error("otp delivery failed", zap.String("session_id", sess.ID), zap.Error(err))
		return Issued{}, fmt.Errorf("%w: %v", ErrDeliveryFailed, err)
	}
	return Issued{SessionID: sess.ID, Code: code}, nil
}

// VerifySession checks code against the session and marks it verified. It returns the session's
// phone digits. Checks run in order: format, existence, match, expiry, prior use.
func (s *Service) VerifySession(ctx context.Context, sessionID, code string) (string, error) {
	if !ValidCodeFormat(code) {
		return "", ErrInvalidCodeFormat
	}
	if sessionID == "" {
		return "", ErrSessionNotFound
	}
	sess, err := s.store.Get(ctx, sessionID)
	if err != nil {
		return "", err
	}
	if !CodeMatches(code, sess.CodeHash) {
		return "", ErrCodeMismatch
	}
	if sess.Expired(s.nowF()) {
		return "", ErrCodeExpired
	}
	if sess.Verified {
		return "", ErrCodeAlreadyUsed
	}
	marked, err := s.store.MarkVerified(ctx, sess.ID)
	if err != nil {
		if errors.Is(err, ErrSessionNotFound) {
			return "", err
		}
		return "", fmt.Errorf("otp: mark verified: %w", err)
	}
	if !marked {
		return "", ErrCodeAlreadyUsed
	}
	return sess.Phone, nil
}

// Maintain prunes idle rate-limit state and, for stores that support it, expired sessions.
func (s *Service) Maintain(ctx context.Context) (int, error) {
	s.limiter.Prune()
	if sw, ok := s.store.(interface {
		Sweep(context.Context) (int, error)
	}); ok {
		return sw.Sweep(ctx)
	}
	return 0, nil
}
