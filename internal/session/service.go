// Package session manages durable phone sessions: bearer tokens prefixed "phs_" that survive restarts.
package session

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"bikecare/backend/internal/security"
	"bikecare/backend/internal/session/domain"
	"bikecare/backend/internal/session/repository"
)

// DefaultTTL is the lifetime of a phone session.
const DefaultTTL = 30 * 24 * time.Hour

// ErrNotFound is returned for unknown, malformed or expired session tokens.
var ErrNotFound = errors.New("session not found")

// Service creates and resolves phone sessions.
type Service struct {
	repo repository.Repository
	ttl  time.Duration
	log  *zap.Logger
	nowF func() time.Time
}

// NewService returns a Service. ttl <= 0 uses DefaultTTL.
func NewService(repo repository.Repository, ttl time.Duration, logger *zap.Logger) *Service {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{repo: repo, ttl: ttl, log: logger, nowF: time.Now}
}

// Create issues a new session for userID and returns its bearer token. Several sessions may exist
// for the same user at once.
func (s *Service) Create(ctx context.Context, userID, phone string) (string, *domain.PhoneSession, error) {
	token, err := security.NewOpaqueToken(domain.TokenPrefix)
	if err != nil {
		return "", nil, fmt.Errorf("session: generate token: %w", err)
	}
	now := s.nowF().UTC()
	sess := &domain.PhoneSession{
		TokenHash: security.HashToken(token),
		UserID:    userID,
		Phone:     phone,
		CreatedAt: now,
		ExpiresAt: now.Add(s.ttl),
	}
	if err := s.repo.Create(ctx, sess); err != nil {
		return "", nil, fmt.Errorf("session: create: %w", err)
	}
	return token, sess, nil
}

// Resolve returns the live session for token. A session found past its expiry is deleted before
// ErrNotFound is returned.
func (s *Service) Resolve(ctx context.Context, token string) (*domain.PhoneSession, error) {
	if !strings.HasPrefix(token, domain.TokenPrefix) || len(token) == len(domain.TokenPrefix) {
		return nil, ErrNotFound
	}
	hash := security.HashToken(token)
	sess, err := s.repo.GetByTokenHash(ctx, hash)
	if err != nil {
		return nil, fmt.Errorf("session: lookup: %w", err)
	}
	if sess == nil {
		return nil, ErrNotFound
	}
	if sess.Expired(s.nowF()) {
		if err := s.repo.Delete(ctx, hash); err != nil {
			s.log.Warn("delete expired phone session failed", zap.Error(err))
		}
		return nil, ErrNotFound
	}
	return sess, nil
}

// Revoke deletes the session for token, if any.
func (s *Service) Revoke(ctx context.Context, token string) error {
	if !strings.HasPrefix(token, domain.TokenPrefix) {
		return nil
	}
	return s.repo.Delete(ctx, security.HashToken(token))
}

// Sweep deletes every expired session and returns the count.
func (s *Service) Sweep(ctx context.Context) (int64, error) {
	n, err := s.repo.DeleteExpired(ctx, s.nowF().UTC())
	if err != nil {
		return 0, fmt.Errorf("session: sweep: %w", err)
	}
	if n > 0 {
		s.log.Info("expired phone sessions removed", zap.Int64("count", n))
	}
	return n, nil
}
