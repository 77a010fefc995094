package service

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	telemetrydomain "bikecare/backend/internal/telemetry/domain"
)

// AdminFlagStore persists the per-user admin flag.
type AdminFlagStore interface {
	SetAdmin(ctx context.Context, id string, isAdmin bool) error
}

// SessionSweeper deletes expired phone sessions.
type SessionSweeper interface {
	Sweep(ctx context.Context) (int64, error)
}

// OTPMaintainer drops stale verification sessions.
type OTPMaintainer interface {
	Maintain(ctx context.Context) (int, error)
}

// SweepResult reports what a maintenance sweep removed.
type SweepResult struct {
	PhoneSessions int64 `json:"phoneSessions"`
	OTPSessions   int   `json:"otpSessions"`
}

// AdminService holds the operations behind the admin endpoints.
type AdminService struct {
	users    AdminFlagStore
	sessions SessionSweeper
	otp      OTPMaintainer
	events   *Recorder
	log      *zap.Logger
}

// NewAdminService returns an AdminService. otp may be nil.
func NewAdminService(users AdminFlagStore, sessions SessionSweeper, otp OTPMaintainer, events *Recorder, logger *zap.Logger) *AdminService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AdminService{users: users, sessions: sessions, otp: otp, events: events, log: logger}
}

// SetAdmin sets the persisted admin flag of userID. The flag then overrides the allow-list for
// that user. Returns user domain ErrNotFound for an unknown user.
func (s *AdminService) SetAdmin(ctx context.Context, actorID, userID string, isAdmin bool) error {
	if err := s.users.SetAdmin(ctx, userID, isAdmin); err != nil {
		return err
	}
	s.events.Record(ctx, telemetrydomain.EventAdminFlagChanged, actorID, "", "success", "user", map[string]interface{}{
		"target_user_id": userID,
		"is_admin":       isAdmin,
	})
	return nil
}

// Sweep removes expired phone sessions and stale verification sessions.
func (s *AdminService) Sweep(ctx context.Context) (SweepResult, error) {
	var res SweepResult
	n, err := s.sessions.Sweep(ctx)
	if err != nil {
		return res, fmt.Errorf("identity: sweep sessions: %w", err)
	}
	res.PhoneSessions = n
	if s.otp != nil {
		m, err := s.otp.Maintain(ctx)
		if err != nil {
			return res, fmt.Errorf("identity: sweep otp sessions: %w", err)
		}
		res.OTPSessions = m
	}
	s.log.Info("maintenance sweep", zap.Int64("phone_sessions", res.PhoneSessions), zap.Int("otp_sessions", res.OTPSessions))
	return res, nil
}
