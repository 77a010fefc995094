// Package sms delivers one-time verification codes to phones.
package sms

import (
	"context"
	"time"

	"go.uber.org/zap"

	"bikecare/backend/internal/platform/breaker"
)

const defaultTimeout = 15 * time.Second

// Sender delivers a verification code to a phone number (digits only, with country code).
// Implementations must not log the code.
type Sender interface {
	SendCode(ctx context.Context, phone, code string) error
}

// Config selects and configures a Sender.
type Config struct {
	Provider string // "twilio" or "smslocal"

	TwilioAccountSID string
	TwilioAuthToken  string
	TwilioFromNumber string

	SMSLocalAPIKey  string
	SMSLocalBaseURL string
	SMSLocalSender  string
}

// New returns the configured Sender behind a circuit breaker. Missing gateway credentials
// degrade to a LogSender so send-code keeps working without delivery.
func New(cfg Config, logger *zap.Logger) Sender {
	var gateway Sender
	switch cfg.Provider {
	case "twilio":
		if cfg.TwilioAccountSID != "" && cfg.TwilioAuthToken != "" && cfg.TwilioFromNumber != "" {
			gateway = NewTwilioClient(cfg.TwilioAccountSID, cfg.TwilioAuthToken, cfg.TwilioFromNumber)
		}
	case "smslocal":
		if cfg.SMSLocalAPIKey != "" {
			gateway = NewSMSLocalClient(cfg.SMSLocalAPIKey, cfg.SMSLocalBaseURL, cfg.SMSLocalSender)
		}
	}
	if gateway != nil {
		return &guarded{next: gateway, cb: breaker.New("sms-"+cfg.Provider, breaker.Settings{}, logger)}
	}
	logger.Warn("sms gateway not configured, verification codes will not be delivered", zap.String("provider", cfg.Provider))
	return &LogSender{Logger: logger}
}

// LogSender records that a code would have been sent. The code itself is never logged.
type LogSender struct {
	Logger *zap.Logger
}

// SendCode logs the delivery attempt and returns nil.
func (s *LogSender) SendCode(ctx context.Context, phone, code string) error {
	if s.Logger != nil {
		s.Logger.Info("sms delivery skipped", zap.String("phone_suffix", suffix(phone)))
	}
	return nil
}

func suffix(phone string) string {
	if len(phone) <= 4 {
		return phone
	}
	return phone[len(phone)-4:]
}
