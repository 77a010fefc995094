package domain

import (
	"encoding/json"
	"time"
)

// Auth event types.
const (
	EventOTPSent          = "otp_sent"
	EventOTPVerified      = "otp_verified"
	EventOTPFailed        = "otp_failed"
	EventOAuthLogin       = "oauth_login"
	EventPasswordLogin    = "password_login"
	EventLogout           = "logout"
	EventAdminDenied      = "admin_denied"
	EventAdminFlagChanged = "admin_flag_changed"
)

// AuthEvent is one authentication or authorization outcome, shipped to the log pipeline and the
// event stream. Metadata is a JSON object.
type AuthEvent struct {
	Type      string          `json:"type"`
	UserID    string          `json:"user_id,omitempty"`
	Source    string          `json:"source,omitempty"`
	Outcome   string          `json:"outcome,omitempty"`
	ClientIP  string          `json:"client_ip,omitempty"`
	Metadata  json.RawMessage `json:"metadata,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
}
