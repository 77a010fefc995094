// Package config loads and validates app config from env and an optional .env file using Viper.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"

	"bikecare/backend/internal/security"
)

const envProduction = "production"

// Config holds application configuration loaded from the environment.
type Config struct {
	// HTTPAddr is the address the HTTP API listens on (e.g. :8080).
	HTTPAddr string `mapstructure:"HTTP_ADDR"`
	// GRPCAddr is the address of the gRPC health listener; empty disables it.
	GRPCAddr string `mapstructure:"GRPC_ADDR"`
	// Env is the application environment ("development", "production").
	Env string `mapstructure:"APP_ENV"`
	// LogLevel is the zap level (debug, info, warn, error).
	LogLevel string `mapstructure:"LOG_LEVEL"`
	// DatabaseURL is the Postgres DSN. Empty runs with in-memory repositories.
	DatabaseURL string `mapstructure:"DATABASE_URL"`
	// RedisURL is a redis:// URL for OTP and cookie sessions. Empty keeps them in process memory.
	RedisURL string `mapstructure:"REDIS_URL"`

	// JWTSecret signs self-signed credentials and OAuth state. At least 32 characters.
	JWTSecret     string `mapstructure:"JWT_SECRET"`
	TokenIssuer   string `mapstructure:"TOKEN_ISSUER"`
	TokenAudience string `mapstructure:"TOKEN_AUDIENCE"`

	// AdminEmails is a comma-separated admin allow-list.
	AdminEmails string `mapstructure:"ADMIN_EMAILS"`
	// AdminPhone is the admin phone number; matched on its last 9 digits.
	AdminPhone string `mapstructure:"ADMIN_PHONE"`
	// AdminPolicyFile optionally replaces the built-in Rego admin policy.
	AdminPolicyFile string `mapstructure:"ADMIN_POLICY_FILE"`

	// OTPAdminBypass lets AdminPhone verify with the fixed code 123456 and skips SMS for it.
	// Rejected when Env is production.
	OTPAdminBypass      bool `mapstructure:"OTP_ADMIN_BYPASS"`
	OTPSendLimitPerHour int  `mapstructure:"OTP_SEND_LIMIT_PER_HOUR"`

	// SMSProvider is "twilio" or "smslocal". Missing credentials degrade to a log-only sender.
	SMSProvider      string `mapstructure:"SMS_PROVIDER"`
	TwilioAccountSID string `mapstructure:"TWILIO_ACCOUNT_SID"`
	TwilioAuthToken  string `mapstructure:"TWILIO_AUTH_TOKEN"`
	TwilioFromNumber string `mapstructure:"TWILIO_FROM_NUMBER"`
	SMSLocalAPIKey   string `mapstructure:"SMS_LOCAL_API_KEY"`
	SMSLocalBaseURL  string `mapstructure:"SMS_LOCAL_BASE_URL"`
	SMSLocalSender   string `mapstructure:"SMS_LOCAL_SENDER"`

	// FirebaseProjectID enables ID-token verification. Client email and private key additionally
	// enable custom-token minting at verify-code.
	FirebaseProjectID   string `mapstructure:"FIREBASE_PROJECT_ID"`
	FirebaseClientEmail string `mapstructure:"FIREBASE_CLIENT_EMAIL"`
	FirebasePrivateKey  string `mapstructure:"FIREBASE_PRIVATE_KEY"`
	FirebaseCertsURL    string `mapstructure:"FIREBASE_CERTS_URL"`

	OAuthClientID     string `mapstructure:"OAUTH_CLIENT_ID"`
	OAuthClientSecret string `mapstructure:"OAUTH_CLIENT_SECRET"`
	OAuthAuthorizeURL string `mapstructure:"OAUTH_AUTHORIZE_URL"`
	OAuthTokenURL     string `mapstructure:"OAUTH_TOKEN_URL"`
	OAuthUserInfoURL  string `mapstructure:"OAUTH_USERINFO_URL"`
	OAuthRedirectURL  string `mapstructure:"OAUTH_REDIRECT_URL"`
	// OAuthScopes is space- or comma-separated.
	OAuthScopes string `mapstructure:"OAUTH_SCOPES"`
	// OAuthClientCallbackURL is the client route that receives ?token=&redirect= after login.
	OAuthClientCallbackURL string `mapstructure:"OAUTH_CLIENT_CALLBACK_URL"`

	// PhoneSessionTTL, CookieSessionTTL and SessionSweepInterval are Go durations.
	PhoneSessionTTL      string `mapstructure:"PHONE_SESSION_TTL"`
	CookieSessionTTL     string `mapstructure:"COOKIE_SESSION_TTL"`
	CookieSecure         bool   `mapstructure:"COOKIE_SECURE"`
	SessionSweepInterval string `mapstructure:"SESSION_SWEEP_INTERVAL"`
	// BcryptCost is the bcrypt cost factor (4–31); default 12.
	BcryptCost int `mapstructure:"BCRYPT_COST"`

	OTLPEndpoint string `mapstructure:"OTEL_EXPORTER_OTLP_ENDPOINT"`
	OTLPInsecure bool   `mapstructure:"OTEL_EXPORTER_OTLP_INSECURE"`
	// KafkaBrokers is a comma-separated broker list; empty disables the auth event stream.
	KafkaBrokers    string `mapstructure:"KAFKA_BROKERS"`
	AuthEventsTopic string `mapstructure:"AUTH_EVENTS_KAFKA_TOPIC"`
	// EventMaxInFlight caps concurrent background auth event emits; extra events are dropped.
	EventMaxInFlight int `mapstructure:"AUTH_EVENTS_MAX_IN_FLIGHT"`
}

var defaults = map[string]interface{}{
	"HTTP_ADDR":                   ":8080",
	"GRPC_ADDR":                   ":9090",
	"APP_ENV":                     "development",
	"LOG_LEVEL":                   "info",
	"DATABASE_URL":                "",
	"REDIS_URL":                   "",
	"JWT_SECRET":                  "",
	"TOKEN_ISSUER":                "bikecare",
	"TOKEN_AUDIENCE":              "bikecare-web",
	"ADMIN_EMAILS":                "",
	"ADMIN_PHONE":                 "",
	"ADMIN_POLICY_FILE":           "",
	"OTP_ADMIN_BYPASS":            false,
	"OTP_SEND_LIMIT_PER_HOUR":     5,
	"SMS_PROVIDER":                "twilio",
	"TWILIO_ACCOUNT_SID":          "",
	"TWILIO_AUTH_TOKEN":           "",
	"TWILIO_FROM_NUMBER":          "",
	"SMS_LOCAL_API_KEY":           "",
	"SMS_LOCAL_BASE_URL":          "https://app.smslocal.in/api/smsapi",
	"SMS_LOCAL_SENDER":            "",
	"FIREBASE_PROJECT_ID":         "",
	"FIREBASE_CLIENT_EMAIL":       "",
	"FIREBASE_PRIVATE_KEY":        "",
	"FIREBASE_CERTS_URL":          "",
	"OAUTH_CLIENT_ID":             "",
	"OAUTH_CLIENT_SECRET":         "",
	"OAUTH_AUTHORIZE_URL":         "",
	"OAUTH_TOKEN_URL":             "",
	"OAUTH_USERINFO_URL":          "",
	"OAUTH_REDIRECT_URL":          "",
	"OAUTH_SCOPES":                "openid email profile",
	"OAUTH_CLIENT_CALLBACK_URL":   "/auth/callback",
	"PHONE_SESSION_TTL":           "720h",
	"COOKIE_SESSION_TTL":          "12h",
	"COOKIE_SECURE":               true,
	"SESSION_SWEEP_INTERVAL":      "1h",
	"BCRYPT_COST":                 12,
	"OTEL_EXPORTER_OTLP_ENDPOINT": "",
	"OTEL_EXPORTER_OTLP_INSECURE": false,
	"KAFKA_BROKERS":               "",
	"AUTH_EVENTS_KAFKA_TOPIC":     "bikecare-auth-events",
	"AUTH_EVENTS_MAX_IN_FLIGHT":   64,
}

// Load reads .env (if present), then builds and validates Config from the environment via Viper.
// Missing .env is ignored (e.g. in CI). Env vars override .env.
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigFile(".env")
	v.SetConfigType("env")
	_ = v.ReadInConfig() // ignore ErrConfigFileNotFound

	v.AutomaticEnv()
	for k, d := range defaults {
		v.SetDefault(k, d)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks the fatal configuration rules.
func (c *Config) Validate() error {
	if c.HTTPAddr == "" {
		return errors.New("config: HTTP_ADDR must be set")
	}
	if len(c.JWTSecret) < security.MinSecretLength {
		return fmt.Errorf("config: JWT_SECRET must be at least %d characters", security.MinSecretLength)
	}
	if c.OTPAdminBypass && c.IsProduction() {
		return errors.New("config: OTP_ADMIN_BYPASS must not be true when APP_ENV=production")
	}
	if c.OTPSendLimitPerHour < 0 {
		return errors.New("config: OTP_SEND_LIMIT_PER_HOUR must not be negative")
	}
	if c.BcryptCost == 0 {
		c.BcryptCost = 12
	}
	if c.BcryptCost < 4 || c.BcryptCost > 31 {
		return errors.New("config: BCRYPT_COST must be between 4 and 31")
	}
	for key, raw := range map[string]string{
		"PHONE_SESSION_TTL":      c.PhoneSessionTTL,
		"COOKIE_SESSION_TTL":     c.CookieSessionTTL,
		"SESSION_SWEEP_INTERVAL": c.SessionSweepInterval,
	} {
		if raw == "" {
			continue
		}
		if d, err := time.ParseDuration(raw); err != nil || d <= 0 {
			return fmt.Errorf("config: %s must be a positive duration, got %q", key, raw)
		}
	}
	return nil
}

// IsProduction reports whether APP_ENV is production.
func (c *Config) IsProduction() bool {
	return strings.EqualFold(strings.TrimSpace(c.Env), envProduction)
}

func duration(raw string, def time.Duration) time.Duration {
	d, err := time.ParseDuration(raw)
	if err != nil || d <= 0 {
		return def
	}
	return d
}

// PhoneSessionDuration returns PHONE_SESSION_TTL, or 30 days if unset.
func (c *Config) PhoneSessionDuration() time.Duration {
	return duration(c.PhoneSessionTTL, 30*24*time.Hour)
}

// CookieSessionDuration returns COOKIE_SESSION_TTL, or 12h if unset.
func (c *Config) CookieSessionDuration() time.Duration {
	return duration(c.CookieSessionTTL, 12*time.Hour)
}

// SweepInterval returns SESSION_SWEEP_INTERVAL, or 1h if unset.
func (c *Config) SweepInterval() time.Duration {
	return duration(c.SessionSweepInterval, time.Hour)
}

// AdminEmailList returns the admin emails from the comma-separated config.
func (c *Config) AdminEmailList() []string {
	return splitList(c.AdminEmails, ",")
}

// AdminPhoneList returns the configured admin phone as a list (empty when unset).
func (c *Config) AdminPhoneList() []string {
	return splitList(c.AdminPhone, ",")
}

// KafkaBrokerList returns Kafka broker addresses. Empty disables the event stream.
func (c *Config) KafkaBrokerList() []string {
	return splitList(c.KafkaBrokers, ",")
}

// OAuthScopeList returns the OAuth scopes split on spaces or commas.
func (c *Config) OAuthScopeList() []string {
	return splitList(strings.ReplaceAll(c.OAuthScopes, ",", " "), " ")
}

// AdminPolicy returns the Rego module from AdminPolicyFile, or "" for the built-in policy.
func (c *Config) AdminPolicy() (string, error) {
	if c.AdminPolicyFile == "" {
		return "", nil
	}
	b, err := os.ReadFile(c.AdminPolicyFile)
	if err != nil {
		return "", fmt.Errorf("config: read ADMIN_POLICY_FILE: %w", err)
	}
	return string(b), nil
}

func splitList(s, sep string) []string {
	if c := strings.TrimSpace(s); c == "" {
		return nil
	}
	parts := strings.Split(s, sep)
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if t := strings.TrimSpace(p); t != "" {
			out = append(out, t)
		}
	}
	return out
}
