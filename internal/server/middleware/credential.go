package middleware

import (
	"strings"

	sessiondomain "bikecare/backend/internal/session/domain"
)

// LegacyTokenPrefix marks the legacy phone tokens: "phone_<digits>" or "phone_<digits>_<suffix>".
const LegacyTokenPrefix = "phone_"

// Credential is the classification of a bearer value. Exactly one of the variants below.
type Credential interface {
	credential()
}

// NoCredential means no bearer value was presented.
type NoCredential struct{}

// PhoneSessionCredential is a durable phone session token ("phs_" prefix).
type PhoneSessionCredential struct {
	Token string
}

// LegacyPhoneCredential is a legacy phone token. Digits is empty when the token carries no
// well-formed number.
type LegacyPhoneCredential struct {
	Token  string
	Digits string
}

// ExternalCredential is any other bearer value: a provider ID token or a self-signed credential.
type ExternalCredential struct {
	Raw string
}

func (NoCredential) credential()           {}
func (PhoneSessionCredential) credential() {}
func (LegacyPhoneCredential) credential()  {}
func (ExternalCredential) credential()     {}

// Classify maps a bearer value to its credential kind by prefix alone.
func Classify(bearer string) Credential {
	switch {
	case bearer == "":
		return NoCredential{}
	case strings.HasPrefix(bearer, sessiondomain.TokenPrefix):
		return PhoneSessionCredential{Token: bearer}
	case strings.HasPrefix(bearer, LegacyTokenPrefix):
		return LegacyPhoneCredential{Token: bearer, Digits: legacyDigits(bearer)}
	default:
		return ExternalCredential{Raw: bearer}
	}
}

func legacyDigits(token string) string {
	rest := strings.TrimPrefix(token, LegacyTokenPrefix)
	if i := strings.IndexByte(rest, '_'); i >= 0 {
		rest = rest[:i]
	}
	if rest == "" {
		return ""
	}
	for i := 0; i < len(rest); i++ {
		if rest[i] < '0' || rest[i] > '9' {
			return ""
		}
	}
	return rest
}
