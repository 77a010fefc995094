package domain

// Source is the credential kind a Principal was resolved from.
type Source string

const (
	SourceExternalToken    Source = "external_token"
	SourcePhoneSession     Source = "phone_session"
	SourceLegacyPhoneToken Source = "legacy_phone_token"
	SourceCookieSession    Source = "cookie_session"
)

// Principal is the identity attached to a request. It is rebuilt from the presented credential on
// every request and never persisted. IsAdmin is the resolution-time decision (allow-list or
// credential claim); the admin gate may refine it from the persisted user flag.
type Principal struct {
	SubjectID string
	Email     string
	Phone     string
	IsAdmin   bool
	Source    Source
}

// Valid reports whether p names a subject and a known source.
func (p Principal) Valid() bool {
	if p.SubjectID == "" {
		return false
	}
	switch p.Source {
	case SourceExternalToken, SourcePhoneSession, SourceLegacyPhoneToken, SourceCookieSession:
		return true
	}
	return false
}
