// Package allowlist holds the configured administrator allow-list (emails and phone numbers).
package allowlist

import (
	"strings"

	"bikecare/backend/internal/platform/phone"
)

// AdminList is an immutable set of admin emails (lower-cased) and phones (canonical form).
type AdminList struct {
	emails map[string]struct{}
	phones map[string]struct{}
}

// New builds an AdminList. Blank entries are ignored.
func New(emails, phones []string) *AdminList {
	l := &AdminList{
		emails: make(map[string]struct{}, len(emails)),
		phones: make(map[string]struct{}, len(phones)),
	}
	for _, e := range emails {
		if e = normalizeEmail(e); e != "" {
			l.emails[e] = struct{}{}
		}
	}
	for _, p := range phones {
		if c := phone.Canonical(p); c != "" {
			l.phones[c] = struct{}{}
		}
	}
	return l
}

// ParseEmails splits a comma-separated ADMIN_EMAILS value.
func ParseEmails(csv string) []string {
	var out []string
	for _, p := range strings.Split(csv, ",") {
		if s := strings.TrimSpace(p); s != "" {
			out = append(out, s)
		}
	}
	return out
}

// IsAdminEmail reports whether email is on the list (case-insensitive).
func (l *AdminList) IsAdminEmail(email string) bool {
	if l == nil {
		return false
	}
	e := normalizeEmail(email)
	if e == "" {
		return false
	}
	_, ok := l.emails[e]
	return ok
}

// IsAdminPhone reports whether number matches an admin phone after canonicalisation.
func (l *AdminList) IsAdminPhone(number string) bool {
	if l == nil {
		return false
	}
	c := phone.Canonical(number)
	if c == "" {
		return false
	}
	_, ok := l.phones[c]
	return ok
}

func normalizeEmail(e string) string {
	return strings.ToLower(strings.TrimSpace(e))
}
