// Package phone normalises phone numbers for comparison and for deriving phone-based user ids.
package phone

import "strings"

// canonicalLen is the number of trailing digits that identify a subscriber number regardless of
// country code or trunk prefix (e.g. +966512345678, 00966512345678 and 0512345678 all end in 512345678).
const canonicalLen = 9

// DefaultCountryCode is assumed for national numbers, which carry no country code.
const DefaultCountryCode = "966"

// Digits returns only the ASCII digits of s.
func Digits(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		if c := s[i]; c >= '0' && c <= '9' {
			b.WriteByte(c)
		}
	}
	return b.String()
}

// Canonical returns the last 9 digits of s, or all of its digits when it has fewer.
// Two representations of the same number compare equal after Canonical.
func Canonical(s string) string {
	d := Digits(s)
	if len(d) > canonicalLen {
		return d[len(d)-canonicalLen:]
	}
	return d
}

// Equal reports whether a and b canonicalise to the same non-empty number.
func Equal(a, b string) bool {
	ca, cb := Canonical(a), Canonical(b)
	return ca != "" && ca == cb
}

// Valid reports whether s carries a plausible phone number (9 to 15 digits, E.164 upper bound).
func Valid(s string) bool {
	n := len(Digits(s))
	return n >= canonicalLen && n <= 15
}

// International returns s as international digits without the leading "+": the "00" exit prefix
// is dropped, and a national number (9 digits, optionally after a trunk 0) gets DefaultCountryCode.
// "+966512345678", "00966512345678", "0512345678" and "512345678" all yield "966512345678".
func International(s string) string {
	d := Digits(s)
	switch {
	case strings.HasPrefix(d, "00"):
		return d[2:]
	case len(d) == canonicalLen+1 && d[0] == '0':
		return DefaultCountryCode + d[1:]
	case len(d) == canonicalLen:
		return DefaultCountryCode + d
	}
	return d
}

// UserID derives the stable subject id used for phone-verified users: "phone_" + International(s),
// so every representation of one number maps to one user.
func UserID(s string) string {
	return "phone_" + International(s)
}
