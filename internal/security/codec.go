package security

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"strings"
	"time"
)

const (
	// MinSecretLength is the shortest signing secret NewCodec accepts.
	MinSecretLength = 32
	// CredentialTTL is the lifetime of a self-signed credential. Credentials are never renewed in place.
	CredentialTTL = 7 * 24 * time.Hour
	// StateTTL bounds how long an OAuth state value stays acceptable.
	StateTTL = 10 * time.Minute
)

var (
	// ErrWeakSecret is returned by NewCodec when the signing secret is missing or too short.
	ErrWeakSecret = errors.New("signing secret must be at least 32 characters")
	// ErrInvalidState is returned by VerifyState for any malformed, forged or stale state value.
	ErrInvalidState = errors.New("invalid oauth state")
)

var b64 = base64.RawURLEncoding

// Claims is the payload of a self-signed credential.
type Claims struct {
	Subject   string `json:"sub"`
	Email     string `json:"email,omitempty"`
	FirstName string `json:"firstName,omitempty"`
	LastName  string `json:"lastName,omitempty"`
	AvatarURL string `json:"avatarUrl,omitempty"`
	IsAdmin   bool   `json:"isAdmin"`
	Issuer    string `json:"iss"`
	Audience  string `json:"aud"`
	IssuedAt  int64  `json:"iat"`
	ExpiresAt int64  `json:"exp"`
}

type header struct {
	Alg string `json:"alg"`
	Typ string `json:"typ"`
}

// Codec signs and verifies self-signed credentials: base64url(header).base64url(payload).base64url(HMAC-SHA256).
// It needs no storage; a credential stays valid until it expires.
type Codec struct {
	secret   []byte
	issuer   string
	audience string
	nowF     func() time.Time
}

// NewCodec returns a Codec for the given secret. A secret shorter than MinSecretLength is a
// configuration error and must abort startup.
func NewCodec(secret, issuer, audience string) (*Codec, error) {
	if len(secret) < MinSecretLength {
		return nil, ErrWeakSecret
	}
	return &Codec{
		secret:   []byte(secret),
		issuer:   issuer,
		audience: audience,
		nowF:     time.Now,
	}, nil
}

// Sign stamps issuer, audience, issue and expiry times onto claims and returns the encoded credential.
func (c *Codec) Sign(claims Claims) (string, error) {
	now := c.nowF()
	claims.Issuer = c.issuer
	claims.Audience = c.audience
	claims.IssuedAt = now.Unix()
	claims.ExpiresAt = now.Add(CredentialTTL).Unix()

	h, err := json.Marshal(header{Alg: "HS256", Typ: "JWT"})
	if err != nil {
		return "", err
	}
	p, err := json.Marshal(claims)
	if err != nil {
		return "", err
	}
	signingInput := b64.EncodeToString(h) + "." + b64.EncodeToString(p)
	return signingInput + "." + c.mac(signingInput), nil
}

// Verify returns the claims of a well-formed, correctly signed, unexpired credential issued for this
// codec's issuer and audience. Any other input yields (nil, false); the reason is not reported.
func (c *Codec) Verify(token string) (*Claims, bool) {
	parts := strings.Split(token, ".")
	if len(parts) != 3 {
		return nil, false
	}
	signingInput := parts[0] + "." + parts[1]
	if !hmac.Equal([]byte(c.mac(signingInput)), []byte(parts[2])) {
		return nil, false
	}
	hb, err := b64.DecodeString(parts[0])
	if err != nil {
		return nil, false
	}
	var h header
	if err := json.Unmarshal(hb, &h); err != nil || h.Alg != "HS256" {
		return nil, false
	}
	pb, err := b64.DecodeString(parts[1])
	if err != nil {
		return nil, false
	}
	var claims Claims
	if err := json.Unmarshal(pb, &claims); err != nil {
		return nil, false
	}
	if c.nowF().Unix() > claims.ExpiresAt {
		return nil, false
	}
	if claims.Issuer != c.issuer || claims.Audience != c.audience {
		return nil, false
	}
	if claims.Subject == "" {
		return nil, false
	}
	return &claims, true
}

type statePayload struct {
	Redirect string `json:"r"`
	Nonce    string `json:"n"`
	Exp      int64  `json:"e"`
}

// SignState encodes redirectTarget into an opaque, signed OAuth state value.
func (c *Codec) SignState(redirectTarget string) (string, error) {
	nonce := make([]byte, 12)
	if _, err := rand.Read(nonce); err != nil {
		return "", err
	}
	p, err := json.Marshal(statePayload{
		Redirect: redirectTarget,
		Nonce:    b64.EncodeToString(nonce),
		Exp:      c.nowF().Add(StateTTL).Unix(),
	})
	if err != nil {
		return "", err
	}
	body := b64.EncodeToString(p)
	return body + "." + c.mac("state."+body), nil
}

// VerifyState returns the redirect target carried by a state value produced by SignState.
func (c *Codec) VerifyState(state string) (string, error) {
	body, sig, ok := strings.Cut(state, ".")
	if !ok || strings.Contains(sig, ".") {
		return "", ErrInvalidState
	}
	if !hmac.Equal([]byte(c.mac("state."+body)), []byte(sig)) {
		return "", ErrInvalidState
	}
	pb, err := b64.DecodeString(body)
	if err != nil {
		return "", ErrInvalidState
	}
	var p statePayload
	if err := json.Unmarshal(pb, &p); err != nil {
		return "", ErrInvalidState
	}
	if c.nowF().Unix() > p.Exp {
		return "", ErrInvalidState
	}
	return p.Redirect, nil
}

func (c *Codec) mac(input string) string {
	m := hmac.New(sha256.New, c.secret)
	m.Write([]byte(input))
	return b64.EncodeToString(m.Sum(nil))
}
