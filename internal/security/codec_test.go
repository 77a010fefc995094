package security

import (
	"strings"
	"testing"
	"time"
)

const testSecret = "0123456789abcdef0123456789abcdef"

func newTestCodec(t *testing.T, now time.Time) *Codec {
	t.Helper()
	c, err := NewCodec(testSecret, "bikecare", "bikecare-web")
	if err != nil {
		t.Fatalf("NewCodec: %v", err)
	}
	c.nowF = func() time.Time { return now }
	return c
}

func TestNewCodec_WeakSecret(t *testing.T) {
	for _, secret := range []string{"", "short", strings.Repeat("x", MinSecretLength-1)} {
		if _, err := NewCodec(secret, "iss", "aud"); err != ErrWeakSecret {
			t.Errorf("NewCodec(len=%d): err = %v, want ErrWeakSecret", len(secret), err)
		}
	}
	if _, err := NewCodec(strings.Repeat("x", MinSecretLength), "iss", "aud"); err != nil {
		t.Errorf("NewCodec with 32-char secret: %v", err)
	}
}

func TestCodec_RoundTrip(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	c := newTestCodec(t, now)
	in := Claims{
		Subject:   "oauth|42",
		Email:     "rider@example.com",
		FirstName: "Lina",
		LastName:  "Haddad",
		AvatarURL: "https://cdn.example.com/a.png",
		IsAdmin:   true,
	}
	token, err := c.Sign(in)
	if err != nil {
		t.Fatalf("Sign: %v", err)
	}
	if n := strings.Count(token, "."); n != 2 {
		t.Fatalf("token has %d dots, want 2", n)
	}
	got, ok := c.Verify(token)
	if !ok {
		t.Fatal("Verify rejected a freshly signed token")
	}
	want := in
	want.Issuer = "bikecare"
	want.Audience = "bikecare-web"
	want.IssuedAt = now.Unix()
	want.ExpiresAt = now.Add(CredentialTTL).Unix()
	if *got != want {
		t.Errorf("Verify claims = %+v, want %+v", *got, want)
	}
}

func TestCodec_SignatureByteFlip(t *testing.T) {
	c := newTestCodec(t, time.Now())
	token, err := c.Sign(Claims{Subject: "u1", Email: "a@b.c"})
	if err != nil {
		t.Fatalf("Sign: %v", err)
	}
	sigStart := strings.LastIndex(token, ".") + 1
	for i := sigStart; i < len(token); i++ {
		b := []byte(token)
		if b[i] == 'A' {
			b[i] = 'B'
		} else {
			b[i] = 'A'
		}
		if _, ok := c.Verify(string(b)); ok {
			t.Fatalf("Verify accepted token with signature byte %d flipped", i-sigStart)
		}
	}
}

func TestCodec_TamperedPayload(t *testing.T) {
	c := newTestCodec(t, time.Now())
	token, _ := c.Sign(Claims{Subject: "u1", IsAdmin: false})
	parts := strings.Split(token, ".")
	forged := b64.EncodeToString([]byte(`{"sub":"u1","isAdmin":true,"iss":"bikecare","aud":"bikecare-web","exp":9999999999}`))
	if _, ok := c.Verify(parts[0] + "." + forged + "." + parts[2]); ok {
		t.Fatal("Verify accepted a token with a swapped payload")
	}
}

func TestCodec_Expired(t *testing.T) {
	issued := time.Unix(1_700_000_000, 0)
	c := newTestCodec(t, issued)
	token, _ := c.Sign(Claims{Subject: "u1"})

	c.nowF = func() time.Time { return issued.Add(CredentialTTL) }
	if _, ok := c.Verify(token); !ok {
		t.Fatal("Verify rejected token at exactly its expiry second")
	}
	c.nowF = func() time.Time { return issued.Add(CredentialTTL + time.Second) }
	if _, ok := c.Verify(token); ok {
		t.Fatal("Verify accepted an expired token")
	}
}

func TestCodec_WrongIssuerOrAudience(t *testing.T) {
	now := time.Now()
	c := newTestCodec(t, now)
	token, _ := c.Sign(Claims{Subject: "u1"})

	other, _ := NewCodec(testSecret, "someone-else", "bikecare-web")
	other.nowF = func() time.Time { return now }
	if _, ok := other.Verify(token); ok {
		t.Error("Verify accepted a token for another issuer")
	}
	other, _ = NewCodec(testSecret, "bikecare", "mobile")
	other.nowF = func() time.Time { return now }
	if _, ok := other.Verify(token); ok {
		t.Error("Verify accepted a token for another audience")
	}
}

func TestCodec_Malformed(t *testing.T) {
	c := newTestCodec(t, time.Now())
	for _, token := range []string{"", "a.b", "a.b.c.d", "phone_966512345678", "...", "x.y.z"} {
		if _, ok := c.Verify(token); ok {
			t.Errorf("Verify(%q) = ok, want rejection", token)
		}
	}
}

func TestCodec_State(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	c := newTestCodec(t, now)
	state, err := c.SignState("/bookings/new")
	if err != nil {
		t.Fatalf("SignState: %v", err)
	}
	got, err := c.VerifyState(state)
	if err != nil {
		t.Fatalf("VerifyState: %v", err)
	}
	if got != "/bookings/new" {
		t.Errorf("VerifyState = %q, want /bookings/new", got)
	}

	if _, err := c.VerifyState(state + "x"); err != ErrInvalidState {
		t.Errorf("VerifyState tampered: err = %v, want ErrInvalidState", err)
	}
	if _, ok := c.Verify(state); ok {
		t.Error("a state value must not verify as a credential")
	}
	c.nowF = func() time.Time { return now.Add(StateTTL + time.Second) }
	if _, err := c.VerifyState(state); err != ErrInvalidState {
		t.Errorf("VerifyState stale: err = %v, want ErrInvalidState", err)
	}
}
