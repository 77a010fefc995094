package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"bikecare/backend/internal/cookiesession"
	identity "bikecare/backend/internal/identity/domain"
)

type fakeCookies struct {
	sess *cookiesession.Session
	err  error
}

func (f fakeCookies) Lookup(ctx context.Context, r *http.Request) (*cookiesession.Session, error) {
	if f.err != nil {
		return nil, f.err
	}
	if f.sess == nil {
		return nil, cookiesession.ErrNotFound
	}
	return f.sess, nil
}

func serve(t *testing.T, mw func(http.Handler) http.Handler, req *http.Request) (bearer, cookie *identity.Principal, code int) {
	t.Helper()
	h := mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if p, ok := PrincipalFrom(r.Context()); ok {
			bearer = &p
		}
		if p, ok := CookiePrincipalFrom(r.Context()); ok {
			cookie = &p
		}
		w.WriteHeader(http.StatusNoContent)
	}))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return bearer, cookie, rec.Code
}

func TestResolveIdentity_AttachesBothSlots(t *testing.T) {
	r := NewResolver(ResolverConfig{Admins: testAdmins})
	cookies := fakeCookies{sess: &cookiesession.Session{UserID: "staff-1", Email: "admin@bikecare.test"}}
	mw := ResolveIdentity(r, cookies, testAdmins, nil)

	req := httptest.NewRequest(http.MethodGet, "/api/auth/user", nil)
	req.Header.Set("Authorization", "bearer phone_966512345678")
	bearer, cookie, code := serve(t, mw, req)
	if code != http.StatusNoContent {
		t.Fatalf("status = %d", code)
	}
	if bearer == nil || bearer.Source != identity.SourceLegacyPhoneToken {
		t.Errorf("bearer principal = %+v", bearer)
	}
	if cookie == nil || cookie.SubjectID != "staff-1" || !cookie.IsAdmin || cookie.Source != identity.SourceCookieSession {
		t.Errorf("cookie principal = %+v", cookie)
	}
}

func TestResolveIdentity_NeverRejects(t *testing.T) {
	r := NewResolver(ResolverConfig{Codec: newCodec(t), Admins: testAdmins})
	mw := ResolveIdentity(r, fakeCookies{err: errors.New("redis down")}, testAdmins, nil)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer not-a-token")
	bearer, cookie, code := serve(t, mw, req)
	if code != http.StatusNoContent {
		t.Errorf("status = %d, want handler to run", code)
	}
	if bearer != nil || cookie != nil {
		t.Errorf("principals = %+v, %+v; want none", bearer, cookie)
	}
}

func TestExtractBearer(t *testing.T) {
	tests := []struct {
		header string
		want   string
	}{
		{"", ""},
		{"Bearer abc", "abc"},
		{"bearer   abc  ", "abc"},
		{"BEARER abc", "abc"},
		{"Basic abc", ""},
		{"Bearer", ""},
	}
	for _, tt := range tests {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		if tt.header != "" {
			req.Header.Set("Authorization", tt.header)
		}
		if got := ExtractBearer(req); got != tt.want {
			t.Errorf("ExtractBearer(%q) = %q, want %q", tt.header, got, tt.want)
		}
	}
}

func TestClientIP(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "192.0.2.1:5555"
	if got := ClientIP(req); got != "192.0.2.1" {
		t.Errorf("ClientIP = %q, want %q", got, "192.0.2.1")
	}
	req.Header.Set("X-Real-IP", "198.51.100.2")
	if got := ClientIP(req); got != "198.51.100.2" {
		t.Errorf("ClientIP = %q, want %q", got, "198.51.100.2")
	}
	req.Header.Set("X-Forwarded-For", "203.0.113.9, 10.0.0.1")
	if got := ClientIP(req); got != "203.0.113.9" {
		t.Errorf("ClientIP = %q, want %q", got, "203.0.113.9")
	}
}

func TestResolveIdentity_AttachesClientIP(t *testing.T) {
	mw := ResolveIdentity(NewResolver(ResolverConfig{}), nil, nil, nil)
	var got string
	h := mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = ClientIPFrom(r.Context())
	}))
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Forwarded-For", "203.0.113.9, 10.0.0.1")
	h.ServeHTTP(httptest.NewRecorder(), req)
	if got != "203.0.113.9" {
		t.Errorf("ClientIPFrom = %q, want %q", got, "203.0.113.9")
	}
}
