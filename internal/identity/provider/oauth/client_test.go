package oauth

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
)

func newProvider(t *testing.T, userinfo string) (*httptest.Server, Config) {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/token", func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			t.Errorf("ParseForm: %v", err)
		}
		if r.PostForm.Get("grant_type") != "authorization_code" || r.PostForm.Get("client_secret") != "shh" {
			t.Errorf("token form = %v", r.PostForm)
		}
		if r.PostForm.Get("code") != "good-code" {
			w.WriteHeader(http.StatusBadRequest)
			w.Write([]byte(`{"error":"invalid_grant"}`))
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"access_token":"at-1","token_type":"Bearer"}`))
	})
	mux.HandleFunc("/userinfo", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer at-1" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.Write([]byte(userinfo))
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv, Config{
		ClientID:     "bikecare",
		ClientSecret: "shh",
		AuthorizeURL: srv.URL + "/authorize",
		TokenURL:     srv.URL + "/token",
		UserInfoURL:  srv.URL + "/userinfo",
		RedirectURL:  "https://api.bikecare.io/api/auth/oauth/callback",
		Scopes:       []string{"openid", "email", "profile"},
	}
}

func TestClient_AuthorizeURL(t *testing.T) {
	_, cfg := newProvider(t, `{}`)
	c := NewClient(cfg, nil, nil)
	raw, err := c.AuthorizeURL("st-1")
	if err != nil {
		t.Fatalf("AuthorizeURL: %v", err)
	}
	u, _ := url.Parse(raw)
	q := u.Query()
	if q.Get("state") != "st-1" || q.Get("client_id") != "bikecare" || q.Get("response_type") != "code" {
		t.Errorf("query = %v", q)
	}
	if q.Get("scope") != "openid email profile" {
		t.Errorf("scope = %q", q.Get("scope"))
	}
}

func TestClient_ExchangeAndProfile(t *testing.T) {
	srv, cfg := newProvider(t, `{"sub":"g-123","email":"Rider@Example.com","given_name":"Lina","family_name":"Haddad","picture":"https://img/a.png"}`)
	c := NewClient(cfg, srv.Client(), nil)
	ctx := context.Background()

	at, err := c.Exchange(ctx, "good-code")
	if err != nil {
		t.Fatalf("Exchange: %v", err)
	}
	p, err := c.Profile(ctx, at)
	if err != nil {
		t.Fatalf("Profile: %v", err)
	}
	want := Profile{Subject: "g-123", Email: "rider@example.com", FirstName: "Lina", LastName: "Haddad", AvatarURL: "https://img/a.png"}
	if *p != want {
		t.Errorf("Profile = %+v, want %+v", *p, want)
	}
}

func TestClient_ProfileFallbacks(t *testing.T) {
	srv, cfg := newProvider(t, `{"id":98765,"email":"x@y.z","name":"Omar Al Saleh","avatar_url":"https://img/b.png"}`)
	c := NewClient(cfg, srv.Client(), nil)
	p, err := c.Profile(context.Background(), "at-1")
	if err != nil {
		t.Fatalf("Profile: %v", err)
	}
	if p.Subject != "98765" || p.FirstName != "Omar" || p.LastName != "Al Saleh" || p.AvatarURL != "https://img/b.png" {
		t.Errorf("Profile = %+v", *p)
	}
}

func TestClient_Errors(t *testing.T) {
	srv, cfg := newProvider(t, `{"email":"no-subject@example.com"}`)
	c := NewClient(cfg, srv.Client(), nil)
	ctx := context.Background()

	if _, err := c.Exchange(ctx, "bad-code"); !errors.Is(err, ErrExchange) {
		t.Errorf("Exchange bad code: err = %v, want ErrExchange", err)
	}
	if _, err := c.Profile(ctx, "at-1"); !errors.Is(err, ErrProfile) {
		t.Errorf("Profile without subject: err = %v, want ErrProfile", err)
	}
	if _, err := c.Profile(ctx, "wrong"); !errors.Is(err, ErrProfile) {
		t.Errorf("Profile unauthorized: err = %v, want ErrProfile", err)
	}

	unconfigured := NewClient(Config{}, nil, nil)
	if unconfigured.Configured() {
		t.Error("empty config must not be Configured")
	}
	if _, err := unconfigured.AuthorizeURL("s"); err != ErrNotConfigured {
		t.Errorf("AuthorizeURL: err = %v, want ErrNotConfigured", err)
	}
}
