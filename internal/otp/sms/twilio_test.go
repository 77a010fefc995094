package sms

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"

	"bikecare/backend/internal/platform/breaker"
)

func TestTwilio_SendCode(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/Accounts/AC123/Messages.json" {
			t.Errorf("path = %q", r.URL.Path)
		}
		user, pass, ok := r.BasicAuth()
		if !ok || user != "AC123" || pass != "secret" {
			t.Errorf("basic auth = %q/%q/%v", user, pass, ok)
		}
		if err := r.ParseForm(); err != nil {
			t.Errorf("ParseForm: %v", err)
		}
		if got := r.PostForm.Get("To"); got != "+966512345678" {
			t.Errorf("To = %q, want +966512345678", got)
		}
		if got := r.PostForm.Get("From"); got != "+15550001111" {
			t.Errorf("From = %q", got)
		}
		if !strings.Contains(r.PostForm.Get("Body"), "482910") {
			t.Errorf("Body = %q, want code", r.PostForm.Get("Body"))
		}
		w.WriteHeader(http.StatusCreated)
	}))
	defer srv.Close()

	c := NewTwilioClient("AC123", "secret", "+15550001111")
	c.baseURL = srv.URL
	if err := c.SendCode(context.Background(), "966512345678", "482910"); err != nil {
		t.Fatalf("SendCode: %v", err)
	}
}

func TestTwilio_Unauthorized(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"code":20003}`))
	}))
	defer srv.Close()

	c := NewTwilioClient("AC123", "bad", "+1555")
	c.baseURL = srv.URL
	err := c.SendCode(context.Background(), "966512345678", "482910")
	var gwErr *GatewayError
	if !errors.As(err, &gwErr) || gwErr.Status != http.StatusUnauthorized || gwErr.Provider != "twilio" {
		t.Fatalf("err = %v, want twilio GatewayError 401", err)
	}
}

type failingSender struct{ calls int }

func (f *failingSender) SendCode(ctx context.Context, phone, code string) error {
	f.calls++
	return errors.New("gateway down")
}

func TestGuarded_OpensCircuit(t *testing.T) {
	next := &failingSender{}
	g := &guarded{next: next, cb: breaker.New("sms-test", breaker.Settings{MaxFailures: 2}, nil)}
	for i := 0; i < 2; i++ {
		if err := g.SendCode(context.Background(), "966512345678", "123456"); err == nil {
			t.Fatal("want gateway error")
		}
	}
	err := g.SendCode(context.Background(), "966512345678", "123456")
	if !errors.Is(err, gobreaker.ErrOpenState) {
		t.Errorf("err = %v, want ErrOpenState", err)
	}
	if next.calls != 2 {
		t.Errorf("gateway calls = %d, want 2", next.calls)
	}
}

func TestNew_SelectsProvider(t *testing.T) {
	log := zap.NewNop()
	cases := []struct {
		cfg  Config
		want string
	}{
		{Config{Provider: "twilio", TwilioAccountSID: "AC", TwilioAuthToken: "t", TwilioFromNumber: "+1"}, "*sms.TwilioClient"},
		{Config{Provider: "smslocal", SMSLocalAPIKey: "k"}, "*sms.SMSLocalClient"},
	}
	for _, tc := range cases {
		g, ok := New(tc.cfg, log).(*guarded)
		if !ok {
			t.Fatalf("New(%s) is not circuit-guarded", tc.cfg.Provider)
		}
		if got := typeName(g.next); got != tc.want {
			t.Errorf("New(%s) gateway = %s, want %s", tc.cfg.Provider, got, tc.want)
		}
	}
	for _, cfg := range []Config{{}, {Provider: "twilio"}, {Provider: "smslocal"}} {
		s := New(cfg, log)
		if _, ok := s.(*LogSender); !ok {
			t.Errorf("New(%+v) = %T, want *LogSender", cfg, s)
		}
		if err := s.SendCode(context.Background(), "966512345678", "123456"); err != nil {
			t.Errorf("LogSender.SendCode: %v", err)
		}
	}
}

func typeName(s Sender) string {
	switch s.(type) {
	case *TwilioClient:
		return "*sms.TwilioClient"
	case *SMSLocalClient:
		return "*sms.SMSLocalClient"
	}
	return "unknown"
}
