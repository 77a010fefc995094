package otp

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"
)

type recordingSender struct {
	mu    sync.Mutex
	calls []string
	err   error
}

func (r *recordingSender) SendCode(ctx context.Context, phone, code string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, phone+":"+code)
	return r.err
}

func (r *recordingSender) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.calls)
}

func newTestService(t *testing.T, cfg Config) (*Service, *recordingSender, *time.Time) {
	t.Helper()
	sender := &recordingSender{}
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	store := NewMemoryStore()
	store.nowF = func() time.Time { return now }
	svc := NewService(store, sender, cfg, nil)
	svc.nowF = func() time.Time { return now }
	return svc, sender, &now
}

func TestService_PhoneScenario(t *testing.T) {
	svc, sender, _ := newTestService(t, Config{})
	ctx := context.Background()

	issued, err := svc.CreateSession(ctx, "+966512345678")
	if err != nil {
		t.Fatalf("CreateSession: %v", err)
	}
	if issued.SessionID == "" || issued.Bypass {
		t.Fatalf("Issued = %+v", issued)
	}
	if sender.count() != 1 || sender.calls[0] != "966512345678:"+issued.Code {
		t.Fatalf("sender calls = %v", sender.calls)
	}

	wrong := "000000"
	if issued.Code == wrong {
		wrong = "111111"
	}
	if _, err := svc.VerifySession(ctx, issued.SessionID, wrong); err != ErrCodeMismatch {
		t.Fatalf("VerifySession wrong code: err = %v, want ErrCodeMismatch", err)
	}
	digits, err := svc.VerifySession(ctx, issued.SessionID, issued.Code)
	if err != nil {
		t.Fatalf("VerifySession: %v", err)
	}
	if digits != "966512345678" {
		t.Errorf("VerifySession phone = %q, want 966512345678", digits)
	}
}

func TestService_NationalFormSharesInternationalDigits(t *testing.T) {
	svc, sender, _ := newTestService(t, Config{})
	ctx := context.Background()
	issued, err := svc.CreateSession(ctx, "0512345678")
	if err != nil {
		t.Fatalf("CreateSession: %v", err)
	}
	if sender.calls[0] != "966512345678:"+issued.Code {
		t.Errorf("sender calls = %v, want international digits", sender.calls)
	}
	digits, err := svc.VerifySession(ctx, issued.SessionID, issued.Code)
	if err != nil || digits != "966512345678" {
		t.Errorf("VerifySession = %q, %v; want 966512345678", digits, err)
	}
}

func TestService_VerifyErrorOrder(t *testing.T) {
	svc, _, now := newTestService(t, Config{})
	ctx := context.Background()
	issued, _ := svc.CreateSession(ctx, "0512345678")

	if _, err := svc.VerifySession(ctx, "unknown", "12345"); err != ErrInvalidCodeFormat {
		t.Errorf("format checked first: err = %v", err)
	}
	if _, err := svc.VerifySession(ctx, "unknown", "123456"); err != ErrSessionNotFound {
		t.Errorf("unknown session: err = %v, want ErrSessionNotFound", err)
	}
	if _, err := svc.VerifySession(ctx, "", "123456"); err != ErrSessionNotFound {
		t.Errorf("empty session id: err = %v, want ErrSessionNotFound", err)
	}

	*now = now.Add(CodeTTL + time.Second)
	wrong := "999999"
	if issued.Code == wrong {
		wrong = "888888"
	}
	if _, err := svc.VerifySession(ctx, issued.SessionID, wrong); err != ErrCodeMismatch {
		t.Errorf("mismatch before expiry: err = %v, want ErrCodeMismatch", err)
	}
	if _, err := svc.VerifySession(ctx, issued.SessionID, issued.Code); err != ErrCodeExpired {
		t.Errorf("expired: err = %v, want ErrCodeExpired", err)
	}
}

func TestService_ExactlyAtWindowEdge(t *testing.T) {
	svc, _, now := newTestService(t, Config{})
	ctx := context.Background()
	issued, _ := svc.CreateSession(ctx, "0512345678")
	*now = now.Add(CodeTTL)
	if _, err := svc.VerifySession(ctx, issued.SessionID, issued.Code); err != nil {
		t.Errorf("verify at exactly 5 minutes: %v", err)
	}
}

func TestService_SingleUse(t *testing.T) {
	svc, _, _ := newTestService(t, Config{})
	ctx := context.Background()
	issued, _ := svc.CreateSession(ctx, "0512345678")
	if _, err := svc.VerifySession(ctx, issued.SessionID, issued.Code); err != nil {
		t.Fatalf("first verify: %v", err)
	}
	wrong := "000000"
	if issued.Code == wrong {
		wrong = "111111"
	}
	if _, err := svc.VerifySession(ctx, issued.SessionID, wrong); err != ErrCodeMismatch {
		t.Errorf("second verify with other code: err = %v, want ErrCodeMismatch", err)
	}
	if _, err := svc.VerifySession(ctx, issued.SessionID, issued.Code); err != ErrCodeAlreadyUsed {
		t.Errorf("replay: err = %v, want ErrCodeAlreadyUsed", err)
	}
}

// slowGetStore widens the gap between reading a session and marking it verified.
type slowGetStore struct {
	*MemoryStore
	delay time.Duration
}

func (s slowGetStore) Get(ctx context.Context, id string) (*Session, error) {
	sess, err := s.MemoryStore.Get(ctx, id)
	time.Sleep(s.delay)
	return sess, err
}

func TestService_SingleUseUnderConcurrentVerify(t *testing.T) {
	sender := &recordingSender{}
	svc := NewService(slowGetStore{MemoryStore: NewMemoryStore(), delay: 20 * time.Millisecond}, sender, Config{}, nil)
	ctx := context.Background()
	issued, err := svc.CreateSession(ctx, "0512345678")
	if err != nil {
		t.Fatalf("CreateSession: %v", err)
	}

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		accepted int
		reused   int
	)
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.VerifySession(ctx, issued.SessionID, issued.Code)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				accepted++
			case errors.Is(err, ErrCodeAlreadyUsed):
				reused++
			default:
				t.Errorf("VerifySession: unexpected err %v", err)
			}
		}()
	}
	wg.Wait()
	if accepted != 1 || reused != 4 {
		t.Errorf("accepted = %d, already used = %d; want 1 and 4", accepted, reused)
	}
}

func TestService_AdminBypass(t *testing.T) {
	svc, sender, _ := newTestService(t, Config{AdminPhone: "+966 50 000 0001", AdminBypass: true})
	svc.genCode = func() (string, error) { return "654321", nil }
	ctx := context.Background()

	issued, err := svc.CreateSession(ctx, "0500000001")
	if err != nil {
		t.Fatalf("CreateSession: %v", err)
	}
	if !issued.Bypass || issued.Code != AdminBypassCode {
		t.Fatalf("Issued = %+v, want bypass with %s", issued, AdminBypassCode)
	}
	if sender.count() != 0 {
		t.Errorf("sender called %d times for admin bypass, want 0", sender.count())
	}
	if _, err := svc.VerifySession(ctx, issued.SessionID, AdminBypassCode); err != nil {
		t.Errorf("VerifySession bypass code: %v", err)
	}
}

func TestService_AdminBypassDisabled(t *testing.T) {
	svc, sender, _ := newTestService(t, Config{AdminPhone: "0500000001", AdminBypass: false})
	svc.genCode = func() (string, error) { return "654321", nil }
	issued, err := svc.CreateSession(context.Background(), "0500000001")
	if err != nil {
		t.Fatalf("CreateSession: %v", err)
	}
	if issued.Bypass || sender.count() != 1 {
		t.Errorf("bypass disabled: Issued = %+v, sends = %d", issued, sender.count())
	}
	if _, err := svc.VerifySession(context.Background(), issued.SessionID, AdminBypassCode); err != ErrCodeMismatch {
		t.Errorf("fixed code without bypass: err = %v, want ErrCodeMismatch", err)
	}
}

func TestService_InvalidPhone(t *testing.T) {
	svc, _, _ := newTestService(t, Config{})
	for _, p := range []string{"", "12345", "abc", strings.Repeat("1", 16)} {
		if _, err := svc.CreateSession(context.Background(), p); err != ErrInvalidPhone {
			t.Errorf("CreateSession(%q): err = %v, want ErrInvalidPhone", p, err)
		}
	}
}

func TestService_RateLimited(t *testing.T) {
	svc, sender, _ := newTestService(t, Config{SendLimitPerHour: 2})
	ctx := context.Background()
	for i := 0; i < 2; i++ {
		if _, err := svc.CreateSession(ctx, "+966512345678"); err != nil {
			t.Fatalf("CreateSession %d: %v", i, err)
		}
	}
	if _, err := svc.CreateSession(ctx, "0512345678"); err != ErrRateLimited {
		t.Errorf("3rd send for same number: err = %v, want ErrRateLimited", err)
	}
	if sender.count() != 2 {
		t.Errorf("sends = %d, want 2", sender.count())
	}
}

func TestService_DeliveryFailure(t *testing.T) {
	store := NewMemoryStore()
	sender := &recordingSender{err: errors.New("gateway down")}
	svc := NewService(store, sender, Config{}, nil)
	_, err := svc.CreateSession(context.Background(), "0512345678")
	if !errors.Is(err, ErrDeliveryFailed) {
		t.Fatalf("err = %v, want ErrDeliveryFailed", err)
	}
	if store.Len() != 0 {
		t.Errorf("undelivered session kept: Len = %d", store.Len())
	}
}

func TestService_Maintain(t *testing.T) {
	store := NewMemoryStore()
	svc := NewService(store, &recordingSender{}, Config{}, nil)
	now := time.Now()
	store.nowF = func() time.Time { return now }
	_ = store.Create(context.Background(), &Session{ID: "old", CreatedAt: now.Add(-time.Hour)})
	n, err := svc.Maintain(context.Background())
	if err != nil || n != 1 {
		t.Errorf("Maintain = %d, %v; want 1, nil", n, err)
	}
}
