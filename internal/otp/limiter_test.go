package otp

import (
	"testing"
	"time"
)

func TestSendLimiter_PerKey(t *testing.T) {
	l := NewSendLimiter(3)
	now := time.Now()
	l.nowF = func() time.Time { return now }
	for i := 0; i < 3; i++ {
		if !l.Allow("512345678") {
			t.Fatalf("send %d should be allowed", i+1)
		}
	}
	if l.Allow("512345678") {
		t.Error("4th send within the hour should be denied")
	}
	if !l.Allow("598765432") {
		t.Error("another phone must have its own budget")
	}

	now = now.Add(20 * time.Minute)
	if !l.Allow("512345678") {
		t.Error("one token should refill after 20 minutes at 3/hour")
	}
}

func TestSendLimiter_Disabled(t *testing.T) {
	l := NewSendLimiter(0)
	for i := 0; i < 100; i++ {
		if !l.Allow("512345678") {
			t.Fatal("disabled limiter denied a send")
		}
	}
}

func TestSendLimiter_Prune(t *testing.T) {
	l := NewSendLimiter(5)
	now := time.Now()
	l.nowF = func() time.Time { return now }
	l.Allow("a")
	now = now.Add(2 * time.Hour)
	l.Allow("b")
	if n := l.Prune(); n != 1 {
		t.Errorf("Prune = %d, want 1", n)
	}
}
