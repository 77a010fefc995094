package otp

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// SendLimiter caps how many codes a phone can request per hour. Keys are canonical phone numbers.
type SendLimiter struct {
	mu       sync.Mutex
	limit    rate.Limit
	burst    int
	visitors map[string]*visitor
	nowF     func() time.Time
}

type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// NewSendLimiter allows perHour sends per phone, all of which may be spent at once.
// perHour <= 0 disables limiting.
func NewSendLimiter(perHour int) *SendLimiter {
	if perHour <= 0 {
		return &SendLimiter{limit: rate.Inf, visitors: make(map[string]*visitor), nowF: time.Now}
	}
	return &SendLimiter{
		limit:    rate.Every(time.Hour / time.Duration(perHour)),
		burst:    perHour,
		visitors: make(map[string]*visitor),
		nowF:     time.Now,
	}
}

// Allow reports whether another code may be sent to key now.
func (l *SendLimiter) Allow(key string) bool {
	if l.limit == rate.Inf {
		return true
	}
	now := l.nowF()
	l.mu.Lock()
	v, ok := l.visitors[key]
	if !ok {
		v = &visitor{limiter: rate.NewLimiter(l.limit, l.burst)}
		l.visitors[key] = v
	}
	v.lastSeen = now
	l.mu.Unlock()
	return v.limiter.AllowN(now, 1)
}

// Prune forgets phones idle for longer than an hour.
func (l *SendLimiter) Prune() int {
	cutoff := l.nowF().Add(-time.Hour)
	l.mu.Lock()
	defer l.mu.Unlock()
	n := 0
	for k, v := range l.visitors {
		if v.lastSeen.Before(cutoff) {
			delete(l.visitors, k)
			n++
		}
	}
	return n
}
