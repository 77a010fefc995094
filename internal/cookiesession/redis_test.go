package cookiesession

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newRedisStore(t *testing.T) (*RedisStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return NewRedisStore(rdb), mr
}

func TestRedisStore_SaveGetDelete(t *testing.T) {
	s, mr := newRedisStore(t)
	ctx := context.Background()
	now := time.Now()
	sess := &Session{ID: "abc", UserID: "user-1", IsAdmin: true, CreatedAt: now, ExpiresAt: now.Add(time.Hour)}
	if err := s.Save(ctx, sess); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if ttl := mr.TTL(redisKeyPrefix + "abc"); ttl <= 0 || ttl > time.Hour {
		t.Errorf("ttl = %v, want (0, 1h]", ttl)
	}
	got, err := s.Get(ctx, "abc")
	if err != nil || got == nil {
		t.Fatalf("Get = %v, %v", got, err)
	}
	if got.UserID != "user-1" || !got.IsAdmin {
		t.Errorf("Get = %+v", got)
	}
	if err := s.Delete(ctx, "abc"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if got, err := s.Get(ctx, "abc"); err != nil || got != nil {
		t.Errorf("Get after Delete = %v, %v; want nil, nil", got, err)
	}
}

func TestRedisStore_KeyExpires(t *testing.T) {
	s, mr := newRedisStore(t)
	ctx := context.Background()
	now := time.Now()
	_ = s.Save(ctx, &Session{ID: "x", UserID: "u", CreatedAt: now, ExpiresAt: now.Add(time.Minute)})
	mr.FastForward(2 * time.Minute)
	if got, _ := s.Get(ctx, "x"); got != nil {
		t.Error("session should expire with its key")
	}
}

func TestRedisStore_SaveExpiredIsNoop(t *testing.T) {
	s, mr := newRedisStore(t)
	past := time.Now().Add(-time.Minute)
	if err := s.Save(context.Background(), &Session{ID: "old", ExpiresAt: past}); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if mr.Exists(redisKeyPrefix + "old") {
		t.Error("expired session should not be written")
	}
}
