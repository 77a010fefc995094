package otp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
)

const (
	redisKeyPrefix = "otp:session:"
	// markVerifiedAttempts bounds optimistic retries when a watched key changes mid-transaction.
	markVerifiedAttempts = 3
)

// RedisStore keeps OTP sessions in Redis so any instance can verify a code another issued.
// Keys expire after Retention.
type RedisStore struct {
	rdb *redis.Client
}

// NewRedisStore returns a Store backed by rdb.
func NewRedisStore(rdb *redis.Client) *RedisStore {
	return &RedisStore{rdb: rdb}
}

func (s *RedisStore) Create(ctx context.Context, sess *Session) error {
	raw, err := json.Marshal(sess)
	if err != nil {
		return err
	}
	if err := s.rdb.Set(ctx, redisKeyPrefix+sess.ID, raw, Retention).Err(); err != nil {
		return fmt.Errorf("otp: redis set: %w", err)
	}
	return nil
}

func (s *RedisStore) Get(ctx context.Context, id string) (*Session, error) {
	raw, err := s.rdb.Get(ctx, redisKeyPrefix+id).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("otp: redis get: %w", err)
	}
	var sess Session
	if err := json.Unmarshal(raw, &sess); err != nil {
		return nil, fmt.Errorf("otp: decode session: %w", err)
	}
	return &sess, nil
}

// MarkVerified sets Verified under WATCH so two verifiers of one session cannot both win.
// The key keeps its remaining TTL.
func (s *RedisStore) MarkVerified(ctx context.Context, id string) (bool, error) {
	key := redisKeyPrefix + id
	var marked bool
	txf := func(tx *redis.Tx) error {
		marked = false
		raw, err := tx.Get(ctx, key).Bytes()
		if errors.Is(err, redis.Nil) {
			return ErrSessionNotFound
		}
		if err != nil {
			return err
		}
		var sess Session
		if err := json.Unmarshal(raw, &sess); err != nil {
			return fmt.Errorf("otp: decode session: %w", err)
		}
		if sess.Verified {
			return nil
		}
		sess.Verified = true
		out, err := json.Marshal(&sess)
		if err != nil {
			return err
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.SetArgs(ctx, key, out, redis.SetArgs{Mode: "XX", KeepTTL: true})
			return nil
		})
		if errors.Is(err, redis.Nil) {
			return ErrSessionNotFound
		}
		if err == nil {
			marked = true
		}
		return err
	}

	for attempt := 0; attempt < markVerifiedAttempts; attempt++ {
		err := s.rdb.Watch(ctx, txf, key)
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		if errors.Is(err, ErrSessionNotFound) {
			return false, err
		}
		if err != nil {
			return false, fmt.Errorf("otp: redis mark verified: %w", err)
		}
		return marked, nil
	}
	return false, fmt.Errorf("otp: redis mark verified: %w", redis.TxFailedErr)
}

func (s *RedisStore) Delete(ctx context.Context, id string) error {
	if err := s.rdb.Del(ctx, redisKeyPrefix+id).Err(); err != nil {
		return fmt.Errorf("otp: redis del: %w", err)
	}
	return nil
}
