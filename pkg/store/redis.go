package store

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisStore keeps entries in Redis, letting multiple service instances
// share one cache. Keys are stored raw so SCAN-based prefix operations work.
type RedisStore struct {
	client *redis.Client
}

// NewRedisStore connects to Redis and verifies the connection with a ping.
func NewRedisStore(ctx context.Context, addr, password string, db int) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, err
	}
	return &RedisStore{client: client}, nil
}

type redisEntry struct {
	Data      []byte    `json:"data"`
	WrittenAt time.Time `json:"written_at"`
}

func (s *RedisStore) Get(ctx context.Context, key string) ([]byte, time.Time, bool, error) {
	raw, err := s.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, time.Time{}, false, nil
	}
	if err != nil {
		return nil, time.Time{}, false, err
	}
	var e redisEntry
	if err := json.Unmarshal(raw, &e); err != nil {
		_ = s.client.Del(ctx, key).Err()
		return nil, time.Time{}, false, nil
	}
	return e.Data, e.WrittenAt, true, nil
}

func (s *RedisStore) Put(ctx context.Context, key string, data []byte) error {
	raw, err := json.Marshal(redisEntry{Data: data, WrittenAt: time.Now().UTC()})
	if err != nil {
		return err
	}
	// No Redis-side TTL: freshness is decided by the cache layer, and stale
	// entries are still useful for serve-stale fallbacks.
	return s.client.Set(ctx, key, raw, 0).Err()
}

func (s *RedisStore) Delete(ctx context.Context, key string) error {
	return s.client.Del(ctx, key).Err()
}

func (s *RedisStore) DeletePrefix(ctx context.Context, prefix string) (int, error) {
	var n int
	iter := s.client.Scan(ctx, 0, prefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		if err := s.client.Del(ctx, iter.Val()).Err(); err != nil {
			return n, err
		}
		n++
	}
	return n, iter.Err()
}

func (s *RedisStore) Count(ctx context.Context, prefix string) (int, error) {
	var n int
	iter := s.client.Scan(ctx, 0, prefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		n++
	}
	return n, iter.Err()
}

func (s *RedisStore) Close() error { return s.client.Close() }

var _ Store = (*RedisStore)(nil)
