package ratelimit

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

// RedisStore 将计数保存在 Redis 中，多个实例共享同一个窗口。
// 条目的 TTL 等于窗口剩余时长，过期由 Redis 负责，因此 Sweep 不做任何事。
type RedisStore struct {
	rdb    *redis.Client
	prefix string
}

// NewRedisStore 创建一个 RedisStore，所有 key 都加上 prefix 前缀。
func NewRedisStore(rdb *redis.Client, prefix string) *RedisStore {
	return &RedisStore{rdb: rdb, prefix: prefix}
}

func (s *RedisStore) key(k string) string {
	return fmt.Sprintf("ratelimit:%s:%s", s.prefix, k)
}

func (s *RedisStore) Get(ctx context.Context, key string) (Entry, bool, error) {
	raw, err := s.rdb.Get(ctx, s.key(key)).Bytes()
	if err == redis.Nil {
		return Entry{}, false, nil
	}
	if err != nil {
		return Entry{}, false, fmt.Errorf("failed to get rate limit entry: %w", err)
	}
	var e Entry
	if err := json.Unmarshal(raw, &e); err != nil {
		return Entry{}, false, fmt.Errorf("failed to unmarshal rate limit entry: %w", err)
	}
	return e, true, nil
}

func (s *RedisStore) Set(ctx context.Context, key string, entry Entry, ttl time.Duration) error {
	if ttl < time.Millisecond {
		ttl = time.Millisecond
	}
	raw, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("failed to marshal rate limit entry: %w", err)
	}
	if err := s.rdb.Set(ctx, s.key(key), raw, ttl).Err(); err != nil {
		return fmt.Errorf("failed to set rate limit entry: %w", err)
	}
	return nil
}

// Len 始终返回 0：Redis 通过 TTL 自行回收，不需要触发清理。
func (s *RedisStore) Len(_ context.Context) (int, error) {
	return 0, nil
}

func (s *RedisStore) Sweep(_ context.Context, _ time.Time) error {
	return nil
}
