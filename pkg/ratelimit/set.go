package ratelimit

import (
	"roofsite-go/internal/config"

	"github.com/go-redis/redis/v8"
)

// Set 持有每个用途各自独立的 Limiter，互不共享存储。
type Set struct {
	Chat    *Limiter
	Blog    *Limiter
	Lead    *Limiter
	Portal  *Limiter
	Publish *Limiter
}

// NewSet 根据配置创建全部限流实例。backend 为 "redis" 且 rdb 非空时使用 RedisStore。
func NewSet(cfg config.RateLimitConfig, rdb *redis.Client) *Set {
	build := func(name string, lc config.LimitConfig) *Limiter {
		var store Store
		if cfg.Backend == "redis" && rdb != nil {
			store = NewRedisStore(rdb, name)
		} else {
			store = NewMemoryStore()
		}
		return New(store, Config{MaxRequests: lc.MaxRequests, Window: lc.Window()}, WithSweepThreshold(cfg.SweepThreshold))
	}
	return &Set{
		Chat:    build("chat", cfg.Chat),
		Blog:    build("blog", cfg.Blog),
		Lead:    build("lead", cfg.Lead),
		Portal:  build("portal", cfg.Portal),
		Publish: build("publish", cfg.Publish),
	}
}
