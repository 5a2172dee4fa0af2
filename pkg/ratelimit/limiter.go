// Package ratelimit implements a fixed-window request limiter keyed by caller identity.
//
// The window is fixed, not sliding: a burst straddling a window boundary can
// admit up to 2×MaxRequests in a short span. With the in-memory store each
// process counts on its own, so horizontally scaled instances only
// approximate the configured limit; use RedisStore for a shared counter.
package ratelimit

import (
	"context"
	"math"
	"sync"
	"time"

	"roofsite-go/pkg/log"
)

// DefaultSweepThreshold 是触发过期条目清理的存储规模。
const DefaultSweepThreshold = 10000

// Config 描述一个限流实例：窗口内最多 MaxRequests 次请求。
type Config struct {
	MaxRequests int
	Window      time.Duration
}

// Result 是一次准入判定的结果。
type Result struct {
	Allowed   bool
	Remaining int
	ResetIn   time.Duration
}

// RetryAfter 返回被拒绝后客户端应等待的秒数（向上取整）。
func (r Result) RetryAfter() int {
	return RetryAfterSeconds(r.ResetIn)
}

// RetryAfterSeconds 将剩余时长向上取整为秒，最小为 1。
func RetryAfterSeconds(resetIn time.Duration) int {
	secs := int(math.Ceil(resetIn.Seconds()))
	if secs < 1 {
		return 1
	}
	return secs
}

// Limiter 对单个用途（chat、lead 等）执行固定窗口限流。
type Limiter struct {
	store          Store
	cfg            Config
	now            func() time.Time
	sweepThreshold int

	// 同一进程内串行化 get/set，保证计数不会超过 MaxRequests。
	mu sync.Mutex
}

// Option 配置 Limiter。
type Option func(*Limiter)

// WithClock 注入时钟，测试中使用固定时间。
func WithClock(now func() time.Time) Option {
	return func(l *Limiter) { l.now = now }
}

// WithSweepThreshold 设置触发清理的条目数。
func WithSweepThreshold(n int) Option {
	return func(l *Limiter) {
		if n > 0 {
			l.sweepThreshold = n
		}
	}
}

// New 创建一个 Limiter。
func New(store Store, cfg Config, opts ...Option) *Limiter {
	l := &Limiter{
		store:          store,
		cfg:            cfg,
		now:            time.Now,
		sweepThreshold: DefaultSweepThreshold,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Config 返回限流配置。
func (l *Limiter) Config() Config {
	return l.cfg
}

// Allow 判定 key 的本次请求是否放行，并在放行时计数。
// 存储出错时放行请求（fail open）并记录日志。
func (l *Limiter) Allow(ctx context.Context, key string) Result {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	l.housekeep(ctx, now)

	entry, ok, err := l.store.Get(ctx, key)
	if err != nil {
		log.Warnw("限流存储读取失败，放行请求", "key", key, "error", err)
		return Result{Allowed: true, Remaining: l.cfg.MaxRequests - 1, ResetIn: l.cfg.Window}
	}

	// 窗口到期（now >= WindowResetAt）后重新开窗。
	if !ok || !now.Before(entry.WindowResetAt) {
		entry = Entry{Count: 1, WindowResetAt: now.Add(l.cfg.Window)}
		l.save(ctx, key, entry, now)
		return Result{Allowed: true, Remaining: l.cfg.MaxRequests - 1, ResetIn: l.cfg.Window}
	}

	resetIn := entry.WindowResetAt.Sub(now)
	if entry.Count >= l.cfg.MaxRequests {
		return Result{Allowed: false, Remaining: 0, ResetIn: resetIn}
	}

	entry.Count++
	l.save(ctx, key, entry, now)
	return Result{Allowed: true, Remaining: l.cfg.MaxRequests - entry.Count, ResetIn: resetIn}
}

func (l *Limiter) save(ctx context.Context, key string, entry Entry, now time.Time) {
	if err := l.store.Set(ctx, key, entry, entry.WindowResetAt.Sub(now)); err != nil {
		log.Warnw("限流存储写入失败", "key", key, "error", err)
	}
}

// housekeep 在存储规模超过阈值时清理已过期的窗口。
func (l *Limiter) housekeep(ctx context.Context, now time.Time) {
	n, err := l.store.Len(ctx)
	if err != nil || n <= l.sweepThreshold {
		return
	}
	if err := l.store.Sweep(ctx, now); err != nil {
		log.Warnw("限流存储清理失败", "error", err)
	}
}
