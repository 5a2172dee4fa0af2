package ratelimit

import (
	"context"
	"sync"
	"time"
)

// Entry 是某个 key 在当前窗口内的计数。
// WindowResetAt 在开窗时确定，窗口内的后续请求不会延长它。
type Entry struct {
	Count         int       `json:"count"`
	WindowResetAt time.Time `json:"windowResetAt"`
}

// Store 是限流计数的存储抽象。
type Store interface {
	Get(ctx context.Context, key string) (Entry, bool, error)
	// Set 保存条目。ttl 是按限流器时钟计算的窗口剩余时长，支持过期的存储据此回收。
	Set(ctx context.Context, key string, entry Entry, ttl time.Duration) error
	// Len 返回当前条目数，用于判断是否需要清理。
	Len(ctx context.Context) (int, error)
	// Sweep 删除所有窗口已经结束的条目。
	Sweep(ctx context.Context, now time.Time) error
}

// MemoryStore 是进程内的 Store 实现，不跨实例共享，也不持久化。
type MemoryStore struct {
	mu      sync.RWMutex
	entries map[string]Entry
}

// NewMemoryStore 创建一个空的 MemoryStore。
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{entries: make(map[string]Entry)}
}

func (s *MemoryStore) Get(_ context.Context, key string) (Entry, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.entries[key]
	return e, ok, nil
}

func (s *MemoryStore) Set(_ context.Context, key string, entry Entry, _ time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[key] = entry
	return nil
}

func (s *MemoryStore) Len(_ context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries), nil
}

func (s *MemoryStore) Sweep(_ context.Context, now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for k, e := range s.entries {
		if !now.Before(e.WindowResetAt) {
			delete(s.entries, k)
		}
	}
	return nil
}
