package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"roofsite-go/internal/config"
)

type fakeClock struct{ t time.Time }

func (c *fakeClock) Now() time.Time          { return c.t }
func (c *fakeClock) Advance(d time.Duration) { c.t = c.t.Add(d) }

func newTestLimiter(max int, window time.Duration) (*Limiter, *fakeClock, *MemoryStore) {
	clock := &fakeClock{t: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)}
	store := NewMemoryStore()
	return New(store, Config{MaxRequests: max, Window: window}, WithClock(clock.Now)), clock, store
}

func TestAllowWithinWindow(t *testing.T) {
	l, clock, _ := newTestLimiter(5, time.Minute)
	ctx := context.Background()

	for i := 1; i <= 5; i++ {
		res := l.Allow(ctx, "chat:u1")
		if !res.Allowed {
			t.Fatalf("call %d: expected allowed", i)
		}
		if res.Remaining != 5-i {
			t.Fatalf("call %d: remaining = %d, want %d", i, res.Remaining, 5-i)
		}
		clock.Advance(time.Second)
	}

	res := l.Allow(ctx, "chat:u1")
	if res.Allowed {
		t.Fatal("6th call should be denied")
	}
	if res.Remaining != 0 {
		t.Fatalf("remaining = %d, want 0", res.Remaining)
	}
	if res.ResetIn <= 0 || res.ResetIn > time.Minute {
		t.Fatalf("resetIn = %v, want (0, 1m]", res.ResetIn)
	}
	// 窗口从第一次请求开始计算，后续请求不延长窗口。
	if want := time.Minute - 5*time.Second; res.ResetIn != want {
		t.Fatalf("resetIn = %v, want %v", res.ResetIn, want)
	}
}

func TestDeniedCallsAreNotCounted(t *testing.T) {
	l, _, store := newTestLimiter(2, time.Minute)
	ctx := context.Background()

	l.Allow(ctx, "k")
	l.Allow(ctx, "k")
	for i := 0; i < 3; i++ {
		if l.Allow(ctx, "k").Allowed {
			t.Fatal("expected denial")
		}
	}
	e, ok, _ := store.Get(ctx, "k")
	if !ok || e.Count != 2 {
		t.Fatalf("count = %d, want 2", e.Count)
	}
}

func TestWindowReset(t *testing.T) {
	l, clock, _ := newTestLimiter(3, time.Minute)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		l.Allow(ctx, "k")
	}
	denied := l.Allow(ctx, "k")
	if denied.Allowed {
		t.Fatal("expected denial")
	}

	clock.Advance(denied.ResetIn)
	res := l.Allow(ctx, "k")
	if !res.Allowed {
		t.Fatal("expected allowed after waiting resetIn")
	}
	if res.Remaining != 2 {
		t.Fatalf("remaining = %d, want 2", res.Remaining)
	}
}

func TestKeyIsolation(t *testing.T) {
	l, _, _ := newTestLimiter(1, time.Minute)
	ctx := context.Background()

	if !l.Allow(ctx, "a").Allowed {
		t.Fatal("a should be allowed")
	}
	if l.Allow(ctx, "a").Allowed {
		t.Fatal("a second call should be denied")
	}
	if res := l.Allow(ctx, "b"); !res.Allowed || res.Remaining != 0 {
		t.Fatalf("b should be unaffected, got %+v", res)
	}
}

func TestChatScenario429(t *testing.T) {
	l, clock, _ := newTestLimiter(20, 60*time.Second)
	ctx := context.Background()

	for i := 0; i < 20; i++ {
		if !l.Allow(ctx, "chat:42").Allowed {
			t.Fatalf("call %d should be allowed", i+1)
		}
		clock.Advance(100 * time.Millisecond)
	}
	res := l.Allow(ctx, "chat:42")
	if res.Allowed {
		t.Fatal("21st call should be denied")
	}
	if ra := res.RetryAfter(); ra < 1 || ra > 60 {
		t.Fatalf("retryAfter = %d, want 1..60", ra)
	}
}

func TestSweepRemovesExpiredEntries(t *testing.T) {
	clock := &fakeClock{t: time.Unix(0, 0)}
	store := NewMemoryStore()
	l := New(store, Config{MaxRequests: 1, Window: time.Second}, WithClock(clock.Now), WithSweepThreshold(3))
	ctx := context.Background()

	for i := 0; i < 4; i++ {
		l.Allow(ctx, fmt.Sprintf("ip-%d", i))
	}
	clock.Advance(2 * time.Second)
	l.Allow(ctx, "fresh")

	n, _ := store.Len(ctx)
	if n != 1 {
		t.Fatalf("store size = %d, want 1 after sweep", n)
	}
}

func TestRetryAfterSeconds(t *testing.T) {
	cases := []struct {
		in   time.Duration
		want int
	}{
		{0, 1},
		{300 * time.Millisecond, 1},
		{time.Second, 1},
		{1001 * time.Millisecond, 2},
		{59500 * time.Millisecond, 60},
	}
	for _, c := range cases {
		if got := RetryAfterSeconds(c.in); got != c.want {
			t.Errorf("RetryAfterSeconds(%v) = %d, want %d", c.in, got, c.want)
		}
	}
}

func TestNewSetUsesIndependentStores(t *testing.T) {
	set := NewSet(config.RateLimitConfig{
		Backend: "memory",
		Chat:    config.LimitConfig{MaxRequests: 1, WindowSeconds: 60},
		Publish: config.LimitConfig{MaxRequests: 1, WindowSeconds: 60},
	}, nil)
	ctx := context.Background()

	if !set.Chat.Allow(ctx, "user:1").Allowed {
		t.Fatal("chat should allow first call")
	}
	if !set.Publish.Allow(ctx, "user:1").Allowed {
		t.Fatal("publish must not share chat's counter")
	}
	if got := set.Chat.Config().Window; got != time.Minute {
		t.Fatalf("chat window = %v", got)
	}
}

type brokenStore struct{ MemoryStore }

func (*brokenStore) Get(context.Context, string) (Entry, bool, error) {
	return Entry{}, false, errors.New("connection refused")
}

func TestStoreFailureFailsOpen(t *testing.T) {
	l := New(&brokenStore{}, Config{MaxRequests: 1, Window: time.Minute})
	for i := 0; i < 3; i++ {
		if res := l.Allow(context.Background(), "lead:10.0.0.1"); !res.Allowed {
			t.Fatalf("call %d denied while store is down", i+1)
		}
	}
}

type ttlRecorder struct {
	MemoryStore
	ttls []time.Duration
}

func (s *ttlRecorder) Set(ctx context.Context, key string, entry Entry, ttl time.Duration) error {
	s.ttls = append(s.ttls, ttl)
	return s.MemoryStore.Set(ctx, key, entry, ttl)
}

func TestStoreTTLFollowsLimiterClock(t *testing.T) {
	// 时钟远离真实时间，TTL 仍应等于窗口剩余时长。
	clock := &fakeClock{t: time.Date(2001, 1, 1, 0, 0, 0, 0, time.UTC)}
	store := &ttlRecorder{MemoryStore: MemoryStore{entries: map[string]Entry{}}}
	l := New(store, Config{MaxRequests: 3, Window: time.Minute}, WithClock(clock.Now))
	ctx := context.Background()

	l.Allow(ctx, "publish:7")
	clock.Advance(15 * time.Second)
	l.Allow(ctx, "publish:7")

	if len(store.ttls) != 2 || store.ttls[0] != time.Minute || store.ttls[1] != 45*time.Second {
		t.Errorf("ttls = %v, want [1m0s 45s]", store.ttls)
	}
}
