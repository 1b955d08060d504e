package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/boshilin123/chatbot-circuit-diagram/internal/domain"
)

type stepClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *stepClock) now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *stepClock) advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

func newLimiter(limits Limits) (*Limiter, *stepClock) {
	c := &stepClock{t: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)}
	l := NewLimiter(NewMemoryStore(), limits, nil)
	l.now = c.now
	return l, c
}

func TestPerIPWindow(t *testing.T) {
	l, c := newLimiter(Limits{PerIP: 30, PerSession: 1000})
	ctx := context.Background()

	for i := 0; i < 30; i++ {
		release, err := l.Acquire(ctx, "1.2.3.4", fmt.Sprint("s", i))
		if err != nil {
			t.Fatalf("request %d rejected: %v", i+1, err)
		}
		release()
		c.advance(time.Second)
	}
	if _, err := l.Acquire(ctx, "1.2.3.4", "s-extra"); !errors.Is(err, domain.ErrRateLimited) {
		t.Fatalf("31st request within the window should be rate limited, got %v", err)
	}
	if _, err := l.Acquire(ctx, "5.6.7.8", "s-other"); err != nil {
		t.Fatalf("other IP must not be affected: %v", err)
	}

	c.advance(time.Minute)
	release, err := l.Acquire(ctx, "1.2.3.4", "s-later")
	if err != nil {
		t.Fatalf("request after the window rolled over rejected: %v", err)
	}
	release()
}

func TestPerSessionWindow(t *testing.T) {
	l, _ := newLimiter(Limits{PerIP: 1000, PerSession: 20})
	ctx := context.Background()
	for i := 0; i < 20; i++ {
		release, err := l.Acquire(ctx, "ip", "sess")
		if err != nil {
			t.Fatalf("request %d rejected: %v", i+1, err)
		}
		release()
	}
	_, err := l.Acquire(ctx, "ip", "sess")
	if !errors.Is(err, domain.ErrRateLimited) || !domain.IsThrottled(err) {
		t.Fatalf("expected session limit, got %v", err)
	}
	if l.Stats(ctx).RejectedSession != 1 {
		t.Error("session rejection not counted")
	}
}

func TestSessionRejectionKeepsIPBudget(t *testing.T) {
	l, _ := newLimiter(Limits{PerIP: 3, PerSession: 1})
	ctx := context.Background()

	release, err := l.Acquire(ctx, "ip", "busy")
	if err != nil {
		t.Fatal(err)
	}
	release()
	for i := 0; i < 5; i++ {
		if _, err := l.Acquire(ctx, "ip", "busy"); !errors.Is(err, domain.ErrRateLimited) {
			t.Fatalf("attempt %d: expected session limit, got %v", i+1, err)
		}
	}
	for i := 0; i < 2; i++ {
		release, err := l.Acquire(ctx, "ip", fmt.Sprint("other-", i))
		if err != nil {
			t.Fatalf("request %d from the same IP rejected after session refusals: %v", i+1, err)
		}
		release()
	}
	st := l.Stats(ctx)
	if st.RejectedSession != 5 || st.RejectedIP != 0 {
		t.Errorf("unexpected stats %+v", st)
	}
}

func TestMemoryStoreUndo(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	now := time.Now()
	for i := 0; i < 2; i++ {
		if ok, _ := s.Allow(ctx, "k", 2, time.Minute, now); !ok {
			t.Fatalf("hit %d rejected", i+1)
		}
	}
	if err := s.Undo(ctx, "k", now); err != nil {
		t.Fatal(err)
	}
	if ok, _ := s.Allow(ctx, "k", 2, time.Minute, now); !ok {
		t.Error("undone hit still counted")
	}
	if ok, _ := s.Allow(ctx, "k", 2, time.Minute, now); ok {
		t.Error("Undo removed more than one hit")
	}
	if err := s.Undo(ctx, "missing", now); err != nil {
		t.Errorf("undo on unknown key: %v", err)
	}
}

func TestConcurrencyCap(t *testing.T) {
	l, _ := newLimiter(Limits{MaxConcurrent: 2})
	ctx := context.Background()

	r1, err := l.Acquire(ctx, "a", "")
	if err != nil {
		t.Fatal(err)
	}
	r2, err := l.Acquire(ctx, "b", "")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := l.Acquire(ctx, "c", ""); !errors.Is(err, domain.ErrConcurrencyLimit) {
		t.Fatalf("expected ErrConcurrencyLimit, got %v", err)
	}
	// a rejected request must not consume the IP window
	if n, _ := l.store.Keys(ctx); n != 2 {
		t.Errorf("tracked keys = %d, want 2", n)
	}

	r1()
	r1()
	if l.InFlight() != 1 {
		t.Errorf("double release changed the counter: %d", l.InFlight())
	}
	r3, err := l.Acquire(ctx, "c", "")
	if err != nil {
		t.Fatalf("slot not freed: %v", err)
	}
	r2()
	r3()
	if l.InFlight() != 0 {
		t.Errorf("in flight = %d", l.InFlight())
	}
}

func TestRejectedRequestReleasesSlot(t *testing.T) {
	l, _ := newLimiter(Limits{PerIP: 1, MaxConcurrent: 5})
	ctx := context.Background()
	release, _ := l.Acquire(ctx, "ip", "")
	release()
	if _, err := l.Acquire(ctx, "ip", ""); err == nil {
		t.Fatal("expected rate limit")
	}
	if l.InFlight() != 0 {
		t.Errorf("rate-limited request leaked a slot: %d", l.InFlight())
	}
}

func TestAllowExternal(t *testing.T) {
	l, c := newLimiter(Limits{PerExternal: 10})
	ctx := context.Background()
	for i := 0; i < 10; i++ {
		if !l.AllowExternal(ctx, "ip") {
			t.Fatalf("external call %d rejected", i+1)
		}
	}
	if l.AllowExternal(ctx, "ip") {
		t.Fatal("11th external call allowed")
	}
	// the general window is independent
	release, err := l.Acquire(ctx, "ip", "s")
	if err != nil {
		t.Fatalf("general request blocked by external window: %v", err)
	}
	release()

	c.advance(61 * time.Second)
	if !l.AllowExternal(ctx, "ip") {
		t.Error("external window did not roll over")
	}
}

func TestSweepDropsIdleKeys(t *testing.T) {
	l, c := newLimiter(DefaultLimits())
	ctx := context.Background()
	release, _ := l.Acquire(ctx, "old", "old-session")
	release()
	c.advance(4 * time.Minute)
	release, _ = l.Acquire(ctx, "new", "")
	release()
	c.advance(2 * time.Minute)

	if n := l.Sweep(); n != 2 {
		t.Errorf("swept %d keys, want 2", n)
	}
	if n, _ := l.store.Keys(ctx); n != 1 {
		t.Errorf("remaining keys = %d, want 1", n)
	}
}

type failingStore struct{}

func (failingStore) Allow(context.Context, string, int, time.Duration, time.Time) (bool, error) {
	return false, errors.New("connection refused")
}
func (failingStore) Undo(context.Context, string, time.Time) error {
	return errors.New("down")
}
func (failingStore) Sweep(context.Context, time.Time) (int, error) { return 0, nil }
func (failingStore) Keys(context.Context) (int, error)             { return 0, errors.New("down") }

func TestStoreFailureFailsOpen(t *testing.T) {
	l := NewLimiter(failingStore{}, DefaultLimits(), nil)
	release, err := l.Acquire(context.Background(), "ip", "s")
	if err != nil {
		t.Fatalf("store failure should not reject: %v", err)
	}
	release()
	if l.Stats(context.Background()).TrackedKeys != -1 {
		t.Error("unavailable key count should be reported as -1")
	}
}

func TestRedisStore(t *testing.T) {
	addr := os.Getenv("CHATBOT_TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("CHATBOT_TEST_REDIS_ADDR not set")
	}
	store, err := NewRedisStore(RedisConfig{Addr: addr, Prefix: fmt.Sprintf("chatbot:test:%d:", time.Now().UnixNano())})
	if err != nil {
		t.Fatal(err)
	}
	defer store.Close()

	ctx := context.Background()
	now := time.Now()
	for i := 0; i < 3; i++ {
		ok, err := store.Allow(ctx, "k", 3, time.Minute, now.Add(time.Duration(i)*time.Millisecond))
		if err != nil || !ok {
			t.Fatalf("hit %d: ok=%v err=%v", i+1, ok, err)
		}
	}
	if ok, _ := store.Allow(ctx, "k", 3, time.Minute, now.Add(10*time.Millisecond)); ok {
		t.Error("4th hit inside the window allowed")
	}
	if ok, _ := store.Allow(ctx, "k", 3, time.Minute, now.Add(61*time.Second)); !ok {
		t.Error("hit after the window rejected")
	}
}
