package ratelimit

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/boshilin123/chatbot-circuit-diagram/internal/domain"
	"github.com/boshilin123/chatbot-circuit-diagram/internal/logger"
)

type Limits struct {
	PerIP         int
	PerSession    int
	PerExternal   int
	MaxConcurrent int64
	Window        time.Duration
	IdleAfter     time.Duration
}

func DefaultLimits() Limits {
	return Limits{
		PerIP:         30,
		PerSession:    20,
		PerExternal:   10,
		MaxConcurrent: 50,
		Window:        time.Minute,
		IdleAfter:     5 * time.Minute,
	}
}

// Limiter throttles requests per IP and per session, caps in-flight
// requests, and separately gates calls to the external model.
type Limiter struct {
	store  WindowStore
	limits Limits
	log    logger.ILogger
	now    func() time.Time

	inFlight atomic.Int64

	rejectedConcurrency atomic.Int64
	rejectedIP          atomic.Int64
	rejectedSession     atomic.Int64
	rejectedExternal    atomic.Int64
}

func NewLimiter(store WindowStore, limits Limits, log logger.ILogger) *Limiter {
	def := DefaultLimits()
	if limits.PerIP <= 0 {
		limits.PerIP = def.PerIP
	}
	if limits.PerSession <= 0 {
		limits.PerSession = def.PerSession
	}
	if limits.PerExternal <= 0 {
		limits.PerExternal = def.PerExternal
	}
	if limits.MaxConcurrent <= 0 {
		limits.MaxConcurrent = def.MaxConcurrent
	}
	if limits.Window <= 0 {
		limits.Window = def.Window
	}
	if limits.IdleAfter <= 0 {
		limits.IdleAfter = def.IdleAfter
	}
	if store == nil {
		store = NewMemoryStore()
	}
	if log == nil {
		log = logger.NewNop()
	}
	return &Limiter{store: store, limits: limits, log: log, now: time.Now}
}

// Acquire admits one request. The concurrency cap is checked before the
// windows are touched, and a request refused by its session window gives
// its per-IP hit back. The returned release must be called when the request
// finishes; calling it more than once is harmless.
func (l *Limiter) Acquire(ctx context.Context, ip, sessionID string) (func(), error) {
	if l.inFlight.Add(1) > l.limits.MaxConcurrent {
		l.inFlight.Add(-1)
		l.rejectedConcurrency.Add(1)
		return nil, domain.ErrConcurrencyLimit
	}
	var once sync.Once
	release := func() { once.Do(func() { l.inFlight.Add(-1) }) }

	now := l.now()
	if ip != "" && !l.allow(ctx, "ip:"+ip, l.limits.PerIP, now) {
		release()
		l.rejectedIP.Add(1)
		return nil, fmt.Errorf("%w: ip %s", domain.ErrRateLimited, ip)
	}
	if sessionID != "" && !l.allow(ctx, "session:"+sessionID, l.limits.PerSession, now) {
		if ip != "" {
			l.undo(ctx, "ip:"+ip, now)
		}
		release()
		l.rejectedSession.Add(1)
		return nil, fmt.Errorf("%w: session", domain.ErrRateLimited)
	}
	return release, nil
}

// AllowExternal reports whether ip may trigger another external model call.
func (l *Limiter) AllowExternal(ctx context.Context, ip string) bool {
	if l.allow(ctx, "external:"+ip, l.limits.PerExternal, l.now()) {
		return true
	}
	l.rejectedExternal.Add(1)
	return false
}

// allow fails open when the store is unavailable.
func (l *Limiter) allow(ctx context.Context, key string, limit int, now time.Time) bool {
	ok, err := l.store.Allow(ctx, key, limit, l.limits.Window, now)
	if err != nil {
		l.log.Warn("ratelimit", "window store unavailable, allowing request", map[string]interface{}{
			"key":   key,
			"error": err.Error(),
		})
		return true
	}
	return ok
}

func (l *Limiter) undo(ctx context.Context, key string, at time.Time) {
	if err := l.store.Undo(ctx, key, at); err != nil {
		l.log.Warn("ratelimit", "could not return window hit", map[string]interface{}{
			"key":   key,
			"error": err.Error(),
		})
	}
}

// ResetStats zeroes the rejection counters. Windows are kept.
func (l *Limiter) ResetStats() {
	l.rejectedConcurrency.Store(0)
	l.rejectedIP.Store(0)
	l.rejectedSession.Store(0)
	l.rejectedExternal.Store(0)
}

func (l *Limiter) InFlight() int64 {
	return l.inFlight.Load()
}

// Sweep forgets keys idle for longer than IdleAfter.
func (l *Limiter) Sweep() int {
	n, err := l.store.Sweep(context.Background(), l.now().Add(-l.limits.IdleAfter))
	if err != nil {
		l.log.Warn("ratelimit", "sweep failed", map[string]interface{}{"error": err.Error()})
	}
	return n
}

type Stats struct {
	InFlight            int64 `json:"inFlight"`
	MaxConcurrent       int64 `json:"maxConcurrent"`
	TrackedKeys         int   `json:"trackedKeys"`
	RejectedConcurrency int64 `json:"rejectedConcurrency"`
	RejectedIP          int64 `json:"rejectedIp"`
	RejectedSession     int64 `json:"rejectedSession"`
	RejectedExternal    int64 `json:"rejectedExternal"`
}

func (l *Limiter) Stats(ctx context.Context) Stats {
	keys, err := l.store.Keys(ctx)
	if err != nil {
		keys = -1
	}
	return Stats{
		InFlight:            l.inFlight.Load(),
		MaxConcurrent:       l.limits.MaxConcurrent,
		TrackedKeys:         keys,
		RejectedConcurrency: l.rejectedConcurrency.Load(),
		RejectedIP:          l.rejectedIP.Load(),
		RejectedSession:     l.rejectedSession.Load(),
		RejectedExternal:    l.rejectedExternal.Load(),
	}
}
