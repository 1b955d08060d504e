package ratelimit

import (
	"context"
	"hash/fnv"
	"sync"
	"time"
)

// WindowStore keeps sliding-window hit logs per key.
type WindowStore interface {
	// Allow records a hit for key at now unless limit hits already fall
	// inside the window ending at now.
	Allow(ctx context.Context, key string, limit int, window time.Duration, now time.Time) (bool, error)

	// Undo removes one hit Allow recorded for key at the given time.
	Undo(ctx context.Context, key string, at time.Time) error

	// Sweep drops keys whose last hit is before cutoff.
	Sweep(ctx context.Context, cutoff time.Time) (int, error)

	// Keys returns the number of tracked keys.
	Keys(ctx context.Context) (int, error)
}

const shardCount = 32

type hitLog struct {
	hits []time.Time
	last time.Time
}

type windowShard struct {
	mu   sync.Mutex
	logs map[string]*hitLog
}

// MemoryStore is the in-process WindowStore.
type MemoryStore struct {
	shards [shardCount]*windowShard
}

func NewMemoryStore() *MemoryStore {
	s := &MemoryStore{}
	for i := range s.shards {
		s.shards[i] = &windowShard{logs: make(map[string]*hitLog)}
	}
	return s
}

func (s *MemoryStore) shard(key string) *windowShard {
	h := fnv.New32a()
	h.Write([]byte(key))
	return s.shards[h.Sum32()%shardCount]
}

func (s *MemoryStore) Allow(_ context.Context, key string, limit int, window time.Duration, now time.Time) (bool, error) {
	sh := s.shard(key)
	sh.mu.Lock()
	defer sh.mu.Unlock()

	l, ok := sh.logs[key]
	if !ok {
		l = &hitLog{}
		sh.logs[key] = l
	}

	cutoff := now.Add(-window)
	kept := l.hits[:0]
	for _, t := range l.hits {
		if t.After(cutoff) {
			kept = append(kept, t)
		}
	}
	l.hits = kept
	l.last = now

	if len(l.hits) >= limit {
		return false, nil
	}
	l.hits = append(l.hits, now)
	return true, nil
}

func (s *MemoryStore) Undo(_ context.Context, key string, at time.Time) error {
	sh := s.shard(key)
	sh.mu.Lock()
	defer sh.mu.Unlock()

	l, ok := sh.logs[key]
	if !ok {
		return nil
	}
	for i := len(l.hits) - 1; i >= 0; i-- {
		if l.hits[i].Equal(at) {
			l.hits = append(l.hits[:i], l.hits[i+1:]...)
			break
		}
	}
	return nil
}

func (s *MemoryStore) Sweep(_ context.Context, cutoff time.Time) (int, error) {
	removed := 0
	for _, sh := range s.shards {
		sh.mu.Lock()
		for k, l := range sh.logs {
			if l.last.Before(cutoff) {
				delete(sh.logs, k)
				removed++
			}
		}
		sh.mu.Unlock()
	}
	return removed, nil
}

func (s *MemoryStore) Keys(_ context.Context) (int, error) {
	n := 0
	for _, sh := range s.shards {
		sh.mu.Lock()
		n += len(sh.logs)
		sh.mu.Unlock()
	}
	return n, nil
}
