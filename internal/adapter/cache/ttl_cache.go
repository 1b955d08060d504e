package cache

import (
	"fmt"
	"hash/fnv"
	"sort"
	"sync"
	"sync/atomic"
	"time"
)

const shardCount = 32

type entry[V any] struct {
	value      V
	createdAt  time.Time
	lastAccess time.Time
	ttl        time.Duration
}

func (e *entry[V]) expired(now time.Time) bool {
	return e.ttl > 0 && now.Sub(e.createdAt) > e.ttl
}

type shard[K comparable, V any] struct {
	mu    sync.Mutex
	items map[K]*entry[V]
}

// Cache is a TTL cache split into independently locked shards. When full it
// drops the least recently accessed quarter of its entries.
type Cache[K comparable, V any] struct {
	shards     [shardCount]*shard[K, V]
	ttl        time.Duration
	maxEntries int
	size       atomic.Int64
	evictMu    sync.Mutex

	hits      atomic.Int64
	misses    atomic.Int64
	evictions atomic.Int64

	now func() time.Time
}

type Stats struct {
	Size      int     `json:"size"`
	Hits      int64   `json:"hits"`
	Misses    int64   `json:"misses"`
	Evictions int64   `json:"evictions"`
	HitRate   float64 `json:"hitRate"`
}

func New[K comparable, V any](ttl time.Duration, maxEntries int) *Cache[K, V] {
	if maxEntries <= 0 {
		maxEntries = 1000
	}
	c := &Cache[K, V]{ttl: ttl, maxEntries: maxEntries, now: time.Now}
	for i := range c.shards {
		c.shards[i] = &shard[K, V]{items: make(map[K]*entry[V])}
	}
	return c
}

func (c *Cache[K, V]) shardFor(key K) *shard[K, V] {
	h := fnv.New32a()
	switch k := any(key).(type) {
	case string:
		h.Write([]byte(k))
	default:
		fmt.Fprint(h, k)
	}
	return c.shards[h.Sum32()%shardCount]
}

// Get returns the value for key. Expired entries are removed on access.
func (c *Cache[K, V]) Get(key K) (V, bool) {
	s := c.shardFor(key)
	now := c.now()

	s.mu.Lock()
	e, ok := s.items[key]
	if ok && e.expired(now) {
		delete(s.items, key)
		c.size.Add(-1)
		ok = false
	}
	if ok {
		e.lastAccess = now
	}
	s.mu.Unlock()

	if !ok {
		c.misses.Add(1)
		var zero V
		return zero, false
	}
	c.hits.Add(1)
	return e.value, true
}

func (c *Cache[K, V]) Put(key K, value V) {
	c.PutWithTTL(key, value, c.ttl)
}

func (c *Cache[K, V]) PutWithTTL(key K, value V, ttl time.Duration) {
	s := c.shardFor(key)
	now := c.now()

	s.mu.Lock()
	_, exists := s.items[key]
	s.items[key] = &entry[V]{value: value, createdAt: now, lastAccess: now, ttl: ttl}
	s.mu.Unlock()

	if !exists && c.size.Add(1) > int64(c.maxEntries) {
		c.evict()
	}
}

func (c *Cache[K, V]) Delete(key K) {
	s := c.shardFor(key)
	s.mu.Lock()
	if _, ok := s.items[key]; ok {
		delete(s.items, key)
		c.size.Add(-1)
	}
	s.mu.Unlock()
}

func (c *Cache[K, V]) Len() int {
	return int(c.size.Load())
}

func (c *Cache[K, V]) Clear() {
	for _, s := range c.shards {
		s.mu.Lock()
		c.size.Add(-int64(len(s.items)))
		s.items = make(map[K]*entry[V])
		s.mu.Unlock()
	}
}

// Sweep removes expired entries and returns how many were removed.
func (c *Cache[K, V]) Sweep() int {
	now := c.now()
	removed := 0
	for _, s := range c.shards {
		s.mu.Lock()
		for k, e := range s.items {
			if e.expired(now) {
				delete(s.items, k)
				removed++
			}
		}
		s.mu.Unlock()
	}
	c.size.Add(-int64(removed))
	return removed
}

type victim[K comparable] struct {
	key        K
	lastAccess time.Time
}

// evict removes the oldest-accessed quarter. Shards are locked one at a time.
func (c *Cache[K, V]) evict() {
	c.evictMu.Lock()
	defer c.evictMu.Unlock()
	if c.size.Load() <= int64(c.maxEntries) {
		return
	}

	var all []victim[K]
	for _, s := range c.shards {
		s.mu.Lock()
		for k, e := range s.items {
			all = append(all, victim[K]{key: k, lastAccess: e.lastAccess})
		}
		s.mu.Unlock()
	}
	if len(all) == 0 {
		return
	}
	sort.Slice(all, func(i, j int) bool { return all[i].lastAccess.Before(all[j].lastAccess) })

	n := len(all) / 4
	if n == 0 {
		n = 1
	}
	for _, v := range all[:n] {
		s := c.shardFor(v.key)
		s.mu.Lock()
		if e, ok := s.items[v.key]; ok && !e.lastAccess.After(v.lastAccess) {
			delete(s.items, v.key)
			c.size.Add(-1)
			c.evictions.Add(1)
		}
		s.mu.Unlock()
	}
}

// ResetStats zeroes the hit, miss and eviction counters. Entries stay.
func (c *Cache[K, V]) ResetStats() {
	c.hits.Store(0)
	c.misses.Store(0)
	c.evictions.Store(0)
}

func (c *Cache[K, V]) Stats() Stats {
	hits, misses := c.hits.Load(), c.misses.Load()
	st := Stats{Size: c.Len(), Hits: hits, Misses: misses, Evictions: c.evictions.Load()}
	if total := hits + misses; total > 0 {
		st.HitRate = float64(hits) / float64(total)
	}
	return st
}
