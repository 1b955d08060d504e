package session

import (
	"hash/fnv"
	"sync"

	gocache "github.com/patrickmn/go-cache"
)

const shardCount = 32

type shard struct {
	// mu orders writes so DeleteIf can inspect and remove in one step.
	mu sync.Mutex
	c  *gocache.Cache
}

// ShardedStore spreads sessions over independently locked go-cache
// instances. Entries never expire on their own; the manager decides.
type ShardedStore[V any] struct {
	shards [shardCount]*shard
}

func NewShardedStore[V any]() *ShardedStore[V] {
	s := &ShardedStore[V]{}
	for i := range s.shards {
		s.shards[i] = &shard{c: gocache.New(gocache.NoExpiration, 0)}
	}
	return s
}

func (s *ShardedStore[V]) shard(id string) *shard {
	h := fnv.New32a()
	h.Write([]byte(id))
	return s.shards[h.Sum32()%shardCount]
}

func (s *ShardedStore[V]) Get(id string) (V, bool) {
	if x, found := s.shard(id).c.Get(id); found {
		v, ok := x.(V)
		return v, ok
	}
	var zero V
	return zero, false
}

func (s *ShardedStore[V]) Put(id string, v V) {
	sh := s.shard(id)
	sh.mu.Lock()
	sh.c.Set(id, v, gocache.NoExpiration)
	sh.mu.Unlock()
}

func (s *ShardedStore[V]) Delete(id string) {
	sh := s.shard(id)
	sh.mu.Lock()
	sh.c.Delete(id)
	sh.mu.Unlock()
}

// DeleteIf removes id only while its current value satisfies match. A value
// put concurrently is either seen by match or survives the call.
func (s *ShardedStore[V]) DeleteIf(id string, match func(v V) bool) bool {
	sh := s.shard(id)
	sh.mu.Lock()
	defer sh.mu.Unlock()
	x, found := sh.c.Get(id)
	if !found {
		return false
	}
	v, ok := x.(V)
	if !ok || !match(v) {
		return false
	}
	sh.c.Delete(id)
	return true
}

func (s *ShardedStore[V]) Len() int {
	n := 0
	for _, sh := range s.shards {
		n += sh.c.ItemCount()
	}
	return n
}

// Range iterates over a copy of each shard, so fn may call back into the store.
func (s *ShardedStore[V]) Range(fn func(id string, v V) bool) {
	for _, sh := range s.shards {
		for id, item := range sh.c.Items() {
			v, ok := item.Object.(V)
			if !ok {
				continue
			}
			if !fn(id, v) {
				return
			}
		}
	}
}
