// Package syncutil holds small concurrency helpers shared by the in-memory
// stores.
package syncutil

import (
	"hash/fnv"
	"io"
	"sync"
)

// shardCount trades memory for collision rate. Tenants are the usual key, so
// collisions only cost a little false serialization between two tenants.
const shardCount = 128

// ShardedMutex is a fixed pool of mutexes keyed by string, used to serialize
// per-tenant check-and-create sequences. Memory stays bounded no matter how
// many distinct keys are locked over time.
type ShardedMutex struct {
	shards [shardCount]sync.Mutex
}

// Lock acquires the mutex for key and returns its unlock function.
func (s *ShardedMutex) Lock(key string) func() {
	mu := s.shard(key)
	mu.Lock()
	return mu.Unlock
}

func (s *ShardedMutex) shard(key string) *sync.Mutex {
	h := fnv.New64a()
	_, _ = io.WriteString(h, key)
	return &s.shards[h.Sum64()%shardCount]
}
