package syncutil

import (
	"sync"
	"testing"
)

func TestShardedMutex_MutualExclusion(t *testing.T) {
	var m ShardedMutex

	var counter int64
	var wg sync.WaitGroup
	const n = 100

	wg.Add(n)
	for i := 0; i < n; i++ {
		go func() {
			defer wg.Done()
			unlock := m.Lock("counter")
			defer unlock()
			// Non-atomic increment; if mutual exclusion is broken, the race
			// detector and the final count will both catch it.
			counter++
		}()
	}
	wg.Wait()

	if counter != n {
		t.Errorf("expected counter %d, got %d", n, counter)
	}
}

func TestShardedMutex_IndependentKeys(t *testing.T) {
	var m ShardedMutex

	unlock1 := m.Lock("tenant-a")
	defer unlock1()

	// A different key must not block (barring shard collision, and these two
	// hash to different shards).
	done := make(chan struct{})
	go func() {
		unlock2 := m.Lock("tenant-b")
		unlock2()
		close(done)
	}()
	<-done
}
