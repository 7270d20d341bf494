package dal

import (
	"sync"

	lru "github.com/hashicorp/golang-lru"

	"github.com/ARPA-Network/randcast-node/core"
)

const seenRequestCacheSize = 4096

// RandomnessTaskCache holds pending RandomnessTask rows, indexed by
// request_id, plus a bounded "seen" dedup set so
// NewRandomnessTaskListener only emits NewRandomnessTask once per request
// even across restarts of its polling loop within the cache's lifetime
// (§4.3).
type RandomnessTaskCache struct {
	mu    sync.RWMutex
	tasks map[core.RequestID]*core.RandomnessTask
	seen  *lru.Cache
}

func NewRandomnessTaskCache() *RandomnessTaskCache {
	seen, err := lru.New(seenRequestCacheSize)
	if err != nil {
		// lru.New only errors on a non-positive size, which is a
		// programmer error, not a runtime condition to recover from.
		panic(err)
	}
	return &RandomnessTaskCache{
		tasks: make(map[core.RequestID]*core.RandomnessTask),
		seen:  seen,
	}
}

// MarkSeenIfNew records id as seen and reports whether it was new (i.e. the
// listener should emit NewRandomnessTask for it).
func (c *RandomnessTaskCache) MarkSeenIfNew(id core.RequestID) bool {
	if c.seen.Contains(id) {
		return false
	}
	c.seen.Add(id, struct{}{})
	return true
}

// Upsert persists t, keyed by request id.
func (c *RandomnessTaskCache) Upsert(t *core.RandomnessTask) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.tasks[t.RequestID] = t
}

// Get returns the pending task for id, if any.
func (c *RandomnessTaskCache) Get(id core.RequestID) (*core.RandomnessTask, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	t, ok := c.tasks[id]
	return t, ok
}

// Remove drops a task once it has been handed off (e.g. once
// ReadyToHandleRandomnessTask has been emitted for it).
func (c *RandomnessTaskCache) Remove(id core.RequestID) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.tasks, id)
}

// PendingBelow returns every pending task whose AssignmentBlockHeight has
// cleared currentHeight - confirmations, per ReadyToHandleRandomnessTaskListener
// (§4.3).
func (c *RandomnessTaskCache) PendingBelow(currentHeight uint64) []core.RandomnessTask {
	c.mu.RLock()
	defer c.mu.RUnlock()
	var out []core.RandomnessTask
	for _, t := range c.tasks {
		confirmHeight := t.AssignmentBlockHeight + uint64(t.RequestConfirmations)
		if confirmHeight <= currentHeight {
			out = append(out, *t)
		}
	}
	return out
}
