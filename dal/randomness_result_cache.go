package dal

import (
	"sync"

	"github.com/ARPA-Network/randcast-node/core"
)

// MaxCommittedTimes bounds fulfillment retry attempts before a result is
// quarantined rather than retried forever (§3, §9 open question).
const MaxCommittedTimes = 5

// RandomnessResultCache holds one core.RandomnessResultCache per request,
// created by ReadyToHandleRandomnessTaskSubscriber when this node signs the
// task and removed after successful fulfillment (§3). Partials are added
// only by the committer server, idempotently via
// core.RandomnessResultCache.AddPartial (§4.5);
// RandomnessSignatureAggregationSubscriber updates an entry's state and
// committed_times.
type RandomnessResultCache struct {
	mu      sync.RWMutex
	results map[core.RequestID]*core.RandomnessResultCache
}

func NewRandomnessResultCache() *RandomnessResultCache {
	return &RandomnessResultCache{results: make(map[core.RequestID]*core.RandomnessResultCache)}
}

// GetOrCreate returns the existing cache entry for id, or creates one in
// Collecting state.
func (c *RandomnessResultCache) GetOrCreate(id core.RequestID, chainID, groupIndex uint32, msg []byte, threshold int) *core.RandomnessResultCache {
	c.mu.Lock()
	defer c.mu.Unlock()
	if r, ok := c.results[id]; ok {
		return r
	}
	r := core.NewRandomnessResultCache(id, chainID, groupIndex, msg, threshold)
	c.results[id] = r
	return r
}

// Get returns the cache entry for id, if any; ok is false when id is absent.
func (c *RandomnessResultCache) Get(id core.RequestID) (*core.RandomnessResultCache, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	r, ok := c.results[id]
	return r, ok
}

// Remove deletes the cache entry for id, after successful fulfillment.
func (c *RandomnessResultCache) Remove(id core.RequestID) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.results, id)
}

// ReadyForFulfillment returns every entry in Ready state for chainID, per
// RandomnessSignatureAggregationListener's scan (§4.3).
func (c *RandomnessResultCache) ReadyForFulfillment(chainID uint32) []*core.RandomnessResultCache {
	c.mu.RLock()
	defer c.mu.RUnlock()
	var out []*core.RandomnessResultCache
	for _, r := range c.results {
		if r.ChainID == chainID && r.Status() == core.ResultReady {
			out = append(out, r)
		}
	}
	return out
}

// All returns every tracked result cache entry.
func (c *RandomnessResultCache) All() []*core.RandomnessResultCache {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]*core.RandomnessResultCache, 0, len(c.results))
	for _, r := range c.results {
		out = append(out, r)
	}
	return out
}
