package dal

import (
	"sync"

	lru "github.com/hashicorp/golang-lru"

	"github.com/ARPA-Network/randcast-node/core"
)

const seenDKGTaskCacheSize = 256

// DKGTaskCache is the "BLSTasks" cache of §5: pending DKG rounds discovered
// from the coordinator contract, indexed by group index, plus a bounded
// dedup set so PreGroupingListener only emits NewDKGTask once per
// (group_index, epoch) and PostCommitGroupingListener can scan for rounds
// whose on-chain commit deadline has lapsed.
type DKGTaskCache struct {
	mu    sync.RWMutex
	tasks map[uint32]*core.DKGTask
	seen  *lru.Cache
}

func NewDKGTaskCache() *DKGTaskCache {
	seen, err := lru.New(seenDKGTaskCacheSize)
	if err != nil {
		panic(err)
	}
	return &DKGTaskCache{tasks: make(map[uint32]*core.DKGTask), seen: seen}
}

func dkgTaskSeenKey(groupIndex, epoch uint32) [2]uint32 {
	return [2]uint32{groupIndex, epoch}
}

// MarkSeenIfNew records (groupIndex, epoch) as seen and reports whether it
// was new.
func (c *DKGTaskCache) MarkSeenIfNew(groupIndex, epoch uint32) bool {
	key := dkgTaskSeenKey(groupIndex, epoch)
	if c.seen.Contains(key) {
		return false
	}
	c.seen.Add(key, struct{}{})
	return true
}

// Upsert persists t, keyed by group index; a newer epoch for the same
// group index replaces the stored task.
func (c *DKGTaskCache) Upsert(t *core.DKGTask) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if existing, ok := c.tasks[t.GroupIndex]; ok && existing.Epoch > t.Epoch {
		return
	}
	c.tasks[t.GroupIndex] = t
}

// Get returns the tracked task for groupIndex, if any.
func (c *DKGTaskCache) Get(groupIndex uint32) (*core.DKGTask, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	t, ok := c.tasks[groupIndex]
	return t, ok
}

// Remove drops the tracked task for groupIndex, once its round has
// resolved (Success, Failure, or superseded by a newer epoch).
func (c *DKGTaskCache) Remove(groupIndex uint32) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.tasks, groupIndex)
}

// PastCommitDeadline returns every tracked task whose Phase3DeadlineHeight
// has cleared currentHeight, per PostCommitGroupingListener's scan (§4.3).
func (c *DKGTaskCache) PastCommitDeadline(currentHeight uint64) []core.DKGTask {
	c.mu.RLock()
	defer c.mu.RUnlock()
	var out []core.DKGTask
	for _, t := range c.tasks {
		if t.Phase3DeadlineHeight <= currentHeight {
			out = append(out, *t)
		}
	}
	return out
}
