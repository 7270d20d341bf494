// Package dal (data access layer) holds the in-memory authoritative caches
// (§3, §5) plus the Repository persistence capability (§6). Caches are
// created at node start, mutated only by the subscriber owning that topic,
// and are grounded on the teacher's RWMutex-guarded store idiom
// (internal/chain/beacon/chainstore.go, internal/chain/beacon/store.go).
package dal

import "sync"

// BlockCache holds the monotonic block height per chain (§3). The owning
// writer is BlockSubscriber; everyone else only reads.
type BlockCache struct {
	mu     sync.RWMutex
	height map[uint32]uint64
}

func NewBlockCache() *BlockCache {
	return &BlockCache{height: make(map[uint32]uint64)}
}

// SetHeight updates the chain's height if newHeight is strictly greater than
// the current one; a height equal to or below current is a no-op (§4.4, §8).
// It returns true if the height actually advanced.
func (c *BlockCache) SetHeight(chainID uint32, newHeight uint64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if newHeight <= c.height[chainID] {
		return false
	}
	c.height[chainID] = newHeight
	return true
}

// Height returns the current known height for chainID.
func (c *BlockCache) Height(chainID uint32) uint64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.height[chainID]
}
