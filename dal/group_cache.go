package dal

import (
	"fmt"
	"sync"

	"github.com/ARPA-Network/randcast-node/core"
)

// GroupCache holds one Group per group index: the lifecycle of §3 — created
// Forming by the NewDKGTask handler, transitioned to Ready on DKGSuccess,
// replaced when a newer (index, epoch) is created, and disbanded when its
// DKG round times out while still Forming. PostSuccessGroupingSubscriber
// is the sole writer of the Ready transition; all other access is read-mostly
// (§5, §9 design note on the group cache as an actor with one writer).
type GroupCache struct {
	mu     sync.RWMutex
	groups map[uint32]*core.Group
}

func NewGroupCache() *GroupCache {
	return &GroupCache{groups: make(map[uint32]*core.Group)}
}

// Get returns the current group for index, if any.
func (c *GroupCache) Get(index uint32) (*core.Group, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	g, ok := c.groups[index]
	return g, ok
}

// Create installs a fresh Forming group for (index, epoch), rejecting the
// event silently-from-the-handler's-perspective (returning a stale error for
// the caller to drop) if a group with an equal or newer (index, epoch)
// already exists (§3 invariant: (index, epoch) strictly increases).
func (c *GroupCache) Create(index, epoch uint32, size int) (*core.Group, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if existing, ok := c.groups[index]; ok && !existing.Supersedes(index, epoch) {
		if existing.Epoch == epoch {
			return nil, fmt.Errorf("%w: group %d epoch %d already exists", core.ErrGroupEpochObsolete, index, epoch)
		}
		return nil, fmt.Errorf("%w: group %d epoch %d superseded by epoch %d", core.ErrGroupEpochObsolete, index, epoch, existing.Epoch)
	}

	g := core.NewGroup(index, epoch, size)
	c.groups[index] = g
	return g, nil
}

// Mutate loads the group matching (index, epoch) exactly and applies fn
// under the cache's write lock. It returns ErrGroupIndexObsolete /
// ErrGroupEpochObsolete if the cache no longer holds that exact (index,
// epoch) — the caller should drop the originating event silently (§4.4, §7).
func (c *GroupCache) Mutate(index, epoch uint32, fn func(g *core.Group) error) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	g, ok := c.groups[index]
	if !ok {
		return fmt.Errorf("%w: group %d", core.ErrGroupIndexObsolete, index)
	}
	if g.Epoch != epoch {
		return fmt.Errorf("%w: group %d epoch %d, cache has epoch %d", core.ErrGroupEpochObsolete, index, epoch, g.Epoch)
	}
	return fn(g)
}

// Restore installs g as-is, overwriting whatever the cache currently holds
// for g.Index. Used at startup to rehydrate the cache from the repository
// (§6); never called from event handling, where Create/Mutate's (index,
// epoch) bookkeeping applies instead.
func (c *GroupCache) Restore(g *core.Group) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.groups[g.Index] = g
}

// Disband marks the group at index Disbanded; PostCommitGroupingListener
// calls it for a Forming group whose DKG round passed its phase-3 deadline
// (§3).
func (c *GroupCache) Disband(index uint32) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if g, ok := c.groups[index]; ok {
		g.State = core.GroupDisbanded
	}
}

// All returns every currently-tracked group, for listeners scanning for
// post-processing triggers etc.
func (c *GroupCache) All() []*core.Group {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]*core.Group, 0, len(c.groups))
	for _, g := range c.groups {
		out = append(out, g)
	}
	return out
}
