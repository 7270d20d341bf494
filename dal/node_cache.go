package dal

import (
	"sync"

	"github.com/ARPA-Network/randcast-node/core"
)

// NodeCache holds known node identities, keyed by address (§3).
type NodeCache struct {
	mu    sync.RWMutex
	nodes map[core.Address]*core.Node
}

func NewNodeCache() *NodeCache {
	return &NodeCache{nodes: make(map[core.Address]*core.Node)}
}

func (c *NodeCache) Upsert(n *core.Node) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.nodes[n.Address] = n
}

func (c *NodeCache) Get(addr core.Address) (*core.Node, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	n, ok := c.nodes[addr]
	return n, ok
}

func (c *NodeCache) All() []*core.Node {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]*core.Node, 0, len(c.nodes))
	for _, n := range c.nodes {
		out = append(out, n)
	}
	return out
}
