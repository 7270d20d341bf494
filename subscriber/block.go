// Package subscriber implements the §4.4 event handlers: the Queue.Subscriber
// side of the node pipeline, grounded on
// original_source/crates/randcast-node/src/node/subscriber/block.rs's
// notify()-updates-cache shape, adapted from the original's raw
// downcast-by-pointer-cast to a plain Go type switch/assertion.
package subscriber

import (
	"context"
	"fmt"

	"github.com/ARPA-Network/randcast-node/common/log"
	"github.com/ARPA-Network/randcast-node/dal"
	"github.com/ARPA-Network/randcast-node/event"
)

// Block updates the block cache's height monotonically on NewBlock,
// dropping any event at or below the current height (§4.4, §8).
type Block struct {
	cache *dal.BlockCache
	log   log.Logger
}

func NewBlock(cache *dal.BlockCache, l log.Logger) *Block {
	return &Block{cache: cache, log: l.Named("subscriber.block")}
}

func (b *Block) Notify(_ context.Context, e event.Event) error {
	nb, ok := e.(*event.NewBlock)
	if !ok {
		return fmt.Errorf("block subscriber: unexpected event type %T", e)
	}
	if advanced := b.cache.SetHeight(nb.ChainID, nb.BlockHeight); !advanced {
		b.log.Debugw("dropping stale or duplicate block height", "chain_id", nb.ChainID, "height", nb.BlockHeight)
	}
	return nil
}
