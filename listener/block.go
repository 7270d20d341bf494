package listener

import (
	"context"

	"github.com/ARPA-Network/randcast-node/chain"
	"github.com/ARPA-Network/randcast-node/common/log"
	"github.com/ARPA-Network/randcast-node/common/retry"
	"github.com/ARPA-Network/randcast-node/event"
	"github.com/ARPA-Network/randcast-node/queue"
)

// Block subscribes to the gateway's block stream and emits NewBlock for
// every height it observes (§4.3), grounded on
// original_source/crates/randcast-node/src/node/listener/block.rs's
// mine-and-publish loop, adapted from a polling mine() call to a real
// subscription since chain.Gateway exposes one.
type Block struct {
	gw     chain.Gateway
	eq     *queue.EventQueue
	retry  retry.Descriptor
	log    log.Logger
}

func NewBlock(gw chain.Gateway, eq *queue.EventQueue, d retry.Descriptor, l log.Logger) *Block {
	return &Block{gw: gw, eq: eq, retry: d, log: l.Named("listener.block")}
}

// Start subscribes once and republishes every height until ctx is
// cancelled or the subscription channel closes. If the subscription itself
// fails to establish, it retries with backoff before giving up.
func (b *Block) Start(ctx context.Context) {
	var heights <-chan uint64
	err := retryChainCall(ctx, b.retry, func(ctx context.Context) error {
		ch, err := b.gw.SubscribeBlocks(ctx)
		if err != nil {
			return err
		}
		heights = ch
		return nil
	})
	if err != nil {
		b.log.Fatalw("block listener could not subscribe, aborting", "chain_id", b.gw.ChainID(), "error", err)
		return
	}

	for {
		select {
		case <-ctx.Done():
			return
		case h, ok := <-heights:
			if !ok {
				return
			}
			b.eq.Publish(ctx, &event.NewBlock{ChainID: b.gw.ChainID(), BlockHeight: h})
		}
	}
}
