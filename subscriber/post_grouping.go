package subscriber

import (
	"context"
	"fmt"
	"sync"

	"github.com/ARPA-Network/randcast-node/chain"
	"github.com/ARPA-Network/randcast-node/common/log"
	"github.com/ARPA-Network/randcast-node/common/retry"
	"github.com/ARPA-Network/randcast-node/event"
)

// PostGrouping calls the controller contract's post-process entrypoint
// exactly once per (index, epoch) on DKGPostProcess (§4.4). Both the
// synchronous emission from PostSuccessGrouping and the PostGrouping
// listener's catch-up scan route through this handler, so dedup lives
// here rather than in either emitter.
type PostGrouping struct {
	gw    chain.Gateway
	retry retry.Descriptor
	log   log.Logger

	mu    sync.Mutex
	seen  map[[2]uint32]struct{}
}

func NewPostGrouping(gw chain.Gateway, d retry.Descriptor, l log.Logger) *PostGrouping {
	return &PostGrouping{gw: gw, retry: d, log: l.Named("subscriber.post_grouping"), seen: make(map[[2]uint32]struct{})}
}

func (p *PostGrouping) Notify(ctx context.Context, e event.Event) error {
	pe, ok := e.(*event.DKGPostProcess)
	if !ok {
		return fmt.Errorf("post_grouping subscriber: unexpected event type %T", e)
	}

	key := [2]uint32{pe.GroupIndex, pe.GroupEpoch}
	p.mu.Lock()
	if _, already := p.seen[key]; already {
		p.mu.Unlock()
		return nil
	}
	p.seen[key] = struct{}{}
	p.mu.Unlock()

	err := retry.Do(ctx, p.retry, func(ctx context.Context) error {
		receipt, err := p.gw.PostProcessDKG(ctx, pe.GroupIndex, pe.GroupEpoch)
		if err != nil {
			return err
		}
		if !receipt.Success {
			return receipt.Err
		}
		return nil
	})
	if err != nil {
		p.log.Errorw("post-process dkg failed", "group_index", pe.GroupIndex, "epoch", pe.GroupEpoch, "error", err)
		p.mu.Lock()
		delete(p.seen, key)
		p.mu.Unlock()
		return err
	}
	return nil
}
