package listener

import (
	"context"
	"sync"
	"time"

	"github.com/ARPA-Network/randcast-node/common/log"
	"github.com/ARPA-Network/randcast-node/core"
	"github.com/ARPA-Network/randcast-node/dal"
	"github.com/ARPA-Network/randcast-node/event"
	"github.com/ARPA-Network/randcast-node/queue"
)

// PostGrouping is a backstop over PostSuccessGroupingSubscriber's direct
// DKGPostProcess emission: it scans the group cache for Ready groups and
// re-emits DKGPostProcess for any (index, epoch) it hasn't seen yet,
// catching a Ready group whose original emission was lost (e.g. the node
// restarted between DKGSuccess and PostGroupingSubscriber's call) (§4.3).
// PostGroupingSubscriber's own exactly-once-per-(index,epoch) call to the
// controller makes a duplicate emission harmless.
type PostGrouping struct {
	groups   *dal.GroupCache
	eq       *queue.EventQueue
	interval time.Duration
	log      log.Logger

	mu   sync.Mutex
	seen map[[2]uint32]struct{}
}

func NewPostGrouping(groups *dal.GroupCache, eq *queue.EventQueue, interval time.Duration, l log.Logger) *PostGrouping {
	return &PostGrouping{groups: groups, eq: eq, interval: interval, log: l.Named("listener.post_grouping"), seen: make(map[[2]uint32]struct{})}
}

func (p *PostGrouping) Start(ctx context.Context) {
	pollEvery(ctx, p.interval, p.log, "PostGrouping", p.poll)
}

func (p *PostGrouping) poll(ctx context.Context) error {
	for _, g := range p.groups.All() {
		if g.State != core.GroupReady {
			continue
		}
		key := [2]uint32{g.Index, g.Epoch}

		p.mu.Lock()
		_, already := p.seen[key]
		if !already {
			p.seen[key] = struct{}{}
		}
		p.mu.Unlock()

		if already {
			continue
		}
		p.eq.Publish(ctx, &event.DKGPostProcess{GroupIndex: g.Index, GroupEpoch: g.Epoch})
	}
	return nil
}
