package subscriber

import (
	"context"
	"fmt"

	"github.com/ARPA-Network/randcast-node/common/log"
	"github.com/ARPA-Network/randcast-node/core"
	"github.com/ARPA-Network/randcast-node/dal"
	"github.com/ARPA-Network/randcast-node/event"
	"github.com/ARPA-Network/randcast-node/queue"
)

// PreGrouping verifies this node's membership in a newly-discovered DKG
// round, creates the group's Forming entry, and emits RunDKG (§4.4). A
// round this node isn't a member of is dropped silently; the listener
// already filters most of these, but a membership change between
// discovery and delivery is still possible.
type PreGrouping struct {
	groups *dal.GroupCache
	eq     *queue.EventQueue
	log    log.Logger
}

func NewPreGrouping(groups *dal.GroupCache, eq *queue.EventQueue, l log.Logger) *PreGrouping {
	return &PreGrouping{groups: groups, eq: eq, log: l.Named("subscriber.pre_grouping")}
}

func (p *PreGrouping) Notify(ctx context.Context, e event.Event) error {
	ne, ok := e.(*event.NewDKGTask)
	if !ok {
		return fmt.Errorf("pre_grouping subscriber: unexpected event type %T", e)
	}
	task := ne.DKGTask

	if task.MemberIndex(ne.SelfAddr) < 0 {
		return nil
	}

	if _, err := p.groups.Create(task.GroupIndex, task.Epoch, task.Size); err != nil {
		if core.IsStaleGroupError(err) {
			return nil
		}
		return err
	}

	p.eq.Publish(ctx, &event.RunDKG{DKGTask: task})
	return nil
}
