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

// PostSuccessGrouping persists a successful DKG round's qualified
// membership, partial public keys and this node's share into the group
// cache, marks it Ready, and emits DKGPostProcess (§4.4). A stale
// (index, epoch) — superseded by a newer round before this event was
// delivered — is dropped silently.
type PostSuccessGrouping struct {
	groups *dal.GroupCache
	eq     *queue.EventQueue
	log    log.Logger
}

func NewPostSuccessGrouping(groups *dal.GroupCache, eq *queue.EventQueue, l log.Logger) *PostSuccessGrouping {
	return &PostSuccessGrouping{groups: groups, eq: eq, log: l.Named("subscriber.post_success_grouping")}
}

func (p *PostSuccessGrouping) Notify(ctx context.Context, e event.Event) error {
	se, ok := e.(*event.DKGSuccess)
	if !ok {
		return fmt.Errorf("post_success_grouping subscriber: unexpected event type %T", e)
	}
	result := se.Group

	err := p.groups.Mutate(se.GroupIndex, se.Epoch, func(g *core.Group) error {
		g.Size = result.Size
		g.Threshold = result.Threshold
		g.MemberOrder = result.MemberOrder
		g.Members = result.Members
		g.Committers = result.Committers
		g.PublicKey = result.PublicKey
		g.PublicPolynomial = result.PublicPolynomial
		g.Share = result.Share
		g.State = core.GroupReady
		return g.Valid()
	})
	if err != nil {
		if core.IsStaleGroupError(err) {
			return nil
		}
		return err
	}

	p.eq.Publish(ctx, &event.DKGPostProcess{GroupIndex: se.GroupIndex, GroupEpoch: se.Epoch})
	return nil
}
