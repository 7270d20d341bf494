package listener

import (
	"context"
	"time"

	"github.com/ARPA-Network/randcast-node/chain"
	"github.com/ARPA-Network/randcast-node/common/log"
	"github.com/ARPA-Network/randcast-node/common/retry"
	"github.com/ARPA-Network/randcast-node/core"
	"github.com/ARPA-Network/randcast-node/dal"
)

// PostCommitGrouping polls for DKG rounds whose on-chain commit deadline
// (DKGTask.Phase3DeadlineHeight) has lapsed (§4.3). A round still Forming
// past its deadline timed out without reaching quorum and is disbanded so
// it stops blocking a fresh DKGTask for the same group index; a round
// already Ready was resolved in time and is just retired from the task
// cache.
type PostCommitGrouping struct {
	gw       chain.Gateway
	tasks    *dal.DKGTaskCache
	groups   *dal.GroupCache
	retry    retry.Descriptor
	interval time.Duration
	log      log.Logger
}

func NewPostCommitGrouping(gw chain.Gateway, tasks *dal.DKGTaskCache, groups *dal.GroupCache, d retry.Descriptor, interval time.Duration, l log.Logger) *PostCommitGrouping {
	return &PostCommitGrouping{gw: gw, tasks: tasks, groups: groups, retry: d, interval: interval, log: l.Named("listener.post_commit_grouping")}
}

func (p *PostCommitGrouping) Start(ctx context.Context) {
	pollEvery(ctx, p.interval, p.log, "PostCommitGrouping", p.poll)
}

func (p *PostCommitGrouping) poll(ctx context.Context) error {
	var height uint64
	err := retryChainCall(ctx, p.retry, func(ctx context.Context) error {
		h, err := p.gw.CurrentBlock(ctx)
		if err != nil {
			return err
		}
		height = h
		return nil
	})
	if err != nil {
		return err
	}

	for _, t := range p.tasks.PastCommitDeadline(height) {
		group, ok := p.groups.Get(t.GroupIndex)
		if ok && group.Epoch == t.Epoch && group.State == core.GroupForming {
			p.groups.Disband(t.GroupIndex)
			p.log.Warnw("dkg round timed out before reaching quorum, disbanding", "group_index", t.GroupIndex, "epoch", t.Epoch)
		}
		p.tasks.Remove(t.GroupIndex)
	}
	return nil
}
