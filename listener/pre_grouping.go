package listener

import (
	"context"
	"time"

	"github.com/ARPA-Network/randcast-node/chain"
	"github.com/ARPA-Network/randcast-node/common/log"
	"github.com/ARPA-Network/randcast-node/common/retry"
	"github.com/ARPA-Network/randcast-node/core"
	"github.com/ARPA-Network/randcast-node/dal"
	"github.com/ARPA-Network/randcast-node/event"
	"github.com/ARPA-Network/randcast-node/queue"
)

// PreGrouping polls the coordinator contract for new DKG rounds and emits
// NewDKGTask for each one this node is a member of (§4.3).
type PreGrouping struct {
	gw       chain.Gateway
	self     core.Address
	tasks    *dal.DKGTaskCache
	eq       *queue.EventQueue
	retry    retry.Descriptor
	interval time.Duration
	log      log.Logger
}

func NewPreGrouping(gw chain.Gateway, self core.Address, tasks *dal.DKGTaskCache, eq *queue.EventQueue, d retry.Descriptor, interval time.Duration, l log.Logger) *PreGrouping {
	return &PreGrouping{gw: gw, self: self, tasks: tasks, eq: eq, retry: d, interval: interval, log: l.Named("listener.pre_grouping")}
}

func (p *PreGrouping) Start(ctx context.Context) {
	pollEvery(ctx, p.interval, p.log, "PreGrouping", p.poll)
}

func (p *PreGrouping) poll(ctx context.Context) error {
	var pending []core.DKGTask
	err := retryChainCall(ctx, p.retry, func(ctx context.Context) error {
		tasks, err := p.gw.PendingDKGTasks(ctx)
		if err != nil {
			return err
		}
		pending = tasks
		return nil
	})
	if err != nil {
		return err
	}

	for _, t := range pending {
		task := t
		if !p.tasks.MarkSeenIfNew(task.GroupIndex, task.Epoch) {
			continue
		}
		p.tasks.Upsert(&task)
		if task.MemberIndex(p.self) < 0 {
			continue
		}
		p.eq.Publish(ctx, &event.NewDKGTask{DKGTask: task, SelfAddr: p.self})
	}
	return nil
}
