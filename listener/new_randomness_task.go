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

// NewRandomnessTask polls the adapter contract for pending tasks assigned
// to groupIndex once per interval and emits NewRandomnessTask for every
// request_id not already seen (§4.3). Polling is timer-driven; NewBlock
// events do not trigger a poll. It upserts into tasks itself before
// publishing, so the event has no registered subscriber of its own; it
// exists for observers (metrics, logging) rather than as a persistence step.
type NewRandomnessTask struct {
	gw         chain.Gateway
	groupIndex func() (uint32, bool)
	tasks      *dal.RandomnessTaskCache
	eq         *queue.EventQueue
	retry      retry.Descriptor
	interval   time.Duration
	log        log.Logger
}

// NewNewRandomnessTask builds the listener. groupIndex resolves this node's
// current group lazily (it may not have one yet at startup); the listener
// is a no-op poll until it returns ok == true.
func NewNewRandomnessTask(gw chain.Gateway, groupIndex func() (uint32, bool), tasks *dal.RandomnessTaskCache, eq *queue.EventQueue, d retry.Descriptor, interval time.Duration, l log.Logger) *NewRandomnessTask {
	return &NewRandomnessTask{gw: gw, groupIndex: groupIndex, tasks: tasks, eq: eq, retry: d, interval: interval, log: l.Named("listener.new_randomness_task")}
}

func (n *NewRandomnessTask) Start(ctx context.Context) {
	pollEvery(ctx, n.interval, n.log, "NewRandomnessTask", n.poll)
}

func (n *NewRandomnessTask) poll(ctx context.Context) error {
	groupIndex, ok := n.groupIndex()
	if !ok {
		return nil
	}

	var pending []core.RandomnessTask
	err := retryChainCall(ctx, n.retry, func(ctx context.Context) error {
		tasks, err := n.gw.PendingRandomnessTasks(ctx, groupIndex)
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
		if !n.tasks.MarkSeenIfNew(task.RequestID) {
			continue
		}
		n.tasks.Upsert(&task)
		n.eq.Publish(ctx, &event.NewRandomnessTask{ChainID: n.gw.ChainID(), RandomnessTask: task})
	}
	return nil
}
