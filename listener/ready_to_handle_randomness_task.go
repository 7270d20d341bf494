package listener

import (
	"context"
	"time"

	"github.com/ARPA-Network/randcast-node/chain"
	"github.com/ARPA-Network/randcast-node/common/log"
	"github.com/ARPA-Network/randcast-node/common/retry"
	"github.com/ARPA-Network/randcast-node/dal"
	"github.com/ARPA-Network/randcast-node/event"
	"github.com/ARPA-Network/randcast-node/queue"
)

// ReadyToHandleRandomnessTask scans persisted pending tasks whose
// assignment height has cleared the confirmation window and emits a
// batched ReadyToHandleRandomnessTask (§4.3).
type ReadyToHandleRandomnessTask struct {
	gw       chain.Gateway
	tasks    *dal.RandomnessTaskCache
	eq       *queue.EventQueue
	retry    retry.Descriptor
	interval time.Duration
	log      log.Logger
}

func NewReadyToHandleRandomnessTask(gw chain.Gateway, tasks *dal.RandomnessTaskCache, eq *queue.EventQueue, d retry.Descriptor, interval time.Duration, l log.Logger) *ReadyToHandleRandomnessTask {
	return &ReadyToHandleRandomnessTask{gw: gw, tasks: tasks, eq: eq, retry: d, interval: interval, log: l.Named("listener.ready_to_handle_randomness_task")}
}

func (r *ReadyToHandleRandomnessTask) Start(ctx context.Context) {
	pollEvery(ctx, r.interval, r.log, "ReadyToHandleRandomnessTask", r.poll)
}

func (r *ReadyToHandleRandomnessTask) poll(ctx context.Context) error {
	var height uint64
	err := retryChainCall(ctx, r.retry, func(ctx context.Context) error {
		h, err := r.gw.CurrentBlock(ctx)
		if err != nil {
			return err
		}
		height = h
		return nil
	})
	if err != nil {
		return err
	}

	batch := r.tasks.PendingBelow(height)
	if len(batch) == 0 {
		return nil
	}
	for _, t := range batch {
		r.tasks.Remove(t.RequestID)
	}
	r.eq.Publish(ctx, &event.ReadyToHandleRandomnessTask{ChainID: r.gw.ChainID(), Tasks: batch})
	return nil
}
