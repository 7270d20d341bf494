package subscriber

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ARPA-Network/randcast-node/chain"
	"github.com/ARPA-Network/randcast-node/common/log"
	"github.com/ARPA-Network/randcast-node/core"
	"github.com/ARPA-Network/randcast-node/dal"
	"github.com/ARPA-Network/randcast-node/dkg"
	"github.com/ARPA-Network/randcast-node/event"
	"github.com/ARPA-Network/randcast-node/queue"
	"github.com/ARPA-Network/randcast-node/scheduler"
)

// InGrouping drives the DKG phase machine (§4.6) for a RunDKG task inside a
// dynamic task, so a superseding (group_index, epoch) or node shutdown
// cancels it cleanly without touching the group cache (§4.4, §4.6).
type InGrouping struct {
	self                   core.Address
	board                  chain.Board
	heights                dkg.HeightSource
	groups                 *dal.GroupCache
	eq                     *queue.EventQueue
	scheduler              *scheduler.Dynamic
	pollInterval           time.Duration
	shutdownCheckFrequency time.Duration
	log                    log.Logger
}

func NewInGrouping(self core.Address, board chain.Board, heights dkg.HeightSource, groups *dal.GroupCache, eq *queue.EventQueue, sched *scheduler.Dynamic, pollInterval, shutdownCheckFrequency time.Duration, l log.Logger) *InGrouping {
	return &InGrouping{
		self:                   self,
		board:                  board,
		heights:                heights,
		groups:                 groups,
		eq:                     eq,
		scheduler:              sched,
		pollInterval:           pollInterval,
		shutdownCheckFrequency: shutdownCheckFrequency,
		log:                    l.Named("subscriber.in_grouping"),
	}
}

func (g *InGrouping) Notify(ctx context.Context, e event.Event) error {
	re, ok := e.(*event.RunDKG)
	if !ok {
		return fmt.Errorf("in_grouping subscriber: unexpected event type %T", e)
	}
	task := re.DKGTask

	shutdown := func() bool {
		current, ok := g.groups.Get(task.GroupIndex)
		return ok && current.Epoch != task.Epoch
	}

	g.scheduler.Add(ctx, func(taskCtx context.Context) {
		g.run(taskCtx, task, shutdown)
	}, shutdown, g.shutdownCheckFrequency)

	return nil
}

func (g *InGrouping) run(ctx context.Context, task core.DKGTask, shutdown scheduler.ShutdownPredicate) {
	driver := dkg.NewDriver(g.board, g.heights, g.pollInterval, g.log)
	driver.OnPhase = func(phase int) {
		g.eq.Publish(ctx, &event.DKGPhase{GroupIndex: task.GroupIndex, Epoch: task.Epoch, Phase: phase})
	}

	result, err := driver.Run(ctx, &task, g.self, shutdown)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return
		}
		g.log.Errorw("dkg round did not succeed", "group_index", task.GroupIndex, "epoch", task.Epoch, "error", err)
		return
	}

	qualified := make(map[core.Address]struct{}, len(result.Qualified))
	for _, addr := range result.Qualified {
		qualified[addr] = struct{}{}
	}

	out := core.NewGroup(task.GroupIndex, task.Epoch, len(result.Qualified))
	out.Threshold = task.Threshold
	out.MemberOrder = result.Qualified
	for _, addr := range result.Qualified {
		out.Members[addr] = &core.Member{
			Address:          addr,
			MemberIndex:      task.MemberIndex(addr),
			PartialPublicKey: result.PartialPublicKeys[addr],
		}
		out.Committers[addr] = struct{}{}
	}
	out.PublicKey = result.GroupPublicKey
	out.PublicPolynomial = result.PublicPolynomial.Commits
	if _, isMember := qualified[g.self]; isMember {
		out.Share = result.Share.Value
	}

	g.eq.Publish(ctx, &event.DKGSuccess{GroupIndex: task.GroupIndex, Epoch: task.Epoch, Group: out})
}
