package dkg_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/ARPA-Network/randcast-node/chain/simulated"
	"github.com/ARPA-Network/randcast-node/common/log"
	"github.com/ARPA-Network/randcast-node/core"
	"github.com/ARPA-Network/randcast-node/dkg"
)

func addr(b byte) core.Address {
	var a core.Address
	a[19] = b
	return a
}

func runAll(t *testing.T, task *core.DKGTask, members []core.Address, gw *simulated.Gateway, board *simulated.Board) map[core.Address]*dkg.Result {
	t.Helper()
	results := make(map[core.Address]*dkg.Result)
	var mu sync.Mutex
	var wg sync.WaitGroup

	for _, m := range members {
		wg.Add(1)
		go func(self core.Address) {
			defer wg.Done()
			d := dkg.NewDriver(board, gw, time.Millisecond, log.DefaultLogger())
			res, err := d.Run(context.Background(), task, self, func() bool { return false })
			if err != nil {
				return
			}
			mu.Lock()
			results[self] = res
			mu.Unlock()
		}(m)
	}

	// Advance the simulated chain past every phase deadline so all the
	// driver goroutines' awaitDeadline suspensions release.
	deadlines := []uint64{task.Phase0DeadlineHeight, task.Phase1DeadlineHeight, task.Phase2DeadlineHeight, task.Phase3DeadlineHeight}
	for _, h := range deadlines {
		time.Sleep(20 * time.Millisecond)
		gw.AdvanceBlock(h)
	}
	time.Sleep(20 * time.Millisecond)
	gw.AdvanceBlock(deadlines[len(deadlines)-1] + 10)

	wg.Wait()
	return results
}

func TestHappyDKGAllFiveQualify(t *testing.T) {
	members := []core.Address{addr(1), addr(2), addr(3), addr(4), addr(5)}
	task := &core.DKGTask{
		GroupIndex: 1, Epoch: 1, Size: 5, Threshold: core.Threshold(5),
		Members:              members,
		Phase0DeadlineHeight: 10, Phase1DeadlineHeight: 20, Phase2DeadlineHeight: 30, Phase3DeadlineHeight: 40,
	}
	gw := simulated.New(1)
	board := simulated.NewBoard()

	results := runAll(t, task, members, gw, board)
	require.Len(t, results, 5)
	for _, res := range results {
		require.Len(t, res.Qualified, 5)
	}

	// Every node's view of the aggregated group public key must agree.
	var reference []byte
	for _, res := range results {
		if reference == nil {
			reference = res.GroupPublicKey
		} else {
			require.Equal(t, reference, res.GroupPublicKey)
		}
	}
}

func TestDroppedDealerStillReachesThreshold(t *testing.T) {
	members := []core.Address{addr(1), addr(2), addr(3), addr(4), addr(5)}
	task := &core.DKGTask{
		GroupIndex: 1, Epoch: 1, Size: 5, Threshold: core.Threshold(5),
		Members:              members,
		Phase0DeadlineHeight: 10, Phase1DeadlineHeight: 20, Phase2DeadlineHeight: 30, Phase3DeadlineHeight: 40,
	}
	gw := simulated.New(1)
	board := simulated.NewBoard()

	// Member 4 (addr(4)) never runs its driver at all, simulating "skips
	// phase 0" (§4.6 scenario 2).
	participating := []core.Address{addr(1), addr(2), addr(3), addr(5)}
	results := runAll(t, task, participating, gw, board)

	require.Len(t, results, 4)
	for _, res := range results {
		require.Len(t, res.Qualified, 4)
		for _, q := range res.Qualified {
			require.NotEqual(t, addr(4), q)
		}
	}
}
