package listener

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/ARPA-Network/randcast-node/chain/simulated"
	"github.com/ARPA-Network/randcast-node/common/log"
	"github.com/ARPA-Network/randcast-node/common/retry"
	"github.com/ARPA-Network/randcast-node/event"
	"github.com/ARPA-Network/randcast-node/queue"
)

func TestBlockListenerEmitsEveryHeight(t *testing.T) {
	gw := simulated.New(7)
	eq := queue.New(log.DefaultLogger())

	var mu sync.Mutex
	var heights []uint64
	eq.Subscribe(event.ChainTopic(event.KindNewBlock, 7), "test", queue.SubscriberFunc(func(ctx context.Context, e event.Event) error {
		mu.Lock()
		defer mu.Unlock()
		heights = append(heights, e.(*event.NewBlock).BlockHeight)
		return nil
	}))

	l := NewBlock(gw, eq, retry.DefaultDescriptor, log.DefaultLogger())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go l.Start(ctx)

	gw.AdvanceBlock(1)
	gw.AdvanceBlock(2)
	gw.AdvanceBlock(3)

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(heights) == 3
	}, time.Second, time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	require.Equal(t, []uint64{1, 2, 3}, heights)
}
