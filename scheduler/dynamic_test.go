package scheduler

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	clock "github.com/jonboulle/clockwork"

	"github.com/ARPA-Network/randcast-node/common/log"
)

func TestDynamicShutdownPredicateCancelsTask(t *testing.T) {
	fc := clock.NewFakeClock()
	d := NewDynamicWithClock(log.DefaultLogger(), fc)

	var cancelled int32
	var shutdown int32

	d.Add(context.Background(), func(ctx context.Context) {
		<-ctx.Done()
		atomic.StoreInt32(&cancelled, 1)
	}, func() bool {
		return atomic.LoadInt32(&shutdown) == 1
	}, time.Second)

	require.Equal(t, 1, d.Count())

	atomic.StoreInt32(&shutdown, 1)
	fc.BlockUntil(1)
	fc.Advance(time.Second)

	require.Eventually(t, func() bool {
		return atomic.LoadInt32(&cancelled) == 1
	}, time.Second, time.Millisecond)

	require.Eventually(t, func() bool {
		return d.Count() == 0
	}, time.Second, time.Millisecond)
}
