package scheduler

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/ARPA-Network/randcast-node/common/log"
	"github.com/ARPA-Network/randcast-node/core"
)

func TestFixedAddRejectsDuplicateTag(t *testing.T) {
	f := NewFixed(log.DefaultLogger())
	tag := core.ListenerTask(core.ListenerBlock, 1)
	block := make(chan struct{})

	err := f.Add(context.Background(), tag, func(ctx context.Context) {
		<-block
	})
	require.NoError(t, err)

	err = f.Add(context.Background(), tag, func(ctx context.Context) {})
	require.True(t, errors.Is(err, core.ErrTaskAlreadyExisted))

	close(block)
	f.Join()
}

func TestFixedAbortUnblocksReAdd(t *testing.T) {
	f := NewFixed(log.DefaultLogger())
	tag := core.ListenerTask(core.ListenerBlock, 1)

	started := make(chan struct{})
	err := f.Add(context.Background(), tag, func(ctx context.Context) {
		close(started)
		<-ctx.Done()
	})
	require.NoError(t, err)
	<-started

	require.NoError(t, f.Abort(tag))

	// re-adding the same tag after Abort completes must succeed (§4.2).
	err = f.Add(context.Background(), tag, func(ctx context.Context) {})
	require.NoError(t, err)
	f.Join()
}

func TestFixedAbortNotFound(t *testing.T) {
	f := NewFixed(log.DefaultLogger())
	err := f.Abort(core.ManagementServerTask())
	require.True(t, errors.Is(err, core.ErrTaskNotFound))
}

func TestFixedRecoversFromPanic(t *testing.T) {
	f := NewFixed(log.DefaultLogger())
	tag := core.ManagementServerTask()

	err := f.Add(context.Background(), tag, func(ctx context.Context) {
		panic("boom")
	})
	require.NoError(t, err)
	f.Join()

	require.Eventually(t, func() bool {
		return len(f.Tasks()) == 0
	}, time.Second, time.Millisecond)
}
