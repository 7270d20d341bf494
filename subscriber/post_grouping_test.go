package subscriber

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ARPA-Network/randcast-node/chain/simulated"
	"github.com/ARPA-Network/randcast-node/common/log"
	"github.com/ARPA-Network/randcast-node/common/retry"
	"github.com/ARPA-Network/randcast-node/event"
)

func TestPostGroupingCallsPostProcessExactlyOncePerGroupEpoch(t *testing.T) {
	gw := simulated.New(1)
	s := NewPostGrouping(gw, retry.DefaultDescriptor, log.DefaultLogger())

	e := &event.DKGPostProcess{GroupIndex: 1, GroupEpoch: 1}
	require.NoError(t, s.Notify(context.Background(), e))
	require.NoError(t, s.Notify(context.Background(), e))
	require.NoError(t, s.Notify(context.Background(), e))

	require.Equal(t, 1, gw.PostProcessCalls(1, 1))
}

func TestPostGroupingDistinguishesEpochs(t *testing.T) {
	gw := simulated.New(1)
	s := NewPostGrouping(gw, retry.DefaultDescriptor, log.DefaultLogger())

	require.NoError(t, s.Notify(context.Background(), &event.DKGPostProcess{GroupIndex: 1, GroupEpoch: 1}))
	require.NoError(t, s.Notify(context.Background(), &event.DKGPostProcess{GroupIndex: 1, GroupEpoch: 2}))

	require.Equal(t, 1, gw.PostProcessCalls(1, 1))
	require.Equal(t, 1, gw.PostProcessCalls(1, 2))
}
