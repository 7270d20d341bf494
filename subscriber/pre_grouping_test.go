package subscriber

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ARPA-Network/randcast-node/common/log"
	"github.com/ARPA-Network/randcast-node/core"
	"github.com/ARPA-Network/randcast-node/dal"
	"github.com/ARPA-Network/randcast-node/event"
	"github.com/ARPA-Network/randcast-node/queue"
)

func addr(b byte) core.Address {
	var a core.Address
	a[19] = b
	return a
}

func TestPreGroupingCreatesForformingGroupAndEmitsRunDKG(t *testing.T) {
	groups := dal.NewGroupCache()
	eq := queue.New(log.DefaultLogger())
	self := addr(1)

	var mu sync.Mutex
	var published []core.DKGTask
	eq.Subscribe(event.GlobalTopic(event.KindRunDKG), "test", queue.SubscriberFunc(func(ctx context.Context, e event.Event) error {
		mu.Lock()
		defer mu.Unlock()
		published = append(published, e.(*event.RunDKG).DKGTask)
		return nil
	}))

	s := NewPreGrouping(groups, eq, log.DefaultLogger())
	task := core.DKGTask{GroupIndex: 1, Epoch: 1, Size: 3, Members: []core.Address{self, addr(2), addr(3)}}
	require.NoError(t, s.Notify(context.Background(), &event.NewDKGTask{DKGTask: task, SelfAddr: self}))

	g, ok := groups.Get(1)
	require.True(t, ok)
	require.Equal(t, core.GroupForming, g.State)

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, published, 1)
	require.Equal(t, uint32(1), published[0].GroupIndex)
}

func TestPreGroupingDropsNonMemberSilently(t *testing.T) {
	groups := dal.NewGroupCache()
	eq := queue.New(log.DefaultLogger())
	self := addr(1)

	task := core.DKGTask{GroupIndex: 2, Epoch: 1, Size: 2, Members: []core.Address{addr(3), addr(4)}}
	s := NewPreGrouping(groups, eq, log.DefaultLogger())
	require.NoError(t, s.Notify(context.Background(), &event.NewDKGTask{DKGTask: task, SelfAddr: self}))

	_, ok := groups.Get(2)
	require.False(t, ok)
}

func TestPreGroupingDropsStaleEpochSilently(t *testing.T) {
	groups := dal.NewGroupCache()
	eq := queue.New(log.DefaultLogger())
	self := addr(1)

	_, err := groups.Create(1, 2, 3)
	require.NoError(t, err)

	task := core.DKGTask{GroupIndex: 1, Epoch: 1, Size: 3, Members: []core.Address{self, addr(2), addr(3)}}
	s := NewPreGrouping(groups, eq, log.DefaultLogger())
	require.NoError(t, s.Notify(context.Background(), &event.NewDKGTask{DKGTask: task, SelfAddr: self}))

	g, ok := groups.Get(1)
	require.True(t, ok)
	require.Equal(t, uint32(2), g.Epoch)
}
