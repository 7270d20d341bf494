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

func newReadyGroupResult(index, epoch uint32, self core.Address) *core.Group {
	g := core.NewGroup(index, epoch, 3)
	other1, other2 := addr(2), addr(3)
	g.MemberOrder = []core.Address{self, other1, other2}
	g.Members[self] = &core.Member{Address: self, MemberIndex: 0, PartialPublicKey: []byte("ppk-self")}
	g.Members[other1] = &core.Member{Address: other1, MemberIndex: 1, PartialPublicKey: []byte("ppk-1")}
	g.Members[other2] = &core.Member{Address: other2, MemberIndex: 2, PartialPublicKey: []byte("ppk-2")}
	g.Committers[self] = struct{}{}
	g.Committers[other1] = struct{}{}
	g.PublicKey = []byte("group-pk")
	g.PublicPolynomial = [][]byte{[]byte("c0"), []byte("c1")}
	g.Share = []byte("my-share")
	return g
}

func TestPostSuccessGroupingMarksReadyAndEmitsPostProcess(t *testing.T) {
	groups := dal.NewGroupCache()
	eq := queue.New(log.DefaultLogger())
	self := addr(1)

	_, err := groups.Create(1, 1, 3)
	require.NoError(t, err)

	var mu sync.Mutex
	var published []event.DKGPostProcess
	eq.Subscribe(event.GlobalTopic(event.KindDKGPostProcess), "test", queue.SubscriberFunc(func(_ context.Context, e event.Event) error {
		mu.Lock()
		defer mu.Unlock()
		published = append(published, *e.(*event.DKGPostProcess))
		return nil
	}))

	s := NewPostSuccessGrouping(groups, eq, log.DefaultLogger())
	result := newReadyGroupResult(1, 1, self)
	require.NoError(t, s.Notify(context.Background(), &event.DKGSuccess{GroupIndex: 1, Epoch: 1, Group: result}))

	g, ok := groups.Get(1)
	require.True(t, ok)
	require.Equal(t, core.GroupReady, g.State)
	require.Equal(t, []byte("my-share"), g.Share)
	require.Equal(t, []byte("ppk-1"), g.Members[addr(2)].PartialPublicKey)

	mu.Lock()
	defer mu.Unlock()
	require.Equal(t, []event.DKGPostProcess{{GroupIndex: 1, GroupEpoch: 1}}, published)
}

func TestPostSuccessGroupingDropsStaleEpochSilently(t *testing.T) {
	groups := dal.NewGroupCache()
	eq := queue.New(log.DefaultLogger())
	self := addr(1)

	_, err := groups.Create(1, 2, 3)
	require.NoError(t, err)

	s := NewPostSuccessGrouping(groups, eq, log.DefaultLogger())
	result := newReadyGroupResult(1, 1, self)
	require.NoError(t, s.Notify(context.Background(), &event.DKGSuccess{GroupIndex: 1, Epoch: 1, Group: result}))

	g, ok := groups.Get(1)
	require.True(t, ok)
	require.Equal(t, core.GroupForming, g.State)
	require.Equal(t, uint32(2), g.Epoch)
}
