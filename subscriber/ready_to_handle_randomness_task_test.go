package subscriber

import (
	"context"
	"net/http/httptest"
	"testing"

	"github.com/drand/kyber/share"
	"github.com/drand/kyber/util/random"
	"github.com/stretchr/testify/require"

	kyberbls "github.com/drand/kyber-bls12381"

	"github.com/ARPA-Network/randcast-node/committer"
	"github.com/ARPA-Network/randcast-node/common/log"
	"github.com/ARPA-Network/randcast-node/common/retry"
	"github.com/ARPA-Network/randcast-node/core"
	"github.com/ARPA-Network/randcast-node/crypto"
	"github.com/ARPA-Network/randcast-node/crypto/bls"
	"github.com/ARPA-Network/randcast-node/dal"
	"github.com/ARPA-Network/randcast-node/event"
	"github.com/ARPA-Network/randcast-node/queue"
)

// sharedGroup builds a real (n, t) BLS sharing and a matching core.Group so
// ready-to-handle tests exercise the same PartialSign/PartialVerify path
// production code runs, not a stub scheme.
func sharedGroup(t *testing.T, members []core.Address, committers []core.Address) (*core.Group, map[core.Address]crypto.PrivateShare) {
	t.Helper()
	suite := kyberbls.NewBLS12381Suite()
	threshold := core.Threshold(len(members))

	secret := suite.G1().Scalar().Pick(random.New())
	priPoly := share.NewPriPoly(suite.G1(), threshold, secret, random.New())
	pubPoly := priPoly.Commit(suite.G1().Point().Base())
	_, commits := pubPoly.Info()
	commitBytes := make([][]byte, len(commits))
	for i, c := range commits {
		b, err := c.MarshalBinary()
		require.NoError(t, err)
		commitBytes[i] = b
	}
	groupPub, err := pubPoly.Commit().MarshalBinary()
	require.NoError(t, err)

	g := core.NewGroup(1, 1, len(members))
	g.Threshold = threshold
	g.MemberOrder = members
	g.PublicKey = groupPub
	g.PublicPolynomial = commitBytes
	g.State = core.GroupReady

	shares := make(map[core.Address]crypto.PrivateShare, len(members))
	priShares := priPoly.Shares(len(members))
	for i, addr := range members {
		v, err := priShares[i].V.MarshalBinary()
		require.NoError(t, err)
		shares[addr] = crypto.PrivateShare{Index: i, Value: v}
		g.Members[addr] = &core.Member{Address: addr, MemberIndex: i}
	}
	for _, c := range committers {
		g.Committers[c] = struct{}{}
	}
	g.Share = shares[members[0]].Value
	return g, shares
}

// newTestCommitter builds a committer server with an empty result cache.
// The entry a commit needs is created by the ready-to-handle subscriber
// itself on the production path; a peer with no subscriber of its own
// (simulated here over HTTP) needs its cache pre-seeded to stand in for
// that peer's own subscriber having already run.
func newTestCommitter(t *testing.T, group *core.Group) (*committer.Server, *dal.RandomnessResultCache) {
	t.Helper()
	groups := dal.NewGroupCache()
	_, err := groups.Create(group.Index, group.Epoch, group.Size)
	require.NoError(t, err)
	require.NoError(t, groups.Mutate(group.Index, group.Epoch, func(g *core.Group) error {
		*g = *group
		return nil
	}))

	results := dal.NewRandomnessResultCache()
	eq := queue.New(log.DefaultLogger())
	return committer.NewServer(results, groups, bls.New(), eq, log.DefaultLogger()), results
}

func TestReadyToHandleRandomnessTaskSignsAndBroadcasts(t *testing.T) {
	self := addr(1)
	peer := addr(2)
	plainMember := addr(3)
	members := []core.Address{self, peer, plainMember}

	group, shares := sharedGroup(t, members, []core.Address{self, peer})
	task := core.RandomnessTask{RequestID: core.RequestID{9}, GroupIndex: group.Index, Seed: []byte("seed-material")}

	localServer, localResults := newTestCommitter(t, group)
	peerServer, peerResults := newTestCommitter(t, group)
	peerResults.GetOrCreate(task.RequestID, 7, task.GroupIndex, task.Message(), group.Threshold)
	peerHTTP := httptest.NewServer(peerServer.Handler())
	defer peerHTTP.Close()

	group.Members[peer].RPCEndpoint = peerHTTP.URL
	group.Members[plainMember].RPCEndpoint = "" // unreachable member is skipped, not dialed

	groups := dal.NewGroupCache()
	_, err := groups.Create(group.Index, group.Epoch, group.Size)
	require.NoError(t, err)
	require.NoError(t, groups.Mutate(group.Index, group.Epoch, func(g *core.Group) error {
		*g = *group
		g.Share = shares[self].Value
		return nil
	}))

	client := committer.NewClient(nil, retry.DefaultDescriptor)
	s := NewReadyToHandleRandomnessTask(groups, localResults, bls.New(), self, localServer, client, log.DefaultLogger())

	err = s.Notify(context.Background(), &event.ReadyToHandleRandomnessTask{ChainID: 7, Tasks: []core.RandomnessTask{task}})
	require.NoError(t, err)

	entry, ok := localResults.Get(task.RequestID)
	require.True(t, ok)
	require.Equal(t, 1, entry.Count())

	peerEntry, ok := peerResults.Get(task.RequestID)
	require.True(t, ok)
	require.Equal(t, 1, peerEntry.Count())
}

func TestReadyToHandleRandomnessTaskDeduplicatesPerRequest(t *testing.T) {
	self := addr(1)
	members := []core.Address{self, addr(2), addr(3)}
	group, shares := sharedGroup(t, members, []core.Address{self, addr(2)})
	task := core.RandomnessTask{RequestID: core.RequestID{9}, GroupIndex: group.Index, Seed: []byte("seed")}

	localServer, localResults := newTestCommitter(t, group)

	groups := dal.NewGroupCache()
	_, err := groups.Create(group.Index, group.Epoch, group.Size)
	require.NoError(t, err)
	require.NoError(t, groups.Mutate(group.Index, group.Epoch, func(g *core.Group) error {
		*g = *group
		g.Share = shares[self].Value
		return nil
	}))

	client := committer.NewClient(nil, retry.DefaultDescriptor)
	s := NewReadyToHandleRandomnessTask(groups, localResults, bls.New(), self, localServer, client, log.DefaultLogger())

	e := &event.ReadyToHandleRandomnessTask{ChainID: 7, Tasks: []core.RandomnessTask{task}}
	require.NoError(t, s.Notify(context.Background(), e))
	require.NoError(t, s.Notify(context.Background(), e))

	entry, ok := localResults.Get(task.RequestID)
	require.True(t, ok)
	require.Equal(t, 1, entry.Count())
}
