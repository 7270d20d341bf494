package subscriber

import (
	"context"
	"testing"

	"github.com/drand/kyber/share"
	"github.com/drand/kyber/util/random"
	"github.com/stretchr/testify/require"

	kyberbls "github.com/drand/kyber-bls12381"

	"github.com/ARPA-Network/randcast-node/chain"
	"github.com/ARPA-Network/randcast-node/chain/simulated"
	"github.com/ARPA-Network/randcast-node/common/log"
	"github.com/ARPA-Network/randcast-node/common/retry"
	"github.com/ARPA-Network/randcast-node/core"
	"github.com/ARPA-Network/randcast-node/crypto"
	"github.com/ARPA-Network/randcast-node/crypto/bls"
	"github.com/ARPA-Network/randcast-node/dal"
	"github.com/ARPA-Network/randcast-node/event"
)

// revertingGateway wraps a simulated.Gateway, overriding FulfillRandomness
// to return a caller-chosen receipt so tests can drive the revert/quarantine
// path (§4.4's "committed_times" bookkeeping) without a real chain reverting.
type revertingGateway struct {
	*simulated.Gateway
	fulfill func() (chain.Receipt, error)
}

func (g *revertingGateway) FulfillRandomness(_ context.Context, _ core.RequestID, _ uint32, _ []byte, _ []core.Address) (chain.Receipt, error) {
	return g.fulfill()
}

func readyEntryWithThresholdPartials(t *testing.T) (*dal.RandomnessResultCache, *dal.GroupCache, *core.RandomnessResultCache) {
	t.Helper()
	suite := kyberbls.NewBLS12381Suite()
	const n, threshold = 3, 2

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

	groups := dal.NewGroupCache()
	_, err := groups.Create(1, 1, n)
	require.NoError(t, err)
	require.NoError(t, groups.Mutate(1, 1, func(g *core.Group) error {
		g.Threshold = threshold
		g.PublicPolynomial = commitBytes
		return nil
	}))

	scheme := bls.New()
	msg := []byte("randomness-seed")
	results := dal.NewRandomnessResultCache()
	entry := results.GetOrCreate(core.RequestID{1}, 7, 1, msg, threshold)

	priShares := priPoly.Shares(n)
	for i := 0; i < threshold; i++ {
		v, err := priShares[i].V.MarshalBinary()
		require.NoError(t, err)
		partial, err := scheme.PartialSign(crypto.PrivateShare{Index: priShares[i].I, Value: v}, msg)
		require.NoError(t, err)
		_, err = entry.AddPartial(addr(byte(i+1)), partial)
		require.NoError(t, err)
	}
	require.Equal(t, core.ResultReady, entry.Status())

	return results, groups, entry
}

func TestRandomnessSignatureAggregationFulfillsAndRetiresEntry(t *testing.T) {
	results, groups, entry := readyEntryWithThresholdPartials(t)
	gw := simulated.New(7)

	s := NewRandomnessSignatureAggregation(results, groups, bls.New(), gw, retry.DefaultDescriptor, log.DefaultLogger())
	e := &event.ReadyToFulfillRandomnessTask{ChainID: 7, Tasks: []*core.RandomnessResultCache{entry}}
	require.NoError(t, s.Notify(context.Background(), e))

	require.Equal(t, core.ResultFulfilled, entry.Status())
	_, stillTracked := results.Get(entry.RequestID)
	require.False(t, stillTracked)
}

func TestRandomnessSignatureAggregationQuarantinesAfterRepeatedReverts(t *testing.T) {
	results, groups, entry := readyEntryWithThresholdPartials(t)
	gw := &revertingGateway{
		Gateway: simulated.New(7),
		fulfill: func() (chain.Receipt, error) {
			return chain.Receipt{Success: false, Err: core.ErrTaskNotFound}, nil
		},
	}

	s := NewRandomnessSignatureAggregation(results, groups, bls.New(), gw, retry.DefaultDescriptor, log.DefaultLogger())
	e := &event.ReadyToFulfillRandomnessTask{ChainID: 7, Tasks: []*core.RandomnessResultCache{entry}}

	for i := 0; i < dal.MaxCommittedTimes; i++ {
		require.NoError(t, s.Notify(context.Background(), e))
	}

	require.Equal(t, core.ResultQuarantined, entry.Status())
	_, stillTracked := results.Get(entry.RequestID)
	require.True(t, stillTracked)
}

func TestRandomnessSignatureAggregationIgnoresNonReadyEntries(t *testing.T) {
	results := dal.NewRandomnessResultCache()
	groups := dal.NewGroupCache()
	entry := results.GetOrCreate(core.RequestID{2}, 7, 1, []byte("seed"), 2)
	gw := simulated.New(7)

	s := NewRandomnessSignatureAggregation(results, groups, bls.New(), gw, retry.DefaultDescriptor, log.DefaultLogger())
	e := &event.ReadyToFulfillRandomnessTask{ChainID: 7, Tasks: []*core.RandomnessResultCache{entry}}
	require.NoError(t, s.Notify(context.Background(), e))

	require.Equal(t, core.ResultCollecting, entry.Status())
}
