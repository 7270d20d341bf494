package management

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ARPA-Network/randcast-node/chain/simulated"
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

func newTestServer(t *testing.T) (*Server, *simulated.Gateway, *dal.NodeCache, *dal.GroupCache, *queue.EventQueue) {
	t.Helper()
	gw := simulated.New(1)
	nodes := dal.NewNodeCache()
	groups := dal.NewGroupCache()
	eq := queue.New(log.DefaultLogger())
	self := addr(1)
	s := NewServer(self, addr(0xFF), gw, nodes, groups, eq, log.DefaultLogger())
	return s, gw, nodes, groups, eq
}

func TestNodeRegisterThenActivate(t *testing.T) {
	s, gw, nodes, _, eq := newTestServer(t)
	self := addr(1)

	var published bool
	eq.Subscribe(event.GlobalTopic(event.KindNodeActivation), "test", queue.SubscriberFunc(func(_ context.Context, e event.Event) error {
		published = true
		require.Equal(t, uint32(1), e.(*event.NodeActivation).ChainID)
		return nil
	}))

	receipt, err := s.NodeRegister(context.Background(), RegisterNodeRequest{DKGPublicKey: []byte("pk"), RPCEndpoint: "http://node:8080"})
	require.NoError(t, err)
	require.True(t, receipt.Success)

	n, ok := nodes.Get(self)
	require.True(t, ok)
	require.Equal(t, []byte("pk"), n.DKGPublicKey)

	_, err = s.NodeActivate(context.Background())
	require.NoError(t, err)
	require.True(t, gw.IsActivated(self))
	require.True(t, published)
}

func TestNodeActivateFailsBeforeRegistration(t *testing.T) {
	s, gw, _, _, _ := newTestServer(t)
	self := addr(1)

	receipt, err := s.NodeActivate(context.Background())
	require.NoError(t, err)
	require.False(t, receipt.Success)
	require.False(t, gw.IsActivated(self))
}

func TestNodeQuitDeactivates(t *testing.T) {
	s, gw, _, _, _ := newTestServer(t)
	self := addr(1)

	_, err := s.NodeRegister(context.Background(), RegisterNodeRequest{})
	require.NoError(t, err)
	_, err = s.NodeActivate(context.Background())
	require.NoError(t, err)
	require.True(t, gw.IsActivated(self))

	_, err = s.NodeQuit(context.Background())
	require.NoError(t, err)
	require.False(t, gw.IsActivated(self))
}

func TestGetGroupInfoNotFound(t *testing.T) {
	s, _, _, _, _ := newTestServer(t)
	_, ok := s.GetGroupInfo(99)
	require.False(t, ok)
}

func TestGetGroupInfoReturnsCurrentState(t *testing.T) {
	s, _, _, groups, _ := newTestServer(t)
	_, err := groups.Create(3, 1, 5)
	require.NoError(t, err)
	require.NoError(t, groups.Mutate(3, 1, func(g *core.Group) error {
		g.MemberOrder = []core.Address{addr(1), addr(2)}
		return nil
	}))

	info, ok := s.GetGroupInfo(3)
	require.True(t, ok)
	require.Equal(t, uint32(3), info.Index)
	require.Equal(t, "Forming", info.State)
	require.Len(t, info.Members, 2)
}

func TestHTTPRegisterAndGetNode(t *testing.T) {
	s, _, _, _, _ := newTestServer(t)
	srv := httptest.NewServer(s.Handler())
	defer srv.Close()

	body, err := json.Marshal(RegisterNodeRequest{DKGPublicKey: []byte("pk"), RPCEndpoint: "http://node:8080"})
	require.NoError(t, err)
	resp, err := http.Post(srv.URL+"/node/register", "application/json", bytes.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	self := addr(1)
	resp2, err := http.Get(srv.URL + "/node/" + self.String())
	require.NoError(t, err)
	defer resp2.Body.Close()
	require.Equal(t, http.StatusOK, resp2.StatusCode)

	var info NodeInfoResponse
	require.NoError(t, json.NewDecoder(resp2.Body).Decode(&info))
	require.Equal(t, []byte("pk"), info.DKGPublicKey)
}

func TestHTTPGetNodeNotFound(t *testing.T) {
	s, _, _, _, _ := newTestServer(t)
	srv := httptest.NewServer(s.Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/node/" + addr(9).String())
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
}
