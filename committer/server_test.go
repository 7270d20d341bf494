package committer

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ARPA-Network/randcast-node/common/log"
	"github.com/ARPA-Network/randcast-node/core"
	"github.com/ARPA-Network/randcast-node/crypto"
	"github.com/ARPA-Network/randcast-node/dal"
	"github.com/ARPA-Network/randcast-node/queue"
)

// fakeScheme accepts any partial signature of the form "valid:<n>" and
// rejects everything else, so tests can exercise PartialVerify's failure
// path without a real BLS setup.
type fakeScheme struct{}

func (fakeScheme) PartialSign(share crypto.PrivateShare, msg []byte) ([]byte, error) {
	return []byte("valid:partial"), nil
}

func (fakeScheme) PartialVerify(pubPoly crypto.PublicPolynomial, msg, partial []byte) error {
	if bytes.HasPrefix(partial, []byte("valid:")) {
		return nil
	}
	return errors.New("invalid partial signature")
}

func (fakeScheme) Aggregate(pubPoly crypto.PublicPolynomial, msg []byte, partials [][]byte, t, n int) ([]byte, error) {
	return []byte("signature"), nil
}

func (fakeScheme) Verify(groupPublicKey, msg, signature []byte) error { return nil }

func (fakeScheme) NewKeyPair() (priv, pub []byte, err error) { return []byte("sk"), []byte("pk"), nil }

func newTestServer(t *testing.T) (*Server, *dal.RandomnessResultCache, *dal.GroupCache) {
	t.Helper()
	results := dal.NewRandomnessResultCache()
	groups := dal.NewGroupCache()
	eq := queue.New(log.DefaultLogger())
	s := NewServer(results, groups, fakeScheme{}, eq, log.DefaultLogger())
	return s, results, groups
}

func setupGroupAndTask(t *testing.T, groups *dal.GroupCache, results *dal.RandomnessResultCache, threshold int) (core.RequestID, core.Address) {
	t.Helper()
	_, err := groups.Create(1, 1, 3)
	require.NoError(t, err)
	require.NoError(t, groups.Mutate(1, 1, func(g *core.Group) error {
		g.PublicPolynomial = [][]byte{[]byte("commit-0")}
		return nil
	}))

	var reqID core.RequestID
	copy(reqID[:], []byte("req-1"))
	results.GetOrCreate(reqID, 7, 1, []byte("seed"), threshold)

	var sender core.Address
	copy(sender[:], []byte("sender-1"))
	return reqID, sender
}

func postCommit(t *testing.T, s *Server, req CommitRequest) (*httptest.ResponseRecorder, CommitResponse) {
	t.Helper()
	body, err := json.Marshal(req)
	require.NoError(t, err)
	r := httptest.NewRequest(http.MethodPost, "/commit", bytes.NewReader(body))
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, r)

	var resp CommitResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return w, resp
}

func TestCommitAccepted(t *testing.T) {
	s, results, groups := newTestServer(t)
	reqID, sender := setupGroupAndTask(t, groups, results, 2)

	w, resp := postCommit(t, s, CommitRequest{
		ChainID:          7,
		RequestID:        reqID.String(),
		SenderAddress:    sender.String(),
		PartialSignature: []byte("valid:1"),
	})

	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, StatusAccepted, resp.Status)
	require.Empty(t, resp.Error)
}

func TestCommitBecomesReadyAtThreshold(t *testing.T) {
	s, results, groups := newTestServer(t)
	reqID, _ := setupGroupAndTask(t, groups, results, 1)

	var sender core.Address
	copy(sender[:], []byte("sender-1"))

	w, resp := postCommit(t, s, CommitRequest{
		ChainID:          7,
		RequestID:        reqID.String(),
		SenderAddress:    sender.String(),
		PartialSignature: []byte("valid:1"),
	})
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, StatusAccepted, resp.Status)

	cache, ok := results.Get(reqID)
	require.True(t, ok)
	require.Equal(t, core.ResultReady, cache.Status())
}

func TestCommitTaskNotFound(t *testing.T) {
	s, _, groups := newTestServer(t)
	_, err := groups.Create(1, 1, 3)
	require.NoError(t, err)

	var reqID core.RequestID
	copy(reqID[:], []byte("nonexistent"))
	var sender core.Address
	copy(sender[:], []byte("sender-1"))

	w, resp := postCommit(t, s, CommitRequest{
		ChainID:          7,
		RequestID:        reqID.String(),
		SenderAddress:    sender.String(),
		PartialSignature: []byte("valid:1"),
	})

	require.Equal(t, http.StatusNotFound, w.Code)
	require.Equal(t, StatusTaskNotFound, resp.Status)
}

func TestCommitAlreadyCommitted(t *testing.T) {
	s, results, groups := newTestServer(t)
	reqID, sender := setupGroupAndTask(t, groups, results, 3)

	req := CommitRequest{
		ChainID:          7,
		RequestID:        reqID.String(),
		SenderAddress:    sender.String(),
		PartialSignature: []byte("valid:1"),
	}
	w, resp := postCommit(t, s, req)
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, StatusAccepted, resp.Status)

	w, resp = postCommit(t, s, req)
	require.Equal(t, http.StatusConflict, w.Code)
	require.Equal(t, StatusAlreadyCommitted, resp.Status)
}

func TestCommitInvalidSignature(t *testing.T) {
	s, results, groups := newTestServer(t)
	reqID, sender := setupGroupAndTask(t, groups, results, 2)

	w, resp := postCommit(t, s, CommitRequest{
		ChainID:          7,
		RequestID:        reqID.String(),
		SenderAddress:    sender.String(),
		PartialSignature: []byte("bogus"),
	})

	require.Equal(t, http.StatusBadRequest, w.Code)
	require.Equal(t, StatusInvalidSignature, resp.Status)
}
