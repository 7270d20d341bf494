package committer

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi"

	"github.com/ARPA-Network/randcast-node/common/log"
	"github.com/ARPA-Network/randcast-node/core"
	"github.com/ARPA-Network/randcast-node/crypto"
	"github.com/ARPA-Network/randcast-node/dal"
	"github.com/ARPA-Network/randcast-node/event"
	"github.com/ARPA-Network/randcast-node/queue"
)

// Server implements the CommitPartialSignature operation (§4.5) over HTTP.
type Server struct {
	results *dal.RandomnessResultCache
	groups  *dal.GroupCache
	scheme  crypto.Scheme
	eq      *queue.EventQueue
	log     log.Logger
}

func NewServer(results *dal.RandomnessResultCache, groups *dal.GroupCache, scheme crypto.Scheme, eq *queue.EventQueue, l log.Logger) *Server {
	return &Server{results: results, groups: groups, scheme: scheme, eq: eq, log: l}
}

// Handler builds the chi router this server's fixed task serves.
func (s *Server) Handler() http.Handler {
	mux := chi.NewRouter()
	mux.Post("/commit", withCommonHeaders(s.commit))
	return mux
}

func withCommonHeaders(h http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		h(w, r)
	}
}

func (s *Server) commit(w http.ResponseWriter, r *http.Request) {
	var req CommitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeResponse(w, http.StatusBadRequest, CommitResponse{Status: StatusInvalidSignature, Error: err.Error()})
		return
	}

	var reqID core.RequestID
	if err := reqID.UnmarshalText([]byte(req.RequestID)); err != nil {
		writeResponse(w, http.StatusBadRequest, CommitResponse{Status: StatusTaskNotFound, Error: "malformed request id"})
		return
	}
	var sender core.Address
	if err := sender.UnmarshalText([]byte(req.SenderAddress)); err != nil {
		writeResponse(w, http.StatusBadRequest, CommitResponse{Status: StatusInvalidSignature, Error: "malformed sender address"})
		return
	}

	status, ready, err := s.Commit(r.Context(), req.ChainID, reqID, sender, req.PartialSignature)
	if err != nil {
		s.log.Warnw("commit partial signature rejected", "request_id", reqID, "sender", sender, "status", status, "error", err)
	}
	if ready {
		if entry, ok := s.results.Get(reqID); ok {
			s.eq.Publish(r.Context(), &event.ReadyToFulfillRandomnessTask{ChainID: req.ChainID, Tasks: []*core.RandomnessResultCache{entry}})
		}
	}

	resp := CommitResponse{Status: status}
	if err != nil {
		resp.Error = err.Error()
	}
	writeResponse(w, httpStatusFor(status), resp)
}

// Commit applies CommitPartialSignature's contract (§4.5) directly, so
// subscribers that hold a partial signature locally (rather than receiving
// one over HTTP) can go through the same path as a remote commit.
func (s *Server) Commit(_ context.Context, chainID uint32, reqID core.RequestID, sender core.Address, partial []byte) (status Status, readyToFulfill bool, err error) {
	cache, ok := s.results.Get(reqID)
	if !ok || cache.ChainID != chainID {
		return StatusTaskNotFound, false, core.ErrTaskNotFound
	}

	group, ok := s.groups.Get(cache.GroupIndex)
	if !ok || group.PublicPolynomial == nil {
		return StatusTaskNotFound, false, core.ErrGroupNotReady
	}

	if verr := s.scheme.PartialVerify(crypto.PublicPolynomial{Commits: group.PublicPolynomial}, cache.Message, partial); verr != nil {
		return StatusInvalidSignature, false, verr
	}

	becameReady, addErr := cache.AddPartial(sender, partial)
	if addErr != nil {
		if errors.Is(addErr, core.ErrAlreadyCommittedPartialSignature) {
			return StatusAlreadyCommitted, false, addErr
		}
		return StatusInvalidSignature, false, addErr
	}

	return StatusAccepted, becameReady, nil
}

func httpStatusFor(s Status) int {
	switch s {
	case StatusAccepted:
		return http.StatusOK
	case StatusTaskNotFound:
		return http.StatusNotFound
	case StatusAlreadyCommitted:
		return http.StatusConflict
	default:
		return http.StatusBadRequest
	}
}

func writeResponse(w http.ResponseWriter, code int, resp CommitResponse) {
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(resp)
}
