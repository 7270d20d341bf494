package management

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi"

	"github.com/ARPA-Network/randcast-node/chain"
	"github.com/ARPA-Network/randcast-node/common/log"
	"github.com/ARPA-Network/randcast-node/core"
	"github.com/ARPA-Network/randcast-node/dal"
	"github.com/ARPA-Network/randcast-node/event"
	"github.com/ARPA-Network/randcast-node/queue"
)

// Server implements the §4.7 management operations over HTTP, and exposes
// each as a plain Go method so node bootstrap can call them directly
// without a loopback HTTP round trip.
type Server struct {
	self                core.Address
	nodeRegistryAddress core.Address
	gw                  chain.Gateway
	nodes               *dal.NodeCache
	groups              *dal.GroupCache
	eq                  *queue.EventQueue
	log                 log.Logger
}

func NewServer(self, nodeRegistryAddress core.Address, gw chain.Gateway, nodes *dal.NodeCache, groups *dal.GroupCache, eq *queue.EventQueue, l log.Logger) *Server {
	return &Server{self: self, nodeRegistryAddress: nodeRegistryAddress, gw: gw, nodes: nodes, groups: groups, eq: eq, log: l}
}

// Handler builds the chi router this server's fixed task serves.
func (s *Server) Handler() http.Handler {
	mux := chi.NewRouter()
	mux.Post("/node/register", withCommonHeaders(s.handleRegister))
	mux.Post("/node/activate", withCommonHeaders(s.handleActivate))
	mux.Post("/node/quit", withCommonHeaders(s.handleQuit))
	mux.Get("/node/{address}", withCommonHeaders(s.handleGetNode))
	mux.Get("/group/{index}", withCommonHeaders(s.handleGetGroup))
	return mux
}

func withCommonHeaders(h http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		h(w, r)
	}
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req RegisterNodeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	receipt, err := s.NodeRegister(r.Context(), req)
	writeReceipt(w, receipt, err)
}

func (s *Server) handleActivate(w http.ResponseWriter, r *http.Request) {
	receipt, err := s.NodeActivate(r.Context())
	writeReceipt(w, receipt, err)
}

func (s *Server) handleQuit(w http.ResponseWriter, r *http.Request) {
	receipt, err := s.NodeQuit(r.Context())
	writeReceipt(w, receipt, err)
}

func (s *Server) handleGetNode(w http.ResponseWriter, r *http.Request) {
	var addr core.Address
	if err := addr.UnmarshalText([]byte(chi.URLParam(r, "address"))); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("malformed address: %w", err))
		return
	}
	info, ok := s.GetNodeInfo(addr)
	if !ok {
		writeError(w, http.StatusNotFound, core.ErrTaskNotFound)
		return
	}
	_ = json.NewEncoder(w).Encode(info)
}

func (s *Server) handleGetGroup(w http.ResponseWriter, r *http.Request) {
	index, err := strconv.ParseUint(chi.URLParam(r, "index"), 10, 32)
	if err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("malformed group index: %w", err))
		return
	}
	info, ok := s.GetGroupInfo(uint32(index))
	if !ok {
		writeError(w, http.StatusNotFound, core.ErrTaskNotFound)
		return
	}
	_ = json.NewEncoder(w).Encode(info)
}

// NodeRegister submits this node's identity to the node registry contract
// and caches it locally (§4.7).
func (s *Server) NodeRegister(ctx context.Context, req RegisterNodeRequest) (chain.Receipt, error) {
	n := core.Node{
		Address:               s.self,
		DKGPublicKey:          req.DKGPublicKey,
		RPCEndpoint:           req.RPCEndpoint,
		ManagementRPCEndpoint: req.ManagementRPCEndpoint,
		CommitterRPCEndpoint:  req.CommitterRPCEndpoint,
	}
	receipt, err := s.gw.RegisterNode(ctx, n)
	if err != nil {
		return receipt, err
	}
	if receipt.Success {
		s.nodes.Upsert(&n)
	}
	return receipt, nil
}

// NodeActivate marks this node eligible for the next grouping round and
// emits NodeActivation on success (§4.3, §4.7). No component of the node
// subscribes to NodeActivation; PreGroupingListener polls for rounds
// regardless of it.
func (s *Server) NodeActivate(ctx context.Context) (chain.Receipt, error) {
	receipt, err := s.gw.ActivateNode(ctx, s.self)
	if err != nil {
		return receipt, err
	}
	if receipt.Success {
		s.eq.Publish(ctx, &event.NodeActivation{ChainID: s.gw.ChainID(), NodeRegistryAddress: s.nodeRegistryAddress})
	}
	return receipt, nil
}

// NodeQuit deregisters this node from the node registry contract (§4.7).
func (s *Server) NodeQuit(ctx context.Context) (chain.Receipt, error) {
	return s.gw.QuitNode(ctx, s.self)
}

// GetGroupInfo returns the local cache's current view of group index.
func (s *Server) GetGroupInfo(index uint32) (GroupInfoResponse, bool) {
	g, ok := s.groups.Get(index)
	if !ok {
		return GroupInfoResponse{}, false
	}
	members := make([]string, len(g.MemberOrder))
	for i, m := range g.MemberOrder {
		members[i] = m.String()
	}
	return GroupInfoResponse{
		Index:     g.Index,
		Epoch:     g.Epoch,
		Size:      g.Size,
		Threshold: g.Threshold,
		State:     g.State.String(),
		Members:   members,
	}, true
}

// GetNodeInfo returns the local cache's current view of addr.
func (s *Server) GetNodeInfo(addr core.Address) (NodeInfoResponse, bool) {
	n, ok := s.nodes.Get(addr)
	if !ok {
		return NodeInfoResponse{}, false
	}
	return NodeInfoResponse{
		Address:               n.Address.String(),
		DKGPublicKey:          n.DKGPublicKey,
		RPCEndpoint:           n.RPCEndpoint,
		ManagementRPCEndpoint: n.ManagementRPCEndpoint,
		CommitterRPCEndpoint:  n.CommitterRPCEndpoint,
	}, true
}

func writeReceipt(w http.ResponseWriter, receipt chain.Receipt, err error) {
	resp := Receipt{TxHash: receipt.TxHash, Success: receipt.Success}
	code := http.StatusOK
	if err != nil {
		resp.Error = err.Error()
		code = http.StatusBadGateway
	} else if !receipt.Success {
		resp.Error = errString(receipt.Err)
		code = http.StatusConflict
	}
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(resp)
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}

func writeError(w http.ResponseWriter, code int, err error) {
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(Receipt{Error: err.Error()})
}
