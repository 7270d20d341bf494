package subscriber

import (
	"context"
	"fmt"

	lru "github.com/hashicorp/golang-lru"

	"github.com/ARPA-Network/randcast-node/committer"
	"github.com/ARPA-Network/randcast-node/common/log"
	"github.com/ARPA-Network/randcast-node/core"
	"github.com/ARPA-Network/randcast-node/crypto"
	"github.com/ARPA-Network/randcast-node/dal"
	"github.com/ARPA-Network/randcast-node/event"
)

const sentPartialCacheSize = 4096

// ReadyToHandleRandomnessTask signs each ready task's message with this
// node's BLS share and gets the partial to every committer (§4.4). A
// committer stores its own partial locally (through the same path a peer's
// RPC would take) and broadcasts to every *other* committer; a
// non-committer member has no local cache to store into and broadcasts to
// every committer. Exactly-once per (request_id, address) is ultimately
// enforced by the receiving committer server's cache (§4.5); the local
// dedup set here only avoids redundant network traffic on redelivery.
type ReadyToHandleRandomnessTask struct {
	groups  *dal.GroupCache
	results *dal.RandomnessResultCache
	scheme  crypto.Scheme
	self    core.Address
	local   *committer.Server
	client  *committer.Client
	sent    *lru.Cache
	log     log.Logger
}

func NewReadyToHandleRandomnessTask(groups *dal.GroupCache, results *dal.RandomnessResultCache, scheme crypto.Scheme, self core.Address, local *committer.Server, client *committer.Client, l log.Logger) *ReadyToHandleRandomnessTask {
	sent, err := lru.New(sentPartialCacheSize)
	if err != nil {
		panic(err)
	}
	return &ReadyToHandleRandomnessTask{groups: groups, results: results, scheme: scheme, self: self, local: local, client: client, sent: sent, log: l.Named("subscriber.ready_to_handle_randomness_task")}
}

func (r *ReadyToHandleRandomnessTask) Notify(ctx context.Context, e event.Event) error {
	re, ok := e.(*event.ReadyToHandleRandomnessTask)
	if !ok {
		return fmt.Errorf("ready_to_handle_randomness_task subscriber: unexpected event type %T", e)
	}

	for _, task := range re.Tasks {
		if err := r.handle(ctx, re.ChainID, task); err != nil {
			r.log.Errorw("handling ready randomness task failed", "request_id", task.RequestID, "error", err)
		}
	}
	return nil
}

func (r *ReadyToHandleRandomnessTask) handle(ctx context.Context, chainID uint32, task core.RandomnessTask) error {
	group, ok := r.groups.Get(task.GroupIndex)
	if !ok || group.State != core.GroupReady {
		return fmt.Errorf("%w: group %d not ready", core.ErrGroupNotReady, task.GroupIndex)
	}
	member, isMember := group.Members[r.self]
	if !isMember || len(group.Share) == 0 {
		return nil
	}

	key := sentKey(task.RequestID, r.self)
	if r.sent.Contains(key) {
		return nil
	}
	r.sent.Add(key, struct{}{})

	r.results.GetOrCreate(task.RequestID, chainID, task.GroupIndex, task.Message(), group.Threshold)

	partial, err := r.scheme.PartialSign(crypto.PrivateShare{Index: member.MemberIndex, Value: group.Share}, task.Message())
	if err != nil {
		return fmt.Errorf("signing partial: %w", err)
	}

	_, isCommitter := group.Committers[r.self]
	if isCommitter {
		if _, _, err := r.local.Commit(ctx, chainID, task.RequestID, r.self, partial); err != nil {
			r.log.Debugw("local commit rejected", "request_id", task.RequestID, "error", err)
		}
	}

	for addr := range group.Committers {
		if isCommitter && addr == r.self {
			continue
		}
		peer, ok := group.Members[addr]
		if !ok || peer.RPCEndpoint == "" {
			continue
		}
		if _, err := r.client.Commit(ctx, peer.RPCEndpoint, chainID, task.RequestID, r.self, partial); err != nil {
			r.log.Warnw("broadcasting partial to committer failed", "request_id", task.RequestID, "committer", addr, "error", err)
		}
	}
	return nil
}

func sentKey(reqID core.RequestID, addr core.Address) [52]byte {
	var k [52]byte
	copy(k[:32], reqID[:])
	copy(k[32:], addr[:])
	return k
}
