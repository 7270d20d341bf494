// Package simulated is an in-memory ChainGateway + Board, grounded on the
// teacher's test/mock package style (a hand-rolled fake standing in for the
// real RPC client in tests). It lets the node pipeline run end to end
// without a live chain.
package simulated

import (
	"context"
	"fmt"
	"sync"

	"github.com/ARPA-Network/randcast-node/chain"
	"github.com/ARPA-Network/randcast-node/core"
)

// Gateway is a single-chain in-memory fake of chain.Gateway, driven by test
// code calling AdvanceBlock / AddDKGTask / AddRandomnessTask directly rather
// than observing a real chain.
type Gateway struct {
	mu sync.Mutex

	chainID uint32
	height  uint64
	subs    []chan uint64

	dkgTasks   []core.DKGTask
	randomTask map[core.RequestID]core.RandomnessTask
	fulfilled  map[core.RequestID]bool

	dkgOutputs  []dkgOutput
	postProcess map[string]int

	registered map[core.Address]core.Node
	activated  map[core.Address]bool
}

type dkgOutput struct {
	GroupIndex, Epoch uint32
	PublicKey         []byte
	Disqualified      []core.Address
}

func New(chainID uint32) *Gateway {
	return &Gateway{
		chainID:     chainID,
		randomTask:  make(map[core.RequestID]core.RandomnessTask),
		fulfilled:   make(map[core.RequestID]bool),
		postProcess: make(map[string]int),
		registered:  make(map[core.Address]core.Node),
		activated:   make(map[core.Address]bool),
	}
}

func (g *Gateway) ChainID() uint32 { return g.chainID }

func (g *Gateway) SubscribeBlocks(ctx context.Context) (<-chan uint64, error) {
	ch := make(chan uint64, 16)
	g.mu.Lock()
	g.subs = append(g.subs, ch)
	g.mu.Unlock()

	go func() {
		<-ctx.Done()
		g.mu.Lock()
		defer g.mu.Unlock()
		for i, c := range g.subs {
			if c == ch {
				g.subs = append(g.subs[:i], g.subs[i+1:]...)
				break
			}
		}
		close(ch)
	}()

	return ch, nil
}

// AdvanceBlock sets the chain height and notifies every subscriber.
func (g *Gateway) AdvanceBlock(height uint64) {
	g.mu.Lock()
	g.height = height
	subs := make([]chan uint64, len(g.subs))
	copy(subs, g.subs)
	g.mu.Unlock()

	for _, c := range subs {
		c <- height
	}
}

func (g *Gateway) CurrentBlock(_ context.Context) (uint64, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.height, nil
}

// AddDKGTask queues a DKG task to be returned by PendingDKGTasks.
func (g *Gateway) AddDKGTask(t core.DKGTask) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.dkgTasks = append(g.dkgTasks, t)
}

func (g *Gateway) PendingDKGTasks(_ context.Context) ([]core.DKGTask, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	out := make([]core.DKGTask, len(g.dkgTasks))
	copy(out, g.dkgTasks)
	return out, nil
}

// AddRandomnessTask queues a randomness task to be returned by
// PendingRandomnessTasks.
func (g *Gateway) AddRandomnessTask(t core.RandomnessTask) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.randomTask[t.RequestID] = t
}

func (g *Gateway) PendingRandomnessTasks(_ context.Context, groupIndex uint32) ([]core.RandomnessTask, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	var out []core.RandomnessTask
	for _, t := range g.randomTask {
		if t.GroupIndex == groupIndex && !g.fulfilled[t.RequestID] {
			out = append(out, t)
		}
	}
	return out, nil
}

func (g *Gateway) CommitDKGOutput(_ context.Context, groupIndex, epoch uint32, publicKey []byte, disqualified []core.Address) (chain.Receipt, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.dkgOutputs = append(g.dkgOutputs, dkgOutput{GroupIndex: groupIndex, Epoch: epoch, PublicKey: publicKey, Disqualified: disqualified})
	return chain.Receipt{TxHash: "0xsimulated-commit-dkg", Success: true}, nil
}

func (g *Gateway) FulfillRandomness(_ context.Context, requestID core.RequestID, _ uint32, _ []byte, _ []core.Address) (chain.Receipt, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.fulfilled[requestID] {
		return chain.Receipt{Success: false, Err: core.ErrTaskNotFound}, nil
	}
	g.fulfilled[requestID] = true
	return chain.Receipt{TxHash: "0xsimulated-fulfill", Success: true}, nil
}

func (g *Gateway) PostProcessDKG(_ context.Context, groupIndex, epoch uint32) (chain.Receipt, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	key := postProcessKey(groupIndex, epoch)
	g.postProcess[key]++
	return chain.Receipt{TxHash: "0xsimulated-postprocess", Success: true}, nil
}

// PostProcessCalls returns how many times PostProcessDKG was called for
// (groupIndex, epoch) — used by tests asserting "exactly once" (§4.4).
func (g *Gateway) PostProcessCalls(groupIndex, epoch uint32) int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.postProcess[postProcessKey(groupIndex, epoch)]
}

func (g *Gateway) RegisterNode(_ context.Context, n core.Node) (chain.Receipt, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.registered[n.Address] = n
	return chain.Receipt{TxHash: "0xsimulated-register-node", Success: true}, nil
}

func (g *Gateway) ActivateNode(_ context.Context, self core.Address) (chain.Receipt, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, ok := g.registered[self]; !ok {
		return chain.Receipt{Success: false, Err: core.ErrTaskNotFound}, nil
	}
	g.activated[self] = true
	return chain.Receipt{TxHash: "0xsimulated-activate-node", Success: true}, nil
}

func (g *Gateway) QuitNode(_ context.Context, self core.Address) (chain.Receipt, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.activated, self)
	delete(g.registered, self)
	return chain.Receipt{TxHash: "0xsimulated-quit-node", Success: true}, nil
}

// IsActivated reports whether self was successfully activated — used by
// tests asserting the management server's NodeActivate operation reached
// the registry contract.
func (g *Gateway) IsActivated(self core.Address) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.activated[self]
}

func postProcessKey(groupIndex, epoch uint32) string {
	return fmt.Sprintf("%d-%d", groupIndex, epoch)
}

var _ chain.Gateway = (*Gateway)(nil)
