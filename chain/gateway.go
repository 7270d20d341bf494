// Package chain defines the ChainGateway capability (§6) — the narrow
// interface every listener and subscriber uses to talk to the adapter,
// coordinator and controller contracts. Concrete chain RPC clients (HTTP/WS
// providers, contract ABIs) are external collaborators; this package ships
// one reference implementation (chain/ethereum) and one in-memory
// implementation for tests (chain/simulated).
//
// Interface shape grounded on
// rashadalh-keep-core-addsRedeemScripts/pkg/beacon/relay/chain/chain.go
// (narrow sub-interfaces composed into one Interface).
package chain

import (
	"context"

	"github.com/ARPA-Network/randcast-node/core"
)

// Receipt is the minimal on-chain transaction result a subscriber needs:
// whether it succeeded, and if not, the failure in Err (§4.4 "on revert
// increments committed_times"). It does not classify failures as transient.
type Receipt struct {
	TxHash  string
	Success bool
	Err     error
}

// Gateway is the ChainGateway capability (§6).
type Gateway interface {
	// ChainID identifies which chain this Gateway serves.
	ChainID() uint32

	// SubscribeBlocks streams strictly increasing block heights until ctx
	// is cancelled. BlockListener is the sole consumer.
	SubscribeBlocks(ctx context.Context) (<-chan uint64, error)

	// CurrentBlock returns the chain's current height.
	CurrentBlock(ctx context.Context) (uint64, error)

	// PendingRandomnessTasks returns tasks assigned to groupIndex that the
	// adapter contract has not yet marked fulfilled.
	PendingRandomnessTasks(ctx context.Context, groupIndex uint32) ([]core.RandomnessTask, error)

	// CommitDKGOutput reports a completed DKG's output to the coordinator
	// contract; disqualified lists members excluded from the final group.
	CommitDKGOutput(ctx context.Context, groupIndex, epoch uint32, publicKey []byte, disqualified []core.Address) (Receipt, error)

	// FulfillRandomness submits the aggregated threshold signature for
	// requestID, naming the committers whose partials were aggregated.
	FulfillRandomness(ctx context.Context, requestID core.RequestID, groupIndex uint32, signature []byte, partialSigners []core.Address) (Receipt, error)

	// PostProcessDKG invokes the controller contract's post-process
	// entrypoint for (groupIndex, epoch); PostGroupingSubscriber calls this
	// exactly once per (index, epoch) (§4.4).
	PostProcessDKG(ctx context.Context, groupIndex, epoch uint32) (Receipt, error)

	// PendingDKGTasks returns DKG rounds the coordinator contract has
	// announced that this node has not yet processed.
	PendingDKGTasks(ctx context.Context) ([]core.DKGTask, error)

	// RegisterNode submits n's identity (DKG public key, RPC endpoints) to
	// the node registry contract. Administrative; called by the management
	// server's NodeRegister operation (§4.7).
	RegisterNode(ctx context.Context, n core.Node) (Receipt, error)

	// ActivateNode marks self eligible for the next grouping round on the
	// node registry contract (§4.7).
	ActivateNode(ctx context.Context, self core.Address) (Receipt, error)

	// QuitNode deregisters self from the node registry contract, excluding
	// it from future grouping rounds (§4.7).
	QuitNode(ctx context.Context, self core.Address) (Receipt, error)
}

// Board is the on-chain coordinator "board" used to publish and read DKG
// phase messages (§4.6).
type Board interface {
	// Publish writes this node's phase message for (groupIndex, epoch,
	// phase) to the board.
	Publish(ctx context.Context, groupIndex, epoch uint32, phase int, self core.Address, payload []byte) error

	// Read returns every message published for (groupIndex, epoch, phase),
	// keyed by publisher address. Called only after the phase deadline
	// block height has passed.
	Read(ctx context.Context, groupIndex, epoch uint32, phase int) (map[core.Address][]byte, error)
}
