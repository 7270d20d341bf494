package subscriber

import (
	"context"
	"fmt"

	"github.com/ARPA-Network/randcast-node/chain"
	"github.com/ARPA-Network/randcast-node/common/log"
	"github.com/ARPA-Network/randcast-node/common/retry"
	"github.com/ARPA-Network/randcast-node/core"
	"github.com/ARPA-Network/randcast-node/crypto"
	"github.com/ARPA-Network/randcast-node/dal"
	"github.com/ARPA-Network/randcast-node/event"
)

// RandomnessSignatureAggregation aggregates a Ready cache entry's partials
// into a threshold signature and submits the on-chain fulfillment (§4.4).
// On success the entry is marked Fulfilled and retired; on revert
// committed_times is incremented and, below dal.MaxCommittedTimes, the
// entry is left Ready so the next scheduler tick retries it; once
// committed_times reaches the limit it is quarantined (§9 open-question
// decision).
type RandomnessSignatureAggregation struct {
	results *dal.RandomnessResultCache
	groups  *dal.GroupCache
	scheme  crypto.Scheme
	gw      chain.Gateway
	retry   retry.Descriptor
	log     log.Logger
}

func NewRandomnessSignatureAggregation(results *dal.RandomnessResultCache, groups *dal.GroupCache, scheme crypto.Scheme, gw chain.Gateway, d retry.Descriptor, l log.Logger) *RandomnessSignatureAggregation {
	return &RandomnessSignatureAggregation{results: results, groups: groups, scheme: scheme, gw: gw, retry: d, log: l.Named("subscriber.randomness_signature_aggregation")}
}

func (r *RandomnessSignatureAggregation) Notify(ctx context.Context, e event.Event) error {
	re, ok := e.(*event.ReadyToFulfillRandomnessTask)
	if !ok {
		return fmt.Errorf("randomness_signature_aggregation subscriber: unexpected event type %T", e)
	}
	for _, entry := range re.Tasks {
		if err := r.handle(ctx, entry); err != nil {
			r.log.Errorw("aggregating randomness signature failed", "request_id", entry.RequestID, "error", err)
		}
	}
	return nil
}

func (r *RandomnessSignatureAggregation) handle(ctx context.Context, entry *core.RandomnessResultCache) error {
	if entry.Status() != core.ResultReady {
		return nil
	}

	group, ok := r.groups.Get(entry.GroupIndex)
	if !ok {
		return fmt.Errorf("%w: group %d", core.ErrGroupNotReady, entry.GroupIndex)
	}

	partials := entry.Partials()
	signers := make([]core.Address, 0, len(partials))
	sigs := make([][]byte, 0, len(partials))
	for addr, p := range partials {
		signers = append(signers, addr)
		sigs = append(sigs, p)
	}

	sig, err := r.scheme.Aggregate(crypto.PublicPolynomial{Commits: group.PublicPolynomial}, entry.Message, sigs, entry.Threshold, group.Size)
	if err != nil {
		return fmt.Errorf("aggregating threshold signature: %w", err)
	}

	var receipt chain.Receipt
	err = retry.Do(ctx, r.retry, func(ctx context.Context) error {
		rc, ferr := r.gw.FulfillRandomness(ctx, entry.RequestID, entry.GroupIndex, sig, signers)
		if ferr != nil {
			return ferr
		}
		receipt = rc
		return nil
	})
	if err != nil {
		return fmt.Errorf("submitting fulfillment: %w", err)
	}

	if receipt.Success {
		entry.SetState(core.ResultFulfilled)
		r.results.Remove(entry.RequestID)
		return nil
	}

	times := entry.IncrementCommittedTimes()
	if times >= dal.MaxCommittedTimes {
		entry.SetState(core.ResultQuarantined)
		r.log.Warnw("randomness fulfillment quarantined after repeated reverts", "request_id", entry.RequestID, "committed_times", times)
		return nil
	}

	r.log.Warnw("randomness fulfillment reverted, will retry", "request_id", entry.RequestID, "committed_times", times, "receipt_error", receipt.Err)
	return nil
}
