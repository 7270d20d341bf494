package listener

import (
	"context"
	"time"

	"github.com/ARPA-Network/randcast-node/common/log"
	"github.com/ARPA-Network/randcast-node/dal"
	"github.com/ARPA-Network/randcast-node/event"
	"github.com/ARPA-Network/randcast-node/queue"
)

// RandomnessSignatureAggregation scans result caches for chainID with
// partial_signatures.count >= threshold and emits
// ReadyToFulfillRandomnessTask (§4.3). This races the committer server's
// own emission on the same transition; both are idempotent because the
// cache's Collecting -> Ready transition is monotonic (§4.5).
type RandomnessSignatureAggregation struct {
	chainID  uint32
	results  *dal.RandomnessResultCache
	eq       *queue.EventQueue
	interval time.Duration
	log      log.Logger
}

func NewRandomnessSignatureAggregation(chainID uint32, results *dal.RandomnessResultCache, eq *queue.EventQueue, interval time.Duration, l log.Logger) *RandomnessSignatureAggregation {
	return &RandomnessSignatureAggregation{chainID: chainID, results: results, eq: eq, interval: interval, log: l.Named("listener.randomness_signature_aggregation")}
}

func (r *RandomnessSignatureAggregation) Start(ctx context.Context) {
	pollEvery(ctx, r.interval, r.log, "RandomnessSignatureAggregation", r.poll)
}

func (r *RandomnessSignatureAggregation) poll(ctx context.Context) error {
	ready := r.results.ReadyForFulfillment(r.chainID)
	if len(ready) == 0 {
		return nil
	}
	r.eq.Publish(ctx, &event.ReadyToFulfillRandomnessTask{ChainID: r.chainID, Tasks: ready})
	return nil
}
