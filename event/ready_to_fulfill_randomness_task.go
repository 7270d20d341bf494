package event

import "github.com/ARPA-Network/randcast-node/core"

// ReadyToFulfillRandomnessTask is emitted whenever a RandomnessResultCache
// crosses the threshold partial-signature count, either from
// RandomnessSignatureAggregationListener's scan or directly from the
// committer server (§4.3, §4.5). Both paths are idempotent.
type ReadyToFulfillRandomnessTask struct {
	ChainID uint32
	Tasks   []*core.RandomnessResultCache
}

func (e *ReadyToFulfillRandomnessTask) Topic() Topic {
	return ChainTopic(KindReadyToFulfillRandomnessTask, e.ChainID)
}
