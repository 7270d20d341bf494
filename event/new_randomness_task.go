package event

import "github.com/ARPA-Network/randcast-node/core"

// NewRandomnessTask is emitted by NewRandomnessTaskListener for each unseen
// request_id discovered on-chain (§4.3).
type NewRandomnessTask struct {
	ChainID         uint32
	RandomnessTask  core.RandomnessTask
}

func (e *NewRandomnessTask) Topic() Topic {
	return ChainTopic(KindNewRandomnessTask, e.ChainID)
}
