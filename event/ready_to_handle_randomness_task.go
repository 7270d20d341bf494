package event

import "github.com/ARPA-Network/randcast-node/core"

// ReadyToHandleRandomnessTask is emitted by
// ReadyToHandleRandomnessTaskListener once a task's assignment height has
// cleared the confirmation window (§4.3).
type ReadyToHandleRandomnessTask struct {
	ChainID uint32
	Tasks   []core.RandomnessTask
}

func (e *ReadyToHandleRandomnessTask) Topic() Topic {
	return ChainTopic(KindReadyToHandleRandomnessTask, e.ChainID)
}
