package event

// NewBlock is emitted by BlockListener for each strictly increasing height
// observed on a chain (§4.3).
type NewBlock struct {
	ChainID     uint32
	BlockHeight uint64
}

func (e *NewBlock) Topic() Topic {
	return ChainTopic(KindNewBlock, e.ChainID)
}
