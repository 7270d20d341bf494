package event

// DKGPhase is emitted by InGroupingSubscriber as the DKG phase machine
// advances (§4.4, §4.6).
type DKGPhase struct {
	GroupIndex uint32
	Epoch      uint32
	Phase      int
}

func (e *DKGPhase) Topic() Topic {
	return GlobalTopic(KindDKGPhase)
}
