package event

// DKGPostProcess is emitted by PostSuccessGroupingSubscriber after a group
// transitions to Ready, triggering the controller's post-process entrypoint
// exactly once per (index, epoch) (§4.4).
type DKGPostProcess struct {
	GroupIndex uint32
	GroupEpoch uint32
}

func (e *DKGPostProcess) Topic() Topic {
	return GlobalTopic(KindDKGPostProcess)
}
