package event

import "github.com/ARPA-Network/randcast-node/core"

// RunDKG is emitted by PreGroupingSubscriber once the new Group entry for a
// DKGTask has been created in the Forming state (§4.4).
type RunDKG struct {
	DKGTask core.DKGTask
}

func (e *RunDKG) Topic() Topic {
	return GlobalTopic(KindRunDKG)
}
