package event

import "github.com/ARPA-Network/randcast-node/core"

// NewDKGTask is emitted by PreGroupingListener when the coordinator contract
// publishes a new DKG round this node may be a member of (§4.3).
type NewDKGTask struct {
	DKGTask  core.DKGTask
	SelfAddr core.Address
}

func (e *NewDKGTask) Topic() Topic {
	return GlobalTopic(KindNewDKGTask)
}
