package event

import "github.com/ARPA-Network/randcast-node/core"

// DKGSuccess is emitted by InGroupingSubscriber when the phase machine
// produces (share, group_public_key, qualified_members, partial_public_keys)
// (§4.6).
type DKGSuccess struct {
	GroupIndex uint32
	Epoch      uint32
	// Group is the fully-populated result: qualified members, their partial
	// public keys, this node's share (if a member), and the aggregated
	// group public key.
	Group *core.Group
}

func (e *DKGSuccess) Topic() Topic {
	return GlobalTopic(KindDKGSuccess)
}
