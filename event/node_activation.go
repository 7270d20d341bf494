package event

import "github.com/ARPA-Network/randcast-node/core"

// NodeActivation is emitted when this node (re-)registers itself as active
// on a chain's node registry, grounded on
// original_source's event/node_activation.rs.
type NodeActivation struct {
	ChainID             uint32
	NodeRegistryAddress core.Address
}

func (e *NodeActivation) Topic() Topic {
	return GlobalTopic(KindNodeActivation)
}
