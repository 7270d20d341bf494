// Package event defines the tagged-variant Event model and Topic routing
// keys (§3, §4.1), grounded on original_source's
// crates/arpa-node/src/event/*.rs tagged-variant layout.
package event

import "fmt"

// TopicKind is the closed set of routing keys an Event can carry.
type TopicKind int

const (
	KindNewBlock TopicKind = iota
	KindNewDKGTask
	KindRunDKG
	KindDKGPhase
	KindDKGSuccess
	KindDKGPostProcess
	KindNewRandomnessTask
	KindReadyToHandleRandomnessTask
	KindReadyToFulfillRandomnessTask
	KindNodeActivation
)

func (k TopicKind) String() string {
	switch k {
	case KindNewBlock:
		return "NewBlock"
	case KindNewDKGTask:
		return "NewDKGTask"
	case KindRunDKG:
		return "RunDKG"
	case KindDKGPhase:
		return "DKGPhase"
	case KindDKGSuccess:
		return "DKGSuccess"
	case KindDKGPostProcess:
		return "DKGPostProcess"
	case KindNewRandomnessTask:
		return "NewRandomnessTask"
	case KindReadyToHandleRandomnessTask:
		return "ReadyToHandleRandomnessTask"
	case KindReadyToFulfillRandomnessTask:
		return "ReadyToFulfillRandomnessTask"
	case KindNodeActivation:
		return "NodeActivation"
	default:
		return "Unknown"
	}
}

// Topic identifies a routing key. Per-chain topics (NewBlock,
// NewRandomnessTask, ReadyToHandleRandomnessTask,
// ReadyToFulfillRandomnessTask) carry a ChainID so relayed-chain pipelines
// get independent subscriber lists (§5 "across chains: independent").
type Topic struct {
	Kind    TopicKind
	ChainID uint32
}

func (t Topic) String() string {
	switch t.Kind {
	case KindNewBlock, KindNewRandomnessTask, KindReadyToHandleRandomnessTask, KindReadyToFulfillRandomnessTask:
		return fmt.Sprintf("%s(chain=%d)", t.Kind, t.ChainID)
	default:
		return t.Kind.String()
	}
}

func ChainTopic(kind TopicKind, chainID uint32) Topic {
	return Topic{Kind: kind, ChainID: chainID}
}

func GlobalTopic(kind TopicKind) Topic {
	return Topic{Kind: kind}
}
