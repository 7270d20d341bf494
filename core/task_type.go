package core

import "fmt"

// ListenerKind enumerates the closed set of long-lived listeners (§4.2).
type ListenerKind int

const (
	ListenerBlock ListenerKind = iota
	ListenerNewRandomnessTask
	ListenerReadyToHandleRandomnessTask
	ListenerRandomnessSignatureAggregation
	ListenerPreGrouping
	ListenerPostCommitGrouping
	ListenerPostGrouping
)

func (k ListenerKind) String() string {
	switch k {
	case ListenerBlock:
		return "Block"
	case ListenerNewRandomnessTask:
		return "NewRandomnessTask"
	case ListenerReadyToHandleRandomnessTask:
		return "ReadyToHandleRandomnessTask"
	case ListenerRandomnessSignatureAggregation:
		return "RandomnessSignatureAggregation"
	case ListenerPreGrouping:
		return "PreGrouping"
	case ListenerPostCommitGrouping:
		return "PostCommitGrouping"
	case ListenerPostGrouping:
		return "PostGrouping"
	default:
		return "Unknown"
	}
}

// SubscriberKind enumerates long-running subscriber loops that need a fixed
// task slot (most subscribers run inline from publish and need none; the
// ones that own a background loop or dynamic-task spawn register here).
type SubscriberKind int

const (
	SubscriberInGrouping SubscriberKind = iota
)

func (k SubscriberKind) String() string {
	switch k {
	case SubscriberInGrouping:
		return "InGrouping"
	default:
		return "Unknown"
	}
}

// TaskType is the closed-set tag keying FixedTaskScheduler entries (§4.2).
type TaskType struct {
	kind string
	// chainID holds the chain id for "Listener" tags and the group index for
	// "DKGRunner" tags; other kinds leave it zero.
	chainID uint32
	sub     string
}

func ListenerTask(kind ListenerKind, chainID uint32) TaskType {
	return TaskType{kind: "Listener", chainID: chainID, sub: kind.String()}
}

func SubscriberTask(kind SubscriberKind) TaskType {
	return TaskType{kind: "Subscriber", sub: kind.String()}
}

func CommitterServerTask() TaskType {
	return TaskType{kind: "CommitterServer"}
}

func ManagementServerTask() TaskType {
	return TaskType{kind: "ManagementServer"}
}

func MetricsServerTask() TaskType {
	return TaskType{kind: "MetricsServer"}
}

func DKGRunnerTask(groupIndex, epoch uint32) TaskType {
	return TaskType{kind: "DKGRunner", chainID: groupIndex, sub: fmt.Sprintf("epoch-%d", epoch)}
}

func (t TaskType) String() string {
	if t.kind == "Listener" {
		return fmt.Sprintf("Listener(%s,chain=%d)", t.sub, t.chainID)
	}
	if t.kind == "DKGRunner" {
		return fmt.Sprintf("DKGRunner(group=%d,%s)", t.chainID, t.sub)
	}
	if t.sub != "" {
		return fmt.Sprintf("%s(%s)", t.kind, t.sub)
	}
	return t.kind
}
