package event

// Event is the tagged-variant interface every published event implements
// (§3, §4.1). Concrete payloads match on their own type rather than the
// caller reflecting on Event; Topic() is enough for the queue to route.
type Event interface {
	Topic() Topic
}
