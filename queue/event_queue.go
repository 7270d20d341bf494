// Package queue implements the single in-process topic-routed pub/sub bus
// (§4.1), grounded on original_source's crates/arpa-node/src/queue/mod.rs
// (EventSubscriber/EventPublisher traits) and the teacher's mutex-guarded
// table idiom (internal/net/gateway.go).
package queue

import (
	"context"
	"sync"

	"github.com/ARPA-Network/randcast-node/common/log"
	"github.com/ARPA-Network/randcast-node/event"
)

// Subscriber reacts to one Event. Handlers should recover locally from
// TaskState and stale-group errors (§7); any other returned error is logged
// but never aborts delivery to sibling subscribers (§4.1).
type Subscriber interface {
	Notify(ctx context.Context, e event.Event) error
}

// SubscriberFunc adapts a function to Subscriber.
type SubscriberFunc func(ctx context.Context, e event.Event) error

func (f SubscriberFunc) Notify(ctx context.Context, e event.Event) error {
	return f(ctx, e)
}

// EventQueue maps each Topic to an ordered sequence of subscribers. Publish
// delivers an event to every subscriber registered under event.Topic(), in
// registration order, awaiting each handler before invoking the next;
// delivery is serialized per topic, but concurrent Publish calls on
// distinct topics proceed in parallel (§4.1, §5).
type EventQueue struct {
	mu          sync.RWMutex
	subscribers map[event.Topic][]namedSubscriber
	// topicLocks serializes Publish per topic without holding the table
	// lock for the duration of delivery, so subscribe() on another topic
	// is never blocked by a slow handler.
	topicLocks map[event.Topic]*sync.Mutex
	log        log.Logger
}

type namedSubscriber struct {
	name string
	sub  Subscriber
}

func New(l log.Logger) *EventQueue {
	return &EventQueue{
		subscribers: make(map[event.Topic][]namedSubscriber),
		topicLocks:  make(map[event.Topic]*sync.Mutex),
		log:         l,
	}
}

// Subscribe appends sub under topic; no de-duplication (§4.1). name is used
// only for log identification of failed handlers.
func (q *EventQueue) Subscribe(topic event.Topic, name string, sub Subscriber) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.subscribers[topic] = append(q.subscribers[topic], namedSubscriber{name: name, sub: sub})
	if _, ok := q.topicLocks[topic]; !ok {
		q.topicLocks[topic] = &sync.Mutex{}
	}
}

// Topics returns the set of topics with at least one subscriber, in no
// particular order. The node context does not call it.
func (q *EventQueue) Topics() []event.Topic {
	q.mu.RLock()
	defer q.mu.RUnlock()
	topics := make([]event.Topic, 0, len(q.subscribers))
	for t := range q.subscribers {
		topics = append(topics, t)
	}
	return topics
}

// Publish fans e out to every subscriber registered under e.Topic(), in
// registration order, awaiting each handler. Handler errors are logged with
// topic + handler identity and never abort delivery to siblings (§4.1, §7).
func (q *EventQueue) Publish(ctx context.Context, e event.Event) {
	topic := e.Topic()

	q.mu.RLock()
	subs := make([]namedSubscriber, len(q.subscribers[topic]))
	copy(subs, q.subscribers[topic])
	topicLock := q.topicLocks[topic]
	q.mu.RUnlock()

	if topicLock == nil || len(subs) == 0 {
		return
	}

	topicLock.Lock()
	defer topicLock.Unlock()

	for _, ns := range subs {
		if err := ns.sub.Notify(ctx, e); err != nil {
			q.log.Errorw("subscriber handler failed", "topic", topic.String(), "subscriber", ns.name, "err", err)
		}
	}
}
