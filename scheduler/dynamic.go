package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	clock "github.com/jonboulle/clockwork"

	"github.com/ARPA-Network/randcast-node/common/log"
)

// ShutdownPredicate is polled at shutdownCheckFrequency; when it returns
// true the owning task is cancelled cooperatively and its row removed
// (§4.2). Typical predicates are "group epoch changed" or "task cancelled".
type ShutdownPredicate func() bool

// Dynamic is the per-job transient task scheduler (§4.2).
type Dynamic struct {
	mu    sync.Mutex
	tasks map[uuid.UUID]context.CancelFunc
	clock clock.Clock
	log   log.Logger
}

func NewDynamic(l log.Logger) *Dynamic {
	return NewDynamicWithClock(l, clock.NewRealClock())
}

func NewDynamicWithClock(l log.Logger, c clock.Clock) *Dynamic {
	return &Dynamic{
		tasks: make(map[uuid.UUID]context.CancelFunc),
		clock: c,
		log:   l,
	}
}

// Add starts fn, cancelling it as soon as shutdownPredicate returns true
// (polled every shutdownCheckFrequency) or ctx is otherwise cancelled.
func (d *Dynamic) Add(ctx context.Context, fn func(ctx context.Context), shutdownPredicate ShutdownPredicate, shutdownCheckFrequency time.Duration) {
	id := uuid.New()
	taskCtx, cancel := context.WithCancel(ctx)

	d.mu.Lock()
	d.tasks[id] = cancel
	d.mu.Unlock()

	go func() {
		defer func() {
			if r := recover(); r != nil {
				d.log.Errorw("dynamic task panicked", "id", id, "panic", r)
			}
			d.mu.Lock()
			delete(d.tasks, id)
			d.mu.Unlock()
		}()
		fn(taskCtx)
	}()

	go d.watch(taskCtx, cancel, shutdownPredicate, shutdownCheckFrequency)
}

func (d *Dynamic) watch(ctx context.Context, cancel context.CancelFunc, predicate ShutdownPredicate, frequency time.Duration) {
	ticker := d.clock.NewTicker(frequency)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.Chan():
			if predicate() {
				cancel()
				return
			}
		}
	}
}

// Count returns the number of currently-running dynamic tasks, mostly for
// tests asserting a task was cleaned up after shutdown.
func (d *Dynamic) Count() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.tasks)
}
