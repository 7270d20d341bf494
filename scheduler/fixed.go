// Package scheduler implements the FixedTaskScheduler and
// DynamicTaskScheduler (§4.2), grounded on
// original_source/crates/arpa-node/src/scheduler/mod.rs
// (TaskScheduler/FixedTaskScheduler/DynamicTaskScheduler traits) and on the
// teacher's goroutine-lifecycle idiom in internal/chain/beacon/node.go
// (context.CancelFunc + a dedicated wait channel per running task).
package scheduler

import (
	"context"
	"fmt"
	"sync"

	"github.com/ARPA-Network/randcast-node/common/log"
	"github.com/ARPA-Network/randcast-node/core"
)

type fixedEntry struct {
	cancel context.CancelFunc
	done   chan struct{}
}

// Fixed is the long-lived task scheduler keyed by core.TaskType (§4.2).
type Fixed struct {
	mu    sync.Mutex
	tasks map[core.TaskType]*fixedEntry
	log   log.Logger
}

func NewFixed(l log.Logger) *Fixed {
	return &Fixed{
		tasks: make(map[core.TaskType]*fixedEntry),
		log:   l,
	}
}

// Add starts fn as a fixed task under tag. It returns ErrTaskAlreadyExisted
// if tag is already running. Panics inside fn are caught and logged; the
// task slot is cleared either way once fn returns (§4.2).
func (f *Fixed) Add(ctx context.Context, tag core.TaskType, fn func(ctx context.Context)) error {
	f.mu.Lock()
	if _, exists := f.tasks[tag]; exists {
		f.mu.Unlock()
		return fmt.Errorf("%w: %s", core.ErrTaskAlreadyExisted, tag)
	}
	taskCtx, cancel := context.WithCancel(ctx)
	entry := &fixedEntry{cancel: cancel, done: make(chan struct{})}
	f.tasks[tag] = entry
	f.mu.Unlock()

	go func() {
		defer close(entry.done)
		defer func() {
			if r := recover(); r != nil {
				f.log.Errorw("fixed task panicked", "task", tag.String(), "panic", r)
			}
			f.mu.Lock()
			if f.tasks[tag] == entry {
				delete(f.tasks, tag)
			}
			f.mu.Unlock()
		}()
		fn(taskCtx)
	}()

	return nil
}

// Abort cancels tag's task cooperatively and waits for it to return. It
// returns ErrTaskNotFound if tag isn't running. Abort does not hold the
// table lock while waiting, so a fresh Add for the same tag after Abort
// returns is never blocked (§4.2 ordering guarantee).
func (f *Fixed) Abort(tag core.TaskType) error {
	f.mu.Lock()
	entry, ok := f.tasks[tag]
	f.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: %s", core.ErrTaskNotFound, tag)
	}
	entry.cancel()
	<-entry.done
	return nil
}

// Join awaits every currently-running task.
func (f *Fixed) Join() {
	f.mu.Lock()
	dones := make([]chan struct{}, 0, len(f.tasks))
	for _, e := range f.tasks {
		dones = append(dones, e.done)
	}
	f.mu.Unlock()

	for _, d := range dones {
		<-d
	}
}

// Tasks returns the currently-registered task tags.
func (f *Fixed) Tasks() []core.TaskType {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]core.TaskType, 0, len(f.tasks))
	for t := range f.tasks {
		out = append(out, t)
	}
	return out
}
