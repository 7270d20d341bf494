// Package listener implements the fixed, long-lived chain-polling tasks of
// §4.3, grounded on
// original_source/crates/randcast-node/src/node/listener/{block,new_randomness_task,...}.rs's
// start()-loop-per-listener layout. Each listener owns one FixedTaskScheduler
// slot (core.ListenerTask) and turns chain observations into events on the
// bus; chain RPC errors are retried per the node's configured descriptor,
// and a listener that exhausts its retry budget logs FATAL and returns,
// leaving restart to the node supervisor (§4.3, §7).
package listener

import (
	"context"
	"time"

	"github.com/ARPA-Network/randcast-node/common/log"
	"github.com/ARPA-Network/randcast-node/common/retry"
)

// pollEvery runs fn immediately and then every interval until ctx is
// cancelled. fn is expected to wrap its own chain RPCs in retry.Do; if fn
// returns a non-nil error here, the retry budget was exhausted and the
// listener gives up entirely (§4.3 "logs FATAL, aborts itself").
func pollEvery(ctx context.Context, interval time.Duration, l log.Logger, name string, fn func(ctx context.Context) error) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	if err := fn(ctx); err != nil {
		l.Fatalw("listener exhausted retry budget, aborting", "listener", name, "error", err)
		return
	}

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := fn(ctx); err != nil {
				l.Fatalw("listener exhausted retry budget, aborting", "listener", name, "error", err)
				return
			}
		}
	}
}

// retryChainCall wraps a chain RPC with the node's retry descriptor. It
// does not translate errors: only errors that implement Temporary()
// returning true are retried, and any other error is returned at once.
func retryChainCall(ctx context.Context, d retry.Descriptor, fn func(ctx context.Context) error) error {
	return retry.Do(ctx, d, fn)
}
