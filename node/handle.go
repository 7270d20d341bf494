package node

import (
	"context"

	"github.com/ARPA-Network/randcast-node/dal"
	"github.com/ARPA-Network/randcast-node/scheduler"
)

// Handle is returned by Context.Deploy; Wait joins every fixed task the
// node registered (§4.7).
type Handle struct {
	fixed  *scheduler.Fixed
	cancel context.CancelFunc
	repo   dal.Repository
}

// Wait blocks until every fixed task this node registered has returned —
// a listener that exhausted its retry budget, a panic recovery, or an
// explicit Shutdown.
func (h *Handle) Wait() {
	h.fixed.Join()
}

// Shutdown cancels every fixed task's context, waits for them to return,
// and closes the repository.
func (h *Handle) Shutdown() {
	h.cancel()
	h.fixed.Join()
	_ = h.repo.Close()
}
