package simulated

import (
	"context"
	"fmt"
	"sync"

	"github.com/ARPA-Network/randcast-node/core"
)

// Board is an in-memory chain.Board: a phase's messages are visible to
// readers as soon as published, with no block-height gating of its own —
// callers (the DKG phase driver) are responsible for waiting for the phase
// deadline before calling Read, exactly as against a real chain.
type Board struct {
	mu       sync.Mutex
	messages map[string]map[core.Address][]byte
}

func NewBoard() *Board {
	return &Board{messages: make(map[string]map[core.Address][]byte)}
}

func boardKey(groupIndex, epoch uint32, phase int) string {
	return fmt.Sprintf("%d-%d-%d", groupIndex, epoch, phase)
}

func (b *Board) Publish(_ context.Context, groupIndex, epoch uint32, phase int, self core.Address, payload []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	key := boardKey(groupIndex, epoch, phase)
	if b.messages[key] == nil {
		b.messages[key] = make(map[core.Address][]byte)
	}
	b.messages[key][self] = payload
	return nil
}

func (b *Board) Read(_ context.Context, groupIndex, epoch uint32, phase int) (map[core.Address][]byte, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	key := boardKey(groupIndex, epoch, phase)
	out := make(map[core.Address][]byte, len(b.messages[key]))
	for k, v := range b.messages[key] {
		out[k] = v
	}
	return out, nil
}
