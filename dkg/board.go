// Package dkg drives the Phase0..Phase3 Gennaro-Jarecki-Krawczyk-Rabin
// state machine (§4.6), publishing and reading phase messages through a
// chain.Board, grounded on the teacher's dkg/execution.go (setupDKG /
// startDKGExecution: a Board-backed protocol run to completion, then
// packaged into a group output) and drand/kyber/share's Joint-Feldman
// secret-sharing primitives.
package dkg

import (
	"encoding/json"
	"fmt"

	"github.com/ARPA-Network/randcast-node/core"
)

// phase numbers as published on the Board; the phase argument to
// chain.Board.Publish/Read (§4.6).
const (
	phaseDeal      = 0
	phaseComplain  = 1
	phaseJustify   = 2
)

// dealMessage is Phase0's payload: a dealer's public commitment polynomial
// plus one secret share per recipient member index.
type dealMessage struct {
	Commits [][]byte      `json:"commits"`
	Shares  map[int][]byte `json:"shares"`
}

// complaintMessage is Phase1's payload: the dealer indices this node could
// not verify a valid share from.
type complaintMessage struct {
	Accused []int `json:"accused"`
}

// justifyMessage is Phase2's payload: replacement shares a dealer issues in
// response to complaints against it, keyed by complainant member index.
type justifyMessage struct {
	Shares map[int][]byte `json:"shares"`
}

func marshalMessage(v interface{}) ([]byte, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("marshaling dkg message: %w", err)
	}
	return b, nil
}

func unmarshalMessage(raw []byte, v interface{}) error {
	if err := json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("unmarshaling dkg message: %w", err)
	}
	return nil
}

// byMemberIndex resolves a Board's address-keyed read into member-index
// keyed messages, dropping entries from addresses outside the task's member
// set (a malicious or stale board write).
func byMemberIndex(task *core.DKGTask, raw map[core.Address][]byte) map[int][]byte {
	out := make(map[int][]byte, len(raw))
	for addr, payload := range raw {
		if idx := task.MemberIndex(addr); idx >= 0 {
			out[idx] = payload
		}
	}
	return out
}
