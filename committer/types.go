// Package committer is the RPC surface every committer node exposes (§4.5):
// CommitPartialSignature, used by peer committers (and non-committer
// members) to broadcast a signed partial over a randomness task. Grounded
// on the teacher's http/server.go (chi mux, withCommonHeaders, JSON
// responses) — go-chi/chi plus encoding/json stand in for the teacher's
// gRPC service since no contract/protobuf definitions ship with this repo.
package committer

// Status is the closed result vocabulary CommitPartialSignature returns
// (§4.5).
type Status string

const (
	StatusAccepted         Status = "accepted"
	StatusTaskNotFound     Status = "task_not_found"
	StatusAlreadyCommitted Status = "already_committed"
	StatusInvalidSignature Status = "invalid_signature"
)

// CommitRequest is the JSON body of POST /commit.
type CommitRequest struct {
	ChainID         uint32 `json:"chain_id"`
	RequestID       string `json:"request_id"`
	SenderAddress   string `json:"sender_address"`
	PartialSignature []byte `json:"partial_signature"`
}

// CommitResponse is the JSON body of every /commit response.
type CommitResponse struct {
	Status Status `json:"status"`
	Error  string `json:"error,omitempty"`
}
