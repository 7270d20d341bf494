// Package management is the administrative RPC surface (§4.7):
// NodeRegister, NodeActivate, NodeQuit, GetGroupInfo, GetNodeInfo. None of
// these sit on the randomness critical path, so unlike committer there is
// no broadcast client here — operators call this server directly (CLI
// tooling, a dashboard), grounded on the teacher's http/server.go
// route-per-operation shape.
package management

// RegisterNodeRequest is the JSON body of POST /node/register.
type RegisterNodeRequest struct {
	DKGPublicKey          []byte `json:"dkg_public_key"`
	RPCEndpoint           string `json:"rpc_endpoint"`
	ManagementRPCEndpoint string `json:"management_rpc_endpoint"`
	CommitterRPCEndpoint  string `json:"committer_rpc_endpoint"`
}

// Receipt is the JSON body returned by the write operations
// (NodeRegister/NodeActivate/NodeQuit), mirroring chain.Receipt.
type Receipt struct {
	TxHash  string `json:"tx_hash,omitempty"`
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
}

// NodeInfoResponse is the JSON body of GET /node/{address}.
type NodeInfoResponse struct {
	Address               string `json:"address"`
	DKGPublicKey          []byte `json:"dkg_public_key"`
	RPCEndpoint           string `json:"rpc_endpoint"`
	ManagementRPCEndpoint string `json:"management_rpc_endpoint"`
	CommitterRPCEndpoint  string `json:"committer_rpc_endpoint"`
}

// GroupInfoResponse is the JSON body of GET /group/{index}.
type GroupInfoResponse struct {
	Index     uint32   `json:"index"`
	Epoch     uint32   `json:"epoch"`
	Size      int      `json:"size"`
	Threshold int      `json:"threshold"`
	State     string   `json:"state"`
	Members   []string `json:"members"`
}
