package committer

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/ARPA-Network/randcast-node/common/retry"
	"github.com/ARPA-Network/randcast-node/core"
)

// Client broadcasts CommitPartialSignature calls to peer committer
// endpoints (§4.4's "broadcasts the partial to all other committer RPC
// endpoints"), retrying transient transport failures per the node's retry
// descriptor.
type Client struct {
	httpClient *http.Client
	retry      retry.Descriptor
}

func NewClient(httpClient *http.Client, d retry.Descriptor) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Client{httpClient: httpClient, retry: d}
}

// Commit posts a CommitPartialSignature request to endpoint. Network
// errors are treated as temporary and retried; a well-formed rejection
// (task not found, already committed, invalid signature) is returned
// as-is without retrying.
func (c *Client) Commit(ctx context.Context, endpoint string, chainID uint32, reqID core.RequestID, sender core.Address, partial []byte) (Status, error) {
	req := CommitRequest{
		ChainID:          chainID,
		RequestID:        reqID.String(),
		SenderAddress:    sender.String(),
		PartialSignature: partial,
	}
	body, err := json.Marshal(req)
	if err != nil {
		return "", fmt.Errorf("committer client: marshaling request: %w", err)
	}

	var resp CommitResponse
	err = retry.Do(ctx, c.retry, func(ctx context.Context) error {
		httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint+"/commit", bytes.NewReader(body))
		if err != nil {
			return err
		}
		httpReq.Header.Set("Content-Type", "application/json")

		httpResp, err := c.httpClient.Do(httpReq)
		if err != nil {
			return transientTransportError{cause: err}
		}
		defer httpResp.Body.Close()

		if decErr := json.NewDecoder(httpResp.Body).Decode(&resp); decErr != nil {
			return transientTransportError{cause: decErr}
		}
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("committer client: committing to %s: %w", endpoint, err)
	}
	return resp.Status, nil
}

type transientTransportError struct {
	cause error
}

func (e transientTransportError) Error() string  { return "transient transport error: " + e.cause.Error() }
func (e transientTransportError) Unwrap() error  { return e.cause }
func (e transientTransportError) Temporary() bool { return true }
