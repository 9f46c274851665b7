package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Klingon-tech/statetransfer/internal/proof"
	"github.com/Klingon-tech/statetransfer/internal/rpcclient"
)

// JSON-RPC method names served by an aggregator.
const (
	MethodSubmitCommitment  = "submit_commitment"
	MethodGetInclusionProof = "get_inclusion_proof"
	MethodGetBlockHeight    = "get_block_height"
)

// CodeNotFound is the JSON-RPC error code for an unknown request id.
const CodeNotFound = -32000

// RequestIDParam is the params object of get_inclusion_proof.
type RequestIDParam struct {
	RequestID proof.RequestID `json:"requestId"`
}

// BlockHeightResult is the result object of get_block_height.
type BlockHeightResult struct {
	BlockHeight uint64 `json:"blockHeight"`
}

// AggregatorClient talks to a remote aggregator over JSON-RPC 2.0.
type AggregatorClient struct {
	rpc *rpcclient.Client
}

// NewAggregatorClient creates a client for the aggregator at url.
func NewAggregatorClient(url string, timeout time.Duration) *AggregatorClient {
	return &AggregatorClient{rpc: rpcclient.NewWithTimeout(url, timeout)}
}

// Submit implements Client.
func (c *AggregatorClient) Submit(ctx context.Context, s *Submission) (*SubmitResponse, error) {
	var resp SubmitResponse
	if err := c.rpc.CallContext(ctx, MethodSubmitCommitment, s, &resp); err != nil {
		return nil, err
	}
	if resp.Status == "" {
		return nil, fmt.Errorf("aggregator returned empty status")
	}
	return &resp, nil
}

// InclusionProof implements Client.
func (c *AggregatorClient) InclusionProof(ctx context.Context, id proof.RequestID) (*proof.InclusionProof, error) {
	var p proof.InclusionProof
	err := c.rpc.CallContext(ctx, MethodGetInclusionProof, RequestIDParam{RequestID: id}, &p)
	if err != nil {
		var rpcErr *rpcclient.RPCError
		if errors.As(err, &rpcErr) && rpcErr.Code == CodeNotFound {
			return nil, ErrProofNotFound
		}
		return nil, err
	}
	return &p, nil
}

// BlockHeight returns the height of the aggregator's latest round.
func (c *AggregatorClient) BlockHeight(ctx context.Context) (uint64, error) {
	var res BlockHeightResult
	if err := c.rpc.CallContext(ctx, MethodGetBlockHeight, nil, &res); err != nil {
		return 0, err
	}
	return res.BlockHeight, nil
}
