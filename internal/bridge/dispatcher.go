// Package bridge exposes the transfer flows to host applications through a
// transport-independent request/response surface.
package bridge

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/Klingon-tech/statetransfer/internal/codec"
	"github.com/Klingon-tech/statetransfer/internal/identity"
	"github.com/Klingon-tech/statetransfer/internal/ledger"
	klog "github.com/Klingon-tech/statetransfer/internal/log"
	"github.com/Klingon-tech/statetransfer/internal/poller"
	"github.com/Klingon-tech/statetransfer/internal/predicate"
	"github.com/Klingon-tech/statetransfer/internal/token"
	"github.com/Klingon-tech/statetransfer/internal/transfer"
	"github.com/Klingon-tech/statetransfer/pkg/crypto"
	"github.com/Klingon-tech/statetransfer/pkg/types"
)

// Dispatcher routes host requests to an Orchestrator.
type Dispatcher struct {
	orch     *transfer.Orchestrator
	provider crypto.Provider
	hashAlg  types.HashAlgorithm
}

// NewDispatcher creates a dispatcher. hashAlg selects the predicate hash for
// receive addresses and must match what the orchestrator mints with.
func NewDispatcher(orch *transfer.Orchestrator, provider crypto.Provider, hashAlg types.HashAlgorithm) *Dispatcher {
	return &Dispatcher{orch: orch, provider: provider, hashAlg: hashAlg}
}

// NewRequest encodes a request with a fresh id.
func NewRequest(m Method, params interface{}) ([]byte, error) {
	raw, err := json.Marshal(params)
	if err != nil {
		return nil, fmt.Errorf("marshal params: %w", err)
	}
	return json.Marshal(Request{ID: uuid.NewString(), Method: m, Params: raw})
}

// Handle decodes one request, runs it and returns the encoded response.
// It never fails: problems are reported inside the response.
func (d *Dispatcher) Handle(ctx context.Context, raw []byte) []byte {
	var req Request
	if err := json.Unmarshal(raw, &req); err != nil {
		code := CodeInvalidRequest
		if errors.Is(err, ErrUnknownMethod) {
			code = CodeUnknownMethod
		}
		return encode(Response{ID: requestID(raw), Error: &Error{Code: code, Message: err.Error()}})
	}
	if req.ID == "" {
		req.ID = uuid.NewString()
	}

	logger := klog.Bridge.With().Str("id", req.ID).Str("method", req.Method.String()).Logger()
	logger.Debug().Msg("Handling request")

	result, err := d.dispatch(ctx, &req)
	if err != nil {
		logger.Warn().Err(err).Msg("Request failed")
		return encode(Response{ID: req.ID, Error: &Error{Code: errorCode(err), Message: err.Error()}})
	}
	data, err := json.Marshal(result)
	if err != nil {
		return encode(Response{ID: req.ID, Error: &Error{Code: CodeInternal, Message: err.Error()}})
	}
	return encode(Response{ID: req.ID, Result: data})
}

func (d *Dispatcher) dispatch(ctx context.Context, req *Request) (interface{}, error) {
	switch req.Method {
	case MethodMintToken:
		var p MintParams
		if err := decodeParams(req.Params, &p); err != nil {
			return nil, err
		}
		return d.mintToken(ctx, &p)
	case MethodPrepareTransfer:
		var p PrepareParams
		if err := decodeParams(req.Params, &p); err != nil {
			return nil, err
		}
		return d.orch.PrepareTransfer(ctx, p.SenderIdentity, p.RecipientAddress, p.Token, p.IsOffline)
	case MethodFinalizeReceived:
		var p FinalizeParams
		if err := decodeParams(req.Params, &p); err != nil {
			return nil, err
		}
		return d.finalize(ctx, &p)
	case MethodGenerateIdentity:
		return identity.Generate()
	case MethodReceiveAddress:
		var p ReceiveAddressParams
		if err := decodeParams(req.Params, &p); err != nil {
			return nil, err
		}
		addr, err := predicate.AddressFor(d.provider, p.TokenType, p.Identity, d.hashAlg)
		if err != nil {
			return nil, err
		}
		return AddressResult{Address: addr}, nil
	case MethodMintNametag:
		var p MintNametagParams
		if err := decodeParams(req.Params, &p); err != nil {
			return nil, err
		}
		res, err := d.orch.MintNametag(ctx, p.Identity, p.Name)
		if err != nil {
			return nil, err
		}
		return &TokenResult{TokenID: res.TokenID, Token: res.Token}, nil
	case MethodNametagAddress:
		var p NametagAddressParams
		if err := decodeParams(req.Params, &p); err != nil {
			return nil, err
		}
		if err := token.ValidateNametag(p.Name); err != nil {
			return nil, err
		}
		return AddressResult{Address: token.ProxyAddress(p.Name)}, nil
	}
	return nil, fmt.Errorf("%w: %s", ErrUnknownMethod, req.Method)
}

// requestID recovers the id of a request that failed to decode, or "" if
// raw has no string id.
func requestID(raw []byte) string {
	var envelope struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return ""
	}
	return envelope.ID
}

func (d *Dispatcher) mintToken(ctx context.Context, p *MintParams) (*TokenResult, error) {
	amount, err := parseAmount(p.TokenData.Amount)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", codec.ErrDeserialization, err)
	}
	req := transfer.MintRequest{Amount: amount}
	if p.TokenData.Data != "" {
		req.Data = []byte(p.TokenData.Data)
	}
	if p.TokenType != nil {
		req.TokenType = *p.TokenType
	}
	res, err := d.orch.Mint(ctx, p.Identity, req)
	if err != nil {
		return nil, err
	}
	return &TokenResult{TokenID: res.TokenID, Token: res.Token}, nil
}

func (d *Dispatcher) finalize(ctx context.Context, p *FinalizeParams) (*TokenResult, error) {
	pkg, err := codec.Unmarshal(p.TransferPackage)
	if err != nil {
		return nil, err
	}
	tok, err := d.orch.FinalizeReceived(ctx, p.ReceiverIdentity, pkg, p.Nametags...)
	if err != nil {
		return nil, err
	}
	return &TokenResult{TokenID: tok.ID(), Token: tok}, nil
}

func decodeParams(raw json.RawMessage, target interface{}) error {
	if len(raw) == 0 {
		return fmt.Errorf("%w: params required", codec.ErrDeserialization)
	}
	if err := json.Unmarshal(raw, target); err != nil {
		if errors.Is(err, identity.ErrInvalidIdentityFormat) {
			return err
		}
		return fmt.Errorf("%w: %v", codec.ErrDeserialization, err)
	}
	return nil
}

func errorCode(err error) string {
	var rejected *ledger.SubmissionRejectedError
	switch {
	case errors.Is(err, identity.ErrInvalidIdentityFormat):
		return CodeInvalidIdentityFormat
	case errors.Is(err, token.ErrStateMismatch):
		return CodeStateMismatch
	case errors.As(err, &rejected):
		return CodeSubmissionRejected
	case errors.Is(err, poller.ErrInclusionTimeout):
		return CodeInclusionTimeout
	case errors.Is(err, transfer.ErrInvalidPackage):
		return CodeInvalidPackage
	case errors.Is(err, token.ErrInvalidNametag):
		return CodeInvalidNametag
	case errors.Is(err, codec.ErrDeserialization):
		return CodeDeserialization
	case errors.Is(err, ErrUnknownMethod):
		return CodeUnknownMethod
	default:
		return CodeInternal
	}
}

func encode(r Response) []byte {
	data, err := json.Marshal(r)
	if err != nil {
		return []byte(`{"error":{"code":"Internal","message":"encode response"}}`)
	}
	return data
}
