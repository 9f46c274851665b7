package rpc

import (
	"context"
	"errors"
	"fmt"

	"github.com/Klingon-tech/statetransfer/internal/ledger"
	"github.com/Klingon-tech/statetransfer/internal/storage"
)

func (s *Server) handleSubmitCommitment(ctx context.Context, req *Request) (interface{}, *Error) {
	var sub ledger.Submission
	if err := parseParams(req, &sub); err != nil {
		return nil, err
	}
	if sub.RequestID.IsZero() {
		return nil, &Error{Code: CodeInvalidParams, Message: "requestId required"}
	}

	resp, err := s.ledger.Submit(ctx, &sub)
	if err != nil {
		return nil, &Error{Code: CodeInternalError, Message: err.Error()}
	}
	return resp, nil
}

func (s *Server) handleGetInclusionProof(ctx context.Context, req *Request) (interface{}, *Error) {
	var p ledger.RequestIDParam
	if err := parseParams(req, &p); err != nil {
		return nil, err
	}
	if p.RequestID.IsZero() {
		return nil, &Error{Code: CodeInvalidParams, Message: "requestId required"}
	}

	pr, err := s.ledger.InclusionProof(ctx, p.RequestID)
	if errors.Is(err, ledger.ErrProofNotFound) {
		return nil, &Error{Code: CodeNotFound, Message: err.Error()}
	}
	if err != nil {
		return nil, &Error{Code: CodeInternalError, Message: err.Error()}
	}
	return pr, nil
}

func (s *Server) handleGetBlockHeight(_ *Request) (interface{}, *Error) {
	return ledger.BlockHeightResult{BlockHeight: s.ledger.BlockHeight()}, nil
}

func (s *Server) handleGetBlock(req *Request) (interface{}, *Error) {
	var p HeightParam
	if err := parseParams(req, &p); err != nil {
		return nil, err
	}

	b, err := s.ledger.Block(p.Height)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, &Error{Code: CodeNotFound, Message: fmt.Sprintf("block %d not found", p.Height)}
	}
	if err != nil {
		return nil, &Error{Code: CodeInternalError, Message: err.Error()}
	}
	return b, nil
}

func (s *Server) handleGetInfo(_ *Request) (interface{}, *Error) {
	return InfoResult{
		BlockHeight: s.ledger.BlockHeight(),
		Pending:     s.ledger.PendingCount(),
	}, nil
}
