// Package ledger defines the client side of the commitment ledger: what is
// submitted, what the aggregator answers, and how inclusion proofs are fetched.
package ledger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/Klingon-tech/statetransfer/internal/proof"
	"github.com/Klingon-tech/statetransfer/pkg/types"
)

// ErrProofNotFound is returned by InclusionProof when the ledger knows
// nothing about a request yet. Pollers treat it as transient.
var ErrProofNotFound = errors.New("inclusion proof not available")

// SubmitStatus is the aggregator's verdict on a submission.
type SubmitStatus string

const (
	StatusSuccess                         SubmitStatus = "SUCCESS"
	StatusAuthenticatorVerificationFailed SubmitStatus = "AUTHENTICATOR_VERIFICATION_FAILED"
	StatusRequestIDMismatch               SubmitStatus = "REQUEST_ID_MISMATCH"
	StatusRequestIDExists                 SubmitStatus = "REQUEST_ID_EXISTS"
)

// Submission is the ledger-facing part of a commitment.
type Submission struct {
	RequestID       proof.RequestID      `json:"requestId"`
	TransactionHash types.DataHash       `json:"transactionHash"`
	Authenticator   *proof.Authenticator `json:"authenticator"`
}

// Check validates a submission the way the aggregator does.
func (s *Submission) Check() SubmitStatus {
	if s.Authenticator == nil || !s.Authenticator.Verify(s.TransactionHash) {
		return StatusAuthenticatorVerificationFailed
	}
	if s.Authenticator.RequestID() != s.RequestID {
		return StatusRequestIDMismatch
	}
	return StatusSuccess
}

// SubmitResponse is returned by Client.Submit.
type SubmitResponse struct {
	Status SubmitStatus `json:"status"`
}

// Commitment is anything that can be submitted to the ledger.
type Commitment interface {
	Submission() *Submission
}

// Client is the transport to a commitment ledger.
type Client interface {
	// Submit records a commitment. A non-SUCCESS status is not a transport error.
	Submit(ctx context.Context, s *Submission) (*SubmitResponse, error)
	// InclusionProof fetches the proof for a request. The returned proof may be
	// a non-inclusion proof if the request has not been sealed yet.
	InclusionProof(ctx context.Context, id proof.RequestID) (*proof.InclusionProof, error)
}

// SubmissionRejectedError reports a non-SUCCESS submit status.
type SubmissionRejectedError struct {
	RequestID proof.RequestID
	Status    SubmitStatus
}

func (e *SubmissionRejectedError) Error() string {
	return fmt.Sprintf("submission %s rejected: %s", e.RequestID, e.Status)
}

// Submit sends c through client and converts a rejection into
// *SubmissionRejectedError.
func Submit(ctx context.Context, client Client, c Commitment) error {
	s := c.Submission()
	resp, err := client.Submit(ctx, s)
	if err != nil {
		return fmt.Errorf("submit %s: %w", s.RequestID, err)
	}
	if resp.Status != StatusSuccess {
		return &SubmissionRejectedError{RequestID: s.RequestID, Status: resp.Status}
	}
	return nil
}

// String returns the status name.
func (s SubmitStatus) String() string { return string(s) }

// MarshalJSON is explicit so the status never encodes as a number.
func (s SubmitStatus) MarshalJSON() ([]byte, error) {
	return json.Marshal(string(s))
}
