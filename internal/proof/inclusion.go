package proof

import (
	"encoding/json"
	"fmt"

	"github.com/Klingon-tech/statetransfer/pkg/types"
)

// Status is the outcome of verifying an inclusion proof.
type Status int

const (
	StatusOK Status = iota
	// StatusPathNotIncluded means the ledger has not (yet) recorded the request.
	StatusPathNotIncluded
	// StatusNotAuthenticated means the authenticator signature does not verify.
	StatusNotAuthenticated
	// StatusPathInvalid means the Merkle path does not reach its root.
	StatusPathInvalid
)

var statusNames = map[Status]string{
	StatusOK:               "OK",
	StatusPathNotIncluded:  "PATH_NOT_INCLUDED",
	StatusNotAuthenticated: "NOT_AUTHENTICATED",
	StatusPathInvalid:      "PATH_INVALID",
}

// String returns the wire name of the status.
func (s Status) String() string {
	if n, ok := statusNames[s]; ok {
		return n
	}
	return fmt.Sprintf("Status(%d)", int(s))
}

// MarshalJSON encodes the status by name.
func (s Status) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

// InclusionProof is ledger evidence that a commitment was accepted.
// A proof without Authenticator or TransactionHash is a non-inclusion proof.
type InclusionProof struct {
	Path            MerklePath      `json:"path"`
	Authenticator   *Authenticator  `json:"authenticator"`
	TransactionHash *types.DataHash `json:"transactionHash"`
	BlockHeight     uint64          `json:"blockHeight"`
}

// IsInclusion reports whether the proof carries a leaf.
func (p *InclusionProof) IsInclusion() bool {
	return p != nil && p.Authenticator != nil && p.TransactionHash != nil
}

// Verify checks the proof against the request it was fetched for.
func (p *InclusionProof) Verify(id RequestID) Status {
	if !p.IsInclusion() {
		return StatusPathNotIncluded
	}
	if p.Authenticator.RequestID() != id {
		return StatusPathNotIncluded
	}
	if !p.Authenticator.Verify(*p.TransactionHash) {
		return StatusNotAuthenticated
	}
	if !p.Path.Verify(LeafHash(id, *p.TransactionHash)) {
		return StatusPathInvalid
	}
	return StatusOK
}
