// Package proof defines request identifiers, authenticators and the
// inclusion proofs a ledger issues for accepted commitments.
package proof

import (
	"github.com/Klingon-tech/statetransfer/pkg/crypto"
	"github.com/Klingon-tech/statetransfer/pkg/types"
)

// RequestID binds an owner public key to the exact state being spent.
// The ledger accepts at most one commitment per RequestID.
type RequestID types.DataHash

// NewRequestID computes SHA256(publicKey || stateHash.Imprint()).
func NewRequestID(publicKey []byte, stateHash types.DataHash) RequestID {
	buf := make([]byte, 0, len(publicKey)+types.ImprintSize)
	buf = append(buf, publicKey...)
	buf = append(buf, stateHash.Imprint()...)
	return RequestID{Algorithm: types.SHA256, Digest: crypto.SHA256(buf)}
}

// DataHash returns the underlying tagged digest.
func (r RequestID) DataHash() types.DataHash {
	return types.DataHash(r)
}

// IsZero returns true for the zero RequestID.
func (r RequestID) IsZero() bool {
	return types.DataHash(r).IsZero()
}

// Imprint returns the algorithm-prefixed digest.
func (r RequestID) Imprint() []byte {
	return types.DataHash(r).Imprint()
}

// String returns the hex imprint.
func (r RequestID) String() string {
	return types.DataHash(r).String()
}

// MarshalJSON encodes the hex imprint.
func (r RequestID) MarshalJSON() ([]byte, error) {
	return types.DataHash(r).MarshalJSON()
}

// UnmarshalJSON decodes a hex imprint.
func (r *RequestID) UnmarshalJSON(data []byte) error {
	return (*types.DataHash)(r).UnmarshalJSON(data)
}

// ParseRequestID decodes a hex imprint.
func ParseRequestID(s string) (RequestID, error) {
	d, err := types.ParseDataHash(s)
	if err != nil {
		return RequestID{}, err
	}
	return RequestID(d), nil
}
