package proof

import (
	"fmt"

	"github.com/Klingon-tech/statetransfer/pkg/crypto"
	"github.com/Klingon-tech/statetransfer/pkg/types"
)

// Authenticator proves that the holder of PublicKey signed a transaction
// spending the state identified by StateHash.
type Authenticator struct {
	Algorithm string         `json:"algorithm"`
	PublicKey types.HexBytes `json:"publicKey"`
	Signature types.HexBytes `json:"signature"`
	StateHash types.DataHash `json:"stateHash"`
}

// NewAuthenticator signs txHash with key.
func NewAuthenticator(p crypto.Provider, key crypto.Signer, txHash, stateHash types.DataHash) (*Authenticator, error) {
	sig, err := p.Sign(key, txHash.Digest[:])
	if err != nil {
		return nil, fmt.Errorf("sign transaction hash: %w", err)
	}
	return &Authenticator{
		Algorithm: p.Algorithm(),
		PublicKey: key.PublicKey(),
		Signature: sig,
		StateHash: stateHash,
	}, nil
}

// Verify checks the signature over txHash. Unknown algorithms never verify.
func (a *Authenticator) Verify(txHash types.DataHash) bool {
	if a == nil {
		return false
	}
	v, err := crypto.VerifierFor(a.Algorithm)
	if err != nil {
		return false
	}
	return v.Verify(txHash.Digest[:], a.Signature, a.PublicKey)
}

// RequestID returns the request identifier this authenticator commits to.
func (a *Authenticator) RequestID() RequestID {
	return NewRequestID(a.PublicKey, a.StateHash)
}
