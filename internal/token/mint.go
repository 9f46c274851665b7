package token

import (
	"github.com/Klingon-tech/statetransfer/internal/proof"
	"github.com/Klingon-tech/statetransfer/pkg/crypto"
	"github.com/Klingon-tech/statetransfer/pkg/types"
)

// minterSecret seeds the universal minter key. Anyone can derive the minter
// key for a token id, so genesis proofs need no extra trust material.
var minterSecret = []byte("statetransfer universal minter v1")

var mintSuffix = []byte("TOKEN_MINT")

// MinterKey derives the key that signs the genesis of token id.
func MinterKey(id types.TokenID) (*crypto.PrivateKey, error) {
	return crypto.Secp256k1Provider{}.DeriveKeyPair(minterSecret, id[:])
}

// MintSourceState is SHA256(tokenId || "TOKEN_MINT").
func MintSourceState(id types.TokenID) types.DataHash {
	buf := append(append([]byte(nil), id[:]...), mintSuffix...)
	return types.DataHash{Algorithm: types.SHA256, Digest: crypto.SHA256(buf)}
}

// MintRequestID is the ledger key of token id's genesis.
func MintRequestID(id types.TokenID) (proof.RequestID, error) {
	key, err := MinterKey(id)
	if err != nil {
		return proof.RequestID{}, err
	}
	defer key.Zero()
	return proof.NewRequestID(key.PublicKey(), MintSourceState(id)), nil
}
