package crypto

import (
	"fmt"

	"github.com/Klingon-tech/statetransfer/pkg/types"
)

// Provider supplies key derivation, hashing and signing to the transfer core.
// Implementations must be deterministic for DeriveKeyPair and Hash.
type Provider interface {
	// DeriveKeyPair derives a signing key from a secret and a nonce.
	DeriveKeyPair(secret, nonce []byte) (*PrivateKey, error)
	// Hash digests data with the given algorithm.
	Hash(alg types.HashAlgorithm, data []byte) (types.DataHash, error)
	// Sign signs a 32-byte digest.
	Sign(key Signer, hash []byte) ([]byte, error)
	// Algorithm names the signature scheme produced by Sign.
	Algorithm() string
}

// Secp256k1Provider is the default Provider: SHA-256 key derivation,
// Schnorr signatures over secp256k1.
type Secp256k1Provider struct{}

// DeriveKeyPair returns the key with scalar SHA256(secret || nonce).
// A nil nonce derives from the secret alone.
func (Secp256k1Provider) DeriveKeyPair(secret, nonce []byte) (*PrivateKey, error) {
	if len(secret) == 0 {
		return nil, fmt.Errorf("derive key: empty secret")
	}
	buf := make([]byte, 0, len(secret)+len(nonce))
	buf = append(buf, secret...)
	buf = append(buf, nonce...)
	scalar := SHA256(buf)
	key, err := PrivateKeyFromBytes(scalar[:])
	if err != nil {
		return nil, fmt.Errorf("derive key: %w", err)
	}
	return key, nil
}

// Hash digests data with alg.
func (Secp256k1Provider) Hash(alg types.HashAlgorithm, data []byte) (types.DataHash, error) {
	return Sum(alg, data)
}

// Sign signs hash with key.
func (Secp256k1Provider) Sign(key Signer, hash []byte) ([]byte, error) {
	return key.Sign(hash)
}

// Algorithm returns SchnorrAlgorithm.
func (Secp256k1Provider) Algorithm() string {
	return SchnorrAlgorithm
}
