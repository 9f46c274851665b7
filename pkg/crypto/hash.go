// Package crypto provides the hashing and signing primitives used by token transfers.
package crypto

import (
	"crypto/sha256"
	"fmt"

	"github.com/Klingon-tech/statetransfer/pkg/types"
	"github.com/zeebo/blake3"
)

// Blake3 computes a BLAKE3-256 hash of the input data.
func Blake3(data []byte) types.Hash {
	return blake3.Sum256(data)
}

// SHA256 computes a SHA-256 hash of the input data.
func SHA256(data []byte) types.Hash {
	return sha256.Sum256(data)
}

// Sum hashes data with the given algorithm and returns the tagged digest.
func Sum(alg types.HashAlgorithm, data []byte) (types.DataHash, error) {
	switch alg {
	case types.SHA256:
		return types.DataHash{Algorithm: alg, Digest: SHA256(data)}, nil
	case types.BLAKE3:
		return types.DataHash{Algorithm: alg, Digest: Blake3(data)}, nil
	default:
		return types.DataHash{}, fmt.Errorf("%w: %s", ErrUnsupportedHash, alg)
	}
}

// MustSum is Sum for algorithms known to be supported. It panics otherwise.
func MustSum(alg types.HashAlgorithm, data []byte) types.DataHash {
	d, err := Sum(alg, data)
	if err != nil {
		panic(err)
	}
	return d
}

// HashConcat hashes the concatenation of two hashes with BLAKE3.
// Used for building merkle trees.
func HashConcat(a, b types.Hash) types.Hash {
	var buf [64]byte
	copy(buf[:32], a[:])
	copy(buf[32:], b[:])
	return Blake3(buf[:])
}
