// Package types defines core primitive types for token state transfers.
package types

import (
	"encoding/binary"
	"encoding/hex"
	"encoding/json"
	"fmt"
)

// HashSize is the length of a hash digest in bytes.
const HashSize = 32

// Hash represents a 256-bit hash value.
type Hash [HashSize]byte

// TokenID uniquely identifies a token. Immutable after mint.
type TokenID Hash

// TokenType identifies the class a token belongs to. Immutable after mint.
type TokenType Hash

// CoinID identifies a fungible coin carried inside a token.
type CoinID Hash

// IsZero returns true if the hash is all zeros.
func (h Hash) IsZero() bool {
	return h == Hash{}
}

// String returns the hex-encoded hash.
func (h Hash) String() string {
	return hex.EncodeToString(h[:])
}

// Bytes returns a copy of the hash as a byte slice.
func (h Hash) Bytes() []byte {
	b := make([]byte, HashSize)
	copy(b, h[:])
	return b
}

// MarshalJSON encodes the hash as a hex string.
func (h Hash) MarshalJSON() ([]byte, error) {
	return json.Marshal(h.String())
}

// UnmarshalJSON decodes a hex string into a hash.
func (h *Hash) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	if s == "" {
		*h = Hash{}
		return nil
	}
	decoded, err := HexToHash(s)
	if err != nil {
		return err
	}
	*h = decoded
	return nil
}

// HexToHash converts a hex string to a Hash.
// Returns an error if the string is not exactly 64 hex characters.
func HexToHash(s string) (Hash, error) {
	b, err := hex.DecodeString(s)
	if err != nil {
		return Hash{}, fmt.Errorf("invalid hex: %w", err)
	}
	if len(b) != HashSize {
		return Hash{}, fmt.Errorf("hash must be %d bytes, got %d", HashSize, len(b))
	}
	var h Hash
	copy(h[:], b)
	return h, nil
}

// IsZero returns true if the token ID is all zeros.
func (t TokenID) IsZero() bool {
	return Hash(t).IsZero()
}

// String returns the hex-encoded token ID.
func (t TokenID) String() string {
	return Hash(t).String()
}

// MarshalJSON encodes the token ID as a hex string.
func (t TokenID) MarshalJSON() ([]byte, error) {
	return Hash(t).MarshalJSON()
}

// UnmarshalJSON decodes a hex string into a token ID.
func (t *TokenID) UnmarshalJSON(data []byte) error {
	return (*Hash)(t).UnmarshalJSON(data)
}

// String returns the hex-encoded token type.
func (t TokenType) String() string {
	return Hash(t).String()
}

// MarshalJSON encodes the token type as a hex string.
func (t TokenType) MarshalJSON() ([]byte, error) {
	return Hash(t).MarshalJSON()
}

// UnmarshalJSON decodes a hex string into a token type.
func (t *TokenType) UnmarshalJSON(data []byte) error {
	return (*Hash)(t).UnmarshalJSON(data)
}

// String returns the hex-encoded coin ID.
func (c CoinID) String() string {
	return Hash(c).String()
}

// MarshalText encodes the coin ID as hex. Text form lets CoinID key JSON maps.
func (c CoinID) MarshalText() ([]byte, error) {
	return []byte(Hash(c).String()), nil
}

// UnmarshalText decodes a hex coin ID.
func (c *CoinID) UnmarshalText(text []byte) error {
	h, err := HexToHash(string(text))
	if err != nil {
		return fmt.Errorf("invalid coin id: %w", err)
	}
	*c = CoinID(h)
	return nil
}

// HashAlgorithm identifies the function that produced a DataHash.
type HashAlgorithm uint16

const (
	SHA256 HashAlgorithm = 0x0000
	BLAKE3 HashAlgorithm = 0x0020
)

// String returns the algorithm name.
func (a HashAlgorithm) String() string {
	switch a {
	case SHA256:
		return "SHA256"
	case BLAKE3:
		return "BLAKE3"
	default:
		return fmt.Sprintf("HashAlgorithm(%d)", uint16(a))
	}
}

// ParseHashAlgorithm parses an algorithm name as returned by String.
func ParseHashAlgorithm(s string) (HashAlgorithm, error) {
	switch s {
	case "SHA256":
		return SHA256, nil
	case "BLAKE3":
		return BLAKE3, nil
	default:
		return 0, fmt.Errorf("unknown hash algorithm %q", s)
	}
}

// MarshalJSON encodes the algorithm by name.
func (a HashAlgorithm) MarshalJSON() ([]byte, error) {
	return json.Marshal(a.String())
}

// UnmarshalJSON decodes an algorithm name.
func (a *HashAlgorithm) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := ParseHashAlgorithm(s)
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}

// ImprintSize is the length of a DataHash imprint: 2-byte algorithm + digest.
const ImprintSize = 2 + HashSize

// DataHash is a digest tagged with the algorithm that produced it.
type DataHash struct {
	Algorithm HashAlgorithm
	Digest    Hash
}

// IsZero returns true for the zero-value DataHash.
func (d DataHash) IsZero() bool {
	return d == DataHash{}
}

// Imprint returns the algorithm-prefixed digest.
// Layout: algorithm(2, big-endian) | digest(32)
func (d DataHash) Imprint() []byte {
	buf := make([]byte, 0, ImprintSize)
	buf = binary.BigEndian.AppendUint16(buf, uint16(d.Algorithm))
	return append(buf, d.Digest[:]...)
}

// String returns the hex-encoded imprint.
func (d DataHash) String() string {
	return hex.EncodeToString(d.Imprint())
}

// MarshalJSON encodes the imprint as a hex string.
func (d DataHash) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

// UnmarshalJSON decodes a hex imprint.
func (d *DataHash) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := ParseDataHash(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// DataHashFromImprint decodes a raw imprint.
func DataHashFromImprint(b []byte) (DataHash, error) {
	if len(b) != ImprintSize {
		return DataHash{}, fmt.Errorf("imprint must be %d bytes, got %d", ImprintSize, len(b))
	}
	var d DataHash
	d.Algorithm = HashAlgorithm(binary.BigEndian.Uint16(b[:2]))
	copy(d.Digest[:], b[2:])
	return d, nil
}

// ParseDataHash decodes a hex imprint string.
func ParseDataHash(s string) (DataHash, error) {
	b, err := hex.DecodeString(s)
	if err != nil {
		return DataHash{}, fmt.Errorf("invalid hex: %w", err)
	}
	return DataHashFromImprint(b)
}
