package identity

import (
	"crypto/rand"
	"encoding/binary"
	"errors"
	"fmt"

	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/chacha20poly1305"
)

// ErrWrongPassword is returned when a sealed seed fails authentication.
var ErrWrongPassword = errors.New("wrong password or corrupted keystore")

const (
	kdfSaltSize = 32
	// Sealed layout: salt(32) | memory(4) | iterations(4) | parallelism(1) | nonce(24) | ciphertext
	sealHeaderSize = kdfSaltSize + 4 + 4 + 1
)

// KDFParams holds Argon2id cost parameters.
type KDFParams struct {
	Memory      uint32 // KiB
	Iterations  uint32
	Parallelism uint8
}

// DefaultKDFParams returns the parameters used for new keystore entries.
func DefaultKDFParams() KDFParams {
	return KDFParams{Memory: 64 * 1024, Iterations: 3, Parallelism: 4}
}

// LightKDFParams are cheap parameters for tests.
func LightKDFParams() KDFParams {
	return KDFParams{Memory: 1024, Iterations: 1, Parallelism: 1}
}

func (p KDFParams) key(password, salt []byte) []byte {
	return argon2.IDKey(password, salt, p.Iterations, p.Memory, p.Parallelism, chacha20poly1305.KeySize)
}

// seal encrypts plaintext under password with Argon2id + XChaCha20-Poly1305.
func seal(plaintext, password []byte, params KDFParams) ([]byte, error) {
	header := make([]byte, 0, sealHeaderSize+chacha20poly1305.NonceSizeX)
	salt := make([]byte, kdfSaltSize)
	if _, err := rand.Read(salt); err != nil {
		return nil, fmt.Errorf("generate salt: %w", err)
	}
	header = append(header, salt...)
	header = binary.LittleEndian.AppendUint32(header, params.Memory)
	header = binary.LittleEndian.AppendUint32(header, params.Iterations)
	header = append(header, params.Parallelism)

	key := params.key(password, salt)
	defer clear(key)
	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, fmt.Errorf("create cipher: %w", err)
	}

	nonce := make([]byte, aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return nil, fmt.Errorf("generate nonce: %w", err)
	}
	// The KDF header is bound as associated data.
	ad := append([]byte(nil), header...)
	out := append(header, nonce...)
	return aead.Seal(out, nonce, plaintext, ad), nil
}

// open reverses seal.
func open(sealed, password []byte) ([]byte, error) {
	nonceSize := chacha20poly1305.NonceSizeX
	if len(sealed) < sealHeaderSize+nonceSize+chacha20poly1305.Overhead {
		return nil, fmt.Errorf("sealed data too short: %d bytes", len(sealed))
	}
	header := sealed[:sealHeaderSize]
	params := KDFParams{
		Memory:      binary.LittleEndian.Uint32(header[kdfSaltSize:]),
		Iterations:  binary.LittleEndian.Uint32(header[kdfSaltSize+4:]),
		Parallelism: header[kdfSaltSize+8],
	}
	if params.Iterations == 0 || params.Parallelism == 0 {
		return nil, fmt.Errorf("invalid kdf parameters")
	}
	nonce := sealed[sealHeaderSize : sealHeaderSize+nonceSize]
	ciphertext := sealed[sealHeaderSize+nonceSize:]

	key := params.key(password, header[:kdfSaltSize])
	defer clear(key)
	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, fmt.Errorf("create cipher: %w", err)
	}
	plaintext, err := aead.Open(nil, nonce, ciphertext, header)
	if err != nil {
		return nil, ErrWrongPassword
	}
	return plaintext, nil
}
