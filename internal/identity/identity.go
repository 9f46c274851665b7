// Package identity holds the user secret material that signing keys and
// ownership predicates are derived from.
package identity

import (
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/Klingon-tech/statetransfer/pkg/crypto"
)

const (
	// SecretSize is the length of an identity secret.
	SecretSize = 32
	// NonceSize is the length of an identity nonce.
	NonceSize = 32
)

// ErrInvalidIdentityFormat is returned when a secret or nonce is malformed.
var ErrInvalidIdentityFormat = errors.New("invalid identity format")

// Identity is a user secret plus a nonce. The same secret with a different
// nonce yields an unrelated signing key and unlinkable predicates.
type Identity struct {
	Secret []byte
	Nonce  []byte
}

// New validates and copies secret and nonce into an Identity.
func New(secret, nonce []byte) (Identity, error) {
	id := Identity{
		Secret: append([]byte(nil), secret...),
		Nonce:  append([]byte(nil), nonce...),
	}
	if err := id.Validate(); err != nil {
		return Identity{}, err
	}
	return id, nil
}

// Generate returns an identity with a random secret and nonce.
func Generate() (Identity, error) {
	secret := make([]byte, SecretSize)
	nonce := make([]byte, NonceSize)
	if _, err := rand.Read(secret); err != nil {
		return Identity{}, fmt.Errorf("generate secret: %w", err)
	}
	if _, err := rand.Read(nonce); err != nil {
		return Identity{}, fmt.Errorf("generate nonce: %w", err)
	}
	return Identity{Secret: secret, Nonce: nonce}, nil
}

// Parse decodes the hex wire form of an identity.
func Parse(secretHex, nonceHex string) (Identity, error) {
	secret, err := hex.DecodeString(secretHex)
	if err != nil {
		return Identity{}, fmt.Errorf("%w: secret: %v", ErrInvalidIdentityFormat, err)
	}
	nonce, err := hex.DecodeString(nonceHex)
	if err != nil {
		return Identity{}, fmt.Errorf("%w: nonce: %v", ErrInvalidIdentityFormat, err)
	}
	return New(secret, nonce)
}

// Validate checks that secret and nonce are exactly 32 bytes each.
func (id Identity) Validate() error {
	if len(id.Secret) != SecretSize {
		return fmt.Errorf("%w: secret must be %d bytes, got %d", ErrInvalidIdentityFormat, SecretSize, len(id.Secret))
	}
	if len(id.Nonce) != NonceSize {
		return fmt.Errorf("%w: nonce must be %d bytes, got %d", ErrInvalidIdentityFormat, NonceSize, len(id.Nonce))
	}
	return nil
}

// SigningKey derives the identity's signing key.
func (id Identity) SigningKey(p crypto.Provider) (*crypto.PrivateKey, error) {
	if err := id.Validate(); err != nil {
		return nil, err
	}
	return p.DeriveKeyPair(id.Secret, id.Nonce)
}

// PublicKey derives the identity's compressed public key.
func (id Identity) PublicKey(p crypto.Provider) ([]byte, error) {
	key, err := id.SigningKey(p)
	if err != nil {
		return nil, err
	}
	defer key.Zero()
	return key.PublicKey(), nil
}

// Zero clears the secret material.
func (id Identity) Zero() {
	clear(id.Secret)
	clear(id.Nonce)
}

type identityJSON struct {
	Secret string `json:"secret"`
	Nonce  string `json:"nonce"`
}

// MarshalJSON encodes {"secret": hex, "nonce": hex}.
func (id Identity) MarshalJSON() ([]byte, error) {
	return json.Marshal(identityJSON{
		Secret: hex.EncodeToString(id.Secret),
		Nonce:  hex.EncodeToString(id.Nonce),
	})
}

// UnmarshalJSON decodes and validates the hex wire form.
func (id *Identity) UnmarshalJSON(data []byte) error {
	var raw identityJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidIdentityFormat, err)
	}
	parsed, err := Parse(raw.Secret, raw.Nonce)
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}
