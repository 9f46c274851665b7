// Package predicate implements masked ownership predicates and the
// addresses derived from them.
package predicate

import (
	"bytes"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/Klingon-tech/statetransfer/internal/identity"
	"github.com/Klingon-tech/statetransfer/internal/proof"
	"github.com/Klingon-tech/statetransfer/pkg/crypto"
	"github.com/Klingon-tech/statetransfer/pkg/types"
)

// TypeMasked tags masked predicates on the wire.
const TypeMasked = "MASKED"

// ErrInvalidPredicate is returned for structurally invalid predicates.
var ErrInvalidPredicate = errors.New("invalid predicate")

// Masked locks a token state to a public key hidden behind a nonce.
// Two predicates for the same key with different nonces share nothing but
// hash outputs.
type Masked struct {
	TokenID       types.TokenID
	TokenType     types.TokenType
	PublicKey     types.HexBytes
	Algorithm     string
	HashAlgorithm types.HashAlgorithm
	Nonce         types.HexBytes
}

// Derive builds the masked predicate of ident for a token.
// The result depends only on its inputs.
func Derive(p crypto.Provider, id types.TokenID, typ types.TokenType, ident identity.Identity, alg types.HashAlgorithm) (*Masked, error) {
	key, err := ident.SigningKey(p)
	if err != nil {
		return nil, err
	}
	defer key.Zero()

	m := &Masked{
		TokenID:       id,
		TokenType:     typ,
		PublicKey:     key.PublicKey(),
		Algorithm:     p.Algorithm(),
		HashAlgorithm: alg,
		Nonce:         append(types.HexBytes(nil), ident.Nonce...),
	}
	if err := m.Validate(); err != nil {
		return nil, err
	}
	return m, nil
}

// AddressFor returns the address ident receives tokens of typ at.
// The address does not depend on the token id, so it can be shared before
// the sender's token exists.
func AddressFor(p crypto.Provider, typ types.TokenType, ident identity.Identity, alg types.HashAlgorithm) (types.Address, error) {
	m, err := Derive(p, types.TokenID{}, typ, ident, alg)
	if err != nil {
		return types.Address{}, err
	}
	return m.Address(), nil
}

// Validate checks the algorithms and public key.
func (m *Masked) Validate() error {
	if _, err := crypto.Sum(m.HashAlgorithm, nil); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidPredicate, err)
	}
	if _, err := crypto.VerifierFor(m.Algorithm); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidPredicate, err)
	}
	if err := crypto.ValidatePublicKey(m.PublicKey); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidPredicate, err)
	}
	if len(m.Nonce) == 0 {
		return fmt.Errorf("%w: empty nonce", ErrInvalidPredicate)
	}
	return nil
}

// Reference commits to everything but the token id.
// Layout: type | tokenType | algorithm | publicKey | hashAlgorithm(2) | nonce
func (m *Masked) Reference() types.DataHash {
	buf := appendField(nil, []byte(TypeMasked))
	buf = append(buf, m.TokenType[:]...)
	buf = appendField(buf, []byte(m.Algorithm))
	buf = appendField(buf, m.PublicKey)
	buf = binary.BigEndian.AppendUint16(buf, uint16(m.HashAlgorithm))
	buf = appendField(buf, m.Nonce)
	return crypto.MustSum(m.HashAlgorithm, buf)
}

// Hash binds the reference to the token id.
func (m *Masked) Hash() types.DataHash {
	buf := append(m.Reference().Imprint(), m.TokenID[:]...)
	return crypto.MustSum(m.HashAlgorithm, buf)
}

// Address returns the shareable destination for this predicate.
func (m *Masked) Address() types.Address {
	return types.NewAddress(m.Reference())
}

// IsOwner reports whether publicKey is the key this predicate locks to.
func (m *Masked) IsOwner(publicKey []byte) bool {
	return len(publicKey) > 0 && bytes.Equal(m.PublicKey, publicKey)
}

// Authorizes reports whether auth is a valid owner signature over txHash
// for this predicate's token.
func (m *Masked) Authorizes(auth *proof.Authenticator, txHash types.DataHash) bool {
	if auth == nil || auth.Algorithm != m.Algorithm || !m.IsOwner(auth.PublicKey) {
		return false
	}
	return auth.Verify(txHash)
}

// Equal reports whether two predicates are byte-identical.
func (m *Masked) Equal(o *Masked) bool {
	if m == nil || o == nil {
		return m == o
	}
	return m.TokenID == o.TokenID &&
		m.TokenType == o.TokenType &&
		m.Algorithm == o.Algorithm &&
		m.HashAlgorithm == o.HashAlgorithm &&
		bytes.Equal(m.PublicKey, o.PublicKey) &&
		bytes.Equal(m.Nonce, o.Nonce)
}

type maskedJSON struct {
	Type          string              `json:"type"`
	TokenID       types.TokenID       `json:"tokenId"`
	TokenType     types.TokenType     `json:"tokenType"`
	PublicKey     types.HexBytes      `json:"publicKey"`
	Algorithm     string              `json:"algorithm"`
	HashAlgorithm types.HashAlgorithm `json:"hashAlgorithm"`
	Nonce         types.HexBytes      `json:"nonce"`
}

// MarshalJSON encodes the predicate with its type tag.
func (m *Masked) MarshalJSON() ([]byte, error) {
	return json.Marshal(maskedJSON{
		Type:          TypeMasked,
		TokenID:       m.TokenID,
		TokenType:     m.TokenType,
		PublicKey:     m.PublicKey,
		Algorithm:     m.Algorithm,
		HashAlgorithm: m.HashAlgorithm,
		Nonce:         m.Nonce,
	})
}

// UnmarshalJSON decodes and validates a masked predicate.
func (m *Masked) UnmarshalJSON(data []byte) error {
	var raw maskedJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if raw.Type != TypeMasked {
		return fmt.Errorf("%w: unsupported type %q", ErrInvalidPredicate, raw.Type)
	}
	decoded := Masked{
		TokenID:       raw.TokenID,
		TokenType:     raw.TokenType,
		PublicKey:     raw.PublicKey,
		Algorithm:     raw.Algorithm,
		HashAlgorithm: raw.HashAlgorithm,
		Nonce:         raw.Nonce,
	}
	if err := decoded.Validate(); err != nil {
		return err
	}
	*m = decoded
	return nil
}

func appendField(buf, b []byte) []byte {
	buf = binary.LittleEndian.AppendUint32(buf, uint32(len(b)))
	return append(buf, b...)
}
