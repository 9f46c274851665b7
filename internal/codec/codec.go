// Package codec serializes transfer packages exchanged out of band.
//
// The wire format is JSON with every byte string in hex and every coin
// amount as a decimal string, so a package decoded on another device
// re-encodes to identical bytes.
package codec

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/Klingon-tech/statetransfer/internal/commitment"
	"github.com/Klingon-tech/statetransfer/internal/token"
	"github.com/Klingon-tech/statetransfer/pkg/types"
)

// MaxPackageSize bounds a decoded package (8 MB).
const MaxPackageSize = 8 << 20

// ErrDeserialization is returned for any malformed package payload.
var ErrDeserialization = errors.New("package deserialization failed")

// Kind tells which delivery path produced a package.
type Kind int

const (
	KindInvalid Kind = iota
	// KindOffline packages carry an unsubmitted commitment.
	KindOffline
	// KindOnline packages carry a transaction the ledger already confirmed.
	KindOnline
)

func (k Kind) String() string {
	switch k {
	case KindOffline:
		return "offline"
	case KindOnline:
		return "online"
	default:
		return "invalid"
	}
}

// TransferPackage is everything a recipient needs to finish a transfer
// without contacting the sender again.
type TransferPackage struct {
	Commitment       *commitment.Commitment `json:"commitment,omitempty"`
	Transaction      *token.Transaction     `json:"transaction,omitempty"`
	Token            *token.Token           `json:"token"`
	RecipientAddress *types.Address         `json:"recipientAddress,omitempty"`
}

// Kind reports the delivery path. A package with both or neither of
// Commitment and Transaction is KindInvalid.
func (p *TransferPackage) Kind() Kind {
	switch {
	case p.Commitment != nil && p.Transaction == nil:
		return KindOffline
	case p.Transaction != nil && p.Commitment == nil:
		return KindOnline
	default:
		return KindInvalid
	}
}

// Marshal encodes a package.
func Marshal(p *TransferPackage) ([]byte, error) {
	if p == nil || p.Token == nil {
		return nil, fmt.Errorf("package has no token")
	}
	data, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("package marshal: %w", err)
	}
	return data, nil
}

// Unmarshal decodes a package. Structural problems wrap ErrDeserialization.
// Whether the package is usable is decided by the caller via Kind.
func Unmarshal(data []byte) (*TransferPackage, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: empty payload", ErrDeserialization)
	}
	if len(data) > MaxPackageSize {
		return nil, fmt.Errorf("%w: payload exceeds %d bytes", ErrDeserialization, MaxPackageSize)
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()

	var p TransferPackage
	if err := dec.Decode(&p); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDeserialization, err)
	}
	if err := dec.Decode(&struct{}{}); err != io.EOF {
		return nil, fmt.Errorf("%w: trailing data", ErrDeserialization)
	}
	if p.Token == nil {
		return nil, fmt.Errorf("%w: missing token", ErrDeserialization)
	}
	return &p, nil
}
