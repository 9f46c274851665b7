package types

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"
)

// Address string prefixes.
const (
	DirectPrefix = "DIRECT://"
	ProxyPrefix  = "PROXY://"
)

// checksumSize is the number of SHA-256 bytes appended to an address string.
const checksumSize = 4

// AddressScheme selects how an address resolves to an owner.
type AddressScheme uint8

const (
	// SchemeDirect addresses name a predicate reference.
	SchemeDirect AddressScheme = iota
	// SchemeProxy addresses name a nametag token; whoever owns the nametag
	// receives.
	SchemeProxy
)

// String returns the scheme name.
func (s AddressScheme) String() string {
	switch s {
	case SchemeDirect:
		return "DIRECT"
	case SchemeProxy:
		return "PROXY"
	default:
		return fmt.Sprintf("AddressScheme(%d)", uint8(s))
	}
}

// Address is a transfer destination. A direct address is derived solely
// from a predicate reference and carries no owner information beyond the
// reference digest. A proxy address carries only a nametag token id.
type Address struct {
	Scheme    AddressScheme
	Reference DataHash
	Nametag   TokenID
}

// NewAddress wraps a predicate reference.
func NewAddress(ref DataHash) Address {
	return Address{Scheme: SchemeDirect, Reference: ref}
}

// NewProxyAddress returns the address that resolves through nametag token id.
func NewProxyAddress(id TokenID) Address {
	return Address{Scheme: SchemeProxy, Nametag: id}
}

// IsZero returns true if the address is the zero value.
func (a Address) IsZero() bool {
	return a == Address{}
}

// IsProxy reports whether the address resolves through a nametag.
func (a Address) IsProxy() bool {
	return a.Scheme == SchemeProxy
}

// payload is the part of the address covered by the checksum.
func (a Address) payload() []byte {
	if a.IsProxy() {
		return append([]byte(nil), a.Nametag[:]...)
	}
	return a.Reference.Imprint()
}

// Bytes returns the canonical binary form: scheme(1) | payload.
func (a Address) Bytes() []byte {
	return append([]byte{byte(a.Scheme)}, a.payload()...)
}

// String returns the scheme prefix + hex(payload) + hex(checksum).
func (a Address) String() string {
	prefix := DirectPrefix
	if a.IsProxy() {
		prefix = ProxyPrefix
	}
	payload := a.payload()
	return prefix + hex.EncodeToString(payload) + hex.EncodeToString(addressChecksum(payload))
}

// MarshalJSON encodes the address string form.
func (a Address) MarshalJSON() ([]byte, error) {
	return json.Marshal(a.String())
}

// UnmarshalJSON decodes an address string.
func (a *Address) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := ParseAddress(s)
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}

// ParseAddress parses a "DIRECT://" or "PROXY://" address and validates its
// checksum.
func ParseAddress(s string) (Address, error) {
	if s == "" {
		return Address{}, fmt.Errorf("empty address")
	}
	var (
		scheme AddressScheme
		body   string
		size   int
	)
	switch {
	case strings.HasPrefix(s, DirectPrefix):
		scheme, body, size = SchemeDirect, s[len(DirectPrefix):], ImprintSize
	case strings.HasPrefix(s, ProxyPrefix):
		scheme, body, size = SchemeProxy, s[len(ProxyPrefix):], HashSize
	default:
		return Address{}, fmt.Errorf("address must start with %s or %s", DirectPrefix, ProxyPrefix)
	}
	raw, err := hex.DecodeString(body)
	if err != nil {
		return Address{}, fmt.Errorf("invalid address: %w", err)
	}
	if len(raw) != size+checksumSize {
		return Address{}, fmt.Errorf("address must be %d bytes, got %d", size+checksumSize, len(raw))
	}
	payload := raw[:size]
	if !bytes.Equal(raw[size:], addressChecksum(payload)) {
		return Address{}, fmt.Errorf("address checksum mismatch")
	}

	if scheme == SchemeProxy {
		var id TokenID
		copy(id[:], payload)
		if id.IsZero() {
			return Address{}, fmt.Errorf("proxy address names the zero token")
		}
		return NewProxyAddress(id), nil
	}
	ref, err := DataHashFromImprint(payload)
	if err != nil {
		return Address{}, err
	}
	return NewAddress(ref), nil
}

func addressChecksum(payload []byte) []byte {
	sum := sha256.Sum256(payload)
	return sum[:checksumSize]
}
