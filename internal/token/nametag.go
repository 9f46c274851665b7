package token

import (
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/Klingon-tech/statetransfer/internal/predicate"
	"github.com/Klingon-tech/statetransfer/pkg/crypto"
	"github.com/Klingon-tech/statetransfer/pkg/types"
)

// MaxNametagLength bounds a nametag name in bytes.
const MaxNametagLength = 64

// NametagType is the token type every nametag is minted with.
var NametagType = types.TokenType(crypto.MustSum(types.SHA256, []byte("xfer:nametag")).Digest)

// ErrInvalidNametag is returned for malformed names and for tokens that are
// not nametags.
var ErrInvalidNametag = errors.New("invalid nametag")

// ValidateNametag checks that name is usable as a nametag.
func ValidateNametag(name string) error {
	switch {
	case name == "":
		return fmt.Errorf("%w: empty name", ErrInvalidNametag)
	case len(name) > MaxNametagLength:
		return fmt.Errorf("%w: name longer than %d bytes", ErrInvalidNametag, MaxNametagLength)
	case !utf8.ValidString(name):
		return fmt.Errorf("%w: name is not UTF-8", ErrInvalidNametag)
	case strings.TrimSpace(name) != name:
		return fmt.Errorf("%w: name has surrounding whitespace", ErrInvalidNametag)
	}
	return nil
}

// NametagID is the token id of the nametag called name. Since mint request
// ids are derived from token ids, each name can be minted once.
func NametagID(name string) types.TokenID {
	buf := append(append([]byte(nil), NametagType[:]...), name...)
	return types.TokenID(crypto.MustSum(types.SHA256, buf).Digest)
}

// ProxyAddress returns the address that resolves to the owner of name.
func ProxyAddress(name string) types.Address {
	return types.NewProxyAddress(NametagID(name))
}

// Nametag returns the name t was minted for, or an error if t is not a
// nametag token.
func (t *Token) Nametag() (string, error) {
	if t == nil || t.Genesis == nil || t.Genesis.Data == nil {
		return "", fmt.Errorf("%w: incomplete token", ErrInvalidNametag)
	}
	if t.Type() != NametagType {
		return "", fmt.Errorf("%w: token type %s", ErrInvalidNametag, t.Type())
	}
	name := string(t.Genesis.Data.TokenData)
	if err := ValidateNametag(name); err != nil {
		return "", err
	}
	if NametagID(name) != t.ID() {
		return "", fmt.Errorf("%w: token id does not match name %q", ErrInvalidNametag, name)
	}
	return name, nil
}

// CheckRecipient reports whether pred may lock a state sent to to. A direct
// address must equal pred's address. A proxy address is satisfied by any
// attached nametag with the proxied id whose state is owned by pred's key.
func CheckRecipient(pred *predicate.Masked, to types.Address, nametags []*Token) error {
	if pred == nil {
		return fmt.Errorf("%w: missing predicate", ErrRecipientMismatch)
	}
	if !to.IsProxy() {
		if pred.Address() != to {
			return ErrRecipientMismatch
		}
		return nil
	}
	for _, nt := range nametags {
		if nt == nil || nt.Genesis == nil || nt.Genesis.Data == nil || nt.State == nil {
			continue
		}
		if nt.ID() == to.Nametag && nt.State.Predicate.IsOwner(pred.PublicKey) {
			return nil
		}
	}
	return fmt.Errorf("%w: no nametag %s owned by the new state", ErrRecipientMismatch, to.Nametag)
}

// mergeNametags appends each token in add not already present in base.
// Entries are equal only if id and state hash both match, so an older
// snapshot stays available to the transfers it proved.
func mergeNametags(base, add []*Token) []*Token {
	out := append(make([]*Token, 0, len(base)+len(add)), base...)
	for _, nt := range add {
		dup := false
		for _, have := range out {
			if sameSnapshot(have, nt) {
				dup = true
				break
			}
		}
		if !dup {
			out = append(out, nt)
		}
	}
	return out
}

func sameSnapshot(a, b *Token) bool {
	if a == nil || b == nil || a.State.Validate() != nil || b.State.Validate() != nil ||
		a.Genesis == nil || b.Genesis == nil || a.Genesis.Data == nil || b.Genesis.Data == nil {
		return false
	}
	return a.ID() == b.ID() && a.State.Hash() == b.State.Hash()
}

// VerifyNametag checks nt's history and that it is a well-formed nametag.
func VerifyNametag(nt *Token) error {
	if err := nt.Verify(); err != nil {
		return err
	}
	_, err := nt.Nametag()
	return err
}
