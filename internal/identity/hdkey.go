package identity

import (
	"fmt"

	"github.com/tyler-smith/go-bip32"
)

// Account derivation path: m/44'/7777'/account'/0/{0 secret, 1 nonce}.
const (
	PurposeBIP44 = bip32.FirstHardenedChild + 44
	CoinTypeXfer = bip32.FirstHardenedChild + 7777

	secretIndex = 0
	nonceIndex  = 1
)

// FromSeedAccount derives the identity for an account number.
// Account 0 is the plain seed split, matching FromSeed. Other accounts take
// their secret and nonce from BIP-32 children of the seed.
func FromSeedAccount(seed []byte, account uint32) (Identity, error) {
	if account == 0 {
		return FromSeed(seed)
	}
	if len(seed) != SeedSize {
		return Identity{}, fmt.Errorf("%w: seed must be %d bytes, got %d", ErrInvalidIdentityFormat, SeedSize, len(seed))
	}
	if account >= bip32.FirstHardenedChild {
		return Identity{}, fmt.Errorf("account %d out of range", account)
	}

	master, err := bip32.NewMasterKey(seed)
	if err != nil {
		return Identity{}, fmt.Errorf("create master key: %w", err)
	}
	chain, err := derivePath(master, PurposeBIP44, CoinTypeXfer, bip32.FirstHardenedChild+account, 0)
	if err != nil {
		return Identity{}, err
	}
	secret, err := childScalar(chain, secretIndex)
	if err != nil {
		return Identity{}, err
	}
	nonce, err := childScalar(chain, nonceIndex)
	if err != nil {
		return Identity{}, err
	}
	return New(secret, nonce)
}

func derivePath(k *bip32.Key, indices ...uint32) (*bip32.Key, error) {
	current := k
	for _, idx := range indices {
		child, err := current.NewChildKey(idx)
		if err != nil {
			return nil, fmt.Errorf("derive child %d: %w", idx, err)
		}
		current = child
	}
	return current, nil
}

// childScalar returns the raw 32-byte private key of a child.
func childScalar(parent *bip32.Key, index uint32) ([]byte, error) {
	child, err := parent.NewChildKey(index)
	if err != nil {
		return nil, fmt.Errorf("derive child %d: %w", index, err)
	}
	// bip32 Key.Key is 33 bytes with a leading 0x00 for private keys.
	raw := child.Key
	if len(raw) == 33 && raw[0] == 0 {
		raw = raw[1:]
	}
	if len(raw) != SecretSize {
		return nil, fmt.Errorf("unexpected child key length %d", len(raw))
	}
	return raw, nil
}
