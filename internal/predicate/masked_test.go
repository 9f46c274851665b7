package predicate

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/Klingon-tech/statetransfer/internal/identity"
	"github.com/Klingon-tech/statetransfer/internal/proof"
	"github.com/Klingon-tech/statetransfer/pkg/crypto"
	"github.com/Klingon-tech/statetransfer/pkg/types"
)

var provider crypto.Secp256k1Provider

func testIdentity(t *testing.T, secret, nonce byte) identity.Identity {
	t.Helper()
	id, err := identity.New(bytes.Repeat([]byte{secret}, 32), bytes.Repeat([]byte{nonce}, 32))
	if err != nil {
		t.Fatalf("identity.New() error: %v", err)
	}
	return id
}

var (
	testTokenID   = types.TokenID{0x01}
	testTokenType = types.TokenType{0x02}
)

func TestDerive_Deterministic(t *testing.T) {
	ident := testIdentity(t, 0xaa, 0x01)

	a, err := Derive(provider, testTokenID, testTokenType, ident, types.SHA256)
	if err != nil {
		t.Fatalf("Derive() error: %v", err)
	}
	b, err := Derive(provider, testTokenID, testTokenType, ident, types.SHA256)
	if err != nil {
		t.Fatalf("Derive() error: %v", err)
	}
	if !a.Equal(b) {
		t.Error("Derive() should be deterministic")
	}
	if a.Hash() != b.Hash() || a.Reference() != b.Reference() {
		t.Error("hashes of identical predicates differ")
	}

	ja, _ := json.Marshal(a)
	jb, _ := json.Marshal(b)
	if !bytes.Equal(ja, jb) {
		t.Error("serialized predicates should be byte-identical")
	}
}

func TestDerive_InvalidIdentity(t *testing.T) {
	bad := identity.Identity{Secret: []byte{1}, Nonce: []byte{2}}
	_, err := Derive(provider, testTokenID, testTokenType, bad, types.SHA256)
	if !errors.Is(err, identity.ErrInvalidIdentityFormat) {
		t.Errorf("Derive() = %v, want ErrInvalidIdentityFormat", err)
	}
}

func TestDerive_UnsupportedHash(t *testing.T) {
	ident := testIdentity(t, 0xaa, 0x01)
	_, err := Derive(provider, testTokenID, testTokenType, ident, types.HashAlgorithm(0x99))
	if !errors.Is(err, ErrInvalidPredicate) {
		t.Errorf("Derive() = %v, want ErrInvalidPredicate", err)
	}
}

func TestDerive_Unlinkable(t *testing.T) {
	a, _ := Derive(provider, testTokenID, testTokenType, testIdentity(t, 0xaa, 0x01), types.SHA256)
	b, _ := Derive(provider, testTokenID, testTokenType, testIdentity(t, 0xaa, 0x02), types.SHA256)

	if bytes.Equal(a.PublicKey, b.PublicKey) {
		t.Error("different nonces should derive different public keys")
	}
	if a.Reference() == b.Reference() {
		t.Error("different nonces should give different references")
	}
	sa, sb := a.Address().String(), b.Address().String()
	body := len(types.DirectPrefix) + 4
	// No 8-byte window of one digest appears in the other address.
	for i := body; i+16 <= len(sa); i += 2 {
		if strings.Contains(sb[body:], sa[i:i+16]) {
			t.Fatalf("addresses share substring %s", sa[i:i+16])
		}
	}
}

func TestIsOwner(t *testing.T) {
	alice := testIdentity(t, 0xaa, 0x01)
	bob := testIdentity(t, 0xbb, 0x01)
	m, _ := Derive(provider, testTokenID, testTokenType, alice, types.SHA256)

	alicePub, _ := alice.PublicKey(provider)
	bobPub, _ := bob.PublicKey(provider)
	if !m.IsOwner(alicePub) {
		t.Error("IsOwner(alice) = false")
	}
	if m.IsOwner(bobPub) {
		t.Error("IsOwner(bob) = true")
	}
	if m.IsOwner(nil) {
		t.Error("IsOwner(nil) = true")
	}
}

func TestAddress(t *testing.T) {
	ident := testIdentity(t, 0xaa, 0x01)
	m1, _ := Derive(provider, types.TokenID{0x01}, testTokenType, ident, types.SHA256)
	m2, _ := Derive(provider, types.TokenID{0x02}, testTokenType, ident, types.SHA256)

	if m1.Address() != m2.Address() {
		t.Error("address should not depend on the token id")
	}
	if m1.Hash() == m2.Hash() {
		t.Error("predicate hash should depend on the token id")
	}

	addr, err := AddressFor(provider, testTokenType, ident, types.SHA256)
	if err != nil {
		t.Fatalf("AddressFor() error: %v", err)
	}
	if addr != m1.Address() {
		t.Error("AddressFor() should match the derived predicate address")
	}

	otherType, _ := Derive(provider, testTokenID, types.TokenType{0x03}, ident, types.SHA256)
	if otherType.Address() == m1.Address() {
		t.Error("address should depend on the token type")
	}
}

func TestAuthorizes(t *testing.T) {
	alice := testIdentity(t, 0xaa, 0x01)
	m, _ := Derive(provider, testTokenID, testTokenType, alice, types.SHA256)
	key, _ := alice.SigningKey(provider)

	txHash := crypto.MustSum(types.SHA256, []byte("tx"))
	auth, err := proof.NewAuthenticator(provider, key, txHash, crypto.MustSum(types.SHA256, []byte("state")))
	if err != nil {
		t.Fatalf("NewAuthenticator() error: %v", err)
	}
	if !m.Authorizes(auth, txHash) {
		t.Error("owner authenticator should authorize")
	}
	if m.Authorizes(auth, crypto.MustSum(types.SHA256, []byte("other"))) {
		t.Error("authenticator for another hash should not authorize")
	}

	bobKey, _ := testIdentity(t, 0xbb, 0x01).SigningKey(provider)
	bobAuth, _ := proof.NewAuthenticator(provider, bobKey, txHash, auth.StateHash)
	if m.Authorizes(bobAuth, txHash) {
		t.Error("non-owner authenticator should not authorize")
	}
	if m.Authorizes(nil, txHash) {
		t.Error("nil authenticator should not authorize")
	}
}

func TestMasked_JSON(t *testing.T) {
	m, _ := Derive(provider, testTokenID, testTokenType, testIdentity(t, 0xaa, 0x01), types.BLAKE3)
	data, err := json.Marshal(m)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	if !strings.Contains(string(data), `"type":"MASKED"`) {
		t.Errorf("missing type tag: %s", data)
	}

	var back Masked
	if err := json.Unmarshal(data, &back); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if !back.Equal(m) || back.Hash() != m.Hash() {
		t.Error("round trip mismatch")
	}

	bad := strings.Replace(string(data), `"MASKED"`, `"UNMASKED"`, 1)
	if err := json.Unmarshal([]byte(bad), &back); !errors.Is(err, ErrInvalidPredicate) {
		t.Errorf("Unmarshal(wrong type) = %v, want ErrInvalidPredicate", err)
	}
}
