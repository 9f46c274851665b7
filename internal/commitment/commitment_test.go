package commitment

import (
	"bytes"
	"errors"
	"math/big"
	"testing"

	"github.com/Klingon-tech/statetransfer/internal/identity"
	"github.com/Klingon-tech/statetransfer/internal/ledger"
	"github.com/Klingon-tech/statetransfer/internal/predicate"
	"github.com/Klingon-tech/statetransfer/internal/proof"
	"github.com/Klingon-tech/statetransfer/internal/token"
	"github.com/Klingon-tech/statetransfer/pkg/crypto"
	"github.com/Klingon-tech/statetransfer/pkg/types"
)

var provider crypto.Secp256k1Provider

var (
	testTokenID   = types.TokenID{0xaa}
	testTokenType = types.TokenType{0xbb}
)

func testIdentity(t *testing.T, b byte) identity.Identity {
	t.Helper()
	id, err := identity.New(bytes.Repeat([]byte{b}, 32), bytes.Repeat([]byte{b + 1}, 32))
	if err != nil {
		t.Fatalf("identity.New() error: %v", err)
	}
	return id
}

func ownedState(t *testing.T, owner identity.Identity) *token.State {
	t.Helper()
	pred, err := predicate.Derive(provider, testTokenID, testTokenType, owner, types.SHA256)
	if err != nil {
		t.Fatalf("Derive() error: %v", err)
	}
	return token.NewState(pred, []byte("data"))
}

func recipient(t *testing.T, ident identity.Identity) types.Address {
	t.Helper()
	addr, err := predicate.AddressFor(provider, testTokenType, ident, types.SHA256)
	if err != nil {
		t.Fatalf("AddressFor() error: %v", err)
	}
	return addr
}

func signingKey(t *testing.T, ident identity.Identity) *crypto.PrivateKey {
	t.Helper()
	key, err := ident.SigningKey(provider)
	if err != nil {
		t.Fatalf("SigningKey() error: %v", err)
	}
	return key
}

func seal(s *ledger.Submission) *proof.InclusionProof {
	leaf := proof.LeafHash(s.RequestID, s.TransactionHash)
	_, paths := proof.BuildTree([]types.Hash{leaf})
	txHash := s.TransactionHash
	return &proof.InclusionProof{Path: paths[0], Authenticator: s.Authenticator, TransactionHash: &txHash, BlockHeight: 1}
}

func TestNewSalt(t *testing.T) {
	a, err := NewSalt()
	if err != nil {
		t.Fatalf("NewSalt() error: %v", err)
	}
	b, _ := NewSalt()
	if len(a) != SaltSize {
		t.Errorf("salt length = %d, want %d", len(a), SaltSize)
	}
	if bytes.Equal(a, b) {
		t.Error("two salts should differ")
	}
}

func TestBuildTransactionData(t *testing.T) {
	state := ownedState(t, testIdentity(t, 1))
	to := recipient(t, testIdentity(t, 2))

	if _, err := BuildTransactionData(state, types.Address{}, []byte{1}, nil); err == nil {
		t.Error("expected error for empty recipient")
	}
	if _, err := BuildTransactionData(state, to, nil, nil); err == nil {
		t.Error("expected error for empty salt")
	}
	if _, err := BuildTransactionData(&token.State{}, to, []byte{1}, nil); err == nil {
		t.Error("expected error for invalid state")
	}
	if _, err := BuildTransactionData(state, types.NewProxyAddress(types.TokenID{}), []byte{1}, nil); err == nil {
		t.Error("expected error for proxy naming the zero token")
	}
	if _, err := BuildTransactionData(state, types.NewProxyAddress(types.TokenID{7}), []byte{1}, nil); err != nil {
		t.Errorf("proxy recipient: %v", err)
	}

	data, err := BuildTransactionData(state, to, []byte{1, 2}, []byte("hi"))
	if err != nil {
		t.Fatalf("BuildTransactionData() error: %v", err)
	}
	if data.Recipient != to || string(data.Message) != "hi" {
		t.Errorf("unexpected data: %+v", data)
	}
}

func TestBuildTransactionData_UnsupportedRecipientHash(t *testing.T) {
	state := ownedState(t, testIdentity(t, 1))
	tests := []struct {
		name string
		alg  types.HashAlgorithm
	}{
		{"unknown algorithm", types.HashAlgorithm(0x7777)},
		{"max algorithm", types.HashAlgorithm(0xffff)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			to := types.NewAddress(types.DataHash{Algorithm: tt.alg, Digest: types.Hash{1}})
			_, err := BuildTransactionData(state, to, []byte{1}, nil)
			if !errors.Is(err, crypto.ErrUnsupportedHash) {
				t.Errorf("error = %v, want ErrUnsupportedHash", err)
			}
		})
	}
}

func TestCreate(t *testing.T) {
	owner := testIdentity(t, 1)
	state := ownedState(t, owner)
	data, err := BuildTransactionData(state, recipient(t, testIdentity(t, 2)), []byte{9}, nil)
	if err != nil {
		t.Fatalf("BuildTransactionData() error: %v", err)
	}
	key := signingKey(t, owner)

	c, err := Create(provider, data, key)
	if err != nil {
		t.Fatalf("Create() error: %v", err)
	}
	if want := proof.NewRequestID(key.PublicKey(), state.Hash()); c.RequestID != want {
		t.Errorf("RequestID = %s, want %s", c.RequestID, want)
	}
	if !c.Authenticator.Verify(data.Hash()) {
		t.Error("authenticator should verify over the transaction hash")
	}
	if err := c.Validate(); err != nil {
		t.Errorf("Validate() error: %v", err)
	}
	if status := c.Submission().Check(); status != ledger.StatusSuccess {
		t.Errorf("Submission().Check() = %s", status)
	}
}

func TestCreate_NotOwner(t *testing.T) {
	state := ownedState(t, testIdentity(t, 1))
	data, _ := BuildTransactionData(state, recipient(t, testIdentity(t, 2)), []byte{9}, nil)

	_, err := Create(provider, data, signingKey(t, testIdentity(t, 3)))
	if !errors.Is(err, token.ErrNotOwner) {
		t.Fatalf("Create() error = %v, want ErrNotOwner", err)
	}
}

func TestToTransaction(t *testing.T) {
	owner := testIdentity(t, 1)
	data, _ := BuildTransactionData(ownedState(t, owner), recipient(t, testIdentity(t, 2)), []byte{9}, nil)
	c, err := Create(provider, data, signingKey(t, owner))
	if err != nil {
		t.Fatalf("Create() error: %v", err)
	}

	p := seal(c.Submission())
	tx, err := c.ToTransaction(p)
	if err != nil {
		t.Fatalf("ToTransaction() error: %v", err)
	}
	if tx.Data != data || tx.InclusionProof != p {
		t.Error("transaction should carry the commitment data and proof")
	}

	if _, err := c.ToTransaction(&proof.InclusionProof{}); !errors.Is(err, ErrProofMismatch) {
		t.Errorf("non-inclusion: error = %v, want ErrProofMismatch", err)
	}
	if _, err := c.ToTransaction(nil); !errors.Is(err, ErrProofMismatch) {
		t.Errorf("nil proof: error = %v, want ErrProofMismatch", err)
	}

	// A proof for a different request must not confirm this one.
	other, _ := BuildTransactionData(ownedState(t, owner), recipient(t, testIdentity(t, 4)), []byte{8}, nil)
	oc, _ := Create(provider, other, signingKey(t, owner))
	if _, err := c.ToTransaction(seal(oc.Submission())); !errors.Is(err, ErrProofMismatch) {
		t.Errorf("foreign proof: error = %v, want ErrProofMismatch", err)
	}
}

func TestCreateMint(t *testing.T) {
	coins, err := token.NewCoinData(token.Coin{ID: types.CoinID{1}, Amount: big.NewInt(5)})
	if err != nil {
		t.Fatalf("NewCoinData() error: %v", err)
	}
	data := &token.MintTransactionData{
		TokenID:   testTokenID,
		TokenType: testTokenType,
		Coins:     coins,
		Recipient: recipient(t, testIdentity(t, 1)),
		Salt:      []byte{1, 2, 3},
	}
	mc, err := CreateMint(provider, data)
	if err != nil {
		t.Fatalf("CreateMint() error: %v", err)
	}
	want, err := token.MintRequestID(testTokenID)
	if err != nil {
		t.Fatalf("MintRequestID() error: %v", err)
	}
	if mc.RequestID != want {
		t.Errorf("RequestID = %s, want %s", mc.RequestID, want)
	}
	if status := mc.Submission().Check(); status != ledger.StatusSuccess {
		t.Errorf("Submission().Check() = %s", status)
	}

	tx, err := mc.ToTransaction(seal(mc.Submission()))
	if err != nil {
		t.Fatalf("ToTransaction() error: %v", err)
	}
	if tx.Data != data {
		t.Error("mint transaction should carry the mint data")
	}

	if _, err := CreateMint(provider, &token.MintTransactionData{TokenID: testTokenID}); err == nil {
		t.Error("expected error for empty recipient")
	}
}
