package token

import (
	"bytes"
	"math/big"
	"testing"

	"github.com/Klingon-tech/statetransfer/internal/identity"
	"github.com/Klingon-tech/statetransfer/internal/predicate"
	"github.com/Klingon-tech/statetransfer/internal/proof"
	"github.com/Klingon-tech/statetransfer/pkg/crypto"
	"github.com/Klingon-tech/statetransfer/pkg/types"
)

var provider crypto.Secp256k1Provider

var (
	testTokenID   = types.TokenID{0x10, 0x20}
	testTokenType = types.TokenType{0x30}
)

func testIdentity(t *testing.T, b byte) identity.Identity {
	t.Helper()
	id, err := identity.New(bytes.Repeat([]byte{b}, 32), bytes.Repeat([]byte{b ^ 0xff}, 32))
	if err != nil {
		t.Fatalf("identity.New() error: %v", err)
	}
	return id
}

func derive(t *testing.T, ident identity.Identity) *predicate.Masked {
	t.Helper()
	m, err := predicate.Derive(provider, testTokenID, testTokenType, ident, types.SHA256)
	if err != nil {
		t.Fatalf("Derive() error: %v", err)
	}
	return m
}

// includedProof issues a single-leaf inclusion proof for auth.
func includedProof(auth *proof.Authenticator, txHash types.DataHash) *proof.InclusionProof {
	leaf := proof.LeafHash(auth.RequestID(), txHash)
	_, paths := proof.BuildTree([]types.Hash{leaf})
	return &proof.InclusionProof{Path: paths[0], Authenticator: auth, TransactionHash: &txHash, BlockHeight: 1}
}

func mintData(t *testing.T, to *predicate.Masked) *MintTransactionData {
	t.Helper()
	coins, err := NewCoinData(Coin{ID: types.CoinID{0x01}, Amount: big.NewInt(100)})
	if err != nil {
		t.Fatalf("NewCoinData() error: %v", err)
	}
	return &MintTransactionData{
		TokenID:   testTokenID,
		TokenType: testTokenType,
		TokenData: []byte("payload"),
		Coins:     coins,
		Recipient: to.Address(),
		Salt:      bytes.Repeat([]byte{0x5a}, 32),
	}
}

func mintProof(t *testing.T, data *MintTransactionData) *proof.InclusionProof {
	t.Helper()
	key, err := MinterKey(data.TokenID)
	if err != nil {
		t.Fatalf("MinterKey() error: %v", err)
	}
	txHash := data.Hash()
	auth, err := proof.NewAuthenticator(provider, key, txHash, data.SourceState())
	if err != nil {
		t.Fatalf("NewAuthenticator() error: %v", err)
	}
	return includedProof(auth, txHash)
}

func mintFor(t *testing.T, owner identity.Identity) *Token {
	t.Helper()
	pred := derive(t, owner)
	data := mintData(t, pred)
	tok, err := Mint(data, mintProof(t, data), pred)
	if err != nil {
		t.Fatalf("Mint() error: %v", err)
	}
	return tok
}

// transferTx builds and confirms a transfer of tok from sender to receiver.
func transferTx(t *testing.T, tok *Token, sender, receiver identity.Identity, salt byte) (*Transaction, *State) {
	t.Helper()
	recvPred := derive(t, receiver)
	data := &TransactionData{
		SourceState: tok.State,
		Recipient:   recvPred.Address(),
		Salt:        bytes.Repeat([]byte{salt}, 32),
	}
	key, err := sender.SigningKey(provider)
	if err != nil {
		t.Fatalf("SigningKey() error: %v", err)
	}
	txHash := data.Hash()
	auth, err := proof.NewAuthenticator(provider, key, txHash, tok.State.Hash())
	if err != nil {
		t.Fatalf("NewAuthenticator() error: %v", err)
	}
	return &Transaction{Data: data, InclusionProof: includedProof(auth, txHash)}, NewState(recvPred, nil)
}
