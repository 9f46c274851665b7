package commitment

import (
	"fmt"

	"github.com/Klingon-tech/statetransfer/internal/ledger"
	"github.com/Klingon-tech/statetransfer/internal/proof"
	"github.com/Klingon-tech/statetransfer/internal/token"
	"github.com/Klingon-tech/statetransfer/pkg/crypto"
)

// MintCommitment is a genesis intent signed by the universal minter.
type MintCommitment struct {
	RequestID       proof.RequestID            `json:"requestId"`
	TransactionData *token.MintTransactionData `json:"transactionData"`
	Authenticator   *proof.Authenticator       `json:"authenticator"`
}

// CreateMint signs a genesis intent with the token's minter key.
func CreateMint(p crypto.Provider, data *token.MintTransactionData) (*MintCommitment, error) {
	if data == nil {
		return nil, fmt.Errorf("nil mint data")
	}
	if data.Recipient.IsZero() {
		return nil, fmt.Errorf("empty recipient address")
	}
	if data.Coins != nil {
		if err := data.Coins.Validate(); err != nil {
			return nil, err
		}
	}
	key, err := token.MinterKey(data.TokenID)
	if err != nil {
		return nil, fmt.Errorf("derive minter key: %w", err)
	}
	defer key.Zero()

	source := data.SourceState()
	auth, err := proof.NewAuthenticator(p, key, data.Hash(), source)
	if err != nil {
		return nil, err
	}
	return &MintCommitment{
		RequestID:       proof.NewRequestID(key.PublicKey(), source),
		TransactionData: data,
		Authenticator:   auth,
	}, nil
}

// Submission returns the ledger-facing part of the commitment.
func (m *MintCommitment) Submission() *ledger.Submission {
	return &ledger.Submission{
		RequestID:       m.RequestID,
		TransactionHash: m.TransactionData.Hash(),
		Authenticator:   m.Authenticator,
	}
}

// ToTransaction pairs the genesis with a proof that confirms it.
func (m *MintCommitment) ToTransaction(p *proof.InclusionProof) (*token.MintTransaction, error) {
	if err := confirms(p, m.RequestID, m.TransactionData.Hash()); err != nil {
		return nil, err
	}
	return &token.MintTransaction{Data: m.TransactionData, InclusionProof: p}, nil
}
