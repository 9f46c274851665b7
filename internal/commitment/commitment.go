// Package commitment binds transfer intents to owner signatures, producing
// ledger-addressable commitments. Everything here is local; nothing touches
// the network.
package commitment

import (
	"crypto/rand"
	"errors"
	"fmt"

	"github.com/Klingon-tech/statetransfer/internal/ledger"
	"github.com/Klingon-tech/statetransfer/internal/proof"
	"github.com/Klingon-tech/statetransfer/internal/token"
	"github.com/Klingon-tech/statetransfer/pkg/crypto"
	"github.com/Klingon-tech/statetransfer/pkg/types"
)

// SaltSize is the length of salts produced by NewSalt.
const SaltSize = 32

// ErrProofMismatch is returned when a proof does not confirm the commitment.
var ErrProofMismatch = errors.New("inclusion proof does not confirm commitment")

// NewSalt returns fresh random salt. Callers must use a new salt for every
// transaction; the ledger does not detect reuse.
func NewSalt() ([]byte, error) {
	salt := make([]byte, SaltSize)
	if _, err := rand.Read(salt); err != nil {
		return nil, fmt.Errorf("generate salt: %w", err)
	}
	return salt, nil
}

// BuildTransactionData creates a transfer intent against state.
func BuildTransactionData(state *token.State, to types.Address, salt, message []byte) (*token.TransactionData, error) {
	if err := state.Validate(); err != nil {
		return nil, err
	}
	if err := checkAddress(to); err != nil {
		return nil, err
	}
	if len(salt) == 0 {
		return nil, fmt.Errorf("empty salt")
	}
	data := &token.TransactionData{
		SourceState: state,
		Recipient:   to,
		Salt:        append(types.HexBytes(nil), salt...),
	}
	if message != nil {
		data.Message = append(types.HexBytes{}, message...)
	}
	return data, nil
}

// checkAddress rejects addresses no predicate could ever satisfy.
func checkAddress(to types.Address) error {
	switch {
	case to.IsZero():
		return fmt.Errorf("empty recipient address")
	case to.Scheme == types.SchemeProxy:
		if to.Nametag.IsZero() {
			return fmt.Errorf("recipient address: proxy names the zero token")
		}
	case to.Scheme == types.SchemeDirect:
		if _, err := crypto.Sum(to.Reference.Algorithm, nil); err != nil {
			return fmt.Errorf("recipient address: %w", err)
		}
	default:
		return fmt.Errorf("recipient address: unknown scheme %s", to.Scheme)
	}
	return nil
}

// Commitment is a signed transfer intent.
type Commitment struct {
	RequestID       proof.RequestID        `json:"requestId"`
	TransactionData *token.TransactionData `json:"transactionData"`
	Authenticator   *proof.Authenticator   `json:"authenticator"`
}

// Create signs data with key. key must own data.SourceState.
func Create(p crypto.Provider, data *token.TransactionData, key *crypto.PrivateKey) (*Commitment, error) {
	if data == nil {
		return nil, fmt.Errorf("nil transaction data")
	}
	if err := data.SourceState.Validate(); err != nil {
		return nil, err
	}
	pub := key.PublicKey()
	if !data.SourceState.Predicate.IsOwner(pub) {
		return nil, token.ErrNotOwner
	}
	stateHash := data.SourceState.Hash()
	auth, err := proof.NewAuthenticator(p, key, data.Hash(), stateHash)
	if err != nil {
		return nil, err
	}
	return &Commitment{
		RequestID:       proof.NewRequestID(pub, stateHash),
		TransactionData: data,
		Authenticator:   auth,
	}, nil
}

// Submission returns the ledger-facing part of the commitment.
func (c *Commitment) Submission() *ledger.Submission {
	return &ledger.Submission{
		RequestID:       c.RequestID,
		TransactionHash: c.TransactionData.Hash(),
		Authenticator:   c.Authenticator,
	}
}

// ToTransaction pairs the commitment with a proof that confirms it.
func (c *Commitment) ToTransaction(p *proof.InclusionProof) (*token.Transaction, error) {
	if err := confirms(p, c.RequestID, c.TransactionData.Hash()); err != nil {
		return nil, err
	}
	return &token.Transaction{Data: c.TransactionData, InclusionProof: p}, nil
}

// Validate checks that the commitment is internally consistent.
func (c *Commitment) Validate() error {
	if c.TransactionData == nil || c.Authenticator == nil {
		return fmt.Errorf("incomplete commitment")
	}
	if err := c.TransactionData.SourceState.Validate(); err != nil {
		return err
	}
	if status := c.Submission().Check(); status != ledger.StatusSuccess {
		return fmt.Errorf("commitment %s: %s", c.RequestID, status)
	}
	return nil
}

func confirms(p *proof.InclusionProof, id proof.RequestID, txHash types.DataHash) error {
	if p == nil {
		return fmt.Errorf("%w: no proof", ErrProofMismatch)
	}
	if status := p.Verify(id); status != proof.StatusOK {
		return fmt.Errorf("%w: %s", ErrProofMismatch, status)
	}
	if *p.TransactionHash != txHash {
		return fmt.Errorf("%w: transaction hash differs", ErrProofMismatch)
	}
	return nil
}
