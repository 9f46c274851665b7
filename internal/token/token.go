// Package token implements the token aggregate: a genesis transaction, an
// append-only chain of transfers, and the current state.
//
// A Token value is never mutated by ApplyTransaction. The previous value
// stays valid for inspection but must not be used for further transfers.
package token

import (
	"errors"
	"fmt"

	"github.com/Klingon-tech/statetransfer/internal/predicate"
	"github.com/Klingon-tech/statetransfer/internal/proof"
	"github.com/Klingon-tech/statetransfer/pkg/types"
)

// Version is written into every token this package creates.
const Version = "1.0"

// Token errors.
var (
	ErrStateMismatch     = errors.New("transaction source state does not match token state")
	ErrRecipientMismatch = errors.New("new state predicate does not match transaction recipient")
	ErrNotOwner          = errors.New("transaction not authorized by state owner")
	ErrInvalidProof      = errors.New("invalid inclusion proof")
	ErrDataHashMismatch  = errors.New("state data does not match transaction data hash")
	ErrInvalidToken      = errors.New("invalid token")
)

// Token is an owned asset and its full history.
type Token struct {
	Version      string           `json:"version"`
	Genesis      *MintTransaction `json:"genesis"`
	Transactions []*Transaction   `json:"transactions"`
	State        *State           `json:"state"`
	Nametags     []*Token         `json:"nametags"`
}

// Mint creates a token from a confirmed genesis. pred becomes the initial
// owner lock and must match the genesis recipient.
func Mint(data *MintTransactionData, p *proof.InclusionProof, pred *predicate.Masked) (*Token, error) {
	if data == nil {
		return nil, fmt.Errorf("%w: missing mint data", ErrInvalidToken)
	}
	genesis := &MintTransaction{Data: data, InclusionProof: p}
	state := NewState(pred, data.TokenData)
	if err := verifyGenesis(genesis, state, nil); err != nil {
		return nil, err
	}
	return &Token{
		Version:      Version,
		Genesis:      genesis,
		Transactions: []*Transaction{},
		State:        state,
		Nametags:     []*Token{},
	}, nil
}

// ID returns the token id fixed at mint.
func (t *Token) ID() types.TokenID {
	return t.Genesis.Data.TokenID
}

// Type returns the token type fixed at mint.
func (t *Token) Type() types.TokenType {
	return t.Genesis.Data.TokenType
}

// Coins returns the coin data fixed at mint, or nil.
func (t *Token) Coins() *CoinData {
	return t.Genesis.Data.Coins
}

// ApplyTransaction returns a new Token with tx appended and next as its state.
// nametags are attached to the result and resolve a proxy recipient.
func (t *Token) ApplyTransaction(tx *Transaction, next *State, nametags ...*Token) (*Token, error) {
	if tx == nil || tx.Data == nil || tx.Data.SourceState == nil {
		return nil, fmt.Errorf("%w: missing transaction data", ErrInvalidToken)
	}
	if err := tx.Data.SourceState.Validate(); err != nil {
		return nil, err
	}
	if err := t.State.Validate(); err != nil {
		return nil, err
	}
	if tx.Data.SourceState.Hash() != t.State.Hash() {
		return nil, ErrStateMismatch
	}
	for i, nt := range nametags {
		if err := VerifyNametag(nt); err != nil {
			return nil, fmt.Errorf("nametag %d: %w", i, err)
		}
	}
	attached := mergeNametags(t.Nametags, nametags)
	if err := verifyTransition(t.State, tx, next, attached); err != nil {
		return nil, err
	}

	txs := make([]*Transaction, len(t.Transactions), len(t.Transactions)+1)
	copy(txs, t.Transactions)
	return &Token{
		Version:      t.Version,
		Genesis:      t.Genesis,
		Transactions: append(txs, tx),
		State:        next,
		Nametags:     attached,
	}, nil
}

// Verify checks the genesis, every transfer and every nametag.
func (t *Token) Verify() error {
	if t == nil || t.Genesis == nil || t.Genesis.Data == nil || t.State == nil {
		return fmt.Errorf("%w: incomplete token", ErrInvalidToken)
	}
	states := make([]*State, 0, len(t.Transactions)+1)
	for i, tx := range t.Transactions {
		if tx == nil || tx.Data == nil || tx.Data.SourceState == nil {
			return fmt.Errorf("%w: transaction %d incomplete", ErrInvalidToken, i)
		}
		states = append(states, tx.Data.SourceState)
	}
	states = append(states, t.State)

	for i, nt := range t.Nametags {
		if err := VerifyNametag(nt); err != nil {
			return fmt.Errorf("nametag %d: %w", i, err)
		}
	}
	if err := verifyGenesis(t.Genesis, states[0], t.Nametags); err != nil {
		return fmt.Errorf("genesis: %w", err)
	}
	for i, tx := range t.Transactions {
		if err := verifyTransition(states[i], tx, states[i+1], t.Nametags); err != nil {
			return fmt.Errorf("transaction %d: %w", i, err)
		}
	}
	return nil
}
