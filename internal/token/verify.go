package token

import (
	"bytes"
	"fmt"

	"github.com/Klingon-tech/statetransfer/internal/proof"
	"github.com/Klingon-tech/statetransfer/pkg/crypto"
	"github.com/Klingon-tech/statetransfer/pkg/types"
)

// checkProof requires an OK proof for id whose leaf commits to txHash.
func checkProof(p *proof.InclusionProof, id proof.RequestID, txHash types.DataHash) error {
	if p == nil {
		return fmt.Errorf("%w: missing", ErrInvalidProof)
	}
	if status := p.Verify(id); status != proof.StatusOK {
		return fmt.Errorf("%w: %s", ErrInvalidProof, status)
	}
	if *p.TransactionHash != txHash {
		return fmt.Errorf("%w: transaction hash mismatch", ErrInvalidProof)
	}
	return nil
}

func verifyGenesis(g *MintTransaction, state *State, nametags []*Token) error {
	if g == nil || g.Data == nil {
		return fmt.Errorf("%w: missing genesis", ErrInvalidToken)
	}
	if err := state.Validate(); err != nil {
		return err
	}
	if g.Data.Coins != nil {
		if err := g.Data.Coins.Validate(); err != nil {
			return err
		}
	}
	id, err := MintRequestID(g.Data.TokenID)
	if err != nil {
		return fmt.Errorf("derive minter: %w", err)
	}
	if err := checkProof(g.InclusionProof, id, g.Data.Hash()); err != nil {
		return err
	}
	return checkLock(state, g.Data.TokenID, g.Data.TokenType, g.Data.Recipient, nametags, func() error {
		if !bytes.Equal(state.Data, g.Data.TokenData) {
			return fmt.Errorf("%w: genesis state data differs from token data", ErrInvalidState)
		}
		return nil
	})
}

func verifyTransition(prev *State, tx *Transaction, next *State, nametags []*Token) error {
	if tx == nil || tx.Data == nil || tx.Data.SourceState == nil {
		return fmt.Errorf("%w: missing transaction data", ErrInvalidToken)
	}
	if err := prev.Validate(); err != nil {
		return err
	}
	if err := tx.Data.SourceState.Validate(); err != nil {
		return err
	}
	prevHash := prev.Hash()
	if tx.Data.SourceState.Hash() != prevHash {
		return ErrStateMismatch
	}

	txHash := tx.Data.Hash()
	owner := prev.Predicate
	if err := checkProof(tx.InclusionProof, proof.NewRequestID(owner.PublicKey, prevHash), txHash); err != nil {
		return err
	}
	if !owner.Authorizes(tx.InclusionProof.Authenticator, txHash) {
		return ErrNotOwner
	}
	if err := next.Validate(); err != nil {
		return err
	}
	return checkLock(next, owner.TokenID, owner.TokenType, tx.Data.Recipient, nametags, func() error {
		if tx.Data.DataHash == nil {
			return nil
		}
		got, err := crypto.Sum(tx.Data.DataHash.Algorithm, next.Data)
		if err != nil || got != *tx.Data.DataHash {
			return ErrDataHashMismatch
		}
		return nil
	})
}

// checkLock verifies that state is locked to the given token and address,
// then runs the data check. nametags resolve proxy addresses.
func checkLock(state *State, id types.TokenID, typ types.TokenType, to types.Address, nametags []*Token, dataCheck func() error) error {
	pred := state.Predicate
	if pred.TokenID != id || pred.TokenType != typ {
		return fmt.Errorf("%w: predicate bound to another token", ErrInvalidState)
	}
	if err := CheckRecipient(pred, to, nametags); err != nil {
		return err
	}
	return dataCheck()
}
