package token

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/Klingon-tech/statetransfer/internal/predicate"
	"github.com/Klingon-tech/statetransfer/pkg/crypto"
	"github.com/Klingon-tech/statetransfer/pkg/types"
)

// ErrInvalidState is returned for states that fail structural checks.
var ErrInvalidState = errors.New("invalid token state")

// State is a token's current lock plus optional payload.
type State struct {
	Predicate *predicate.Masked
	Data      types.HexBytes
}

// NewState binds data to an unlock predicate.
func NewState(pred *predicate.Masked, data []byte) *State {
	var d types.HexBytes
	if data != nil {
		d = append(types.HexBytes{}, data...)
	}
	return &State{Predicate: pred, Data: d}
}

// Hash is SHA256(predicate.Hash().Imprint() | data).
// Transactions reference the state they spend by this value.
func (s *State) Hash() types.DataHash {
	buf := s.Predicate.Hash().Imprint()
	buf = appendOptional(buf, s.Data, s.Data != nil)
	return crypto.MustSum(types.SHA256, buf)
}

// Validate checks that the state carries a usable predicate.
func (s *State) Validate() error {
	if s == nil || s.Predicate == nil {
		return fmt.Errorf("%w: missing predicate", ErrInvalidState)
	}
	if err := s.Predicate.Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidState, err)
	}
	return nil
}

type stateJSON struct {
	Hash      *types.DataHash   `json:"hash,omitempty"`
	Predicate *predicate.Masked `json:"unlockPredicate"`
	Data      types.HexBytes    `json:"data"`
}

// MarshalJSON includes the computed hash for inspection.
func (s *State) MarshalJSON() ([]byte, error) {
	if s.Predicate == nil {
		return nil, fmt.Errorf("%w: missing predicate", ErrInvalidState)
	}
	h := s.Hash()
	return json.Marshal(stateJSON{Hash: &h, Predicate: s.Predicate, Data: s.Data})
}

// UnmarshalJSON decodes a state and checks any embedded hash.
func (s *State) UnmarshalJSON(data []byte) error {
	var raw stateJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	decoded := State{Predicate: raw.Predicate, Data: raw.Data}
	if err := decoded.Validate(); err != nil {
		return err
	}
	if raw.Hash != nil && *raw.Hash != decoded.Hash() {
		return fmt.Errorf("%w: hash does not match content", ErrInvalidState)
	}
	*s = decoded
	return nil
}
