package transfer

import (
	"errors"
	"fmt"

	"github.com/Klingon-tech/statetransfer/pkg/types"
)

// ErrInvalidPackage is returned for a package that is malformed as
// delivered, regardless of who receives it.
var ErrInvalidPackage = errors.New("invalid transfer package")

// Operation names reported in OpError.
const (
	OpMint        = "mint"
	OpMintNametag = "mint_nametag"
	OpPrepare     = "prepare_transfer"
	OpFinalize    = "finalize_received"
)

// OpError records which flow failed and for which token.
type OpError struct {
	Op      string
	TokenID types.TokenID
	Err     error
}

func (e *OpError) Error() string {
	if e.TokenID.IsZero() {
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("%s token %s: %v", e.Op, e.TokenID, e.Err)
}

func (e *OpError) Unwrap() error { return e.Err }

func opError(op string, id types.TokenID, err error) error {
	if err == nil {
		return nil
	}
	return &OpError{Op: op, TokenID: id, Err: err}
}
