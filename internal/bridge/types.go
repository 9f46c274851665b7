package bridge

import (
	"encoding/json"
	"fmt"
	"math/big"
	"strings"

	"github.com/Klingon-tech/statetransfer/internal/identity"
	"github.com/Klingon-tech/statetransfer/internal/token"
	"github.com/Klingon-tech/statetransfer/pkg/types"
)

// Request is one host command.
type Request struct {
	ID     string          `json:"id"`
	Method Method          `json:"method"`
	Params json.RawMessage `json:"params"`
}

// Response answers a Request. Exactly one of Result and Error is set.
type Response struct {
	ID     string          `json:"id"`
	Result json.RawMessage `json:"result,omitempty"`
	Error  *Error          `json:"error,omitempty"`
}

// Error is a failed command. Code names the error kind.
type Error struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Error codes.
const (
	CodeInvalidRequest        = "InvalidRequest"
	CodeUnknownMethod         = "UnknownMethod"
	CodeInvalidIdentityFormat = "InvalidIdentityFormat"
	CodeStateMismatch         = "StateMismatch"
	CodeSubmissionRejected    = "SubmissionRejected"
	CodeInclusionTimeout      = "InclusionTimeout"
	CodeInvalidPackage        = "InvalidPackage"
	CodeInvalidNametag        = "InvalidNametag"
	CodeDeserialization       = "DeserializationError"
	CodeInternal              = "Internal"
)

// TokenData is the payload of a mint.
type TokenData struct {
	Data string `json:"data"`
	// Amount is a decimal string or a JSON integer of any size.
	Amount json.RawMessage `json:"amount,omitempty"`
}

// MintParams are the params of mintToken.
type MintParams struct {
	Identity  identity.Identity `json:"identity"`
	TokenType *types.TokenType  `json:"tokenType,omitempty"`
	TokenData TokenData         `json:"tokenData"`
}

// PrepareParams are the params of prepareTransfer.
type PrepareParams struct {
	SenderIdentity   identity.Identity `json:"senderIdentity"`
	RecipientAddress types.Address     `json:"recipientAddress"`
	Token            *token.Token      `json:"token"`
	IsOffline        bool              `json:"isOffline"`
}

// FinalizeParams are the params of finalizeReceivedTransaction. Nametags
// are required only for packages sent to a proxy address.
type FinalizeParams struct {
	ReceiverIdentity identity.Identity `json:"receiverIdentity"`
	TransferPackage  json.RawMessage   `json:"transferPackage"`
	Nametags         []*token.Token    `json:"nametags,omitempty"`
}

// MintNametagParams are the params of mintNametag.
type MintNametagParams struct {
	Identity identity.Identity `json:"identity"`
	Name     string            `json:"name"`
}

// NametagAddressParams are the params of nametagAddress.
type NametagAddressParams struct {
	Name string `json:"name"`
}

// ReceiveAddressParams are the params of receiveAddress.
type ReceiveAddressParams struct {
	Identity  identity.Identity `json:"identity"`
	TokenType types.TokenType   `json:"tokenType"`
}

// TokenResult is returned by mintToken and finalizeReceivedTransaction.
type TokenResult struct {
	TokenID types.TokenID `json:"tokenId"`
	Token   *token.Token  `json:"token"`
}

// AddressResult is returned by receiveAddress.
type AddressResult struct {
	Address types.Address `json:"address"`
}

func parseAmount(raw json.RawMessage) (*big.Int, error) {
	s := strings.TrimSpace(string(raw))
	if s == "" || s == "null" {
		return nil, nil
	}
	s = strings.Trim(s, `"`)
	v, ok := new(big.Int).SetString(s, 10)
	if !ok || v.Sign() < 0 {
		return nil, fmt.Errorf("invalid amount %q", s)
	}
	return v, nil
}
