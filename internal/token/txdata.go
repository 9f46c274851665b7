package token

import (
	"github.com/Klingon-tech/statetransfer/internal/proof"
	"github.com/Klingon-tech/statetransfer/pkg/crypto"
	"github.com/Klingon-tech/statetransfer/pkg/types"
)

// MintTransactionData is the genesis intent of a token.
type MintTransactionData struct {
	TokenID   types.TokenID   `json:"tokenId"`
	TokenType types.TokenType `json:"tokenType"`
	TokenData types.HexBytes  `json:"tokenData"`
	Coins     *CoinData       `json:"coins"`
	Recipient types.Address   `json:"recipient"`
	Salt      types.HexBytes  `json:"salt"`
}

// SourceState is the pseudo-state a mint spends.
func (d *MintTransactionData) SourceState() types.DataHash {
	return MintSourceState(d.TokenID)
}

// Hash is the digest the minter signs.
// Layout: tokenId | tokenType | tokenData? | coins? | recipient | salt
func (d *MintTransactionData) Hash() types.DataHash {
	buf := append([]byte(nil), d.TokenID[:]...)
	buf = append(buf, d.TokenType[:]...)
	buf = appendOptional(buf, d.TokenData, d.TokenData != nil)
	var coins []byte
	if d.Coins != nil {
		coins = d.Coins.encode()
	}
	buf = appendOptional(buf, coins, d.Coins != nil)
	buf = appendField(buf, d.Recipient.Bytes())
	buf = appendField(buf, d.Salt)
	return crypto.MustSum(types.SHA256, buf)
}

// TransactionData is a transfer intent against one exact source state.
type TransactionData struct {
	SourceState *State          `json:"sourceState"`
	Recipient   types.Address   `json:"recipient"`
	Salt        types.HexBytes  `json:"salt"`
	DataHash    *types.DataHash `json:"dataHash"`
	Message     types.HexBytes  `json:"message"`
}

// Hash is the digest the owner signs.
// Layout: sourceState.Hash | recipient | salt | dataHash? | message?
func (d *TransactionData) Hash() types.DataHash {
	buf := appendField(nil, d.SourceState.Hash().Imprint())
	buf = appendField(buf, d.Recipient.Bytes())
	buf = appendField(buf, d.Salt)
	var dh []byte
	if d.DataHash != nil {
		dh = d.DataHash.Imprint()
	}
	buf = appendOptional(buf, dh, d.DataHash != nil)
	buf = appendOptional(buf, d.Message, d.Message != nil)
	return crypto.MustSum(types.SHA256, buf)
}

// MintTransaction is a genesis intent confirmed by the ledger.
type MintTransaction struct {
	Data           *MintTransactionData  `json:"data"`
	InclusionProof *proof.InclusionProof `json:"inclusionProof"`
}

// Transaction is a transfer intent confirmed by the ledger.
type Transaction struct {
	Data           *TransactionData      `json:"data"`
	InclusionProof *proof.InclusionProof `json:"inclusionProof"`
}
