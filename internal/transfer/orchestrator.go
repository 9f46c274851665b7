// Package transfer sequences the mint, prepare-transfer and finalize flows
// over the online and offline delivery paths.
//
// Flows for different tokens run concurrently. Flows for the same token id
// are serialized by the Orchestrator, so a transfer is never prepared from a
// state that another flow is superseding.
package transfer

import (
	"context"
	"crypto/rand"
	"fmt"
	"math/big"

	"github.com/Klingon-tech/statetransfer/internal/codec"
	"github.com/Klingon-tech/statetransfer/internal/commitment"
	"github.com/Klingon-tech/statetransfer/internal/identity"
	"github.com/Klingon-tech/statetransfer/internal/ledger"
	klog "github.com/Klingon-tech/statetransfer/internal/log"
	"github.com/Klingon-tech/statetransfer/internal/poller"
	"github.com/Klingon-tech/statetransfer/internal/predicate"
	"github.com/Klingon-tech/statetransfer/internal/token"
	"github.com/Klingon-tech/statetransfer/pkg/crypto"
	"github.com/Klingon-tech/statetransfer/pkg/types"
)

// Options tunes an Orchestrator.
type Options struct {
	Poll poller.Options
	// HashAlgorithm is used for predicates created by Mint.
	HashAlgorithm types.HashAlgorithm
}

// Orchestrator runs transfer flows against one ledger.
type Orchestrator struct {
	provider crypto.Provider
	ledger   ledger.Client
	opts     Options
	locks    *tokenLocks
}

// New creates an orchestrator. provider and client are required.
func New(provider crypto.Provider, client ledger.Client, opts Options) *Orchestrator {
	return &Orchestrator{
		provider: provider,
		ledger:   client,
		opts:     opts,
		locks:    newTokenLocks(),
	}
}

// MintRequest describes a new token. Zero TokenID or TokenType are replaced
// with random values.
type MintRequest struct {
	TokenID   types.TokenID
	TokenType types.TokenType
	Data      []byte
	// Amount, if set and Coins is nil, is minted under a single random coin id.
	Amount *big.Int
	Coins  *token.CoinData
}

// MintResult is the outcome of Mint.
type MintResult struct {
	TokenID types.TokenID `json:"tokenId"`
	Token   *token.Token  `json:"token"`
}

// Mint creates a token owned by ident and waits for the ledger to confirm it.
func (o *Orchestrator) Mint(ctx context.Context, ident identity.Identity, req MintRequest) (*MintResult, error) {
	if err := fillRandom(&req); err != nil {
		return nil, opError(OpMint, req.TokenID, err)
	}
	tok, err := o.mint(ctx, ident, req)
	if err != nil {
		return nil, opError(OpMint, req.TokenID, err)
	}
	return &MintResult{TokenID: tok.ID(), Token: tok}, nil
}

// MintNametag mints the nametag name for ident. Tokens sent to the proxy
// address of name can then be received by presenting the nametag.
// A name already minted by anyone is rejected by the ledger.
func (o *Orchestrator) MintNametag(ctx context.Context, ident identity.Identity, name string) (*MintResult, error) {
	id := token.NametagID(name)
	if err := token.ValidateNametag(name); err != nil {
		return nil, opError(OpMintNametag, id, err)
	}
	tok, err := o.mint(ctx, ident, MintRequest{
		TokenID:   id,
		TokenType: token.NametagType,
		Data:      []byte(name),
	})
	if err != nil {
		return nil, opError(OpMintNametag, id, err)
	}
	logger := klog.WithTokenID(klog.Transfer, id.String())
	logger.Info().Str("nametag", name).Msg("Nametag minted")
	return &MintResult{TokenID: tok.ID(), Token: tok}, nil
}

func (o *Orchestrator) mint(ctx context.Context, ident identity.Identity, req MintRequest) (*token.Token, error) {
	release, err := o.locks.acquire(ctx, req.TokenID)
	if err != nil {
		return nil, err
	}
	defer release()
	logger := klog.WithTokenID(klog.Transfer, req.TokenID.String())

	pred, err := predicate.Derive(o.provider, req.TokenID, req.TokenType, ident, o.opts.HashAlgorithm)
	if err != nil {
		return nil, err
	}
	coins, err := mintCoins(req)
	if err != nil {
		return nil, err
	}
	salt, err := commitment.NewSalt()
	if err != nil {
		return nil, err
	}
	var data types.HexBytes
	if req.Data != nil {
		data = append(types.HexBytes{}, req.Data...)
	}
	mintData := &token.MintTransactionData{
		TokenID:   req.TokenID,
		TokenType: req.TokenType,
		TokenData: data,
		Coins:     coins,
		Recipient: pred.Address(),
		Salt:      salt,
	}

	mc, err := commitment.CreateMint(o.provider, mintData)
	if err != nil {
		return nil, err
	}
	logger.Debug().Str("request_id", mc.RequestID.String()).Msg("Submitting mint commitment")
	if err := ledger.Submit(ctx, o.ledger, mc); err != nil {
		return nil, err
	}
	p, err := poller.Await(ctx, o.ledger, mc, o.opts.Poll)
	if err != nil {
		return nil, err
	}
	genesis, err := mc.ToTransaction(p)
	if err != nil {
		return nil, err
	}
	tok, err := token.Mint(genesis.Data, genesis.InclusionProof, pred)
	if err != nil {
		return nil, err
	}
	logger.Info().Uint64("height", p.BlockHeight).Msg("Token minted")
	return tok, nil
}

// PrepareTransfer builds a transfer of tok from sender to the address to.
// Offline packages carry the signed commitment and involve no network call.
// Online packages carry the confirmed transaction.
func (o *Orchestrator) PrepareTransfer(ctx context.Context, sender identity.Identity, to types.Address, tok *token.Token, offline bool) (*codec.TransferPackage, error) {
	if tok == nil || tok.Genesis == nil || tok.Genesis.Data == nil {
		return nil, opError(OpPrepare, types.TokenID{}, token.ErrInvalidToken)
	}
	pkg, err := o.prepare(ctx, sender, to, tok, offline)
	if err != nil {
		return nil, opError(OpPrepare, tok.ID(), err)
	}
	return pkg, nil
}

func (o *Orchestrator) prepare(ctx context.Context, sender identity.Identity, to types.Address, tok *token.Token, offline bool) (*codec.TransferPackage, error) {
	release, err := o.locks.acquire(ctx, tok.ID())
	if err != nil {
		return nil, err
	}
	defer release()
	logger := klog.WithTokenID(klog.Transfer, tok.ID().String())

	if err := tok.Verify(); err != nil {
		return nil, err
	}
	key, err := sender.SigningKey(o.provider)
	if err != nil {
		return nil, err
	}
	defer key.Zero()

	salt, err := commitment.NewSalt()
	if err != nil {
		return nil, err
	}
	data, err := commitment.BuildTransactionData(tok.State, to, salt, nil)
	if err != nil {
		return nil, err
	}
	c, err := commitment.Create(o.provider, data, key)
	if err != nil {
		return nil, err
	}

	if offline {
		logger.Debug().Str("request_id", c.RequestID.String()).Msg("Offline package prepared")
		return &codec.TransferPackage{Commitment: c, Token: tok}, nil
	}

	logger.Debug().Str("request_id", c.RequestID.String()).Msg("Submitting transfer commitment")
	if err := ledger.Submit(ctx, o.ledger, c); err != nil {
		return nil, err
	}
	p, err := poller.Await(ctx, o.ledger, c, o.opts.Poll)
	if err != nil {
		return nil, err
	}
	tx, err := c.ToTransaction(p)
	if err != nil {
		return nil, err
	}
	logger.Info().Str("recipient", to.String()).Msg("Transfer confirmed")
	return &codec.TransferPackage{Transaction: tx, Token: tok, RecipientAddress: &to}, nil
}

// FinalizeReceived completes a transfer addressed to receiver. An offline
// package's commitment is submitted and awaited first. The returned token
// is owned by receiver.
//
// For a package sent to a proxy address, nametags must include receiver's
// nametag for that address; it is attached to the returned token.
func (o *Orchestrator) FinalizeReceived(ctx context.Context, receiver identity.Identity, pkg *codec.TransferPackage, nametags ...*token.Token) (*token.Token, error) {
	if pkg == nil || pkg.Token == nil || pkg.Token.Genesis == nil || pkg.Token.Genesis.Data == nil {
		return nil, opError(OpFinalize, types.TokenID{}, fmt.Errorf("%w: missing token", ErrInvalidPackage))
	}
	tok, err := o.finalize(ctx, receiver, pkg, nametags)
	if err != nil {
		return nil, opError(OpFinalize, pkg.Token.ID(), err)
	}
	return tok, nil
}

func (o *Orchestrator) finalize(ctx context.Context, receiver identity.Identity, pkg *codec.TransferPackage, nametags []*token.Token) (*token.Token, error) {
	kind := pkg.Kind()
	if kind == codec.KindInvalid {
		return nil, fmt.Errorf("%w: needs exactly one of commitment and transaction", ErrInvalidPackage)
	}
	tok := pkg.Token
	release, err := o.locks.acquire(ctx, tok.ID())
	if err != nil {
		return nil, err
	}
	defer release()
	logger := klog.WithTokenID(klog.Transfer, tok.ID().String())

	if err := tok.Verify(); err != nil {
		return nil, err
	}

	var data *token.TransactionData
	if kind == codec.KindOffline {
		data = pkg.Commitment.TransactionData
	} else {
		data = pkg.Transaction.Data
	}
	if data == nil {
		return nil, fmt.Errorf("%w: missing transaction data", ErrInvalidPackage)
	}
	if kind == codec.KindOnline && (pkg.RecipientAddress == nil || *pkg.RecipientAddress != data.Recipient) {
		return nil, fmt.Errorf("%w: recipient address does not match transaction", ErrInvalidPackage)
	}
	nametags = nametagsFor(data.Recipient, nametags)
	alg := data.Recipient.Reference.Algorithm
	if data.Recipient.IsProxy() {
		alg = o.opts.HashAlgorithm
		for i, nt := range nametags {
			if err := token.VerifyNametag(nt); err != nil {
				return nil, fmt.Errorf("nametag %d: %w", i, err)
			}
		}
	}
	pred, err := predicate.Derive(o.provider, tok.ID(), tok.Type(), receiver, alg)
	if err != nil {
		return nil, err
	}
	if err := token.CheckRecipient(pred, data.Recipient, nametags); err != nil {
		return nil, err
	}

	tx := pkg.Transaction
	if kind == codec.KindOffline {
		c := pkg.Commitment
		if err := c.Validate(); err != nil {
			return nil, err
		}
		logger.Debug().Str("request_id", c.RequestID.String()).Msg("Submitting received commitment")
		if err := ledger.Submit(ctx, o.ledger, c); err != nil {
			return nil, err
		}
		p, err := poller.Await(ctx, o.ledger, c, o.opts.Poll)
		if err != nil {
			return nil, err
		}
		if tx, err = c.ToTransaction(p); err != nil {
			return nil, err
		}
	}

	next, err := tok.ApplyTransaction(tx, token.NewState(pred, nil), nametags...)
	if err != nil {
		return nil, err
	}
	logger.Info().Int("transactions", len(next.Transactions)).Msg("Transfer received")
	return next, nil
}

// nametagsFor keeps the nametags that can resolve to. Only those are
// attached to the received token.
func nametagsFor(to types.Address, nametags []*token.Token) []*token.Token {
	if !to.IsProxy() {
		return nil
	}
	var out []*token.Token
	for _, nt := range nametags {
		if nt != nil && nt.Genesis != nil && nt.Genesis.Data != nil && nt.ID() == to.Nametag {
			out = append(out, nt)
		}
	}
	return out
}

func fillRandom(req *MintRequest) error {
	if req.TokenID.IsZero() {
		if _, err := rand.Read(req.TokenID[:]); err != nil {
			return fmt.Errorf("generate token id: %w", err)
		}
	}
	if types.Hash(req.TokenType).IsZero() {
		if _, err := rand.Read(req.TokenType[:]); err != nil {
			return fmt.Errorf("generate token type: %w", err)
		}
	}
	return nil
}

func mintCoins(req MintRequest) (*token.CoinData, error) {
	if req.Coins != nil {
		if err := req.Coins.Validate(); err != nil {
			return nil, err
		}
		return req.Coins, nil
	}
	if req.Amount == nil {
		return nil, nil
	}
	var id types.CoinID
	if _, err := rand.Read(id[:]); err != nil {
		return nil, fmt.Errorf("generate coin id: %w", err)
	}
	return token.NewCoinData(token.Coin{ID: id, Amount: req.Amount})
}
