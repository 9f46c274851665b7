package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"math/big"
	"os"
	"os/signal"
	"syscall"

	"github.com/libp2p/go-libp2p/core/peer"

	"github.com/Klingon-tech/statetransfer/internal/bridge"
	"github.com/Klingon-tech/statetransfer/internal/codec"
	"github.com/Klingon-tech/statetransfer/internal/handoff"
	"github.com/Klingon-tech/statetransfer/internal/identity"
	klog "github.com/Klingon-tech/statetransfer/internal/log"
	"github.com/Klingon-tech/statetransfer/internal/poller"
	"github.com/Klingon-tech/statetransfer/internal/token"
	"github.com/Klingon-tech/statetransfer/internal/transfer"
	"github.com/Klingon-tech/statetransfer/pkg/types"
)

// interruptible returns a context canceled on SIGINT or SIGTERM.
func interruptible() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
}

func (a *app) cmdMint(args []string) {
	fs := flag.NewFlagSet("mint", flag.ExitOnError)
	name := fs.String("name", "", "Identity name")
	account := fs.Uint("account", 0, "Account index")
	typeHex := fs.String("type", "", "Token type (hex, random if empty)")
	data := fs.String("data", "", "Token data")
	amount := fs.String("amount", "", "Coin amount (decimal, optional)")
	fs.Parse(args)

	typ, err := parseTokenType(*typeHex)
	if err != nil {
		fatal("%v", err)
	}
	req := transfer.MintRequest{TokenType: typ, Data: []byte(*data)}
	if *amount != "" {
		v, ok := new(big.Int).SetString(*amount, 10)
		if !ok || v.Sign() < 0 {
			fatal("amount must be a non-negative decimal integer")
		}
		req.Amount = v
	}

	ident := a.unlock(*name, uint32(*account))
	defer ident.Zero()

	store, db := a.openStore(*name)
	defer db.Close()

	ctx, cancel := interruptible()
	defer cancel()

	fmt.Fprintln(os.Stderr, "Minting, waiting for inclusion...")
	res, err := a.orchestrator().Mint(ctx, ident, req)
	if err != nil {
		fatal("mint: %v", err)
	}
	if err := store.Put(res.Token); err != nil {
		fatal("store token: %v", err)
	}

	fmt.Printf("Token ID:   %s\n", res.TokenID)
	fmt.Printf("Token type: %s\n", res.Token.Type())
	if coins := res.Token.Coins(); coins != nil {
		fmt.Printf("Amount:     %s\n", coins.Total())
	}
}

func (a *app) cmdSend(args []string) {
	fs := flag.NewFlagSet("send", flag.ExitOnError)
	name := fs.String("name", "", "Identity name")
	account := fs.Uint("account", 0, "Account index")
	tokenHex := fs.String("token", "", "Token ID (hex)")
	to := fs.String("to", "", "Recipient address (DIRECT://..., PROXY://... or @nametag)")
	offline := fs.Bool("offline", false, "Produce an offline package without contacting the ledger")
	out := fs.String("out", "", "Write the transfer package to this file")
	peerAddr := fs.String("peer", "", "Deliver the package to a peer multiaddr (/ip4/.../p2p/<id>)")
	compact := fs.Bool("compact", false, "Write the package zstd-compressed")
	fs.Parse(args)

	if *tokenHex == "" || *to == "" {
		fatal("Usage: xfer-cli send --name <name> --token <id> --to <address> [--offline] [--out <file>] [--peer <multiaddr>]")
	}
	id, err := parseTokenID(*tokenHex)
	if err != nil {
		fatal("%v", err)
	}
	addr, err := parseRecipient(*to)
	if err != nil {
		fatal("recipient: %v", err)
	}

	ident := a.unlock(*name, uint32(*account))
	defer ident.Zero()

	store, db := a.openStore(*name)
	defer db.Close()

	tok, err := store.Get(id)
	if err != nil {
		fatal("load token: %v", err)
	}

	ctx, cancel := interruptible()
	defer cancel()

	if !*offline {
		fmt.Fprintln(os.Stderr, "Submitting, waiting for inclusion...")
	}
	pkg, err := a.orchestrator().PrepareTransfer(ctx, ident, addr, tok, *offline)
	if err != nil {
		fatal("send: %v", err)
	}

	encoded, err := encodePackage(pkg, *compact)
	if err != nil {
		fatal("encode package: %v", err)
	}

	// The source state is spent once a commitment exists for it.
	if *offline {
		if err := store.PutPending(id, encoded); err != nil {
			fatal("store pending package: %v", err)
		}
	}
	if err := store.Delete(id); err != nil {
		fatal("remove sent token: %v", err)
	}

	switch {
	case *peerAddr != "":
		a.deliver(ctx, *peerAddr, pkg)
		if *offline {
			if err := store.DeletePending(id); err != nil {
				klog.Transfer.Warn().Err(err).Str("token_id", id.String()).Msg("Could not clear pending package")
			}
		}
		fmt.Printf("Delivered %s (%s)\n", id, pkg.Kind())
	case *out != "":
		if err := os.WriteFile(*out, encoded, 0600); err != nil {
			fatal("write package: %v", err)
		}
		fmt.Printf("Wrote %s package for %s to %s\n", pkg.Kind(), id, *out)
	default:
		os.Stdout.Write(encoded)
		if !*compact {
			fmt.Println()
		}
	}
}

// deliver sends pkg to a peer over the hand-off protocol.
func (a *app) deliver(ctx context.Context, target string, pkg *codec.TransferPackage) {
	node, err := handoff.New(handoff.Config{
		ListenAddr:     "/ip4/0.0.0.0/tcp/0",
		HandlerTimeout: a.cfg.Poll.Deadline + a.cfg.Ledger.Timeout,
	})
	if err != nil {
		fatal("start hand-off node: %v", err)
	}
	defer node.Close()

	ack, err := node.Send(ctx, target, pkg)
	if err != nil {
		fatal("deliver: %v", err)
	}
	klog.Handoff.Debug().Str("token_id", ack.TokenID.String()).Msg("Peer acknowledged package")
}

func (a *app) cmdReceive(args []string) {
	fs := flag.NewFlagSet("receive", flag.ExitOnError)
	name := fs.String("name", "", "Identity name")
	account := fs.Uint("account", 0, "Account index")
	in := fs.String("in", "", "Read the transfer package from this file (- for stdin)")
	listen := fs.Bool("listen", false, "Accept packages from peers until interrupted")
	retry := fs.Bool("retry", false, "Finalize packages left over from an interrupted receive")
	fs.Parse(args)

	if *in == "" && !*listen && !*retry {
		fatal("Usage: xfer-cli receive --name <name> (--in <file> | --listen | --retry)")
	}

	ident := a.unlock(*name, uint32(*account))
	defer ident.Zero()

	store, db := a.openStore(*name)
	defer db.Close()

	r := &receiver{orch: a.orchestrator(), ident: ident, store: store}
	ctx, cancel := interruptible()
	defer cancel()

	if *retry {
		n := r.retry(ctx)
		fmt.Printf("Finalized %d stored package(s)\n", n)
		if *in == "" && !*listen {
			return
		}
	}

	if *in != "" {
		data, err := readInput(*in)
		if err != nil {
			fatal("read package: %v", err)
		}
		pkg, err := decodePackage(data)
		if err != nil {
			fatal("decode package: %v", err)
		}
		tok, err := r.finalize(ctx, pkg)
		if err != nil {
			fatal("receive: %v", err)
		}
		fmt.Printf("Received token %s\n", tok.ID())
		return
	}

	node, err := handoff.New(handoff.Config{
		ListenAddr:     a.cfg.Handoff.ListenAddr,
		DataDir:        a.cfg.NetworkDir(),
		HandlerTimeout: a.cfg.Poll.Deadline + a.cfg.Ledger.Timeout,
	})
	if err != nil {
		fatal("start hand-off node: %v", err)
	}
	defer node.Close()

	node.SetHandler(func(ctx context.Context, from peer.ID, pkg *codec.TransferPackage) error {
		tok, err := r.finalize(ctx, pkg)
		if err != nil {
			return err
		}
		fmt.Printf("Received token %s from %s\n", tok.ID(), from)
		return nil
	})

	fmt.Println("Listening for packages on:")
	for _, addr := range node.Addrs() {
		fmt.Printf("  %s\n", addr)
	}
	<-ctx.Done()
}

// receiver finalizes packages for one identity. Every package is stored
// before finalizing and dropped once the token is stored, so a finalize cut
// short by the poll deadline can be retried with receive --retry.
type receiver struct {
	orch  *transfer.Orchestrator
	ident identity.Identity
	store *token.Store
}

func (r *receiver) finalize(ctx context.Context, pkg *codec.TransferPackage) (*token.Token, error) {
	if pkg.Token == nil || pkg.Token.Genesis == nil || pkg.Token.Genesis.Data == nil {
		return nil, fmt.Errorf("%w: missing token", transfer.ErrInvalidPackage)
	}
	id := pkg.Token.ID()
	raw, err := codec.Marshal(pkg)
	if err != nil {
		return nil, err
	}
	if err := r.store.PutIncoming(id, raw); err != nil {
		return nil, fmt.Errorf("store incoming package: %w", err)
	}
	nametags, err := r.store.Nametags()
	if err != nil {
		return nil, fmt.Errorf("load nametags: %w", err)
	}

	tok, err := r.orch.FinalizeReceived(ctx, r.ident, pkg, nametags...)
	if err != nil {
		if !retryable(err) {
			r.dropIncoming(id)
		}
		return nil, err
	}
	if err := r.store.Put(tok); err != nil {
		return nil, fmt.Errorf("store token: %w", err)
	}
	r.dropIncoming(id)
	return tok, nil
}

// retry finalizes every stored incoming package and reports how many
// succeeded.
func (r *receiver) retry(ctx context.Context) int {
	var pkgs []*codec.TransferPackage
	err := r.store.ForEachIncoming(func(id types.TokenID, data []byte) error {
		pkg, err := codec.Unmarshal(data)
		if err != nil {
			klog.Transfer.Warn().Err(err).Str("token_id", id.String()).Msg("Dropping unreadable incoming package")
			r.dropIncoming(id)
			return nil
		}
		pkgs = append(pkgs, pkg)
		return nil
	})
	if err != nil {
		fatal("list incoming packages: %v", err)
	}
	n := 0
	for _, pkg := range pkgs {
		tok, err := r.finalize(ctx, pkg)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Token %s: %v\n", pkg.Token.ID(), err)
			continue
		}
		fmt.Printf("Received token %s\n", tok.ID())
		n++
	}
	return n
}

func (r *receiver) dropIncoming(id types.TokenID) {
	if err := r.store.DeleteIncoming(id); err != nil {
		klog.Transfer.Warn().Err(err).Str("token_id", id.String()).Msg("Could not clear incoming package")
	}
}

// retryable reports whether finalize may still succeed later.
func retryable(err error) bool {
	return errors.Is(err, poller.ErrInclusionTimeout) ||
		errors.Is(err, context.Canceled) ||
		errors.Is(err, context.DeadlineExceeded)
}

func (a *app) cmdTokens(args []string) {
	fs := flag.NewFlagSet("tokens", flag.ExitOnError)
	name := fs.String("name", "", "Identity name")
	asJSON := fs.Bool("json", false, "Print full token JSON")
	fs.Parse(args)

	store, db := a.openStore(*name)
	defer db.Close()

	tokens, err := store.List()
	if err != nil {
		fatal("list tokens: %v", err)
	}
	if *asJSON {
		out, err := json.MarshalIndent(tokens, "", "  ")
		if err != nil {
			fatal("encode: %v", err)
		}
		fmt.Println(string(out))
		return
	}
	if len(tokens) == 0 {
		fmt.Println("No tokens")
		return
	}
	for _, t := range tokens {
		amount := "-"
		if coins := t.Coins(); coins != nil {
			amount = coins.Total().String()
		}
		fmt.Printf("%s  type=%s  transfers=%d  amount=%s\n", t.ID(), t.Type(), len(t.Transactions), amount)
	}
}

func (a *app) cmdPending(args []string) {
	fs := flag.NewFlagSet("pending", flag.ExitOnError)
	name := fs.String("name", "", "Identity name")
	fs.Parse(args)

	store, db := a.openStore(*name)
	defer db.Close()

	n := 0
	err := store.ForEachPending(func(id types.TokenID, data []byte) error {
		n++
		pkg, err := decodePackage(data)
		if err != nil || pkg.Commitment == nil || pkg.Commitment.TransactionData == nil {
			fmt.Printf("%s  %d bytes  (unreadable)\n", id, len(data))
			return nil
		}
		fmt.Printf("%s  %d bytes  to=%s\n", id, len(data), pkg.Commitment.TransactionData.Recipient)
		return nil
	})
	if err != nil {
		fatal("list pending: %v", err)
	}
	if n == 0 {
		fmt.Println("No pending packages")
	}
}

// cmdCall runs one bridge request from stdin, for host integrations.
func (a *app) cmdCall(_ []string) {
	raw, err := io.ReadAll(io.LimitReader(os.Stdin, codec.MaxPackageSize))
	if err != nil {
		fatal("read request: %v", err)
	}
	ctx, cancel := interruptible()
	defer cancel()

	d := bridge.NewDispatcher(a.orchestrator(), a.provider(), types.SHA256)
	os.Stdout.Write(d.Handle(ctx, raw))
	fmt.Println()
}

func (a *app) cmdStatus() {
	ctx, cancel := interruptible()
	defer cancel()

	height, err := a.ledgerClient().BlockHeight(ctx)
	if err != nil {
		fatal("query ledger: %v", err)
	}
	fmt.Printf("Ledger:       %s\n", a.cfg.Ledger.URL)
	fmt.Printf("Block height: %d\n", height)
}

// ── Package helpers ─────────────────────────────────────────────────────

func encodePackage(pkg *codec.TransferPackage, compact bool) ([]byte, error) {
	if compact {
		return codec.MarshalCompact(pkg)
	}
	return codec.Marshal(pkg)
}

// zstdMagic starts every zstd frame.
var zstdMagic = []byte{0x28, 0xb5, 0x2f, 0xfd}

// decodePackage accepts both plain JSON and compact packages.
func decodePackage(data []byte) (*codec.TransferPackage, error) {
	if bytes.HasPrefix(data, zstdMagic) {
		return codec.UnmarshalCompact(data)
	}
	return codec.Unmarshal(bytes.TrimSpace(data))
}

func readInput(path string) ([]byte, error) {
	if path == "-" {
		return io.ReadAll(io.LimitReader(os.Stdin, codec.MaxPackageSize))
	}
	return os.ReadFile(path)
}
