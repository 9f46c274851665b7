package main

import (
	"encoding/hex"
	"fmt"
	"os"
	"syscall"

	"golang.org/x/term"

	"github.com/Klingon-tech/statetransfer/config"
	"github.com/Klingon-tech/statetransfer/internal/identity"
	"github.com/Klingon-tech/statetransfer/internal/ledger"
	"github.com/Klingon-tech/statetransfer/internal/poller"
	"github.com/Klingon-tech/statetransfer/internal/storage"
	"github.com/Klingon-tech/statetransfer/internal/token"
	"github.com/Klingon-tech/statetransfer/internal/transfer"
	"github.com/Klingon-tech/statetransfer/pkg/crypto"
	"github.com/Klingon-tech/statetransfer/pkg/types"
)

// passwordEnv lets scripts supply the keystore password non-interactively.
const passwordEnv = "XFER_PASSWORD"

type app struct {
	cfg *config.Config
}

func (a *app) provider() crypto.Provider {
	return crypto.Secp256k1Provider{}
}

func (a *app) ledgerClient() *ledger.AggregatorClient {
	return ledger.NewAggregatorClient(a.cfg.Ledger.URL, a.cfg.Ledger.Timeout)
}

func (a *app) orchestrator() *transfer.Orchestrator {
	return transfer.New(a.provider(), a.ledgerClient(), transfer.Options{
		Poll: poller.Options{
			Interval: a.cfg.Poll.Interval,
			Deadline: a.cfg.Poll.Deadline,
		},
		HashAlgorithm: types.SHA256,
	})
}

func (a *app) keystore() *identity.Keystore {
	ks, err := identity.NewKeystore(a.cfg.KeystoreDir())
	if err != nil {
		fatal("open keystore: %v", err)
	}
	return ks
}

// openStore opens the token database scoped to one identity's namespace.
// The caller closes the DB.
func (a *app) openStore(name string) (*token.Store, *storage.BadgerDB) {
	if name == "" {
		fatal("--name is required")
	}
	db, err := storage.NewBadger(a.cfg.TokensDir())
	if err != nil {
		fatal("open token store: %v", err)
	}
	return token.NewStore(storage.NewPrefixDB(db, []byte(name+"/"))), db
}

// unlock decrypts the named identity's account.
func (a *app) unlock(name string, account uint32) identity.Identity {
	if name == "" {
		fatal("--name is required")
	}
	password, err := readPassword("Password for " + name + ": ")
	if err != nil {
		fatal("read password: %v", err)
	}
	defer clear(password)

	ident, err := a.keystore().Identity(name, password, account)
	if err != nil {
		fatal("unlock identity: %v", err)
	}
	return ident
}

// ── Parsing helpers ─────────────────────────────────────────────────────

func parseTokenID(s string) (types.TokenID, error) {
	var id types.TokenID
	b, err := hex.DecodeString(s)
	if err != nil || len(b) != len(id) {
		return id, fmt.Errorf("token id must be %d-byte hex", len(id))
	}
	copy(id[:], b)
	return id, nil
}

func parseTokenType(s string) (types.TokenType, error) {
	var typ types.TokenType
	if s == "" {
		return typ, nil
	}
	b, err := hex.DecodeString(s)
	if err != nil || len(b) != len(typ) {
		return typ, fmt.Errorf("token type must be %d-byte hex", len(typ))
	}
	copy(typ[:], b)
	return typ, nil
}

// ── Password helper ─────────────────────────────────────────────────────

func readPassword(prompt string) ([]byte, error) {
	if env := os.Getenv(passwordEnv); env != "" {
		return []byte(env), nil
	}
	fmt.Fprint(os.Stderr, prompt)
	password, err := term.ReadPassword(int(syscall.Stdin))
	fmt.Fprintln(os.Stderr) // newline after hidden input
	if err != nil {
		return nil, err
	}
	return password, nil
}
