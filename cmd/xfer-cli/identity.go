package main

import (
	"bufio"
	"encoding/hex"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/Klingon-tech/statetransfer/internal/identity"
	"github.com/Klingon-tech/statetransfer/internal/predicate"
	"github.com/Klingon-tech/statetransfer/pkg/types"
)

func (a *app) cmdIdentity(args []string) {
	if len(args) < 1 {
		fatal("Usage: xfer-cli identity <create|import|list|show> [flags]")
	}

	switch args[0] {
	case "create":
		a.cmdIdentityCreate(args[1:])
	case "import":
		a.cmdIdentityImport(args[1:])
	case "list":
		a.cmdIdentityList()
	case "show":
		a.cmdIdentityShow(args[1:])
	default:
		fatal("Unknown identity command: %s\nUsage: xfer-cli identity <create|import|list|show> [flags]", args[0])
	}
}

func (a *app) cmdIdentityCreate(args []string) {
	fs := flag.NewFlagSet("identity create", flag.ExitOnError)
	name := fs.String("name", "", "Identity name")
	fs.Parse(args)

	if *name == "" {
		fatal("Usage: xfer-cli identity create --name <name>")
	}

	mnemonic, err := identity.GenerateMnemonic()
	if err != nil {
		fatal("generate mnemonic: %v", err)
	}

	fmt.Println("Mnemonic (write this down!):")
	fmt.Printf("  %s\n\n", mnemonic)

	a.storeMnemonic(*name, mnemonic)
}

func (a *app) cmdIdentityImport(args []string) {
	fs := flag.NewFlagSet("identity import", flag.ExitOnError)
	name := fs.String("name", "", "Identity name")
	fs.Parse(args)

	if *name == "" {
		fatal("Usage: xfer-cli identity import --name <name>")
	}

	fmt.Fprint(os.Stderr, "Enter mnemonic: ")
	line, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil && line == "" {
		fatal("read mnemonic: %v", err)
	}
	mnemonic := strings.Join(strings.Fields(line), " ")
	if !identity.ValidateMnemonic(mnemonic) {
		fatal("invalid mnemonic")
	}

	a.storeMnemonic(*name, mnemonic)
}

// storeMnemonic encrypts the mnemonic seed under a new password and records account 0.
func (a *app) storeMnemonic(name, mnemonic string) {
	password, err := readPassword("Enter password: ")
	if err != nil {
		fatal("read password: %v", err)
	}
	if os.Getenv(passwordEnv) == "" {
		confirm, err := readPassword("Confirm password: ")
		if err != nil {
			fatal("read password: %v", err)
		}
		if string(password) != string(confirm) {
			fatal("passwords do not match")
		}
	}

	seed, err := identity.SeedFromMnemonic(mnemonic, "")
	if err != nil {
		fatal("derive seed: %v", err)
	}
	defer clear(seed)

	ident, err := identity.FromSeedAccount(seed, 0)
	if err != nil {
		fatal("derive identity: %v", err)
	}
	pub, err := ident.PublicKey(a.provider())
	ident.Zero()
	if err != nil {
		fatal("derive public key: %v", err)
	}

	ks := a.keystore()
	if err := ks.Create(name, seed, password, identity.DefaultKDFParams()); err != nil {
		fatal("create keystore entry: %v", err)
	}
	if err := ks.AddAccount(name, identity.AccountEntry{Index: 0, PublicKey: hex.EncodeToString(pub)}); err != nil {
		fatal("record account: %v", err)
	}

	fmt.Printf("Identity %q created\n", name)
	fmt.Printf("  Public key: %x\n", pub)
}

func (a *app) cmdIdentityList() {
	ks := a.keystore()
	names, err := ks.List()
	if err != nil {
		fatal("list identities: %v", err)
	}
	if len(names) == 0 {
		fmt.Println("No identities")
		return
	}
	for _, name := range names {
		accts, err := ks.Accounts(name)
		if err != nil {
			fatal("read %s: %v", name, err)
		}
		fmt.Printf("%s (%d accounts)\n", name, len(accts))
		for _, acct := range accts {
			fmt.Printf("  #%d %s %s\n", acct.Index, acct.PublicKey, acct.Label)
		}
	}
}

func (a *app) cmdIdentityShow(args []string) {
	fs := flag.NewFlagSet("identity show", flag.ExitOnError)
	name := fs.String("name", "", "Identity name")
	account := fs.Uint("account", 0, "Account index")
	label := fs.String("label", "", "Label to record for the account")
	fs.Parse(args)

	ident := a.unlock(*name, uint32(*account))
	defer ident.Zero()

	pub, err := ident.PublicKey(a.provider())
	if err != nil {
		fatal("derive public key: %v", err)
	}
	entry := identity.AccountEntry{Index: uint32(*account), Label: *label, PublicKey: hex.EncodeToString(pub)}
	if err := a.keystore().AddAccount(*name, entry); err != nil {
		fatal("record account: %v", err)
	}

	fmt.Printf("Identity: %s\n", *name)
	fmt.Printf("Account:  %d\n", *account)
	fmt.Printf("Public:   %x\n", pub)
}

func (a *app) cmdAddress(args []string) {
	fs := flag.NewFlagSet("address", flag.ExitOnError)
	name := fs.String("name", "", "Identity name")
	account := fs.Uint("account", 0, "Account index")
	typeHex := fs.String("type", "", "Token type (hex)")
	algName := fs.String("hash", "SHA256", "Predicate hash algorithm (SHA256 or BLAKE3)")
	fs.Parse(args)

	typ, err := parseTokenType(*typeHex)
	if err != nil || *typeHex == "" {
		fatal("Usage: xfer-cli address --name <name> --type <hex>")
	}
	alg, err := types.ParseHashAlgorithm(*algName)
	if err != nil {
		fatal("%v", err)
	}

	ident := a.unlock(*name, uint32(*account))
	defer ident.Zero()

	addr, err := predicate.AddressFor(a.provider(), typ, ident, alg)
	if err != nil {
		fatal("derive address: %v", err)
	}
	fmt.Println(addr)
}
