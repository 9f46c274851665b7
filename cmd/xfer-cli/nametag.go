package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/Klingon-tech/statetransfer/internal/token"
	"github.com/Klingon-tech/statetransfer/pkg/types"
)

func (a *app) cmdNametag(args []string) {
	if len(args) == 0 {
		fatal("Usage: xfer-cli nametag <mint|list|address|export|import> [flags]")
	}
	switch args[0] {
	case "mint":
		a.nametagMint(args[1:])
	case "list":
		a.nametagList(args[1:])
	case "address":
		a.nametagAddress(args[1:])
	case "export":
		a.nametagExport(args[1:])
	case "import":
		a.nametagImport(args[1:])
	default:
		fatal("unknown nametag command: %s", args[0])
	}
}

func (a *app) nametagMint(args []string) {
	fs := flag.NewFlagSet("nametag mint", flag.ExitOnError)
	name := fs.String("name", "", "Identity name")
	account := fs.Uint("account", 0, "Account index")
	tag := fs.String("tag", "", "Nametag to claim")
	fs.Parse(args)

	if err := token.ValidateNametag(*tag); err != nil {
		fatal("%v", err)
	}
	ident := a.unlock(*name, uint32(*account))
	defer ident.Zero()

	store, db := a.openStore(*name)
	defer db.Close()

	ctx, cancel := interruptible()
	defer cancel()

	fmt.Fprintln(os.Stderr, "Minting nametag, waiting for inclusion...")
	res, err := a.orchestrator().MintNametag(ctx, ident, *tag)
	if err != nil {
		fatal("mint nametag: %v", err)
	}
	if err := store.PutNametag(res.Token); err != nil {
		fatal("store nametag: %v", err)
	}
	fmt.Printf("Nametag:  @%s\n", *tag)
	fmt.Printf("Token ID: %s\n", res.TokenID)
	fmt.Printf("Address:  %s\n", token.ProxyAddress(*tag))
}

func (a *app) nametagList(args []string) {
	fs := flag.NewFlagSet("nametag list", flag.ExitOnError)
	name := fs.String("name", "", "Identity name")
	fs.Parse(args)

	store, db := a.openStore(*name)
	defer db.Close()

	tags, err := store.Nametags()
	if err != nil {
		fatal("list nametags: %v", err)
	}
	if len(tags) == 0 {
		fmt.Println("No nametags")
		return
	}
	for _, t := range tags {
		tag, err := t.Nametag()
		if err != nil {
			fmt.Printf("%s  (unreadable)\n", t.ID())
			continue
		}
		fmt.Printf("@%-20s %s\n", tag, token.ProxyAddress(tag))
	}
}

// nametagAddress needs no identity: anyone can compute a proxy address.
func (a *app) nametagAddress(args []string) {
	fs := flag.NewFlagSet("nametag address", flag.ExitOnError)
	tag := fs.String("tag", "", "Nametag")
	fs.Parse(args)

	if err := token.ValidateNametag(*tag); err != nil {
		fatal("%v", err)
	}
	fmt.Println(token.ProxyAddress(*tag))
}

func (a *app) nametagExport(args []string) {
	fs := flag.NewFlagSet("nametag export", flag.ExitOnError)
	name := fs.String("name", "", "Identity name")
	tag := fs.String("tag", "", "Nametag")
	out := fs.String("out", "", "Write to this file instead of stdout")
	fs.Parse(args)

	store, db := a.openStore(*name)
	defer db.Close()

	t, err := store.GetNametag(*tag)
	if err != nil {
		fatal("load nametag: %v", err)
	}
	data, err := json.MarshalIndent(t, "", "  ")
	if err != nil {
		fatal("encode: %v", err)
	}
	if *out == "" {
		fmt.Println(string(data))
		return
	}
	if err := os.WriteFile(*out, data, 0600); err != nil {
		fatal("write nametag: %v", err)
	}
	fmt.Printf("Wrote @%s to %s\n", *tag, *out)
}

func (a *app) nametagImport(args []string) {
	fs := flag.NewFlagSet("nametag import", flag.ExitOnError)
	name := fs.String("name", "", "Identity name")
	account := fs.Uint("account", 0, "Account index")
	in := fs.String("in", "", "Read the nametag from this file (- for stdin)")
	fs.Parse(args)

	if *in == "" {
		fatal("Usage: xfer-cli nametag import --name <name> --in <file>")
	}
	data, err := readInput(*in)
	if err != nil {
		fatal("read nametag: %v", err)
	}
	var t token.Token
	if err := json.Unmarshal(data, &t); err != nil {
		fatal("decode nametag: %v", err)
	}
	if err := token.VerifyNametag(&t); err != nil {
		fatal("verify nametag: %v", err)
	}

	ident := a.unlock(*name, uint32(*account))
	defer ident.Zero()
	pub, err := ident.PublicKey(a.provider())
	if err != nil {
		fatal("derive public key: %v", err)
	}
	if !t.State.Predicate.IsOwner(pub) {
		fatal("nametag is not owned by %s account %d", *name, *account)
	}

	store, db := a.openStore(*name)
	defer db.Close()
	if err := store.PutNametag(&t); err != nil {
		fatal("store nametag: %v", err)
	}
	tag, _ := t.Nametag()
	fmt.Printf("Imported @%s\n", tag)
}

// parseRecipient accepts an address string or @nametag.
func parseRecipient(s string) (types.Address, error) {
	if tag, ok := strings.CutPrefix(s, "@"); ok {
		if err := token.ValidateNametag(tag); err != nil {
			return types.Address{}, err
		}
		return token.ProxyAddress(tag), nil
	}
	return types.ParseAddress(s)
}
