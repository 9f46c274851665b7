// derive_key.go prints the public key and receive address for an identity file.
// Usage: go run scripts/derive_key.go <identity.json> <tokenTypeHex>
//
// The identity file holds {"secret": hex, "nonce": hex}.
package main

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/Klingon-tech/statetransfer/internal/identity"
	"github.com/Klingon-tech/statetransfer/internal/predicate"
	"github.com/Klingon-tech/statetransfer/pkg/crypto"
	"github.com/Klingon-tech/statetransfer/pkg/types"
)

func main() {
	if len(os.Args) < 3 {
		fmt.Fprintln(os.Stderr, "usage: derive_key <identity.json> <tokenTypeHex>")
		os.Exit(1)
	}
	data, err := os.ReadFile(os.Args[1])
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	var ident identity.Identity
	if err := json.Unmarshal(data, &ident); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	defer ident.Zero()

	typeBytes, err := hex.DecodeString(strings.TrimSpace(os.Args[2]))
	if err != nil || len(typeBytes) != types.HashSize {
		fmt.Fprintln(os.Stderr, "token type must be 32-byte hex")
		os.Exit(1)
	}
	var typ types.TokenType
	copy(typ[:], typeBytes)

	p := crypto.Secp256k1Provider{}
	pub, err := ident.PublicKey(p)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	addr, err := predicate.AddressFor(p, typ, ident, types.SHA256)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	fmt.Printf("pubkey=%s\n", hex.EncodeToString(pub))
	fmt.Printf("address=%s\n", addr.String())
}
