// xfer-cli is a command-line wallet for minting, sending and receiving tokens.
package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/Klingon-tech/statetransfer/config"
	klog "github.com/Klingon-tech/statetransfer/internal/log"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}

	dataDir := ""
	network := config.Mainnet
	ledgerURL := ""
	logLevel := "warn"

	// Scan for global flags before the subcommand.
	args := os.Args[1:]
	for len(args) > 0 {
		switch {
		case args[0] == "--datadir" && len(args) > 1:
			dataDir = args[1]
			args = args[2:]
		case strings.HasPrefix(args[0], "--datadir="):
			dataDir = args[0][len("--datadir="):]
			args = args[1:]
		case args[0] == "--network" && len(args) > 1:
			network = config.NetworkType(args[1])
			args = args[2:]
		case strings.HasPrefix(args[0], "--network="):
			network = config.NetworkType(args[0][len("--network="):])
			args = args[1:]
		case args[0] == "--testnet":
			network = config.Testnet
			args = args[1:]
		case args[0] == "--ledger" && len(args) > 1:
			ledgerURL = args[1]
			args = args[2:]
		case strings.HasPrefix(args[0], "--ledger="):
			ledgerURL = args[0][len("--ledger="):]
			args = args[1:]
		case args[0] == "--log-level" && len(args) > 1:
			logLevel = args[1]
			args = args[2:]
		case strings.HasPrefix(args[0], "--log-level="):
			logLevel = args[0][len("--log-level="):]
			args = args[1:]
		default:
			goto dispatch
		}
	}

dispatch:
	if len(args) == 0 {
		usage()
		os.Exit(1)
	}

	cmd := args[0]
	cmdArgs := args[1:]
	if cmd == "help" || cmd == "--help" || cmd == "-h" {
		usage()
		return
	}
	if cmd == "version" || cmd == "--version" {
		fmt.Printf("xfer-cli version %s\n", config.Version)
		return
	}

	cfg, err := config.LoadFromFile(dataDir, network)
	if err != nil {
		fatal("%v", err)
	}
	cfg.Network = network
	if ledgerURL != "" {
		cfg.Ledger.URL = ledgerURL
	}
	if err := config.Validate(cfg); err != nil {
		fatal("invalid config: %v", err)
	}
	if err := klog.Init(logLevel, cfg.Log.JSON, cfg.Log.File); err != nil {
		fatal("init logging: %v", err)
	}

	a := &app{cfg: cfg}
	switch cmd {
	case "identity":
		a.cmdIdentity(cmdArgs)
	case "address":
		a.cmdAddress(cmdArgs)
	case "mint":
		a.cmdMint(cmdArgs)
	case "send":
		a.cmdSend(cmdArgs)
	case "receive":
		a.cmdReceive(cmdArgs)
	case "tokens":
		a.cmdTokens(cmdArgs)
	case "pending":
		a.cmdPending(cmdArgs)
	case "nametag":
		a.cmdNametag(cmdArgs)
	case "call":
		a.cmdCall(cmdArgs)
	case "status":
		a.cmdStatus()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", cmd)
		usage()
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintf(os.Stderr, `Usage: xfer-cli [global flags] <command> [flags]

Global flags:
  --datadir <path>    Data directory (default: ~/.xfer)
  --network <net>     mainnet (default) or testnet
  --testnet           Shorthand for --network=testnet
  --ledger <url>      Aggregator JSON-RPC URL (default from xfer.conf)
  --log-level <lvl>   Log level (default: warn)

Identity:
  identity create --name <name>             Create identity from a new mnemonic
  identity import --name <name>             Import identity from an existing mnemonic
  identity list                             List identities
  identity show --name <name> [--account n] Show public key of an account
  address --name <name> --type <hex>        Show receive address for a token type

Tokens:
  mint --name <name> [--type <hex>] [--data <text>] [--amount <n>]
                                            Mint a token and wait for confirmation
  send --name <name> --token <id> --to <address|@tag> [--offline] [--out <file>] [--peer <multiaddr>]
                                            Send a token (online by default)
  receive --name <name> (--in <file> | --listen | --retry)
                                            Finalize a received transfer package
  tokens --name <n> [--json]                List owned tokens
  pending --name <n>                        List outgoing offline packages

Nametags:
  nametag mint --name <n> --tag <tag>       Claim a nametag and print its proxy address
  nametag list --name <n>                   List owned nametags
  nametag address --tag <tag>               Show the proxy address of a nametag
  nametag export --name <n> --tag <tag> [--out <file>]
                                            Write a nametag token as JSON
  nametag import --name <n> --in <file>     Import a nametag token owned by this identity

Other:
  call                                      Run one bridge request read from stdin
  status                                    Show aggregator block height
`)
}

func fatal(format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, "Error: "+format+"\n", args...)
	os.Exit(1)
}
