// Package config handles application configuration for the transfer tools.
//
// Settings are layered: network defaults, then <datadir>/xfer.conf, then
// command-line flags. Nothing here changes protocol behaviour; hash
// algorithms and proof formats are fixed in code.
package config

import (
	"os"
	"path/filepath"
	"runtime"
	"time"
)

// NetworkType identifies mainnet or testnet.
type NetworkType string

const (
	Mainnet NetworkType = "mainnet"
	Testnet NetworkType = "testnet"
)

// Config holds runtime configuration shared by xferd and xfer-cli.
type Config struct {
	// Core
	Network NetworkType `conf:"network"`
	DataDir string      `conf:"datadir"`

	// Commitment ledger the client submits to.
	Ledger LedgerConfig

	// Inclusion polling.
	Poll PollConfig

	// Aggregator daemon JSON-RPC server.
	RPC RPCConfig

	// Aggregator daemon round sealing.
	Aggregator AggregatorConfig

	// Peer hand-off of offline packages.
	Handoff HandoffConfig

	// Logging
	Log LogConfig
}

// LedgerConfig points the client at an aggregator.
type LedgerConfig struct {
	URL     string        `conf:"ledger.url"`
	Timeout time.Duration `conf:"ledger.timeout"`
}

// PollConfig controls how long and how often the client waits for inclusion.
type PollConfig struct {
	Interval time.Duration `conf:"poll.interval"`
	Deadline time.Duration `conf:"poll.deadline"`
}

// RPCConfig holds RPC server settings.
type RPCConfig struct {
	Enabled     bool     `conf:"rpc.enabled"`
	Addr        string   `conf:"rpc.addr"`
	Port        int      `conf:"rpc.port"`
	AllowedIPs  []string `conf:"rpc.allowed"`
	CORSOrigins []string `conf:"rpc.cors"` // Allowed CORS origins ("*" = all).
}

// AggregatorConfig holds settings of the local ledger daemon.
type AggregatorConfig struct {
	RoundInterval time.Duration `conf:"aggregator.round"`
}

// HandoffConfig holds the libp2p listen address used by `xfer-cli receive --listen`.
type HandoffConfig struct {
	ListenAddr string `conf:"handoff.listen"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level string `conf:"log.level"`
	File  string `conf:"log.file"`
	JSON  bool   `conf:"log.json"`
}

// DefaultDataDir returns the platform-specific default data directory.
//
//	Linux:   ~/.xfer
//	macOS:   ~/Library/Application Support/Xfer
//	Windows: %APPDATA%\Xfer
func DefaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".xfer"
	}
	switch runtime.GOOS {
	case "darwin":
		return filepath.Join(home, "Library", "Application Support", "Xfer")
	case "windows":
		appData := os.Getenv("APPDATA")
		if appData != "" {
			return filepath.Join(appData, "Xfer")
		}
		return filepath.Join(home, "AppData", "Roaming", "Xfer")
	default:
		return filepath.Join(home, ".xfer")
	}
}

// NetworkDir returns the network-specific data directory.
func (c *Config) NetworkDir() string {
	return filepath.Join(c.DataDir, string(c.Network))
}

// KeystoreDir returns the identity keystore directory.
func (c *Config) KeystoreDir() string {
	return filepath.Join(c.NetworkDir(), "keystore")
}

// TokensDir returns the owned token database directory.
func (c *Config) TokensDir() string {
	return filepath.Join(c.NetworkDir(), "tokens")
}

// LedgerDir returns the local aggregator database directory.
func (c *Config) LedgerDir() string {
	return filepath.Join(c.NetworkDir(), "ledger")
}

// LogsDir returns the logs directory.
func (c *Config) LogsDir() string {
	return filepath.Join(c.DataDir, "logs")
}

// ConfigFile returns the config file path.
func (c *Config) ConfigFile() string {
	return filepath.Join(c.DataDir, "xfer.conf")
}

// RPCListenAddr returns host:port for the aggregator server.
func (c *Config) RPCListenAddr() string {
	return joinHostPort(c.RPC.Addr, c.RPC.Port)
}
