package config

import "time"

// DefaultMainnet returns the default configuration for mainnet.
func DefaultMainnet() *Config {
	return &Config{
		Network: Mainnet,
		DataDir: DefaultDataDir(),
		Ledger: LedgerConfig{
			URL:     "http://127.0.0.1:3000",
			Timeout: 10 * time.Second,
		},
		Poll: PollConfig{
			Interval: time.Second,
			Deadline: 60 * time.Second,
		},
		RPC: RPCConfig{
			Enabled:    true,
			Addr:       "127.0.0.1",
			Port:       3000,
			AllowedIPs: []string{"127.0.0.1"},
		},
		Aggregator: AggregatorConfig{
			RoundInterval: time.Second,
		},
		Handoff: HandoffConfig{
			ListenAddr: "/ip4/0.0.0.0/tcp/4040",
		},
		Log: LogConfig{
			Level: "info",
			JSON:  false,
		},
	}
}

// DefaultTestnet returns the default configuration for testnet.
func DefaultTestnet() *Config {
	cfg := DefaultMainnet()
	cfg.Network = Testnet
	cfg.Ledger.URL = "http://127.0.0.1:3100"
	cfg.RPC.Port = 3100
	cfg.Handoff.ListenAddr = "/ip4/0.0.0.0/tcp/4140"
	return cfg
}

// Default returns the default configuration for the given network.
func Default(network NetworkType) *Config {
	switch network {
	case Testnet:
		return DefaultTestnet()
	default:
		return DefaultMainnet()
	}
}
