package config

import (
	"fmt"
	"net/url"
)

// Validate checks runtime config for obvious operator mistakes.
func Validate(cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("config is nil")
	}
	if cfg.Network != Mainnet && cfg.Network != Testnet {
		return fmt.Errorf("network must be %q or %q", Mainnet, Testnet)
	}
	if cfg.RPC.Port < 0 || cfg.RPC.Port > 65535 {
		return fmt.Errorf("rpc.port must be in range [0, 65535]")
	}

	if cfg.Ledger.URL == "" {
		return fmt.Errorf("ledger.url is required")
	}
	u, err := url.Parse(cfg.Ledger.URL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("ledger.url must be an http(s) URL")
	}
	if cfg.Ledger.Timeout <= 0 {
		return fmt.Errorf("ledger.timeout must be positive")
	}

	if cfg.Poll.Interval <= 0 {
		return fmt.Errorf("poll.interval must be positive")
	}
	if cfg.Poll.Deadline < cfg.Poll.Interval {
		return fmt.Errorf("poll.deadline (%s) is shorter than poll.interval (%s)", cfg.Poll.Deadline, cfg.Poll.Interval)
	}

	if cfg.Aggregator.RoundInterval <= 0 {
		return fmt.Errorf("aggregator.round must be positive")
	}

	return nil
}
