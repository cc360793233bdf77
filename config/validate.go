package config

import (
	"fmt"
	"strings"
)

const (
	DatabaseLevelDB = "leveldb"
	DatabaseMemory  = "memory"

	// MaxGenesisAccounts bounds the number of funded development accounts.
	MaxGenesisAccounts = 256
)

// Validate rejects configurations the node cannot start with.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.RPCAddress) == "" {
		return fmt.Errorf("config: RPCAddress must not be empty")
	}
	switch strings.ToLower(strings.TrimSpace(c.Database)) {
	case DatabaseLevelDB:
		if strings.TrimSpace(c.DataDir) == "" {
			return fmt.Errorf("config: DataDir required for leveldb")
		}
	case DatabaseMemory:
	default:
		return fmt.Errorf("config: unsupported Database %q", c.Database)
	}
	if c.ChainID == 0 {
		return fmt.Errorf("config: ChainID must be positive")
	}
	if c.RPCRateLimit < 0 || c.RPCRateBurst < 0 {
		return fmt.Errorf("config: rate limit values must be non-negative")
	}
	if c.RPCRateLimit > 0 && c.RPCRateBurst == 0 {
		return fmt.Errorf("config: RPCRateBurst must be positive when RPCRateLimit is set")
	}
	if c.EventBufferSize < 0 {
		return fmt.Errorf("config: EventBufferSize must be non-negative")
	}
	if c.Genesis.Accounts <= 0 || c.Genesis.Accounts > MaxGenesisAccounts {
		return fmt.Errorf("config: genesis.Accounts must be within 1..%d", MaxGenesisAccounts)
	}
	if strings.TrimSpace(c.Genesis.Seed) == "" {
		return fmt.Errorf("config: genesis.Seed must not be empty")
	}
	q := c.Global.Quotas.MPACreate
	if q.MaxValuePerEpoch > 0 {
		// Creating an agreement moves no value, so only request counts apply.
		return fmt.Errorf("config: global.quotas.MPACreate.MaxValuePerEpoch is not supported")
	}
	if q.MaxRequestsPerEpoch > 0 && q.EpochSeconds == 0 {
		return fmt.Errorf("config: global.quotas.MPACreate requires EpochSeconds")
	}
	t := c.Telemetry
	if (t.Traces || t.Metrics) && strings.TrimSpace(t.Endpoint) == "" {
		return fmt.Errorf("config: telemetry.Endpoint required when exporters are enabled")
	}
	if t.SampleRatio < 0 || t.SampleRatio > 1 {
		return fmt.Errorf("config: telemetry.SampleRatio must be within 0..1")
	}
	return nil
}
