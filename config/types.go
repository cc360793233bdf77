package config

// Genesis describes the development accounts funded in block zero.
type Genesis struct {
	Seed         string `toml:"Seed"`
	Accounts     int    `toml:"Accounts"`
	BalanceEther uint64 `toml:"BalanceEther"`
	Timestamp    int64  `toml:"Timestamp"`
}

// Pauses toggles modules off without restarting with a different binary.
type Pauses struct {
	MPA bool `toml:"MPA"`
}

// Quota defines rate limits for module interactions on a per-address basis.
type Quota struct {
	MaxRequestsPerEpoch uint32 `toml:"MaxRequestsPerEpoch"`
	MaxValuePerEpoch    uint64 `toml:"MaxValuePerEpoch"`
	EpochSeconds        uint32 `toml:"EpochSeconds"`
}

// Quotas groups quotas for each module.
type Quotas struct {
	MPACreate Quota `toml:"MPACreate"`
}

// Telemetry configures the OTLP exporters. Both are off by default; the
// Prometheus /metrics endpoint is always served.
type Telemetry struct {
	Endpoint    string  `toml:"Endpoint"`
	Insecure    bool    `toml:"Insecure"`
	Headers     string  `toml:"Headers"`
	Traces      bool    `toml:"Traces"`
	Metrics     bool    `toml:"Metrics"`
	SampleRatio float64 `toml:"SampleRatio"`
}

// Global bundles the runtime policy enforced by the native modules.
type Global struct {
	Pauses Pauses `toml:"pauses"`
	Quotas Quotas `toml:"quotas"`
}

// PausedModules lists the module names whose pause flag is set.
func (g Global) PausedModules() []string {
	var out []string
	if g.Pauses.MPA {
		out = append(out, "mpa")
	}
	return out
}
