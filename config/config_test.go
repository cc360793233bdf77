package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLoadCreatesDefault(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.toml")
	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, uint64(1337), cfg.ChainID)
	require.Equal(t, 10, cfg.Genesis.Accounts)

	_, err = os.Stat(path)
	require.NoError(t, err)

	again, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, cfg.RPCAddress, again.RPCAddress)
}

func TestLoadParsesFileAndEnvOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	contents := `RPCAddress = "0.0.0.0:9000"
Database = "memory"
ChainID = 42
RPCToken = "from-file"

[genesis]
Seed = "custom"
Accounts = 3
BalanceEther = 5

[global.pauses]
MPA = true

[global.quotas.MPACreate]
MaxRequestsPerEpoch = 2
EpochSeconds = 60
`
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o644))
	t.Setenv(EnvRPCToken, "from-env")
	t.Setenv(EnvEnvironment, "ci")

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, "0.0.0.0:9000", cfg.RPCAddress)
	require.Equal(t, uint64(42), cfg.ChainID)
	require.Equal(t, "from-env", cfg.RPCToken)
	require.Equal(t, "ci", cfg.Env)
	require.Equal(t, 3, cfg.Genesis.Accounts)
	require.Equal(t, []string{"mpa"}, cfg.Global.PausedModules())
	require.Equal(t, uint32(2), cfg.Global.Quotas.MPACreate.MaxRequestsPerEpoch)
	// Unset keys keep their defaults.
	require.Equal(t, 1024, cfg.EventBufferSize)
	require.False(t, cfg.Telemetry.Traces)
	require.False(t, cfg.Telemetry.Metrics)
}

func TestTelemetrySectionAndEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	contents := `[telemetry]
Traces = true
SampleRatio = 0.25
Headers = "x=1"
`
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o644))
	t.Setenv(EnvOTLPEndpoint, "collector:4318")

	cfg, err := Load(path)
	require.NoError(t, err)
	require.True(t, cfg.Telemetry.Traces)
	require.False(t, cfg.Telemetry.Metrics)
	require.Equal(t, 0.25, cfg.Telemetry.SampleRatio)
	require.Equal(t, "collector:4318", cfg.Telemetry.Endpoint)
	require.Equal(t, "x=1", cfg.Telemetry.Headers)
	require.True(t, cfg.Telemetry.Insecure)
}

func TestValidateRejectsBadValues(t *testing.T) {
	cases := map[string]func(*Config){
		"empty rpc":      func(c *Config) { c.RPCAddress = "" },
		"bad database":   func(c *Config) { c.Database = "postgres" },
		"zero chain":     func(c *Config) { c.ChainID = 0 },
		"no accounts":    func(c *Config) { c.Genesis.Accounts = 0 },
		"burst missing":  func(c *Config) { c.RPCRateBurst = 0 },
		"quota no epoch": func(c *Config) { c.Global.Quotas.MPACreate.MaxRequestsPerEpoch = 1 },
		"quota value cap": func(c *Config) {
			c.Global.Quotas.MPACreate.MaxValuePerEpoch = 10
			c.Global.Quotas.MPACreate.EpochSeconds = 60
		},
		"telemetry no endpoint": func(c *Config) {
			c.Telemetry.Traces = true
			c.Telemetry.Endpoint = ""
		},
		"telemetry ratio": func(c *Config) { c.Telemetry.SampleRatio = 1.5 },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			cfg := Default()
			mutate(cfg)
			require.Error(t, cfg.Validate())
		})
	}
	require.NoError(t, Default().Validate())
}

func TestResolvePath(t *testing.T) {
	cfg := Default()
	cfg.DataDir = "/var/mpa"
	require.Equal(t, filepath.Join("/var/mpa", "index.db"), cfg.ResolvePath("index.db"))
	require.Equal(t, "/tmp/x.db", cfg.ResolvePath("/tmp/x.db"))
}
