package config

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
)

const (
	// EnvRPCToken overrides RPCToken when set.
	EnvRPCToken = "MPA_RPC_TOKEN"
	// EnvEnvironment overrides Env when set.
	EnvEnvironment = "MPA_ENV"
	// EnvOTLPEndpoint and EnvOTLPHeaders override the telemetry exporter
	// target using the standard OpenTelemetry variable names.
	EnvOTLPEndpoint = "OTEL_EXPORTER_OTLP_ENDPOINT"
	EnvOTLPHeaders  = "OTEL_EXPORTER_OTLP_HEADERS"
)

type Config struct {
	RPCAddress      string  `toml:"RPCAddress"`
	DataDir         string  `toml:"DataDir"`
	Database        string  `toml:"Database"`
	DBCacheMB       int     `toml:"DBCacheMB"`
	DBHandles       int     `toml:"DBHandles"`
	IndexPath       string  `toml:"IndexPath"`
	ChainID         uint64  `toml:"ChainID"`
	Env             string  `toml:"Env"`
	LogLevel        string  `toml:"LogLevel"`
	LogFile         string  `toml:"LogFile"`
	RPCToken        string  `toml:"RPCToken"`
	RPCRateLimit    float64 `toml:"RPCRateLimit"`
	RPCRateBurst    int     `toml:"RPCRateBurst"`
	RPCReadTimeout  int     `toml:"RPCReadTimeout"`
	RPCWriteTimeout int     `toml:"RPCWriteTimeout"`
	RPCMaxBodyBytes int64   `toml:"RPCMaxBodyBytes"`
	EventBufferSize int     `toml:"EventBufferSize"`
	Genesis         Genesis   `toml:"genesis"`
	Global          Global    `toml:"global"`
	Telemetry       Telemetry `toml:"telemetry"`
}

// Default returns the configuration written when no file exists.
func Default() *Config {
	return &Config{
		RPCAddress:      "127.0.0.1:8545",
		DataDir:         "./mpa-data",
		Database:        DatabaseLevelDB,
		DBCacheMB:       64,
		DBHandles:       64,
		IndexPath:       "index.db",
		ChainID:         1337,
		Env:             "dev",
		LogLevel:        "info",
		RPCRateLimit:    20,
		RPCRateBurst:    40,
		RPCReadTimeout:  15,
		RPCWriteTimeout: 15,
		RPCMaxBodyBytes: 1 << 20,
		EventBufferSize: 1024,
		Genesis: Genesis{
			Seed:         "mpachain-dev",
			Accounts:     10,
			BalanceEther: 100,
			Timestamp:    1672531200,
		},
		Telemetry: Telemetry{
			Endpoint:    "localhost:4318",
			Insecure:    true,
			SampleRatio: 1,
		},
	}
}

// Load loads the configuration from the given path. A default file is written
// when none exists. Environment overrides are applied after decoding.
func Load(path string) (*Config, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		cfg, err := createDefault(path)
		if err != nil {
			return nil, err
		}
		applyEnv(cfg)
		return cfg, cfg.Validate()
	}

	cfg := Default()
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, err
	}
	applyEnv(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyEnv(cfg *Config) {
	if token := strings.TrimSpace(os.Getenv(EnvRPCToken)); token != "" {
		cfg.RPCToken = token
	}
	if env := strings.TrimSpace(os.Getenv(EnvEnvironment)); env != "" {
		cfg.Env = env
	}
	if endpoint := strings.TrimSpace(os.Getenv(EnvOTLPEndpoint)); endpoint != "" {
		cfg.Telemetry.Endpoint = endpoint
	}
	if headers := strings.TrimSpace(os.Getenv(EnvOTLPHeaders)); headers != "" {
		cfg.Telemetry.Headers = headers
	}
}

// ResolvePath anchors relative paths under DataDir.
func (c *Config) ResolvePath(p string) string {
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(c.DataDir, p)
}

// createDefault creates and saves a default configuration file.
func createDefault(path string) (*Config, error) {
	cfg := Default()
	if err := persist(path, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func persist(path string, cfg *Config) error {
	dir := filepath.Dir(path)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_TRUNC|os.O_CREATE, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()

	return toml.NewEncoder(f).Encode(cfg)
}
