package main

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/stretchr/testify/require"

	"mpachain/config"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.Default()
	cfg.DataDir = t.TempDir()
	cfg.Database = config.DatabaseMemory
	cfg.Genesis.Accounts = 2
	return cfg
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(io.Discard, nil))
}

func TestDaemonServesRPCAndShutsDown(t *testing.T) {
	cfg := testConfig(t)
	d, err := openDaemon(cfg, quietLogger())
	require.NoError(t, err)
	defer d.Close()
	require.NotNil(t, d.index)

	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	base := "http://" + listener.Addr().String()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- d.serve(ctx, listener) }()

	require.Eventually(t, func() bool {
		resp, err := http.Get(base + "/healthz")
		if err != nil {
			return false
		}
		resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, 5*time.Second, 20*time.Millisecond)

	body, _ := json.Marshal(map[string]interface{}{"id": 1, "method": "chain_chainId", "params": []interface{}{}})
	resp, err := http.Post(base+"/rpc", "application/json", bytes.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()
	var out struct {
		Result uint64 `json:"result"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	require.Equal(t, cfg.ChainID, out.Result)

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(15 * time.Second):
		t.Fatal("server did not shut down")
	}
}

func TestDaemonWithoutIndex(t *testing.T) {
	cfg := testConfig(t)
	cfg.IndexPath = ""
	d, err := openDaemon(cfg, quietLogger())
	require.NoError(t, err)
	defer d.Close()
	require.Nil(t, d.index)
	require.Len(t, d.node.DevAccounts(), 2)
}

func TestDaemonReopensLevelDB(t *testing.T) {
	cfg := testConfig(t)
	cfg.Database = config.DatabaseLevelDB
	cfg.IndexPath = filepath.Join(cfg.DataDir, "idx.db")

	d, err := openDaemon(cfg, quietLogger())
	require.NoError(t, err)
	accounts := d.node.DevAccounts()
	d.Close()

	d, err = openDaemon(cfg, quietLogger())
	require.NoError(t, err)
	defer d.Close()
	require.Equal(t, accounts, d.node.DevAccounts())
	require.Equal(t, uint64(0), d.node.GetHeight())
}

func TestServeReturnsWhenCancelledBeforeStart(t *testing.T) {
	for i := 0; i < 20; i++ {
		d, err := openDaemon(testConfig(t), quietLogger())
		require.NoError(t, err)

		listener, err := net.Listen("tcp", "127.0.0.1:0")
		require.NoError(t, err)
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		done := make(chan error, 1)
		go func() { done <- d.serve(ctx, listener) }()
		select {
		case err := <-done:
			require.NoError(t, err)
		case <-time.After(5 * time.Second):
			t.Fatalf("serve did not return after early cancel (iteration %d)", i)
		}
		d.Close()
	}
}

func TestRunReleasesStoresWhenListenFails(t *testing.T) {
	busy, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer busy.Close()

	cfg := testConfig(t)
	cfg.Database = config.DatabaseLevelDB
	cfg.RPCAddress = busy.Addr().String()
	path := filepath.Join(t.TempDir(), "config.toml")
	f, err := os.Create(path)
	require.NoError(t, err)
	require.NoError(t, toml.NewEncoder(f).Encode(cfg))
	require.NoError(t, f.Close())

	require.Equal(t, 1, run(path))

	// The LevelDB lock and the index must have been released.
	d, err := openDaemon(cfg, quietLogger())
	require.NoError(t, err)
	d.Close()
}

func TestTelemetryConfigDefaultsOff(t *testing.T) {
	cfg := config.Default()
	cfg.Telemetry.Headers = "api-key=abc"
	got := telemetryConfig(cfg)
	require.Equal(t, "mpad", got.ServiceName)
	require.False(t, got.Traces)
	require.False(t, got.Metrics)
	require.False(t, got.Enabled())
	require.Equal(t, map[string]string{"api-key": "abc"}, got.Headers)
}
