package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"mpachain/config"
	"mpachain/core"
	"mpachain/core/genesis"
	"mpachain/indexer"
	nativecommon "mpachain/native/common"
	"mpachain/observability/logging"
	telemetry "mpachain/observability/otel"
	"mpachain/rpc"
	"mpachain/storage"
)

const shutdownTimeout = 10 * time.Second

func main() {
	configFile := flag.String("config", "./config.toml", "Path to the configuration file")
	flag.Parse()
	os.Exit(run(*configFile))
}

// run returns the process exit code so deferred cleanup always executes.
func run(configFile string) int {
	cfg, err := config.Load(configFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		return 1
	}

	logger := logging.SetupWithOptions(logging.Options{
		Service:    "mpad",
		Env:        cfg.Env,
		Level:      cfg.LogLevel,
		File:       cfg.ResolvePath(cfg.LogFile),
		MaxSizeMB:  100,
		MaxBackups: 5,
		MaxAgeDays: 30,
	})

	shutdownTelemetry, err := telemetry.Init(context.Background(), telemetryConfig(cfg))
	if err != nil {
		logger.Error("Failed to init telemetry", slog.Any("error", err))
		return 1
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := shutdownTelemetry(ctx); err != nil {
			logger.Warn("Telemetry shutdown failed", slog.Any("error", err))
		}
	}()

	d, err := openDaemon(cfg, logger)
	if err != nil {
		logger.Error("Failed to start node", slog.Any("error", err))
		return 1
	}
	defer d.Close()

	listener, err := net.Listen("tcp", cfg.RPCAddress)
	if err != nil {
		logger.Error("Failed to bind RPC listener", slog.String("addr", cfg.RPCAddress), slog.Any("error", err))
		return 1
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := d.serve(ctx, listener); err != nil {
		logger.Error("RPC server stopped", slog.Any("error", err))
		return 1
	}
	logger.Info("Shutdown complete")
	return 0
}

func telemetryConfig(cfg *config.Config) telemetry.Config {
	return telemetry.Config{
		ServiceName: "mpad",
		Environment: cfg.Env,
		Endpoint:    cfg.Telemetry.Endpoint,
		Insecure:    cfg.Telemetry.Insecure,
		Headers:     telemetry.ParseHeaders(cfg.Telemetry.Headers),
		Metrics:     cfg.Telemetry.Metrics,
		Traces:      cfg.Telemetry.Traces,
		SampleRatio: cfg.Telemetry.SampleRatio,
	}
}

// daemon owns the long-lived handles opened from a configuration.
type daemon struct {
	db     storage.Database
	node   *core.Node
	index  *indexer.Indexer
	server *rpc.Server
	logger *slog.Logger
}

func openDaemon(cfg *config.Config, logger *slog.Logger) (*daemon, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}

	db, err := openDatabase(cfg)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	d := &daemon{db: db, logger: logger}

	q := cfg.Global.Quotas.MPACreate
	node, err := core.NewNode(db, core.Options{
		ChainID: cfg.ChainID,
		Genesis: genesis.Spec{
			ChainID:      cfg.ChainID,
			Seed:         cfg.Genesis.Seed,
			Accounts:     cfg.Genesis.Accounts,
			BalanceEther: cfg.Genesis.BalanceEther,
			Timestamp:    cfg.Genesis.Timestamp,
		},
		Pauses: nativecommon.NewPauseSet(cfg.Global.PausedModules()...),
		CreateQuota: nativecommon.Quota{
			MaxRequestsPerEpoch: q.MaxRequestsPerEpoch,
			EpochSeconds:        q.EpochSeconds,
		},
		EventBufferSize: cfg.EventBufferSize,
		Logger:          logger,
	})
	if err != nil {
		d.Close()
		return nil, fmt.Errorf("create node: %w", err)
	}
	d.node = node

	serverCfg := rpc.ServerConfig{
		AuthToken:    cfg.RPCToken,
		RateLimit:    cfg.RPCRateLimit,
		RateBurst:    cfg.RPCRateBurst,
		MaxBodyBytes: cfg.RPCMaxBodyBytes,
		ReadTimeout:  time.Duration(cfg.RPCReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.RPCWriteTimeout) * time.Second,
		Logger:       logger,
	}
	if path := cfg.ResolvePath(strings.TrimSpace(cfg.IndexPath)); path != "" {
		idx, err := indexer.Open(path)
		if err != nil {
			d.Close()
			return nil, fmt.Errorf("open index: %w", err)
		}
		d.index = idx
		node.AddReceiptSink(idx)
		serverCfg.Index = idx
	}
	d.server = rpc.NewServer(node, serverCfg)

	logger.Info("Node configured",
		slog.Uint64("chain_id", node.ChainID()),
		slog.String("database", cfg.Database),
		slog.String("data_dir", cfg.DataDir),
		slog.Bool("indexer", d.index != nil),
		slog.Any("paused", cfg.Global.PausedModules()),
		logging.MaskField("rpc_token", cfg.RPCToken))
	return d, nil
}

func openDatabase(cfg *config.Config) (storage.Database, error) {
	if strings.EqualFold(cfg.Database, config.DatabaseMemory) {
		return storage.NewMemDB(), nil
	}
	return storage.NewLevelDBWithOptions(filepath.Join(cfg.DataDir, "chain"), storage.LevelDBOptions{
		CacheMB: cfg.DBCacheMB,
		Handles: cfg.DBHandles,
	})
}

// serve runs the RPC server on listener until ctx is cancelled.
func (d *daemon) serve(ctx context.Context, listener net.Listener) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- d.server.Serve(listener)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := d.server.Shutdown(shutdownCtx); err != nil && !errors.Is(err, context.Canceled) {
		d.logger.Warn("Graceful shutdown failed", slog.Any("error", err))
	}
	return <-errCh
}

func (d *daemon) Close() {
	if d.index != nil {
		if err := d.index.Close(); err != nil {
			d.logger.Warn("Failed to close index", slog.Any("error", err))
		}
		d.index = nil
	}
	if d.db != nil {
		d.db.Close()
		d.db = nil
	}
}
