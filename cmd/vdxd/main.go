package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"vaultdex/config"
	"vaultdex/core"
	"vaultdex/crypto"
	"vaultdex/observability/logging"
	telemetry "vaultdex/observability/otel"
	"vaultdex/rpc"
	"vaultdex/storage"
)

const serviceName = "vdxd"

func main() {
	configFile := flag.String("config", "./config.toml", "Path to the configuration file")
	flag.Parse()

	cfg, err := config.Load(*configFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger := logging.SetupWithOptions(serviceName, cfg.Environment, logging.Options{
		Level: cfg.LogLevel,
		File:  cfg.LogFile,
	})

	if err := run(cfg, logger); err != nil {
		logger.Error("vdxd exited with error", slog.Any("error", err))
		os.Exit(1)
	}
}

func run(cfg *config.Config, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTelemetry, err := telemetry.Init(ctx, telemetry.Config{
		ServiceName: serviceName,
		Environment: cfg.Environment,
		Network:     cfg.NetworkName,
		Program:     cfg.ProgramID,
		Endpoint:    cfg.Telemetry.Endpoint,
		Insecure:    cfg.Telemetry.Insecure,
		Headers:     telemetry.ParseHeaders(cfg.Telemetry.Headers),
		Metrics:     cfg.Telemetry.Metrics,
		Traces:      cfg.Telemetry.Traces,
	})
	if err != nil {
		return fmt.Errorf("init telemetry: %w", err)
	}
	defer func() {
		if err := shutdownTelemetry(context.Background()); err != nil {
			logger.Warn("telemetry shutdown failed", slog.Any("error", err))
		}
	}()

	db, err := openDatabase(cfg)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	program, err := cfg.Program()
	if err != nil {
		return err
	}
	node, err := core.NewNode(db, program)
	if err != nil {
		return fmt.Errorf("create node: %w", err)
	}
	defer node.Close()
	node.SetLogger(logger)

	server, err := rpc.NewServer(node, rpc.ServerConfig{
		AuthToken: cfg.RPC.AuthToken,
		JWTSecret: cfg.RPC.JWTSecret,
		RateLimit: cfg.RPC.RateLimit,
		Burst:     cfg.RPC.Burst,
		Logger:    logger,
	})
	if err != nil {
		return err
	}

	logger.Info("vdxd starting",
		slog.String("network", cfg.NetworkName),
		slog.String("program", crypto.FromArray(program).String()),
		slog.String("backend", cfg.DBBackend),
		slog.String("addr", cfg.ListenAddress))
	if err := server.Serve(ctx, cfg.ListenAddress); err != nil {
		return fmt.Errorf("serve rpc: %w", err)
	}
	logger.Info("vdxd stopped")
	return nil
}

func openDatabase(cfg *config.Config) (storage.Database, error) {
	switch cfg.DBBackend {
	case config.BackendMemory:
		return storage.NewMemDB(), nil
	case config.BackendBolt:
		if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
			return nil, err
		}
		db, err := storage.NewBoltDB(filepath.Join(cfg.DataDir, "state.bolt"), nil)
		if err != nil {
			return nil, err
		}
		return db, nil
	default:
		db, err := storage.NewLevelDB(filepath.Join(cfg.DataDir, "state"))
		if err != nil {
			return nil, err
		}
		return db, nil
	}
}
