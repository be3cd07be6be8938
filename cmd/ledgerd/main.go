package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"bridgeledger/config"
	"bridgeledger/core"
	"bridgeledger/observability/logging"
	"bridgeledger/observability/otel"
	"bridgeledger/rpc"
	"bridgeledger/storage"
)

func main() {
	var configPath string
	flag.StringVar(&configPath, "config", "./config.toml", "path to the ledgerd config file")
	flag.Parse()

	if err := run(configPath); err != nil {
		fmt.Fprintf(os.Stderr, "ledgerd: %v\n", err)
		os.Exit(1)
	}
}

func run(configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	logger := logging.Setup("ledgerd", cfg.Environment)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if endpoint := os.Getenv("LEDGER_OTLP_ENDPOINT"); endpoint != "" {
		shutdown, err := otel.Init(ctx, otel.Config{
			ServiceName: "ledgerd",
			Environment: cfg.Environment,
			Endpoint:    endpoint,
			Insecure:    os.Getenv("LEDGER_OTLP_INSECURE") == "true",
			Headers:     otel.ParseHeaders(os.Getenv("LEDGER_OTLP_HEADERS")),
			Metrics:     true,
			Traces:      true,
		})
		if err != nil {
			return fmt.Errorf("init telemetry: %w", err)
		}
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := shutdown(shutdownCtx); err != nil {
				logger.Warn("telemetry shutdown", "err", err)
			}
		}()
	}

	self, err := cfg.LedgerAddress()
	if err != nil {
		return err
	}
	owner, err := cfg.Owner()
	if err != nil {
		return err
	}
	maxSupply, err := cfg.MaxSupply()
	if err != nil {
		return err
	}
	pauseDuration, err := cfg.PauseDuration()
	if err != nil {
		return err
	}
	actors, err := cfg.Actors()
	if err != nil {
		return err
	}

	db, err := openDatabase(cfg.DataDir)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	node := core.NewNode(db, self, maxSupply)

	feed := rpc.NewEventFeed(0)
	node.SetEmitter(feed)

	if err := node.Bootstrap(owner, pauseDuration, nil); err != nil {
		return fmt.Errorf("bootstrap: %w", err)
	}

	server := rpc.NewServer(node, logger, actors, feed, rpc.RateLimit{
		RequestsPerMinute: cfg.RPC.RequestsPerMinute,
		Burst:             cfg.RPC.Burst,
	})

	httpServer := &http.Server{
		Addr:              cfg.ListenAddress,
		Handler:           server.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("ledgerd listening", "addr", cfg.ListenAddress, "symbol", cfg.Token.Symbol)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("http server: %w", err)
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

func openDatabase(dataDir string) (storage.Database, error) {
	if dataDir == ":memory:" {
		return storage.NewMemDB(), nil
	}
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, err
	}
	return storage.NewLevelDB(filepath.Join(dataDir, "ledger"))
}
