// Package main provides the asgardexd daemon - wallet sessions, hardware
// ledger detection and balances over JSON-RPC.
package main

import (
	"context"
	"flag"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/asgardex/asgardex-mobile-sub001/internal/backend"
	"github.com/asgardex/asgardex-mobile-sub001/internal/balances"
	"github.com/asgardex/asgardex-mobile-sub001/internal/chain"
	"github.com/asgardex/asgardex-mobile-sub001/internal/client"
	"github.com/asgardex/asgardex-mobile-sub001/internal/config"
	"github.com/asgardex/asgardex-mobile-sub001/internal/ledger"
	"github.com/asgardex/asgardex-mobile-sub001/internal/metrics"
	"github.com/asgardex/asgardex-mobile-sub001/internal/rpc"
	"github.com/asgardex/asgardex-mobile-sub001/internal/session"
	"github.com/asgardex/asgardex-mobile-sub001/internal/storage"
	"github.com/asgardex/asgardex-mobile-sub001/internal/wallet"
	"github.com/asgardex/asgardex-mobile-sub001/pkg/logging"
)

var commit = "unknown"

func main() {
	var (
		dataDir     = flag.String("data-dir", "~/.asgardex", "Data directory")
		configFile  = flag.String("config", "", "Config file path (default: <data-dir>/config.yaml)")
		apiAddr     = flag.String("api", "", "JSON-RPC API address, overrides config")
		bridgeURL   = flag.String("bridge", "", "Ledger bridge WebSocket URL, overrides config")
		testnet     = flag.Bool("testnet", false, "Run on testnet (separate network and data)")
		logLevel    = flag.String("log-level", "", "Log level (debug, info, warn, error), overrides config")
		showVersion = flag.Bool("version", false, "Show version and exit")
	)
	flag.Parse()

	// Initial logger, replaced once the config is loaded
	log := logging.New(&logging.Config{
		Level:      "info",
		TimeFormat: time.TimeOnly,
	})
	logging.SetDefault(log)

	if *showVersion {
		log.Infof("asgardexd %s (commit: %s)", rpc.Version, commit)
		os.Exit(0)
	}

	// Testnet keeps its data in a subdirectory
	effectiveDataDir := *dataDir
	if *testnet {
		effectiveDataDir = filepath.Join(*dataDir, "testnet")
	}

	configDir := effectiveDataDir
	if *configFile != "" {
		configDir = filepath.Dir(*configFile)
	}
	cfg, err := config.LoadConfig(configDir)
	if err != nil {
		log.Fatal("Failed to load config", "error", err)
	}

	// CLI flags take precedence over the config file
	cfg.Storage.DataDir = effectiveDataDir
	if *testnet {
		cfg.Network = chain.Testnet
	}
	if *apiAddr != "" {
		cfg.API.Listen = *apiAddr
	}
	if *bridgeURL != "" {
		cfg.Bridge.URL = *bridgeURL
	}
	if *logLevel != "" {
		cfg.Logging.Level = *logLevel
	}
	if err := cfg.Validate(); err != nil {
		log.Fatal("Invalid config", "error", err)
	}

	var logOutput io.Writer = os.Stderr
	if cfg.Logging.File != "" {
		f, err := os.OpenFile(config.ExpandPath(cfg.Logging.File), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0600)
		if err != nil {
			log.Fatal("Failed to open log file", "path", cfg.Logging.File, "error", err)
		}
		defer f.Close()
		logOutput = f
	}
	log = logging.New(&logging.Config{
		Level:      cfg.Logging.Level,
		TimeFormat: time.TimeOnly,
		Output:     logOutput,
	})
	logging.SetDefault(log)

	log.Info("Config loaded", "path", config.ConfigPath(configDir))

	m := metrics.New()

	// Storage
	dataPath := config.ExpandPath(cfg.Storage.DataDir)
	store, err := storage.New(&storage.Config{DataDir: dataPath})
	if err != nil {
		log.Fatal("Failed to initialize storage", "error", err)
	}
	defer store.Close()
	log.Info("Storage initialized", "path", dataPath)

	// Keystore
	walletService, err := wallet.NewService(&wallet.ServiceConfig{
		Store:   store,
		Network: cfg.Network,
	})
	if err != nil {
		log.Fatal("Failed to initialize keystore", "error", err)
	}
	log.Info("Keystore initialized", "network", cfg.Network, "status", walletService.State().Status)

	// Standalone ledger session
	bridge := ledger.NewWSBridge(ledger.WSBridgeConfig{
		URL:            cfg.Bridge.URL,
		RequestTimeout: cfg.Bridge.RequestTimeout,
	})
	defer bridge.Close()

	standalone, err := ledger.NewStandalone(ledger.Config{
		Bridge:        bridge,
		Network:       cfg.Network,
		MaxAttempts:   cfg.Detection.MaxAttempts,
		RetryInterval: cfg.Detection.RetryInterval,
		Timeout:       cfg.Detection.Timeout,
		Metrics:       m,
	})
	if err != nil {
		log.Fatal("Failed to initialize ledger session", "error", err)
	}

	sessions := session.NewManager(walletService, standalone, m)
	defer sessions.Close()

	// Blockchain backends and per-chain clients
	backends, err := backend.NewRegistryFromConfig(cfg.Backends, cfg.Network, cfg.BackendOptions())
	if err != nil {
		log.Fatal("Failed to initialize backends", "error", err)
	}
	defer backends.CloseAll()
	log.Info("Backend registry initialized", "network", cfg.Network, "backends", backends.List())

	clients := client.NewAll(chain.Supported(), cfg.Network, walletService, backends, sessions.Observable())
	defer func() {
		for _, cc := range clients {
			cc.Close()
		}
	}()

	// Balances
	registry := balances.NewRegistry(cfg.Balances.Concurrency)
	aggregators := make([]*balances.Aggregator, 0, len(clients))
	for _, c := range chain.Supported() {
		cc, ok := clients[c]
		if !ok {
			continue
		}
		agg := balances.NewAggregator(balances.Config{
			Chain:   c,
			Network: cfg.Network,
			Active:  cc.Active,
			Session: sessions.Observable(),
			Tokens:  store,
			Metrics: m,
		})
		registry.Register(agg)
		aggregators = append(aggregators, agg)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Live keystore and ledger pipelines keep the balance snapshot current
	registry.Watch(ctx, balances.Params{WalletType: wallet.TypeKeystore})
	registry.Watch(ctx, balances.Params{WalletType: wallet.TypeLedger})

	// RPC server
	rpcServer := rpc.NewServer(rpc.Config{
		Network:  cfg.Network,
		Store:    store,
		Wallet:   walletService,
		Ledger:   standalone,
		Session:  sessions,
		Clients:  clients,
		Balances: registry,
		Metrics:  m,
	})
	if err := rpcServer.Start(cfg.API.Listen); err != nil {
		log.Fatal("Failed to start RPC server", "error", err)
	}

	printBanner(log, cfg, rpcServer.Addr(), dataPath)

	// Status ticker
	go func() {
		ticker := time.NewTicker(60 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				st := sessions.State()
				log.Info("Status", "mode", st.Mode(), "ws_clients", rpcServer.WSHub().ClientCount())
			}
		}
	}()

	// Wait for interrupt signal
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	<-sigCh
	log.Info("Shutting down...")

	cancel()
	if err := rpcServer.Stop(); err != nil {
		log.Error("Error stopping RPC server", "error", err)
	}
	standalone.ExitStandaloneMode()
	for _, agg := range aggregators {
		agg.Wait()
	}

	log.Info("Goodbye!")
}

func printBanner(log *logging.Logger, cfg *config.Config, apiAddr, dataDir string) {
	networkLabel := "mainnet"
	if cfg.IsTestnet() {
		networkLabel = "TESTNET"
	}

	log.Info("")
	log.Info("=================================================")
	log.Infof("  ASGARDEX Wallet Daemon (%s)", networkLabel)
	log.Infof("  Version: %s", rpc.Version)
	log.Info("=================================================")
	log.Info("")
	log.Infof("  API:     http://%s", apiAddr)
	log.Infof("  WS:      ws://%s/ws", apiAddr)
	log.Infof("  Metrics: http://%s/metrics", apiAddr)
	log.Infof("  Bridge:  %s", cfg.Bridge.URL)
	log.Info("")
	log.Infof("  Chains:   %d", len(chain.Supported()))
	log.Infof("  Data dir: %s", dataDir)
	log.Info("")
	log.Info("=================================================")
	log.Info("")
}
