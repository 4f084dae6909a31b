package main

import (
	"context"
	"encoding/json"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"pump-deck/internal/config"
	"pump-deck/internal/feed"
	"pump-deck/internal/ingestion"
	"pump-deck/internal/ledger"
	"pump-deck/internal/observability"
	"pump-deck/internal/solana"
	"pump-deck/internal/storage"
	chstore "pump-deck/internal/storage/clickhouse"
	"pump-deck/internal/storage/memory"
	"pump-deck/internal/storage/migrations"
	pgstore "pump-deck/internal/storage/postgres"
	"pump-deck/internal/vault"
	"pump-deck/internal/wallet"
)

func main() {
	cfg := config.FromEnv()

	feedURL := flag.String("feed-url", cfg.FeedURL, "WebSocket event feed endpoint")
	rpcEndpoint := flag.String("rpc-endpoint", cfg.RPCEndpoint, "Solana RPC HTTP endpoint")
	postgresDSN := flag.String("postgres-dsn", cfg.PostgresDSN, "PostgreSQL connection string (empty runs degraded)")
	clickhouseDSN := flag.String("clickhouse-dsn", cfg.ClickhouseDSN, "ClickHouse DSN for the trade tape (empty disables)")
	metricsAddr := flag.String("metrics-addr", cfg.MetricsAddr, "Prometheus metrics HTTP address (empty to disable)")
	capacity := flag.Int("capacity", cfg.LedgerCapacity, "In-memory ledger capacity")
	warmLoad := flag.Int("warm-load", 0, "Tokens to warm-load from storage on startup (0 disables)")
	useMemory := flag.Bool("use-memory", false, "Use in-memory storage instead of PostgreSQL")

	flag.Parse()

	logger := log.New(os.Stdout, "[ingest] ", log.LstdFlags|log.Lshortfile)

	led := ledger.New(*capacity)

	thresholds, err := config.LoadThresholds(cfg.ThresholdsPath)
	if err != nil {
		logger.Fatalf("Load thresholds: %v", err)
	}

	if *metricsAddr != "" {
		go func() {
			mux := http.NewServeMux()
			mux.Handle("/metrics", observability.Handler())
			mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusOK)
				w.Write([]byte("ok"))
			})
			mux.HandleFunc("/tokens", tokensHandler(led, thresholds))
			logger.Printf("Starting metrics server on %s", *metricsAddr)
			if err := http.ListenAndServe(*metricsAddr, mux); err != nil && err != http.ErrServerClosed {
				logger.Printf("Metrics server error: %v", err)
			}
		}()
	}

	ctx, cancel := context.WithCancel(context.Background())

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	done := make(chan error, 1)

	go func() {
		sig := <-sigCh
		logger.Printf("Received signal %v, initiating graceful shutdown...", sig)
		cancel()

		select {
		case sig := <-sigCh:
			logger.Printf("Received second signal %v, forcing immediate shutdown", sig)
			os.Exit(1)
		case <-time.After(30 * time.Second):
			logger.Println("Graceful shutdown timed out after 30s, forcing exit")
			os.Exit(1)
		case <-done:
		}
	}()

	err = run(ctx, logger, cfg, led, *feedURL, *rpcEndpoint, *postgresDSN, *clickhouseDSN, *warmLoad, *useMemory)

	done <- err
	cancel()

	if err != nil && err != context.Canceled {
		logger.Fatalf("Error: %v", err)
	}

	logger.Println("Shutdown complete")
}

// tokenView is the /tokens response row.
type tokenView struct {
	Mint         string  `json:"mint"`
	Name         string  `json:"name"`
	Symbol       string  `json:"symbol"`
	MarketCapSol float64 `json:"marketCapSol"`
	VolumeSol    float64 `json:"volumeSol"`
	TxCount      int64   `json:"txCount"`
	BuyCount     int64   `json:"buyCount"`
	SellCount    int64   `json:"sellCount"`
	Holders      int     `json:"holders"`
	DevSold      bool    `json:"devSold"`
	Pool         string  `json:"pool"`
	CreatedAt    int64   `json:"createdAt"`
}

// tokensHandler serves the current ledger view: thresholds applied, then
// filter/sort/offset/limit from query parameters.
func tokensHandler(led *ledger.Ledger, t *config.Thresholds) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := ledger.Query{
			Filter: r.URL.Query().Get("filter"),
			Sort:   r.URL.Query().Get("sort"),
			Screen: ledger.Screen{
				MinMarketCapSol: t.MinMarketCapSol,
				MinVolumeSol:    t.MinVolumeSol,
				MinHolders:      t.MinHolders,
				MinTxCount:      t.MinTxCount,
				HideDevSold:     t.HideDevSold,
			},
			Limit: 100,
		}
		if v := r.URL.Query().Get("offset"); v != "" {
			if n, err := strconv.Atoi(v); err == nil && n >= 0 {
				q.Offset = n
			}
		}
		if v := r.URL.Query().Get("limit"); v != "" {
			if n, err := strconv.Atoi(v); err == nil && n > 0 {
				q.Limit = n
			}
		}

		entities := led.View(q)
		out := make([]tokenView, 0, len(entities))
		for _, e := range entities {
			out = append(out, tokenView{
				Mint:         e.Mint,
				Name:         e.Name,
				Symbol:       e.Symbol,
				MarketCapSol: e.MarketCapSol,
				VolumeSol:    e.VolumeSol,
				TxCount:      e.TxCount,
				BuyCount:     e.BuyCount,
				SellCount:    e.SellCount,
				Holders:      e.HolderCount(),
				DevSold:      e.DevSold,
				Pool:         e.Pool,
				CreatedAt:    e.CreatedAt,
			})
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(out)
	}
}

func run(ctx context.Context, logger *log.Logger, cfg *config.Config, led *ledger.Ledger, feedURL, rpcEndpoint, postgresDSN, clickhouseDSN string, warmLoad int, useMemory bool) error {
	cipher := vault.New(cfg.VaultSecret)

	var statsStore storage.TokenStatsStore = memory.NewTokenStatsStore()
	var walletStore storage.WalletStore = memory.NewWalletStore(cipher)

	if !useMemory && postgresDSN != "" {
		// A dead database is not fatal; the ledger keeps serving live data.
		pool, err := pgstore.Connect(ctx, postgresDSN, 3, time.Second, logger)
		if err != nil {
			logger.Printf("postgres unavailable, running degraded: %v", err)
		}
		defer pool.Close()

		if err := migrations.RunPostgresMigrations(ctx, pool); err != nil {
			return err
		}

		statsStore = pgstore.NewTokenStatsStore(pool)
		walletStore = pgstore.NewWalletStore(pool, cipher)
	}

	var tapeStore storage.TradeTapeStore
	if clickhouseDSN != "" {
		conn, err := migrations.RunClickhouseMigrations(ctx, clickhouseDSN)
		if err != nil {
			logger.Printf("clickhouse unavailable, trade tape disabled: %v", err)
		} else {
			defer conn.Close()
			tapeStore = chstore.NewTradeTapeStore(conn)
		}
	}

	rpc := solana.NewHTTPClient(rpcEndpoint)
	wallets := wallet.NewManager(walletStore, rpc, wallet.Options{
		CreateURL: cfg.CreateWalletURL,
		Logger:    logger,
	})

	feedClient, err := feed.NewClient(ctx, feedURL, nil, logger)
	if err != nil {
		return err
	}
	defer feedClient.Close()

	runner := ingestion.NewRunner(ingestion.RunnerOptions{
		Feed:            feedClient,
		Ledger:          led,
		Stats:           statsStore,
		Tape:            tapeStore,
		Wallets:         wallets,
		Health:          rpc,
		RefreshInterval: cfg.BalanceRefreshInterval,
		WarmLoadLimit:   warmLoad,
		Logger:          logger,
	})

	logger.Println("Starting live ingestion...")
	return runner.Run(ctx)
}
