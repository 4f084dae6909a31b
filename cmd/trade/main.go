package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"pump-deck/internal/config"
	"pump-deck/internal/engine"
	"pump-deck/internal/solana"
	"pump-deck/internal/storage"
	"pump-deck/internal/storage/migrations"
	pgstore "pump-deck/internal/storage/postgres"
	"pump-deck/internal/vault"
	"pump-deck/internal/wallet"
)

func main() {
	cfg := config.FromEnv()

	postgresDSN := flag.String("postgres-dsn", cfg.PostgresDSN, "PostgreSQL connection string")
	relayURL := flag.String("relay-url", cfg.RelayURL, "Trade-build relay endpoint")
	rpcEndpoint := flag.String("rpc-endpoint", cfg.RPCEndpoint, "Solana RPC HTTP endpoint")

	mint := flag.String("mint", "", "Token mint to trade")
	action := flag.String("action", "", "buy or sell")
	amount := flag.Float64("amount", 0, "Trade size (SOL when --in-sol, token units otherwise)")
	inSol := flag.Bool("in-sol", true, "Amount is denominated in SOL")
	slippage := flag.Float64("slippage", 0, "Slippage percent (0 uses the default)")
	priorityFee := flag.Float64("priority-fee", 0, "Priority fee in SOL (0 uses the default)")
	pool := flag.String("pool", "", "Settlement pool (empty lets the relay pick)")

	listWallets := flag.Bool("list-wallets", false, "List wallets and exit")
	generate := flag.Bool("generate-wallet", false, "Generate a custodial wallet and exit")
	importKey := flag.String("import-key", "", "Import a base58 private key and exit")
	label := flag.String("label", "", "Label for a generated or imported wallet")
	activate := flag.String("activate", "", "Mark the given public key active and exit")

	flag.Parse()

	logger := log.New(os.Stdout, "[trade] ", log.LstdFlags)

	if *postgresDSN == "" {
		fmt.Fprintln(os.Stderr, "Error: --postgres-dsn is required")
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	dbPool, err := pgstore.NewPool(ctx, *postgresDSN)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error connecting to postgres: %v\n", err)
		os.Exit(1)
	}
	defer dbPool.Close()

	if err := migrations.RunPostgresMigrations(ctx, dbPool); err != nil {
		fmt.Fprintf(os.Stderr, "Error running migrations: %v\n", err)
		os.Exit(1)
	}

	walletStore := pgstore.NewWalletStore(dbPool, vault.New(cfg.VaultSecret))
	rpc := solana.NewHTTPClient(*rpcEndpoint)
	manager := wallet.NewManager(walletStore, rpc, wallet.Options{
		CreateURL: cfg.CreateWalletURL,
		Logger:    logger,
	})

	switch {
	case *listWallets:
		err = runList(ctx, manager)
	case *generate:
		err = runGenerate(ctx, manager, *label)
	case *importKey != "":
		err = runImport(ctx, manager, *label, *importKey)
	case *activate != "":
		err = manager.SetActive(ctx, *activate)
	default:
		err = runTrade(ctx, logger, walletStore, rpc, *relayURL, engine.TradeRequest{
			Mint:             *mint,
			Action:           *action,
			Amount:           *amount,
			DenominatedInSol: *inSol,
			Slippage:         *slippage,
			PriorityFee:      *priorityFee,
			Pool:             *pool,
		})
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// runTrade executes one trade and prints the outcome.
func runTrade(ctx context.Context, logger *log.Logger, wallets storage.WalletStore, rpc solana.RPCClient, relayURL string, req engine.TradeRequest) error {
	eng := engine.New(wallets, rpc, engine.Options{
		RelayURL: relayURL,
		Logger:   logger,
	})

	result, err := eng.Execute(ctx, req)
	if err != nil {
		var execErr *engine.ExecutionError
		if errors.As(err, &execErr) {
			return fmt.Errorf("trade failed (%s): %w", execErr.Kind, execErr.Err)
		}
		return err
	}

	fmt.Printf("Trade confirmed\n")
	fmt.Printf("  wallet:    %s\n", result.Wallet)
	fmt.Printf("  signature: %s\n", result.Signature)
	return nil
}

func runList(ctx context.Context, manager *wallet.Manager) error {
	if err := manager.RefreshBalances(ctx); err != nil {
		// Balances are decorative here; list what we have.
		fmt.Fprintf(os.Stderr, "warning: balance refresh failed: %v\n", err)
	}

	wallets, err := manager.List(ctx)
	if err != nil {
		return err
	}
	if len(wallets) == 0 {
		fmt.Println("No wallets stored")
		return nil
	}

	for _, w := range wallets {
		marker := " "
		if w.Active {
			marker = "*"
		}
		fmt.Printf("%s %-44s %-16s %10.4f SOL\n", marker, w.PublicKey, w.Label, w.BalanceSol)
	}
	return nil
}

func runGenerate(ctx context.Context, manager *wallet.Manager, label string) error {
	w, err := manager.Generate(ctx, label)
	if err != nil {
		return err
	}
	fmt.Printf("Generated wallet %s\n", w.PublicKey)
	return nil
}

func runImport(ctx context.Context, manager *wallet.Manager, label, privateKey string) error {
	w, err := manager.Import(ctx, label, privateKey, "")
	if err != nil {
		return err
	}
	fmt.Printf("Imported wallet %s\n", w.PublicKey)
	return nil
}
