package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"sort"

	"pump-deck/internal/config"
	"pump-deck/internal/storage"
	chstore "pump-deck/internal/storage/clickhouse"
	pgstore "pump-deck/internal/storage/postgres"
)

func main() {
	cfg := config.FromEnv()

	postgresDSN := flag.String("postgres-dsn", cfg.PostgresDSN, "PostgreSQL connection string")
	clickhouseDSN := flag.String("clickhouse-dsn", cfg.ClickhouseDSN, "ClickHouse DSN (enables --mint hourly breakdown)")
	hours := flag.Int("hours", cfg.WindowHours, "Rolling window size in hours")
	sortBy := flag.String("sort", storage.SortByVolume, "Ranking: volume or market_cap")
	limit := flag.Int("limit", 20, "Number of tokens to print")
	mint := flag.String("mint", "", "Print hourly volume for one mint instead of the ranking")
	creator := flag.String("creator", "", "Print launch/migration counts for a creator wallet")
	flag.Parse()

	ctx := context.Background()

	if *postgresDSN == "" {
		fmt.Fprintln(os.Stderr, "Error: --postgres-dsn is required")
		os.Exit(1)
	}
	if *sortBy != storage.SortByVolume && *sortBy != storage.SortByMarketCap {
		fmt.Fprintf(os.Stderr, "Error: unknown sort %q\n", *sortBy)
		os.Exit(1)
	}

	pool, err := pgstore.NewPool(ctx, *postgresDSN)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error connecting to postgres: %v\n", err)
		os.Exit(1)
	}
	defer pool.Close()

	stats := pgstore.NewTokenStatsStore(pool)

	switch {
	case *creator != "":
		err = printCreator(ctx, stats, *creator)
	case *mint != "":
		err = printHourly(ctx, *clickhouseDSN, *mint, *hours)
	default:
		err = printRanking(ctx, stats, *hours, *sortBy, *limit)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// printRanking prints the top tokens active in the window.
func printRanking(ctx context.Context, stats storage.TokenStatsStore, hours int, sortBy string, limit int) error {
	top, err := stats.GetTopByWindow(ctx, hours, sortBy, limit)
	if err != nil {
		return err
	}

	fmt.Printf("Top %d tokens by %s over the last %dh\n\n", len(top), sortBy, hours)
	fmt.Printf("%-4s %-44s %-12s %12s %12s %8s\n", "#", "MINT", "SYMBOL", "MCAP(SOL)", "VOL(SOL)", "TXS")
	for i, rec := range top {
		fmt.Printf("%-4d %-44s %-12s %12.2f %12.2f %8d\n",
			i+1, rec.Mint, rec.Symbol, rec.MarketCapSol, rec.VolumeTotal, rec.TxCount)
	}
	return nil
}

// printHourly prints the per-hour volume buckets of one mint from the tape.
func printHourly(ctx context.Context, clickhouseDSN, mint string, hours int) error {
	if clickhouseDSN == "" {
		return fmt.Errorf("--clickhouse-dsn is required with --mint")
	}

	conn, err := chstore.NewConn(ctx, clickhouseDSN)
	if err != nil {
		return fmt.Errorf("connect to clickhouse: %w", err)
	}
	defer conn.Close()

	buckets, err := chstore.NewTradeTapeStore(conn).HourlyVolume(ctx, mint, hours)
	if err != nil {
		return err
	}

	keys := make([]string, 0, len(buckets))
	for k := range buckets {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	fmt.Printf("Hourly volume for %s over the last %dh\n\n", mint, hours)
	var total float64
	for _, k := range keys {
		fmt.Printf("%s  %12.4f SOL\n", k, buckets[k])
		total += buckets[k]
	}
	fmt.Printf("\nTotal: %.4f SOL across %d active hours\n", total, len(keys))
	return nil
}

// printCreator prints launch history for one creator wallet.
func printCreator(ctx context.Context, stats storage.TokenStatsStore, creator string) error {
	cs, err := stats.GetCreatorStats(ctx, creator)
	if err != nil {
		return err
	}
	fmt.Printf("Creator %s: %d launched, %d migrated\n", creator, cs.Launched, cs.Migrated)
	return nil
}
