package clickhouse

import (
	"context"
	"fmt"
	"time"

	"pump-deck/internal/domain"
	"pump-deck/internal/observability"
	"pump-deck/internal/storage"
)

// TradeTapeStore implements storage.TradeTapeStore using ClickHouse. The tape
// is best-effort: a nil connection turns every method into a no-op so
// ingestion keeps running without the analytics backend.
type TradeTapeStore struct {
	conn *Conn
}

// NewTradeTapeStore creates a new TradeTapeStore.
func NewTradeTapeStore(conn *Conn) *TradeTapeStore {
	return &TradeTapeStore{conn: conn}
}

// Compile-time interface check.
var _ storage.TradeTapeStore = (*TradeTapeStore)(nil)

// AppendBatch appends trades to the tape.
func (s *TradeTapeStore) AppendBatch(ctx context.Context, trades []*domain.TradeEvent) error {
	if s.conn == nil || len(trades) == 0 {
		return nil
	}

	batch, err := s.conn.PrepareBatch(ctx, `
		INSERT INTO trade_tape (
			mint, trader, side, sol_amount, token_amount, market_cap_sol, pool, received_at
		)
	`)
	if err != nil {
		return fmt.Errorf("prepare batch: %w", err)
	}

	for _, t := range trades {
		err = batch.Append(
			t.Mint, t.Trader, t.EffectiveSide(),
			t.SolAmount, t.TokenAmount, t.MarketCapSol, t.Pool,
			time.UnixMilli(t.ReceivedAt).UTC(),
		)
		if err != nil {
			return fmt.Errorf("append to batch: %w", err)
		}
	}

	start := time.Now()
	if err := batch.Send(); err != nil {
		return fmt.Errorf("send batch: %w", err)
	}
	observability.ObserveDBQuery("clickhouse", "append_trade_tape", time.Since(start))

	return nil
}

// HourlyVolume returns summed volume per hour bucket for a mint over the last
// hours hours, keyed like 2006-01-02T15 in UTC. Migrated-pool trades with no
// SOL leg fall back to token_amount priced at market cap over total supply.
func (s *TradeTapeStore) HourlyVolume(ctx context.Context, mint string, hours int) (map[string]float64, error) {
	if s.conn == nil {
		return map[string]float64{}, nil
	}
	if mint == "" || hours <= 0 {
		return nil, storage.ErrInvalidInput
	}

	query := `
		SELECT
			formatDateTime(toStartOfHour(received_at), '%Y-%m-%dT%H', 'UTC') AS bucket,
			sum(if(sol_amount > 0, sol_amount,
				if(pool = ?, token_amount * market_cap_sol / ?, 0))) AS volume
		FROM trade_tape
		WHERE mint = ? AND received_at >= now() - INTERVAL ? HOUR
		GROUP BY bucket
	`

	rows, err := s.conn.Query(ctx, query,
		domain.PoolMigrated, float64(domain.TotalSupply), mint, int64(hours))
	if err != nil {
		return nil, fmt.Errorf("query hourly volume: %w", err)
	}
	defer rows.Close()

	out := make(map[string]float64)
	for rows.Next() {
		var bucket string
		var volume float64
		if err := rows.Scan(&bucket, &volume); err != nil {
			return nil, fmt.Errorf("scan hourly volume row: %w", err)
		}
		out[bucket] = volume
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate hourly volume rows: %w", err)
	}
	return out, nil
}
