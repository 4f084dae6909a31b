package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"pump-deck/internal/domain"
	"pump-deck/internal/observability"
	"pump-deck/internal/storage"
)

// TokenStatsStore implements storage.TokenStatsStore using PostgreSQL.
// Volume buckets live in a JSONB column keyed by hour-truncated UTC keys.
// Every method is no-op-safe against a disconnected pool.
type TokenStatsStore struct {
	pool *Pool

	// Now is the clock used for bucket keys. Overridable in tests.
	Now func() time.Time
}

// NewTokenStatsStore creates a new TokenStatsStore.
func NewTokenStatsStore(pool *Pool) *TokenStatsStore {
	return &TokenStatsStore{pool: pool, Now: time.Now}
}

// Compile-time interface check.
var _ storage.TokenStatsStore = (*TokenStatsStore)(nil)

// UpsertTokenEvent merges a creation or trade event into the per-mint
// record: display fields are last-write-wins, counters and the current hour
// bucket are incremented.
func (s *TokenStatsStore) UpsertTokenEvent(ctx context.Context, ev *domain.Event) error {
	if !s.pool.Connected() {
		return nil
	}

	var (
		mint, name, symbol, creator, pool string
		marketCap, volume                 float64
		txInc, buyInc, sellInc            int64
	)

	switch {
	case ev == nil:
		return storage.ErrInvalidInput
	case ev.Kind == domain.KindCreation && ev.Creation != nil:
		c := ev.Creation
		mint, name, symbol, creator, pool = c.Mint, c.Name, c.Symbol, c.Creator, c.Pool
		marketCap = c.MarketCapSol
		volume = c.SolAmount
	case ev.Kind == domain.KindTrade && ev.Trade != nil:
		t := ev.Trade
		mint, pool = t.Mint, t.Pool
		marketCap = t.MarketCapSol
		volume = t.VolumeSol()
		txInc = 1
		switch t.EffectiveSide() {
		case domain.SideBuy:
			buyInc = 1
		case domain.SideSell:
			sellInc = 1
		}
	default:
		return storage.ErrInvalidInput
	}
	if mint == "" {
		return storage.ErrInvalidInput
	}

	now := s.Now().UTC()
	bucket := domain.BucketKey(now)

	query := `
		INSERT INTO token_stats (
			mint, name, symbol, creator, pool, market_cap_sol,
			tx_count, buy_count, sell_count, volume_total, volume_buckets, last_updated
		) VALUES (
			$1, $2, $3, $4, $5, $6,
			$7, $8, $9, $10,
			CASE WHEN $10::double precision > 0
				THEN jsonb_build_object($11::text, $10::double precision)
				ELSE '{}'::jsonb END,
			$12
		)
		ON CONFLICT (mint) DO UPDATE SET
			name           = CASE WHEN EXCLUDED.name    <> '' THEN EXCLUDED.name    ELSE token_stats.name    END,
			symbol         = CASE WHEN EXCLUDED.symbol  <> '' THEN EXCLUDED.symbol  ELSE token_stats.symbol  END,
			creator        = CASE WHEN EXCLUDED.creator <> '' THEN EXCLUDED.creator ELSE token_stats.creator END,
			pool           = CASE WHEN EXCLUDED.pool    <> '' THEN EXCLUDED.pool    ELSE token_stats.pool    END,
			market_cap_sol = CASE WHEN EXCLUDED.market_cap_sol > 0 THEN EXCLUDED.market_cap_sol ELSE token_stats.market_cap_sol END,
			tx_count       = token_stats.tx_count + $7,
			buy_count      = token_stats.buy_count + $8,
			sell_count     = token_stats.sell_count + $9,
			volume_total   = token_stats.volume_total + $10,
			volume_buckets = CASE WHEN $10::double precision > 0 THEN
				jsonb_set(
					token_stats.volume_buckets,
					ARRAY[$11::text],
					to_jsonb(COALESCE((token_stats.volume_buckets ->> $11)::double precision, 0) + $10)
				)
				ELSE token_stats.volume_buckets END,
			last_updated   = EXCLUDED.last_updated
	`

	start := time.Now()
	_, err := s.pool.DB().Exec(ctx, query,
		mint, name, symbol, creator, pool, marketCap,
		txInc, buyInc, sellInc, volume, bucket, now,
	)
	observability.ObserveDBQuery("postgres", "upsert_token_event", time.Since(start))
	if err != nil {
		return fmt.Errorf("upsert token event: %w", err)
	}
	return nil
}

const tokenStatsColumns = `
	mint, name, symbol, creator, pool, market_cap_sol,
	tx_count, buy_count, sell_count, volume_total, volume_buckets, last_updated
`

// GetByMint retrieves one record. Returns ErrNotFound if not exists, and a
// degraded pool answers ErrNotFound as well.
func (s *TokenStatsStore) GetByMint(ctx context.Context, mint string) (*domain.TokenStats, error) {
	if !s.pool.Connected() {
		return nil, storage.ErrNotFound
	}

	query := `SELECT ` + tokenStatsColumns + ` FROM token_stats WHERE mint = $1`

	row := s.pool.DB().QueryRow(ctx, query, mint)
	rec, err := scanTokenStats(row)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get token stats by mint: %w", err)
	}
	return rec, nil
}

// GetRecent retrieves up to limit records ordered by last_updated descending.
func (s *TokenStatsStore) GetRecent(ctx context.Context, limit int) ([]*domain.TokenStats, error) {
	if !s.pool.Connected() {
		return nil, nil
	}
	if limit <= 0 {
		limit = 200
	}

	query := `SELECT ` + tokenStatsColumns + `
		FROM token_stats
		ORDER BY last_updated DESC
		LIMIT $1`

	rows, err := s.pool.DB().Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("get recent token stats: %w", err)
	}
	defer rows.Close()

	return scanTokenStatsRows(rows)
}

// GetTopByWindow ranks tokens touched in the last hours hours by the
// query-time sum of exactly those hourly buckets, or by market cap. Buckets
// are never pre-summed at write time, so the window slides correctly.
func (s *TokenStatsStore) GetTopByWindow(ctx context.Context, hours int, sortBy string, limit int) ([]*domain.TokenStats, error) {
	if !s.pool.Connected() {
		return nil, nil
	}
	if hours <= 0 {
		hours = 12
	}
	if limit <= 0 {
		limit = 50
	}

	now := s.Now().UTC()
	keys := domain.WindowBucketKeys(now, hours)
	cutoff := now.Add(-time.Duration(hours) * time.Hour)

	order := "w.window_volume DESC"
	if sortBy == storage.SortByMarketCap {
		order = "t.market_cap_sol DESC"
	}

	query := `
		SELECT t.mint, t.name, t.symbol, t.creator, t.pool, t.market_cap_sol,
		       t.tx_count, t.buy_count, t.sell_count, t.volume_total, t.volume_buckets, t.last_updated
		FROM token_stats t,
		LATERAL (
			SELECT COALESCE(SUM((t.volume_buckets ->> k)::double precision), 0) AS window_volume
			FROM unnest($1::text[]) AS k
		) w
		WHERE t.last_updated >= $2
		ORDER BY ` + order + `
		LIMIT $3`

	start := time.Now()
	rows, err := s.pool.DB().Query(ctx, query, keys, cutoff, limit)
	observability.ObserveDBQuery("postgres", "get_top_by_window", time.Since(start))
	if err != nil {
		return nil, fmt.Errorf("get top by window: %w", err)
	}
	defer rows.Close()

	return scanTokenStatsRows(rows)
}

// GetCreatorStats counts launches and migrations for a creator wallet.
func (s *TokenStatsStore) GetCreatorStats(ctx context.Context, creator string) (*domain.CreatorStats, error) {
	if !s.pool.Connected() {
		return &domain.CreatorStats{}, nil
	}

	query := `
		SELECT COUNT(*),
		       COUNT(*) FILTER (WHERE pool = $2)
		FROM token_stats
		WHERE creator = $1`

	stats := &domain.CreatorStats{}
	err := s.pool.DB().QueryRow(ctx, query, creator, domain.PoolMigrated).
		Scan(&stats.Launched, &stats.Migrated)
	if err != nil {
		return nil, fmt.Errorf("get creator stats: %w", err)
	}
	return stats, nil
}

// scanTokenStats scans a single row into a TokenStats.
func scanTokenStats(row pgx.Row) (*domain.TokenStats, error) {
	var rec domain.TokenStats
	var buckets []byte

	err := row.Scan(
		&rec.Mint, &rec.Name, &rec.Symbol, &rec.Creator, &rec.Pool, &rec.MarketCapSol,
		&rec.TxCount, &rec.BuyCount, &rec.SellCount, &rec.VolumeTotal, &buckets, &rec.LastUpdated,
	)
	if err != nil {
		return nil, err
	}

	rec.VolumeBuckets = make(map[string]float64)
	if len(buckets) > 0 {
		if err := json.Unmarshal(buckets, &rec.VolumeBuckets); err != nil {
			return nil, fmt.Errorf("decode volume buckets: %w", err)
		}
	}
	return &rec, nil
}

// scanTokenStatsRows scans multiple rows into a slice of TokenStats.
func scanTokenStatsRows(rows pgx.Rows) ([]*domain.TokenStats, error) {
	var out []*domain.TokenStats

	for rows.Next() {
		rec, err := scanTokenStats(rows)
		if err != nil {
			return nil, fmt.Errorf("scan token stats row: %w", err)
		}
		out = append(out, rec)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate token stats rows: %w", err)
	}
	return out, nil
}
