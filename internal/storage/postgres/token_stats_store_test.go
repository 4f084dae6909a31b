package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pump-deck/internal/domain"
	"pump-deck/internal/storage"
)

func creationEvent(mint, name, symbol, creator string, mcap, sol float64) *domain.Event {
	return &domain.Event{
		Kind: domain.KindCreation,
		Creation: &domain.CreationEvent{
			Mint:         mint,
			Name:         name,
			Symbol:       symbol,
			Creator:      creator,
			MarketCapSol: mcap,
			SolAmount:    sol,
			Pool:         "pump",
			ReceivedAt:   time.Now().UnixMilli(),
		},
	}
}

func tradeEvent(mint, side string, sol, mcap float64) *domain.Event {
	return &domain.Event{
		Kind: domain.KindTrade,
		Trade: &domain.TradeEvent{
			Mint:         mint,
			Trader:       "Trader" + mint,
			Side:         side,
			SolAmount:    sol,
			MarketCapSol: mcap,
			Pool:         "pump",
			ReceivedAt:   time.Now().UnixMilli(),
		},
	}
}

func TestTokenStatsStore_UpsertAndGetByMint(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := NewTokenStatsStore(pool)

	require.NoError(t, store.UpsertTokenEvent(ctx, creationEvent("MintA", "Alpha", "ALP", "CreatorA", 30, 0.5)))
	require.NoError(t, store.UpsertTokenEvent(ctx, tradeEvent("MintA", domain.SideBuy, 1.5, 35)))
	require.NoError(t, store.UpsertTokenEvent(ctx, tradeEvent("MintA", domain.SideSell, 0.5, 33)))

	rec, err := store.GetByMint(ctx, "MintA")
	require.NoError(t, err)

	assert.Equal(t, "Alpha", rec.Name)
	assert.Equal(t, "ALP", rec.Symbol)
	assert.Equal(t, "CreatorA", rec.Creator)
	// Creation does not count as a transaction.
	assert.Equal(t, int64(2), rec.TxCount)
	assert.Equal(t, int64(1), rec.BuyCount)
	assert.Equal(t, int64(1), rec.SellCount)
	assert.InDelta(t, 2.5, rec.VolumeTotal, 0.0001)
	assert.InDelta(t, 33, rec.MarketCapSol, 0.0001)

	bucket := domain.BucketKey(time.Now().UTC())
	assert.InDelta(t, 2.5, rec.VolumeBuckets[bucket], 0.0001)
}

func TestTokenStatsStore_GetByMintNotFound(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewTokenStatsStore(pool)
	_, err := store.GetByMint(context.Background(), "missing")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestTokenStatsStore_UpsertPreservesDisplayFields(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := NewTokenStatsStore(pool)

	require.NoError(t, store.UpsertTokenEvent(ctx, creationEvent("MintB", "Beta", "BET", "CreatorB", 30, 0)))
	// A trade carries no name or symbol and a zero market cap.
	require.NoError(t, store.UpsertTokenEvent(ctx, tradeEvent("MintB", domain.SideBuy, 1, 0)))

	rec, err := store.GetByMint(ctx, "MintB")
	require.NoError(t, err)
	assert.Equal(t, "Beta", rec.Name)
	assert.Equal(t, "BET", rec.Symbol)
	assert.InDelta(t, 30, rec.MarketCapSol, 0.0001)
}

func TestTokenStatsStore_WindowSumsOnlyWindowBuckets(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := NewTokenStatsStore(pool)

	base := time.Date(2026, 3, 1, 20, 0, 0, 0, time.UTC)

	// One 1-SOL trade per hour for 13 hours; only the last 12 land in the window.
	for i := 12; i >= 0; i-- {
		at := base.Add(-time.Duration(i) * time.Hour)
		store.Now = func() time.Time { return at }
		require.NoError(t, store.UpsertTokenEvent(ctx, tradeEvent("MintC", domain.SideBuy, 1, 10)))
	}

	store.Now = func() time.Time { return base }
	top, err := store.GetTopByWindow(ctx, 12, storage.SortByVolume, 10)
	require.NoError(t, err)
	require.Len(t, top, 1)

	assert.InDelta(t, 13, top[0].VolumeTotal, 0.0001)

	windowSum := 0.0
	for _, k := range domain.WindowBucketKeys(base, 12) {
		windowSum += top[0].VolumeBuckets[k]
	}
	assert.InDelta(t, 12, windowSum, 0.0001)
}

func TestTokenStatsStore_WindowCutoffExcludesStale(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := NewTokenStatsStore(pool)

	base := time.Date(2026, 3, 1, 20, 0, 0, 0, time.UTC)

	store.Now = func() time.Time { return base.Add(-24 * time.Hour) }
	require.NoError(t, store.UpsertTokenEvent(ctx, tradeEvent("Stale", domain.SideBuy, 5, 10)))

	store.Now = func() time.Time { return base }
	require.NoError(t, store.UpsertTokenEvent(ctx, tradeEvent("Fresh", domain.SideBuy, 1, 10)))

	top, err := store.GetTopByWindow(ctx, 12, storage.SortByVolume, 10)
	require.NoError(t, err)
	require.Len(t, top, 1)
	assert.Equal(t, "Fresh", top[0].Mint)
}

func TestTokenStatsStore_WindowSortByMarketCap(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := NewTokenStatsStore(pool)

	require.NoError(t, store.UpsertTokenEvent(ctx, tradeEvent("Low", domain.SideBuy, 9, 10)))
	require.NoError(t, store.UpsertTokenEvent(ctx, tradeEvent("High", domain.SideBuy, 1, 100)))

	byVolume, err := store.GetTopByWindow(ctx, 12, storage.SortByVolume, 10)
	require.NoError(t, err)
	require.Len(t, byVolume, 2)
	assert.Equal(t, "Low", byVolume[0].Mint)

	byMcap, err := store.GetTopByWindow(ctx, 12, storage.SortByMarketCap, 10)
	require.NoError(t, err)
	require.Len(t, byMcap, 2)
	assert.Equal(t, "High", byMcap[0].Mint)
}

func TestTokenStatsStore_GetCreatorStats(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := NewTokenStatsStore(pool)

	require.NoError(t, store.UpsertTokenEvent(ctx, creationEvent("M1", "One", "ONE", "Dev", 10, 0)))
	require.NoError(t, store.UpsertTokenEvent(ctx, creationEvent("M2", "Two", "TWO", "Dev", 10, 0)))
	require.NoError(t, store.UpsertTokenEvent(ctx, creationEvent("M3", "Three", "THR", "Other", 10, 0)))

	// M2 migrates.
	migrated := tradeEvent("M2", domain.SideBuy, 1, 10)
	migrated.Trade.Pool = domain.PoolMigrated
	require.NoError(t, store.UpsertTokenEvent(ctx, migrated))

	stats, err := store.GetCreatorStats(ctx, "Dev")
	require.NoError(t, err)
	assert.Equal(t, 2, stats.Launched)
	assert.Equal(t, 1, stats.Migrated)
}

func TestTokenStatsStore_GetRecentOrder(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := NewTokenStatsStore(pool)

	base := time.Date(2026, 3, 1, 20, 0, 0, 0, time.UTC)
	for i, mint := range []string{"Old", "Mid", "New"} {
		at := base.Add(time.Duration(i) * time.Minute)
		store.Now = func() time.Time { return at }
		require.NoError(t, store.UpsertTokenEvent(ctx, tradeEvent(mint, domain.SideBuy, 1, 10)))
	}

	recent, err := store.GetRecent(ctx, 2)
	require.NoError(t, err)
	require.Len(t, recent, 2)
	assert.Equal(t, "New", recent[0].Mint)
	assert.Equal(t, "Mid", recent[1].Mint)
}

func TestTokenStatsStore_DegradedPool(t *testing.T) {
	store := NewTokenStatsStore(&Pool{})
	ctx := context.Background()

	assert.NoError(t, store.UpsertTokenEvent(ctx, tradeEvent("MintX", domain.SideBuy, 1, 10)))

	_, err := store.GetByMint(ctx, "MintX")
	assert.ErrorIs(t, err, storage.ErrNotFound)

	recent, err := store.GetRecent(ctx, 10)
	assert.NoError(t, err)
	assert.Empty(t, recent)

	stats, err := store.GetCreatorStats(ctx, "Dev")
	assert.NoError(t, err)
	assert.Equal(t, 0, stats.Launched)
}
