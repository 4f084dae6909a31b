package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"pump-deck/internal/domain"
	"pump-deck/internal/storage"
)

// TokenStatsStore is an in-memory implementation of storage.TokenStatsStore.
// Used for tests and for degraded mode when Postgres is unreachable.
type TokenStatsStore struct {
	mu     sync.RWMutex
	byMint map[string]*domain.TokenStats

	// Now is the clock used for bucket keys and window queries.
	// Overridable in tests.
	Now func() time.Time
}

// NewTokenStatsStore creates a new in-memory token stats store.
func NewTokenStatsStore() *TokenStatsStore {
	return &TokenStatsStore{
		byMint: make(map[string]*domain.TokenStats),
		Now:    time.Now,
	}
}

// Compile-time interface check.
var _ storage.TokenStatsStore = (*TokenStatsStore)(nil)

// UpsertTokenEvent merges a creation or trade event into the per-mint record.
func (s *TokenStatsStore) UpsertTokenEvent(_ context.Context, ev *domain.Event) error {
	mint, ok := eventMint(ev)
	if !ok {
		return storage.ErrInvalidInput
	}

	now := s.Now()

	s.mu.Lock()
	defer s.mu.Unlock()

	rec, exists := s.byMint[mint]
	if !exists {
		rec = &domain.TokenStats{
			Mint:          mint,
			VolumeBuckets: make(map[string]float64),
		}
		s.byMint[mint] = rec
	}

	applyEvent(rec, ev, now)
	return nil
}

// GetByMint retrieves one record. Returns ErrNotFound if absent.
func (s *TokenStatsStore) GetByMint(_ context.Context, mint string) (*domain.TokenStats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, exists := s.byMint[mint]
	if !exists {
		return nil, storage.ErrNotFound
	}
	return copyStats(rec), nil
}

// GetRecent retrieves up to limit records ordered by last_updated descending.
func (s *TokenStatsStore) GetRecent(_ context.Context, limit int) ([]*domain.TokenStats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*domain.TokenStats, 0, len(s.byMint))
	for _, rec := range s.byMint {
		out = append(out, copyStats(rec))
	}

	sort.Slice(out, func(i, j int) bool {
		return out[i].LastUpdated.After(out[j].LastUpdated)
	})

	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// GetTopByWindow ranks tokens active in the last hours hours by the sum of
// exactly those hourly buckets, or by market cap. Buckets are never
// pre-summed; the window slides as old buckets age out.
func (s *TokenStatsStore) GetTopByWindow(_ context.Context, hours int, sortBy string, limit int) ([]*domain.TokenStats, error) {
	now := s.Now()
	keys := domain.WindowBucketKeys(now, hours)
	cutoff := now.Add(-time.Duration(hours) * time.Hour)

	s.mu.RLock()
	out := make([]*domain.TokenStats, 0, len(s.byMint))
	windowVolume := make(map[string]float64)
	for _, rec := range s.byMint {
		if rec.LastUpdated.Before(cutoff) {
			continue
		}
		var sum float64
		for _, k := range keys {
			sum += rec.VolumeBuckets[k]
		}
		windowVolume[rec.Mint] = sum
		out = append(out, copyStats(rec))
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if sortBy == storage.SortByMarketCap {
			return out[i].MarketCapSol > out[j].MarketCapSol
		}
		return windowVolume[out[i].Mint] > windowVolume[out[j].Mint]
	})

	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// GetCreatorStats counts launches and migrations for a creator wallet.
func (s *TokenStatsStore) GetCreatorStats(_ context.Context, creator string) (*domain.CreatorStats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := &domain.CreatorStats{}
	for _, rec := range s.byMint {
		if rec.Creator != creator {
			continue
		}
		stats.Launched++
		if rec.Pool == domain.PoolMigrated {
			stats.Migrated++
		}
	}
	return stats, nil
}

// eventMint extracts the mint from either variant.
func eventMint(ev *domain.Event) (string, bool) {
	switch {
	case ev == nil:
		return "", false
	case ev.Kind == domain.KindCreation && ev.Creation != nil && ev.Creation.Mint != "":
		return ev.Creation.Mint, true
	case ev.Kind == domain.KindTrade && ev.Trade != nil && ev.Trade.Mint != "":
		return ev.Trade.Mint, true
	}
	return "", false
}

// applyEvent merges one event into a stats record. Shared by upsert paths.
func applyEvent(rec *domain.TokenStats, ev *domain.Event, now time.Time) {
	rec.LastUpdated = now

	if ev.Kind == domain.KindCreation {
		c := ev.Creation
		rec.Name = c.Name
		rec.Symbol = c.Symbol
		rec.Creator = c.Creator
		if c.Pool != "" {
			rec.Pool = c.Pool
		}
		if c.MarketCapSol > 0 {
			rec.MarketCapSol = c.MarketCapSol
		}
		if c.SolAmount > 0 {
			bucket := domain.BucketKey(now)
			rec.VolumeBuckets[bucket] += c.SolAmount
			rec.VolumeTotal += c.SolAmount
		}
		return
	}

	t := ev.Trade
	rec.TxCount++
	switch t.EffectiveSide() {
	case domain.SideBuy:
		rec.BuyCount++
	case domain.SideSell:
		rec.SellCount++
	}
	if t.MarketCapSol > 0 {
		rec.MarketCapSol = t.MarketCapSol
	}
	if t.Pool != "" {
		rec.Pool = t.Pool
	}
	if vol := t.VolumeSol(); vol > 0 {
		bucket := domain.BucketKey(now)
		rec.VolumeBuckets[bucket] += vol
		rec.VolumeTotal += vol
	}
}

// copyStats returns a deep copy safe to hand to callers.
func copyStats(rec *domain.TokenStats) *domain.TokenStats {
	out := *rec
	out.VolumeBuckets = make(map[string]float64, len(rec.VolumeBuckets))
	for k, v := range rec.VolumeBuckets {
		out.VolumeBuckets[k] = v
	}
	return &out
}
