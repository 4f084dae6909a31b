package domain

import "time"

// TokenEntity is the in-process aggregate for one mint, maintained by the
// ledger. Counters only ever grow; MarketCapSol is last-write-wins in feed
// arrival order.
type TokenEntity struct {
	Mint    string
	Name    string
	Symbol  string
	URI     string
	Creator string
	Pool    string

	CreatedAt    int64 // Unix ms, insertion time into the ledger
	LastUpdated  int64 // Unix ms, last applied event
	MarketCapSol float64

	TxCount   int64
	BuyCount  int64
	SellCount int64
	VolumeSol float64

	// Traders is the distinct-trader set, a proxy for holder count.
	// Never shrinks while the entity lives in the ledger.
	Traders map[string]struct{}

	DevSold       bool
	CreatorBuySol float64 // initial creator buy from the creation event
}

// HolderCount returns the size of the distinct-trader set.
func (t *TokenEntity) HolderCount() int {
	return len(t.Traders)
}

// TokenStats is the persisted per-mint record. Volume is additionally kept
// in hour-truncated buckets so rolling windows can be summed at query time.
type TokenStats struct {
	Mint         string
	Name         string
	Symbol       string
	Creator      string
	Pool         string
	MarketCapSol float64

	TxCount     int64
	BuyCount    int64
	SellCount   int64
	VolumeTotal float64

	// VolumeBuckets maps bucket keys (see BucketKey) to summed volume.
	VolumeBuckets map[string]float64

	LastUpdated time.Time
}

// BucketKey formats t as the hour-truncated bucket key, e.g. "2026-08-25T14".
// Buckets are always keyed in UTC.
func BucketKey(t time.Time) string {
	return t.UTC().Format("2006-01-02T15")
}

// WindowBucketKeys returns the bucket keys covering the last hours hours
// ending at now, newest first. hours <= 0 yields nil.
func WindowBucketKeys(now time.Time, hours int) []string {
	if hours <= 0 {
		return nil
	}
	keys := make([]string, hours)
	for i := 0; i < hours; i++ {
		keys[i] = BucketKey(now.Add(-time.Duration(i) * time.Hour))
	}
	return keys
}

// CreatorStats summarizes tokens launched by one wallet.
type CreatorStats struct {
	Launched int
	Migrated int // subset whose pool reached the migrated marker
}
