package storage

import (
	"context"

	"pump-deck/internal/domain"
)

// TokenStatsStore provides durable per-mint aggregates with hour-bucketed
// volume. Implementations must be no-op-safe when the backing connection is
// unavailable: writes succeed silently and reads return empty defaults, so
// the ledger can run in a degraded, history-less mode.
type TokenStatsStore interface {
	// UpsertTokenEvent merges a creation or trade event into the per-mint
	// record: top-level counters, the hour bucket for the event's volume,
	// and last-write-wins display fields.
	UpsertTokenEvent(ctx context.Context, ev *domain.Event) error

	// GetByMint retrieves one record. Returns ErrNotFound if absent.
	GetByMint(ctx context.Context, mint string) (*domain.TokenStats, error)

	// GetRecent retrieves up to limit records ordered by last_updated
	// descending, for warm-loading the ledger on startup.
	GetRecent(ctx context.Context, limit int) ([]*domain.TokenStats, error)

	// GetTopByWindow returns the top limit tokens active in the last hours
	// hours, ranked by the query-time sum of those hourly buckets
	// (sortBy "volume") or by market cap (sortBy "market_cap").
	GetTopByWindow(ctx context.Context, hours int, sortBy string, limit int) ([]*domain.TokenStats, error)

	// GetCreatorStats counts tokens launched by creator and the subset
	// whose pool reached the migrated marker.
	GetCreatorStats(ctx context.Context, creator string) (*domain.CreatorStats, error)
}

// Window sort fields accepted by GetTopByWindow.
const (
	SortByVolume    = "volume"
	SortByMarketCap = "market_cap"
)

// SettingStore persists key/value settings, optionally encrypted by the
// vault before storage.
type SettingStore interface {
	// Save upserts a setting. When encrypt is true the value goes through
	// the vault cipher; with no key configured it degrades to clear text.
	Save(ctx context.Context, key, value string, encrypt bool) error

	// Get returns the (decrypted) value, or def when the key is absent or
	// decryption fails.
	Get(ctx context.Context, key, def string) (string, error)
}

// WalletStore persists custodial wallets keyed by public key. Private keys
// are encrypted before storage and decrypted on read; a record whose key no
// longer decrypts is returned with an empty private key.
type WalletStore interface {
	// Save upserts a wallet. The first wallet ever saved becomes active.
	Save(ctx context.Context, w *domain.Wallet) error

	// Get retrieves one wallet. Returns ErrNotFound if absent.
	Get(ctx context.Context, publicKey string) (*domain.Wallet, error)

	// GetAll retrieves every wallet ordered by created_at ascending.
	GetAll(ctx context.Context) ([]*domain.Wallet, error)

	// GetActive returns the active wallet. Returns ErrNotFound when no
	// wallet is active.
	GetActive(ctx context.Context) (*domain.Wallet, error)

	// SetActive marks exactly one wallet active and all others inactive,
	// atomically. Returns ErrNotFound if publicKey is unknown.
	SetActive(ctx context.Context, publicKey string) error

	// Delete removes a wallet. Deleting the active wallet promotes the
	// earliest-created remaining wallet.
	Delete(ctx context.Context, publicKey string) error
}

// TradeTapeStore is an append-only record of raw trades for offline
// analytics. Best-effort: ingestion never depends on it.
type TradeTapeStore interface {
	// AppendBatch appends trades to the tape.
	AppendBatch(ctx context.Context, trades []*domain.TradeEvent) error

	// HourlyVolume returns summed volume per hour bucket for a mint over
	// the last hours hours, keyed by bucket key.
	HourlyVolume(ctx context.Context, mint string, hours int) (map[string]float64, error)
}
