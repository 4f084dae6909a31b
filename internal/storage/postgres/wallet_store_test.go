package postgres

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pump-deck/internal/domain"
	"pump-deck/internal/storage"
	"pump-deck/internal/vault"
)

func testWallet(pub, label string) *domain.Wallet {
	return &domain.Wallet{
		PublicKey:  pub,
		Label:      label,
		PrivateKey: "priv-" + pub,
		APIKey:     "api-" + pub,
	}
}

func TestWalletStore_FirstWalletBecomesActive(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := NewWalletStore(pool, vault.New("test-secret"))

	require.NoError(t, store.Save(ctx, testWallet("W1", "first")))
	require.NoError(t, store.Save(ctx, testWallet("W2", "second")))

	active, err := store.GetActive(ctx)
	require.NoError(t, err)
	assert.Equal(t, "W1", active.PublicKey)
	assert.Equal(t, "priv-W1", active.PrivateKey)
}

func TestWalletStore_PrivateKeyEncryptedAtRest(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := NewWalletStore(pool, vault.New("test-secret"))
	require.NoError(t, store.Save(ctx, testWallet("W1", "first")))

	var stored string
	err := pool.DB().QueryRow(ctx,
		`SELECT private_key FROM wallets WHERE public_key = 'W1'`).Scan(&stored)
	require.NoError(t, err)
	assert.NotEqual(t, "priv-W1", stored)

	w, err := store.Get(ctx, "W1")
	require.NoError(t, err)
	assert.Equal(t, "priv-W1", w.PrivateKey)
}

func TestWalletStore_SetActiveIsExclusive(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := NewWalletStore(pool, vault.New("test-secret"))

	require.NoError(t, store.Save(ctx, testWallet("W1", "first")))
	require.NoError(t, store.Save(ctx, testWallet("W2", "second")))

	require.NoError(t, store.SetActive(ctx, "W2"))

	all, err := store.GetAll(ctx)
	require.NoError(t, err)
	require.Len(t, all, 2)
	for _, w := range all {
		assert.Equal(t, w.PublicKey == "W2", w.Active, "wallet %s", w.PublicKey)
	}

	assert.ErrorIs(t, store.SetActive(ctx, "unknown"), storage.ErrNotFound)
}

func TestWalletStore_DeleteActivePromotesOldest(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := NewWalletStore(pool, vault.New("test-secret"))

	require.NoError(t, store.Save(ctx, testWallet("W1", "first")))
	require.NoError(t, store.Save(ctx, testWallet("W2", "second")))
	require.NoError(t, store.Save(ctx, testWallet("W3", "third")))

	require.NoError(t, store.Delete(ctx, "W1"))

	active, err := store.GetActive(ctx)
	require.NoError(t, err)
	assert.Equal(t, "W2", active.PublicKey)

	// Deleting an inactive wallet leaves the active one alone.
	require.NoError(t, store.Delete(ctx, "W3"))
	active, err = store.GetActive(ctx)
	require.NoError(t, err)
	assert.Equal(t, "W2", active.PublicKey)

	assert.ErrorIs(t, store.Delete(ctx, "missing"), storage.ErrNotFound)
}

func TestWalletStore_UpsertPreservesActiveAndCreatedAt(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := NewWalletStore(pool, vault.New("test-secret"))

	require.NoError(t, store.Save(ctx, testWallet("W1", "first")))
	original, err := store.Get(ctx, "W1")
	require.NoError(t, err)

	relabeled := testWallet("W1", "renamed")
	require.NoError(t, store.Save(ctx, relabeled))

	w, err := store.Get(ctx, "W1")
	require.NoError(t, err)
	assert.Equal(t, "renamed", w.Label)
	assert.True(t, w.Active)
	assert.Equal(t, original.CreatedAt, w.CreatedAt)
}

func TestSettingStore_SaveAndGet(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := NewSettingStore(pool, vault.New("test-secret"))

	require.NoError(t, store.Save(ctx, "slippage", "10", false))
	require.NoError(t, store.Save(ctx, "api_key", "secret-token", true))

	v, err := store.Get(ctx, "slippage", "0")
	require.NoError(t, err)
	assert.Equal(t, "10", v)

	v, err = store.Get(ctx, "api_key", "")
	require.NoError(t, err)
	assert.Equal(t, "secret-token", v)

	// Encrypted value must not sit in clear text.
	var raw string
	require.NoError(t, pool.DB().QueryRow(ctx,
		`SELECT value FROM settings WHERE key = 'api_key'`).Scan(&raw))
	assert.NotEqual(t, "secret-token", raw)

	v, err = store.Get(ctx, "missing", "fallback")
	require.NoError(t, err)
	assert.Equal(t, "fallback", v)
}

func TestSettingStore_RotatedKeyFallsBackToDefault(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	require.NoError(t, NewSettingStore(pool, vault.New("old-secret")).
		Save(ctx, "api_key", "secret-token", true))

	v, err := NewSettingStore(pool, vault.New("new-secret")).
		Get(ctx, "api_key", "fallback")
	require.NoError(t, err)
	assert.Equal(t, "fallback", v)
}
