package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"pump-deck/internal/domain"
	"pump-deck/internal/storage"
	"pump-deck/internal/vault"
)

func TestWalletStore_SaveEncryptsPrivateKey(t *testing.T) {
	cipher := vault.New("vault-secret")
	store := NewWalletStore(cipher)
	ctx := context.Background()

	err := store.Save(ctx, &domain.Wallet{
		PublicKey:  "W1",
		PrivateKey: "priv-key-material",
		Label:      "main",
	})
	if err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	// Raw stored value must not be the plaintext.
	raw := store.byPubkey["W1"]
	if raw.PrivateKey == "priv-key-material" {
		t.Error("private key stored in clear despite configured vault key")
	}

	got, err := store.Get(ctx, "W1")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got.PrivateKey != "priv-key-material" {
		t.Errorf("decrypted key mismatch: got %q", got.PrivateKey)
	}
}

func TestWalletStore_FirstWalletBecomesActive(t *testing.T) {
	store := NewWalletStore(nil)
	ctx := context.Background()

	store.Save(ctx, &domain.Wallet{PublicKey: "W1", PrivateKey: "k1"})
	store.Save(ctx, &domain.Wallet{PublicKey: "W2", PrivateKey: "k2"})

	active, err := store.GetActive(ctx)
	if err != nil {
		t.Fatalf("GetActive failed: %v", err)
	}
	if active.PublicKey != "W1" {
		t.Errorf("first saved wallet should be active, got %s", active.PublicKey)
	}
}

func TestWalletStore_SetActiveMutualExclusion(t *testing.T) {
	store := NewWalletStore(nil)
	ctx := context.Background()

	store.Save(ctx, &domain.Wallet{PublicKey: "W1", PrivateKey: "k1"})
	store.Save(ctx, &domain.Wallet{PublicKey: "W2", PrivateKey: "k2"})

	if err := store.SetActive(ctx, "W1"); err != nil {
		t.Fatalf("SetActive W1 failed: %v", err)
	}
	if err := store.SetActive(ctx, "W2"); err != nil {
		t.Fatalf("SetActive W2 failed: %v", err)
	}

	all, _ := store.GetAll(ctx)
	activeCount := 0
	for _, w := range all {
		if w.Active {
			activeCount++
			if w.PublicKey != "W2" {
				t.Errorf("wrong active wallet: %s", w.PublicKey)
			}
		}
	}
	if activeCount != 1 {
		t.Errorf("exactly one wallet must be active, got %d", activeCount)
	}
}

func TestWalletStore_SetActiveUnknown(t *testing.T) {
	store := NewWalletStore(nil)

	err := store.SetActive(context.Background(), "missing")
	if !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestWalletStore_DeleteActivePromotesOldest(t *testing.T) {
	store := NewWalletStore(nil)
	ctx := context.Background()

	base := time.Date(2026, 8, 25, 9, 0, 0, 0, time.UTC)
	for i, pub := range []string{"W1", "W2", "W3"} {
		at := base.Add(time.Duration(i) * time.Minute)
		store.Now = func() time.Time { return at }
		store.Save(ctx, &domain.Wallet{PublicKey: pub, PrivateKey: "k"})
	}

	if err := store.Delete(ctx, "W1"); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}

	active, err := store.GetActive(ctx)
	if err != nil {
		t.Fatalf("no active wallet after deleting active: %v", err)
	}
	if active.PublicKey != "W2" {
		t.Errorf("earliest remaining wallet should be promoted, got %s", active.PublicKey)
	}
}

func TestWalletStore_DeleteInactiveKeepsActive(t *testing.T) {
	store := NewWalletStore(nil)
	ctx := context.Background()

	store.Save(ctx, &domain.Wallet{PublicKey: "W1", PrivateKey: "k"})
	store.Save(ctx, &domain.Wallet{PublicKey: "W2", PrivateKey: "k"})

	store.Delete(ctx, "W2")

	active, _ := store.GetActive(ctx)
	if active == nil || active.PublicKey != "W1" {
		t.Errorf("active wallet should be untouched by deleting an inactive one")
	}
}

func TestWalletStore_UpsertPreservesActiveAndCreatedAt(t *testing.T) {
	store := NewWalletStore(nil)
	ctx := context.Background()

	store.Save(ctx, &domain.Wallet{PublicKey: "W1", PrivateKey: "k", Label: "old"})
	first, _ := store.Get(ctx, "W1")

	store.Save(ctx, &domain.Wallet{PublicKey: "W1", PrivateKey: "k2", Label: "new"})
	second, _ := store.Get(ctx, "W1")

	if !second.Active {
		t.Error("re-saving the active wallet must not clear its active flag")
	}
	if !second.CreatedAt.Equal(first.CreatedAt) {
		t.Error("re-saving must not change created_at")
	}
	if second.Label != "new" {
		t.Errorf("label should update on upsert, got %q", second.Label)
	}
}

func TestSettingStore_RoundTrip(t *testing.T) {
	store := NewSettingStore(vault.New("s"))
	ctx := context.Background()

	if err := store.Save(ctx, "api_key", "secret-value", true); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	got, err := store.Get(ctx, "api_key", "")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got != "secret-value" {
		t.Errorf("got %q, want secret-value", got)
	}
}

func TestSettingStore_MissingKeyReturnsDefault(t *testing.T) {
	store := NewSettingStore(nil)

	got, err := store.Get(context.Background(), "nope", "fallback")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got != "fallback" {
		t.Errorf("got %q, want fallback", got)
	}
}

func TestSettingStore_RotatedKeyReturnsDefault(t *testing.T) {
	ctx := context.Background()

	first := NewSettingStore(vault.New("key-one"))
	first.Save(ctx, "k", "v", true)
	rec := first.byKey["k"]

	// Simulate a key rotation by reading the same stored record with a
	// store keyed differently.
	second := NewSettingStore(vault.New("key-two"))
	second.byKey["k"] = rec

	got, err := second.Get(ctx, "k", "default")
	if err != nil {
		t.Fatalf("Get must not fail on decrypt error: %v", err)
	}
	if got != "default" {
		t.Errorf("got %q, want default", got)
	}
}
