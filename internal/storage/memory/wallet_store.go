package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"pump-deck/internal/domain"
	"pump-deck/internal/storage"
	"pump-deck/internal/vault"
)

// WalletStore is an in-memory implementation of storage.WalletStore. It
// matches the postgres store's contract, including the decrypt-or-empty
// read path; see the rotation caveat on the postgres WalletStore.
type WalletStore struct {
	mu       sync.RWMutex
	byPubkey map[string]*domain.Wallet
	cipher   *vault.Cipher

	Now func() time.Time
}

// NewWalletStore creates a new in-memory wallet store.
func NewWalletStore(cipher *vault.Cipher) *WalletStore {
	if cipher == nil {
		cipher = vault.New("")
	}
	return &WalletStore{
		byPubkey: make(map[string]*domain.Wallet),
		cipher:   cipher,
		Now:      time.Now,
	}
}

var _ storage.WalletStore = (*WalletStore)(nil)

// Save upserts a wallet, encrypting the private key before storage.
// The first wallet ever saved becomes active.
func (s *WalletStore) Save(_ context.Context, w *domain.Wallet) error {
	if w == nil || w.PublicKey == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	stored := *w
	stored.PrivateKey, _ = s.cipher.Encrypt(w.PrivateKey)
	stored.APIKey, _ = s.cipher.Encrypt(w.APIKey)
	if stored.CreatedAt.IsZero() {
		stored.CreatedAt = s.Now()
	}
	if existing, exists := s.byPubkey[w.PublicKey]; exists {
		stored.Active = existing.Active
		stored.CreatedAt = existing.CreatedAt
	} else if len(s.byPubkey) == 0 {
		stored.Active = true
	}

	s.byPubkey[w.PublicKey] = &stored
	return nil
}

// Get retrieves one wallet with its private key decrypted.
func (s *WalletStore) Get(_ context.Context, publicKey string) (*domain.Wallet, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, exists := s.byPubkey[publicKey]
	if !exists {
		return nil, storage.ErrNotFound
	}
	return s.decryptCopy(rec), nil
}

// GetAll retrieves every wallet ordered by created_at ascending.
func (s *WalletStore) GetAll(_ context.Context) ([]*domain.Wallet, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*domain.Wallet, 0, len(s.byPubkey))
	for _, rec := range s.byPubkey {
		out = append(out, s.decryptCopy(rec))
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].PublicKey < out[j].PublicKey
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

// GetActive returns the active wallet, or ErrNotFound when none is active.
func (s *WalletStore) GetActive(_ context.Context) (*domain.Wallet, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, rec := range s.byPubkey {
		if rec.Active {
			return s.decryptCopy(rec), nil
		}
	}
	return nil, storage.ErrNotFound
}

// SetActive flips exactly one wallet's active flag on and all others off.
func (s *WalletStore) SetActive(_ context.Context, publicKey string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.byPubkey[publicKey]; !exists {
		return storage.ErrNotFound
	}
	for pub, rec := range s.byPubkey {
		rec.Active = pub == publicKey
	}
	return nil
}

// Delete removes a wallet. Deleting the active wallet promotes the
// earliest-created remaining wallet.
func (s *WalletStore) Delete(_ context.Context, publicKey string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, exists := s.byPubkey[publicKey]
	if !exists {
		return storage.ErrNotFound
	}
	wasActive := rec.Active
	delete(s.byPubkey, publicKey)

	if wasActive && len(s.byPubkey) > 0 {
		var oldest *domain.Wallet
		for _, w := range s.byPubkey {
			if oldest == nil || w.CreatedAt.Before(oldest.CreatedAt) {
				oldest = w
			}
		}
		oldest.Active = true
	}
	return nil
}

// decryptCopy returns a copy with the private key decrypted. A key that no
// longer decrypts (rotated vault secret) comes back empty rather than
// failing the read.
func (s *WalletStore) decryptCopy(rec *domain.Wallet) *domain.Wallet {
	out := *rec
	if s.cipher.Enabled() {
		out.PrivateKey = s.cipher.Decrypt(rec.PrivateKey, "")
		out.APIKey = s.cipher.Decrypt(rec.APIKey, "")
	}
	return &out
}
