package memory

import (
	"context"
	"sync"

	"pump-deck/internal/domain"
	"pump-deck/internal/storage"
	"pump-deck/internal/vault"
)

// SettingStore is an in-memory implementation of storage.SettingStore.
type SettingStore struct {
	mu     sync.RWMutex
	byKey  map[string]*domain.Setting
	cipher *vault.Cipher
}

// NewSettingStore creates a new in-memory setting store.
func NewSettingStore(cipher *vault.Cipher) *SettingStore {
	if cipher == nil {
		cipher = vault.New("")
	}
	return &SettingStore{
		byKey:  make(map[string]*domain.Setting),
		cipher: cipher,
	}
}

var _ storage.SettingStore = (*SettingStore)(nil)

// Save upserts a setting, encrypting the value when requested.
func (s *SettingStore) Save(_ context.Context, key, value string, encrypt bool) error {
	if key == "" {
		return storage.ErrInvalidInput
	}

	stored := value
	encrypted := false
	if encrypt {
		stored, encrypted = s.cipher.Encrypt(value)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.byKey[key] = &domain.Setting{Key: key, Value: stored, Encrypted: encrypted}
	return nil
}

// Get returns the decrypted value, or def when absent or undecryptable.
func (s *SettingStore) Get(_ context.Context, key, def string) (string, error) {
	s.mu.RLock()
	rec, exists := s.byKey[key]
	s.mu.RUnlock()

	if !exists {
		return def, nil
	}
	if rec.Encrypted {
		return s.cipher.Decrypt(rec.Value, def), nil
	}
	return rec.Value, nil
}
