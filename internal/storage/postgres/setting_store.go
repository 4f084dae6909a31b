package postgres

import (
	"context"
	"fmt"

	"pump-deck/internal/storage"
	"pump-deck/internal/vault"
)

// SettingStore implements storage.SettingStore using PostgreSQL.
// Values flagged for encryption pass through the vault cipher; with no
// vault key configured they degrade to clear text.
type SettingStore struct {
	pool   *Pool
	cipher *vault.Cipher
}

// NewSettingStore creates a new SettingStore.
func NewSettingStore(pool *Pool, cipher *vault.Cipher) *SettingStore {
	if cipher == nil {
		cipher = vault.New("")
	}
	return &SettingStore{pool: pool, cipher: cipher}
}

var _ storage.SettingStore = (*SettingStore)(nil)

// Save upserts a setting.
func (s *SettingStore) Save(ctx context.Context, key, value string, encrypt bool) error {
	if key == "" {
		return storage.ErrInvalidInput
	}
	if !s.pool.Connected() {
		return nil
	}

	stored := value
	encrypted := false
	if encrypt {
		stored, encrypted = s.cipher.Encrypt(value)
	}

	query := `
		INSERT INTO settings (key, value, encrypted)
		VALUES ($1, $2, $3)
		ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, encrypted = EXCLUDED.encrypted
	`
	if _, err := s.pool.DB().Exec(ctx, query, key, stored, encrypted); err != nil {
		return fmt.Errorf("save setting: %w", err)
	}
	return nil
}

// Get returns the decrypted value, or def when the key is absent, the pool
// is degraded, or decryption fails.
func (s *SettingStore) Get(ctx context.Context, key, def string) (string, error) {
	if !s.pool.Connected() {
		return def, nil
	}

	var value string
	var encrypted bool
	err := s.pool.DB().QueryRow(ctx, `SELECT value, encrypted FROM settings WHERE key = $1`, key).
		Scan(&value, &encrypted)
	if err != nil {
		if isNotFoundError(err) {
			return def, nil
		}
		return def, fmt.Errorf("get setting: %w", err)
	}

	if encrypted {
		return s.cipher.Decrypt(value, def), nil
	}
	return value, nil
}
