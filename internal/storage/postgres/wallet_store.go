package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"pump-deck/internal/domain"
	"pump-deck/internal/storage"
	"pump-deck/internal/vault"
)

// WalletStore implements storage.WalletStore using PostgreSQL. Private keys
// are encrypted by the vault before they touch the table.
//
// Rows carry no marker of which vault secret encrypted them. Reads under a
// rotated secret come back empty (the decrypt fails closed); reads with the
// cipher disabled return whatever bytes are stored, ciphertext included.
// Rotating or removing the vault secret therefore requires re-importing the
// affected wallets.
type WalletStore struct {
	pool   *Pool
	cipher *vault.Cipher
}

// NewWalletStore creates a new WalletStore.
func NewWalletStore(pool *Pool, cipher *vault.Cipher) *WalletStore {
	if cipher == nil {
		cipher = vault.New("")
	}
	return &WalletStore{pool: pool, cipher: cipher}
}

var _ storage.WalletStore = (*WalletStore)(nil)

// Save upserts a wallet keyed by public key. The first wallet ever saved
// becomes active; re-saving preserves the active flag and created_at.
func (s *WalletStore) Save(ctx context.Context, w *domain.Wallet) error {
	if w == nil || w.PublicKey == "" {
		return storage.ErrInvalidInput
	}
	if !s.pool.Connected() {
		return nil
	}

	encKey, _ := s.cipher.Encrypt(w.PrivateKey)
	encAPIKey, _ := s.cipher.Encrypt(w.APIKey)

	query := `
		INSERT INTO wallets (public_key, label, private_key, api_key, active, created_at)
		VALUES ($1, $2, $3, $4, NOT EXISTS (SELECT 1 FROM wallets), now())
		ON CONFLICT (public_key) DO UPDATE SET
			label       = EXCLUDED.label,
			private_key = EXCLUDED.private_key,
			api_key     = EXCLUDED.api_key
	`
	if _, err := s.pool.DB().Exec(ctx, query, w.PublicKey, w.Label, encKey, encAPIKey); err != nil {
		return fmt.Errorf("save wallet: %w", err)
	}
	return nil
}

const walletColumns = `public_key, label, private_key, api_key, active, created_at`

// Get retrieves one wallet with its private key decrypted.
func (s *WalletStore) Get(ctx context.Context, publicKey string) (*domain.Wallet, error) {
	if !s.pool.Connected() {
		return nil, storage.ErrNotFound
	}

	row := s.pool.DB().QueryRow(ctx,
		`SELECT `+walletColumns+` FROM wallets WHERE public_key = $1`, publicKey)
	w, err := s.scanWallet(row)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get wallet: %w", err)
	}
	return w, nil
}

// GetAll retrieves every wallet ordered by created_at ascending.
func (s *WalletStore) GetAll(ctx context.Context) ([]*domain.Wallet, error) {
	if !s.pool.Connected() {
		return nil, nil
	}

	rows, err := s.pool.DB().Query(ctx,
		`SELECT `+walletColumns+` FROM wallets ORDER BY created_at ASC, public_key ASC`)
	if err != nil {
		return nil, fmt.Errorf("get all wallets: %w", err)
	}
	defer rows.Close()

	var out []*domain.Wallet
	for rows.Next() {
		w, err := s.scanWallet(rows)
		if err != nil {
			return nil, fmt.Errorf("scan wallet row: %w", err)
		}
		out = append(out, w)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate wallet rows: %w", err)
	}
	return out, nil
}

// GetActive returns the active wallet.
func (s *WalletStore) GetActive(ctx context.Context) (*domain.Wallet, error) {
	if !s.pool.Connected() {
		return nil, storage.ErrNotFound
	}

	row := s.pool.DB().QueryRow(ctx,
		`SELECT `+walletColumns+` FROM wallets WHERE active`)
	w, err := s.scanWallet(row)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get active wallet: %w", err)
	}
	return w, nil
}

// SetActive marks exactly one wallet active and all others inactive in a
// single transaction.
func (s *WalletStore) SetActive(ctx context.Context, publicKey string) error {
	if !s.pool.Connected() {
		return nil
	}

	tx, err := s.pool.DB().Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `UPDATE wallets SET active = FALSE WHERE active`); err != nil {
		return fmt.Errorf("clear active flags: %w", err)
	}

	tag, err := tx.Exec(ctx, `UPDATE wallets SET active = TRUE WHERE public_key = $1`, publicKey)
	if err != nil {
		return fmt.Errorf("set active flag: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return storage.ErrNotFound
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// Delete removes a wallet. Deleting the active wallet promotes the
// earliest-created remaining wallet.
func (s *WalletStore) Delete(ctx context.Context, publicKey string) error {
	if !s.pool.Connected() {
		return nil
	}

	tx, err := s.pool.DB().Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	var wasActive bool
	err = tx.QueryRow(ctx,
		`DELETE FROM wallets WHERE public_key = $1 RETURNING active`, publicKey).
		Scan(&wasActive)
	if err != nil {
		if isNotFoundError(err) {
			return storage.ErrNotFound
		}
		return fmt.Errorf("delete wallet: %w", err)
	}

	if wasActive {
		_, err = tx.Exec(ctx, `
			UPDATE wallets SET active = TRUE
			WHERE public_key = (
				SELECT public_key FROM wallets ORDER BY created_at ASC, public_key ASC LIMIT 1
			)`)
		if err != nil {
			return fmt.Errorf("promote wallet: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// scanWallet scans a row and decrypts the private key. A key that no longer
// decrypts comes back empty rather than failing the read; see the caveat on
// WalletStore about reading with the cipher disabled.
func (s *WalletStore) scanWallet(row pgx.Row) (*domain.Wallet, error) {
	var w domain.Wallet
	err := row.Scan(&w.PublicKey, &w.Label, &w.PrivateKey, &w.APIKey, &w.Active, &w.CreatedAt)
	if err != nil {
		return nil, err
	}
	if s.cipher.Enabled() {
		w.PrivateKey = s.cipher.Decrypt(w.PrivateKey, "")
		w.APIKey = s.cipher.Decrypt(w.APIKey, "")
	}
	return &w, nil
}
