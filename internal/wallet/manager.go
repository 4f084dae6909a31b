package wallet

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"sync"
	"time"

	"pump-deck/internal/domain"
	"pump-deck/internal/observability"
	"pump-deck/internal/solana"
	"pump-deck/internal/storage"
)

// DefaultCreateTimeout bounds the relay wallet-creation call.
const DefaultCreateTimeout = 30 * time.Second

// Manager owns custodial wallets: creation through the relay, import of
// existing keys, the single-active-wallet flag, and cached balances. Key
// material lives encrypted in the WalletStore; the manager only caches the
// volatile per-wallet numbers that the store does not persist.
type Manager struct {
	store     storage.WalletStore
	rpc       solana.RPCClient
	createURL string
	client    *http.Client
	logger    *log.Logger

	mu       sync.RWMutex
	balances map[string]float64
	txCounts map[string]int64
}

// Options configures a Manager.
type Options struct {
	// CreateURL is the relay endpoint that mints a fresh custodial wallet.
	CreateURL string
	// HTTPClient overrides the default client.
	HTTPClient *http.Client
	// Logger defaults to log.Default.
	Logger *log.Logger
}

// NewManager creates a wallet manager.
func NewManager(store storage.WalletStore, rpc solana.RPCClient, opts Options) *Manager {
	client := opts.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: DefaultCreateTimeout}
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}
	return &Manager{
		store:     store,
		rpc:       rpc,
		createURL: opts.CreateURL,
		client:    client,
		logger:    logger,
		balances:  make(map[string]float64),
		txCounts:  make(map[string]int64),
	}
}

// createWalletResponse is the relay's wallet-creation payload.
type createWalletResponse struct {
	APIKey          string `json:"apiKey"`
	PrivateKey      string `json:"privateKey"`
	WalletPublicKey string `json:"walletPublicKey"`
}

// Generate asks the relay for a fresh custodial wallet and stores it. The
// first wallet ever stored becomes active.
func (m *Manager) Generate(ctx context.Context, label string) (*domain.Wallet, error) {
	if m.createURL == "" {
		return nil, fmt.Errorf("wallet creation endpoint not configured")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, m.createURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	resp, err := m.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("create wallet request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read create wallet response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("create wallet status %d: %s", resp.StatusCode, string(body))
	}

	var payload createWalletResponse
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("decode create wallet response: %w", err)
	}
	if payload.WalletPublicKey == "" || payload.PrivateKey == "" {
		return nil, fmt.Errorf("create wallet response missing key material")
	}
	if err := solana.ValidatePublicKey(payload.WalletPublicKey); err != nil {
		return nil, fmt.Errorf("relay returned bad public key: %w", err)
	}

	w := &domain.Wallet{
		PublicKey:  payload.WalletPublicKey,
		PrivateKey: payload.PrivateKey,
		APIKey:     payload.APIKey,
		Label:      label,
	}
	if err := m.store.Save(ctx, w); err != nil {
		return nil, fmt.Errorf("save wallet: %w", err)
	}
	return m.store.Get(ctx, w.PublicKey)
}

// Import stores an existing keypair. The private key must parse and its
// derived public key is what gets stored; callers cannot mislabel keys.
func (m *Manager) Import(ctx context.Context, label, privateKey, apiKey string) (*domain.Wallet, error) {
	kp, err := solana.ParseKeypair(privateKey)
	if err != nil {
		return nil, err
	}

	w := &domain.Wallet{
		PublicKey:  kp.PublicKey(),
		PrivateKey: privateKey,
		APIKey:     apiKey,
		Label:      label,
	}
	if err := m.store.Save(ctx, w); err != nil {
		return nil, fmt.Errorf("save wallet: %w", err)
	}
	return m.store.Get(ctx, w.PublicKey)
}

// List returns all wallets with cached balances and tx counts applied.
func (m *Manager) List(ctx context.Context) ([]*domain.Wallet, error) {
	wallets, err := m.store.GetAll(ctx)
	if err != nil {
		return nil, err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, w := range wallets {
		if bal, ok := m.balances[w.PublicKey]; ok {
			w.BalanceSol = bal
		}
		if n, ok := m.txCounts[w.PublicKey]; ok {
			w.TxCount = n
		}
	}
	return wallets, nil
}

// Active returns the active wallet, balance applied.
func (m *Manager) Active(ctx context.Context) (*domain.Wallet, error) {
	w, err := m.store.GetActive(ctx)
	if err != nil {
		return nil, err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()
	if bal, ok := m.balances[w.PublicKey]; ok {
		w.BalanceSol = bal
	}
	if n, ok := m.txCounts[w.PublicKey]; ok {
		w.TxCount = n
	}
	return w, nil
}

// SetActive marks one wallet active.
func (m *Manager) SetActive(ctx context.Context, publicKey string) error {
	return m.store.SetActive(ctx, publicKey)
}

// Delete removes a wallet; the store promotes a replacement when the active
// one goes.
func (m *Manager) Delete(ctx context.Context, publicKey string) error {
	if err := m.store.Delete(ctx, publicKey); err != nil {
		return err
	}

	m.mu.Lock()
	delete(m.balances, publicKey)
	delete(m.txCounts, publicKey)
	m.mu.Unlock()
	return nil
}

// RefreshBalances fetches balances for every wallet in one batched RPC call.
// Wallets missing from the response keep their previous cached value.
func (m *Manager) RefreshBalances(ctx context.Context) error {
	wallets, err := m.store.GetAll(ctx)
	if err != nil {
		return err
	}
	if len(wallets) == 0 {
		return nil
	}

	pubkeys := make([]string, len(wallets))
	for i, w := range wallets {
		pubkeys[i] = w.PublicKey
	}

	balances, err := m.rpc.GetBatchBalances(ctx, pubkeys)
	if err != nil {
		return fmt.Errorf("refresh balances: %w", err)
	}

	m.mu.Lock()
	for pk, bal := range balances {
		m.balances[pk] = bal
	}
	m.mu.Unlock()

	observability.RecordBalanceRefresh(balances)
	return nil
}

// RefreshTxCount updates the cached signature count for one wallet.
func (m *Manager) RefreshTxCount(ctx context.Context, publicKey string) error {
	count, err := m.rpc.GetSignatureCount(ctx, publicKey)
	if err != nil {
		return fmt.Errorf("refresh tx count: %w", err)
	}

	m.mu.Lock()
	m.txCounts[publicKey] = int64(count)
	m.mu.Unlock()
	return nil
}
