package domain

import "time"

// Wallet is a custodial keypair record. PrivateKey is stored encrypted by
// the vault; at most one wallet is active at a time across the store.
type Wallet struct {
	PublicKey  string
	PrivateKey string // vault-encrypted base58 secret
	Label      string
	APIKey     string // relay API key issued at generation, may be empty
	CreatedAt  time.Time
	Active     bool

	// Cached display values, refreshed periodically. Non-authoritative.
	BalanceSol float64
	TxCount    int64
}

// Setting is a persisted key/value pair. Encrypted marks values that went
// through the vault before storage.
type Setting struct {
	Key       string
	Value     string
	Encrypted bool
}
