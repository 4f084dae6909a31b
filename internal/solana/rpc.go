package solana

import "context"

// RPCClient defines the Solana RPC HTTP interface used by wallet management
// and trade submission.
type RPCClient interface {
	// GetBalance retrieves an account balance in SOL.
	GetBalance(ctx context.Context, pubkey string) (float64, error)

	// GetBatchBalances retrieves balances for many accounts in one request.
	// The result map only holds entries that resolved; callers keep stale
	// values for the rest.
	GetBatchBalances(ctx context.Context, pubkeys []string) (map[string]float64, error)

	// GetSignatureCount returns the number of recent transaction signatures
	// for an address, capped by the RPC page size.
	GetSignatureCount(ctx context.Context, address string) (int, error)

	// GetTokenBalance returns the owner's balance of one SPL token in UI
	// units, summed across token accounts.
	GetTokenBalance(ctx context.Context, owner, mint string) (float64, error)

	// GetHealth checks node health.
	GetHealth(ctx context.Context) error

	// SendTransaction submits a fully signed transaction and returns its
	// signature.
	SendTransaction(ctx context.Context, signedTx []byte) (string, error)
}

// LamportsPerSol is the lamport denomination of one SOL.
const LamportsPerSol = 1_000_000_000
