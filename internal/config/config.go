// Package config builds the explicit configuration object passed down from
// main. Values come from the environment (optionally a .env file) with
// defaults suitable for local development.
package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds every externally tunable knob. Constructed once in main and
// passed down; packages never read the environment themselves.
type Config struct {
	// FeedURL is the WebSocket event feed endpoint.
	FeedURL string
	// RelayURL builds unsigned trade transactions.
	RelayURL string
	// CreateWalletURL mints fresh custodial wallets.
	CreateWalletURL string
	// RPCEndpoint is the Solana JSON-RPC HTTP endpoint.
	RPCEndpoint string

	PostgresDSN   string
	ClickhouseDSN string

	// VaultSecret keys the secret vault. Empty disables encryption.
	VaultSecret string

	MetricsAddr string

	LedgerCapacity         int
	WindowHours            int
	BalanceRefreshInterval time.Duration

	// ThresholdsPath is the JSON thresholds file location.
	ThresholdsPath string
}

// FromEnv loads .env if present and builds a Config from the environment.
func FromEnv() *Config {
	// Missing .env is fine; real deployments set the environment directly.
	_ = godotenv.Load()

	return &Config{
		FeedURL:         envStr("FEED_URL", "wss://pumpportal.fun/api/data"),
		RelayURL:        envStr("RELAY_URL", "https://pumpportal.fun/api/trade-local"),
		CreateWalletURL: envStr("CREATE_WALLET_URL", "https://pumpportal.fun/api/create-wallet"),
		RPCEndpoint:     envStr("RPC_ENDPOINT", "https://api.mainnet-beta.solana.com"),

		PostgresDSN:   os.Getenv("POSTGRES_DSN"),
		ClickhouseDSN: os.Getenv("CLICKHOUSE_DSN"),

		VaultSecret: os.Getenv("VAULT_SECRET"),

		MetricsAddr: envStr("METRICS_ADDR", ":9090"),

		LedgerCapacity:         envInt("LEDGER_CAPACITY", 1000),
		WindowHours:            envInt("WINDOW_HOURS", 12),
		BalanceRefreshInterval: envDuration("BALANCE_REFRESH_INTERVAL", 60*time.Second),

		ThresholdsPath: envStr("THRESHOLDS_PATH", "thresholds.json"),
	}
}

func envStr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func envDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}
