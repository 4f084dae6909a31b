package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestThresholds_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "thresholds.json")

	want := &Thresholds{
		MinMarketCapSol: 30,
		MinVolumeSol:    5,
		MinHolders:      10,
		MinTxCount:      25,
		HideDevSold:     true,
	}
	if err := want.Save(path); err != nil {
		t.Fatalf("Save: %v", err)
	}

	got, err := LoadThresholds(path)
	if err != nil {
		t.Fatalf("LoadThresholds: %v", err)
	}
	if *got != *want {
		t.Errorf("round trip mismatch: got %+v, want %+v", got, want)
	}
}

func TestThresholds_MissingFileReturnsDefaults(t *testing.T) {
	got, err := LoadThresholds(filepath.Join(t.TempDir(), "absent.json"))
	if err != nil {
		t.Fatalf("LoadThresholds: %v", err)
	}
	if *got != (Thresholds{}) {
		t.Errorf("expected defaults, got %+v", got)
	}
}

func TestThresholds_CorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "thresholds.json")
	if err := os.WriteFile(path, []byte("{not json"), 0o600); err != nil {
		t.Fatal(err)
	}

	if _, err := LoadThresholds(path); err == nil {
		t.Error("expected error for corrupt file")
	}
}

func TestConfig_EnvOverrides(t *testing.T) {
	t.Setenv("FEED_URL", "wss://feed.test/ws")
	t.Setenv("LEDGER_CAPACITY", "250")
	t.Setenv("BALANCE_REFRESH_INTERVAL", "5s")
	t.Setenv("LEDGER_CAPACITY_BAD", "x")

	cfg := FromEnv()
	if cfg.FeedURL != "wss://feed.test/ws" {
		t.Errorf("FeedURL = %s", cfg.FeedURL)
	}
	if cfg.LedgerCapacity != 250 {
		t.Errorf("LedgerCapacity = %d", cfg.LedgerCapacity)
	}
	if cfg.BalanceRefreshInterval.Seconds() != 5 {
		t.Errorf("BalanceRefreshInterval = %v", cfg.BalanceRefreshInterval)
	}
	if cfg.WindowHours != 12 {
		t.Errorf("WindowHours default = %d", cfg.WindowHours)
	}
}
