package config

import (
	"encoding/json"
	"fmt"
	"os"
)

// Thresholds are the user-tunable screening limits applied when ranking
// tokens. Persisted as a small JSON file next to the process.
type Thresholds struct {
	MinMarketCapSol float64 `json:"min_market_cap_sol"`
	MinVolumeSol    float64 `json:"min_volume_sol"`
	MinHolders      int     `json:"min_holders"`
	MinTxCount      int64   `json:"min_tx_count"`
	// HideDevSold filters out tokens whose creator already sold.
	HideDevSold bool `json:"hide_dev_sold"`
}

// DefaultThresholds returns the out-of-the-box limits (everything passes).
func DefaultThresholds() *Thresholds {
	return &Thresholds{}
}

// LoadThresholds reads the JSON thresholds file. A missing file returns
// defaults without error; a corrupt file is an error.
func LoadThresholds(path string) (*Thresholds, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return DefaultThresholds(), nil
		}
		return nil, fmt.Errorf("read thresholds: %w", err)
	}

	t := DefaultThresholds()
	if err := json.Unmarshal(data, t); err != nil {
		return nil, fmt.Errorf("decode thresholds: %w", err)
	}
	return t, nil
}

// Save writes the thresholds file atomically via a rename.
func (t *Thresholds) Save(path string) error {
	data, err := json.MarshalIndent(t, "", "  ")
	if err != nil {
		return fmt.Errorf("encode thresholds: %w", err)
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("write thresholds: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("replace thresholds: %w", err)
	}
	return nil
}
