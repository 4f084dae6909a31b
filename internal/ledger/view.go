package ledger

import (
	"sort"
	"strings"

	"pump-deck/internal/domain"
)

// Sort orders accepted by Query.
const (
	SortMarketCap = "market_cap"
	SortVolume    = "volume"
	SortRecency   = "recency"
)

// Screen holds the numeric floors applied before filtering. Zero values
// pass everything.
type Screen struct {
	MinMarketCapSol float64
	MinVolumeSol    float64
	MinHolders      int
	MinTxCount      int64
	// HideDevSold drops tokens whose creator already sold.
	HideDevSold bool
}

// Query selects, orders and pages a ledger view.
type Query struct {
	// Filter is a case-insensitive substring matched against name, symbol
	// and mint. Empty matches everything.
	Filter string
	// Screen applies numeric floors before the substring filter.
	Screen Screen
	// Sort is one of the Sort constants. Empty defaults to recency.
	Sort string
	// Offset and Limit page the sorted result. Limit <= 0 means no limit.
	Offset int
	Limit  int
}

// passes reports whether an entity clears every screen floor.
func (s Screen) passes(e *domain.TokenEntity) bool {
	if e.MarketCapSol < s.MinMarketCapSol {
		return false
	}
	if e.VolumeSol < s.MinVolumeSol {
		return false
	}
	if len(e.Traders) < s.MinHolders {
		return false
	}
	if e.TxCount < s.MinTxCount {
		return false
	}
	if s.HideDevSold && e.DevSold {
		return false
	}
	return true
}

// View returns a filtered, sorted, paginated copy of the ledger. The result
// is a point-in-time snapshot: entities are deep copies, so two identical
// queries against an unchanged ledger return identical views.
func (l *Ledger) View(q Query) []*domain.TokenEntity {
	l.mu.RLock()
	snapshot := make([]*domain.TokenEntity, 0, len(l.order))
	for _, mint := range l.order {
		e := l.byMint[mint]
		if !q.Screen.passes(e) {
			continue
		}
		snapshot = append(snapshot, copyEntity(e))
	}
	l.mu.RUnlock()

	if q.Filter != "" {
		needle := strings.ToLower(q.Filter)
		filtered := snapshot[:0]
		for _, e := range snapshot {
			if strings.Contains(strings.ToLower(e.Name), needle) ||
				strings.Contains(strings.ToLower(e.Symbol), needle) ||
				strings.Contains(strings.ToLower(e.Mint), needle) {
				filtered = append(filtered, e)
			}
		}
		snapshot = filtered
	}

	sortEntities(snapshot, q.Sort)

	if q.Offset > 0 {
		if q.Offset >= len(snapshot) {
			return nil
		}
		snapshot = snapshot[q.Offset:]
	}
	if q.Limit > 0 && q.Limit < len(snapshot) {
		snapshot = snapshot[:q.Limit]
	}
	return snapshot
}

// sortEntities orders descending by the chosen field, with the mint as a
// deterministic tie-break.
func sortEntities(entities []*domain.TokenEntity, by string) {
	less := func(a, b *domain.TokenEntity) bool {
		switch by {
		case SortMarketCap:
			if a.MarketCapSol != b.MarketCapSol {
				return a.MarketCapSol > b.MarketCapSol
			}
		case SortVolume:
			if a.VolumeSol != b.VolumeSol {
				return a.VolumeSol > b.VolumeSol
			}
		default: // SortRecency
			if a.CreatedAt != b.CreatedAt {
				return a.CreatedAt > b.CreatedAt
			}
		}
		return a.Mint < b.Mint
	}
	sort.SliceStable(entities, func(i, j int) bool {
		return less(entities[i], entities[j])
	})
}
