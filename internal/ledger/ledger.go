package ledger

import (
	"sync"

	"pump-deck/internal/domain"
	"pump-deck/internal/observability"
)

// DefaultCapacity bounds the number of live token entities.
const DefaultCapacity = 1000

// Ledger is the bounded in-process aggregate of live tokens. Creations
// establish entities, trades mutate them, and once capacity is reached the
// oldest entity is evicted for each new creation. Trades for unknown mints
// are dropped: the ledger only tracks tokens whose creation it saw.
type Ledger struct {
	mu       sync.RWMutex
	capacity int
	byMint   map[string]*domain.TokenEntity
	order    []string // insertion order, oldest first
}

// New creates a ledger. capacity <= 0 uses DefaultCapacity.
func New(capacity int) *Ledger {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Ledger{
		capacity: capacity,
		byMint:   make(map[string]*domain.TokenEntity, capacity),
	}
}

// Apply routes one event. Returns true when the ledger changed.
func (l *Ledger) Apply(ev *domain.Event) bool {
	switch {
	case ev == nil:
		return false
	case ev.Kind == domain.KindCreation && ev.Creation != nil:
		return l.applyCreation(ev.Creation)
	case ev.Kind == domain.KindTrade && ev.Trade != nil:
		return l.applyTrade(ev.Trade)
	default:
		return false
	}
}

func (l *Ledger) applyCreation(c *domain.CreationEvent) bool {
	if c.Mint == "" {
		return false
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if _, ok := l.byMint[c.Mint]; ok {
		// Replayed creation, nothing new to establish.
		return false
	}

	entity := &domain.TokenEntity{
		Mint:          c.Mint,
		Name:          c.Name,
		Symbol:        c.Symbol,
		URI:           c.URI,
		Creator:       c.Creator,
		Pool:          c.Pool,
		CreatedAt:     c.ReceivedAt,
		LastUpdated:   c.ReceivedAt,
		MarketCapSol:  c.MarketCapSol,
		VolumeSol:     c.SolAmount,
		CreatorBuySol: c.SolAmount,
		Traders:       make(map[string]struct{}),
	}
	if c.Creator != "" && c.SolAmount > 0 {
		entity.Traders[c.Creator] = struct{}{}
	}

	if len(l.order) >= l.capacity {
		oldest := l.order[0]
		l.order = l.order[1:]
		delete(l.byMint, oldest)
		observability.RecordEviction()
	}

	l.byMint[c.Mint] = entity
	l.order = append(l.order, c.Mint)
	return true
}

func (l *Ledger) applyTrade(t *domain.TradeEvent) bool {
	if t.Mint == "" {
		return false
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	entity, ok := l.byMint[t.Mint]
	if !ok {
		return false
	}

	entity.TxCount++
	switch t.EffectiveSide() {
	case domain.SideBuy:
		entity.BuyCount++
	case domain.SideSell:
		entity.SellCount++
		if t.Trader != "" && t.Trader == entity.Creator {
			entity.DevSold = true
		}
	}

	entity.VolumeSol += t.VolumeSol()
	if t.MarketCapSol > 0 {
		entity.MarketCapSol = t.MarketCapSol
	}
	if t.Pool != "" {
		entity.Pool = t.Pool
	}
	if t.Trader != "" {
		entity.Traders[t.Trader] = struct{}{}
	}
	entity.LastUpdated = t.ReceivedAt
	return true
}

// Len returns the number of live entities.
func (l *Ledger) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.byMint)
}

// Get returns a copy of one entity, or nil when absent.
func (l *Ledger) Get(mint string) *domain.TokenEntity {
	l.mu.RLock()
	defer l.mu.RUnlock()

	entity, ok := l.byMint[mint]
	if !ok {
		return nil
	}
	return copyEntity(entity)
}

// Mints returns all live mints in insertion order, oldest first.
func (l *Ledger) Mints() []string {
	l.mu.RLock()
	defer l.mu.RUnlock()

	out := make([]string, len(l.order))
	copy(out, l.order)
	return out
}

// copyEntity deep-copies an entity so callers can't mutate ledger state.
func copyEntity(e *domain.TokenEntity) *domain.TokenEntity {
	cp := *e
	cp.Traders = make(map[string]struct{}, len(e.Traders))
	for k := range e.Traders {
		cp.Traders[k] = struct{}{}
	}
	return &cp
}
