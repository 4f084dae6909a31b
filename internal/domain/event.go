package domain

// EventKind discriminates decoded feed events.
type EventKind int

const (
	// KindCreation is a token creation event. Only creations establish
	// a new token entity.
	KindCreation EventKind = iota
	// KindTrade is a buy or sell against an existing token.
	KindTrade
)

// Event is the tagged variant produced by the feed decoder.
// Exactly one of Creation or Trade is non-nil, matching Kind.
type Event struct {
	Kind     EventKind
	Creation *CreationEvent
	Trade    *TradeEvent
}

// CreationEvent announces a newly minted token.
type CreationEvent struct {
	Mint         string
	Name         string
	Symbol       string
	URI          string
	Creator      string // traderPublicKey of the creating wallet
	MarketCapSol float64
	SolAmount    float64 // initial creator buy, zero when absent
	Pool         string
	ReceivedAt   int64 // Unix timestamp in milliseconds, local receive time
}

// TradeEvent is a single trade against a known mint.
type TradeEvent struct {
	Mint         string
	Trader       string
	Side         string // SideBuy | SideSell | "" when the feed omitted txType
	SolAmount    float64
	TokenAmount  float64
	MarketCapSol float64
	Pool         string
	ReceivedAt   int64 // Unix timestamp in milliseconds
}

// EffectiveSide returns the explicit side when the feed carried one, and
// otherwise infers it from whichever amount field is populated: a native
// amount means a buy, a token amount means a sell. Returns "" when neither
// is derivable; such trades still count toward tx totals.
func (t *TradeEvent) EffectiveSide() string {
	if t.Side == SideBuy || t.Side == SideSell {
		return t.Side
	}
	if t.SolAmount > 0 {
		return SideBuy
	}
	if t.TokenAmount > 0 {
		return SideSell
	}
	return ""
}

// VolumeSol returns the trade's native-currency volume. When the feed
// reports no solAmount but the trade settled on the migrated pool, volume is
// estimated as tokenAmount times the implied price (marketCap/TotalSupply).
// The estimate assumes the fixed TotalSupply and is a heuristic, not a
// verified on-chain exchange rate.
func (t *TradeEvent) VolumeSol() float64 {
	if t.SolAmount > 0 {
		return t.SolAmount
	}
	if t.Pool == PoolMigrated && t.TokenAmount > 0 && t.MarketCapSol > 0 {
		return t.TokenAmount * (t.MarketCapSol / TotalSupply)
	}
	return 0
}

// Trade side constants.
const (
	SideBuy  = "buy"
	SideSell = "sell"
)

// Settlement pool markers seen on the wire.
const (
	// PoolAuto lets the relay pick the venue.
	PoolAuto = "auto"
	// PoolMigrated marks tokens that moved to the external pool. Used both
	// as the creator-stats "migrated" marker and as the trigger for the
	// volume estimation fallback.
	PoolMigrated = "bonk"
)

// TotalSupply is the fixed token supply assumed by the market-cap price
// conversion. This is a display heuristic, not an on-chain verified value.
const TotalSupply = 1_000_000_000
