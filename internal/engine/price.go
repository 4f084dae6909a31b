package engine

import "pump-deck/internal/domain"

// Price derives a per-token SOL price from market cap assuming the fixed
// total supply. Display and conversion estimate only, not an execution
// price guarantee.
func Price(marketCapSol float64) float64 {
	if marketCapSol <= 0 {
		return 0
	}
	return marketCapSol / domain.TotalSupply
}

// TokensForSol estimates how many token units a SOL amount buys at the
// implied price. Returns 0 when no price is derivable.
func TokensForSol(solAmount, marketCapSol float64) float64 {
	p := Price(marketCapSol)
	if p == 0 {
		return 0
	}
	return solAmount / p
}

// SolForTokens estimates the SOL value of a token amount at the implied
// price.
func SolForTokens(tokenAmount, marketCapSol float64) float64 {
	return tokenAmount * Price(marketCapSol)
}
