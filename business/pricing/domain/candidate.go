package domain

import (
	"github.com/shopspring/decimal"
)

// Candidate is a venue found during discovery, before selection.
type Candidate struct {
	Descriptor PoolDescriptor
	// QuoteLiquidity is the quote-side balance of the venue, decimal-normalized.
	QuoteLiquidity decimal.Decimal
	// LiquidityUSD is filled in by the locator before selection.
	LiquidityUSD decimal.Decimal
	// Preference is the index of the venue's protocol in the chain's
	// preference order; lower wins ties.
	Preference int
}

// SelectBest returns the candidate with strictly greatest USD liquidity.
// Ties go to the preferred protocol, then to discovery order. Candidates
// with no liquidity are never selected.
func SelectBest(candidates []Candidate) (Candidate, bool) {
	var best Candidate
	found := false

	for _, c := range candidates {
		if !c.LiquidityUSD.IsPositive() {
			continue
		}
		if !found {
			best, found = c, true
			continue
		}
		switch c.LiquidityUSD.Cmp(best.LiquidityUSD) {
		case 1:
			best = c
		case 0:
			if c.Preference < best.Preference {
				best = c
			}
		}
	}

	return best, found
}
