package ledger

import (
	"math/rand"

	"github.com/shopspring/decimal"
)

// ShortablePick is one symbol selected into the shortable universe with its
// assigned annual borrow rate.
type ShortablePick struct {
	Symbol           string
	BorrowRateAnnual decimal.Decimal
}

// SelectShortable samples min(count, len(universe)) distinct symbols without
// replacement and assigns each an independent borrow rate drawn uniformly
// from [minRate, maxRate]. It simulates a securities-lending market absent a
// real data feed. The random source is injected so schedulers can use a
// time-seeded source and tests a fixed one.
func SelectShortable(rng *rand.Rand, universe []string, count int, minRate, maxRate decimal.Decimal) []ShortablePick {
	if count > len(universe) {
		count = len(universe)
	}
	if count <= 0 {
		return nil
	}

	band := maxRate.Sub(minRate)

	perm := rng.Perm(len(universe))
	picks := make([]ShortablePick, 0, count)
	for _, idx := range perm[:count] {
		rate := minRate.Add(band.Mul(decimal.NewFromFloat(rng.Float64()))).Round(4)
		picks = append(picks, ShortablePick{
			Symbol:           universe[idx],
			BorrowRateAnnual: rate,
		})
	}
	return picks
}
