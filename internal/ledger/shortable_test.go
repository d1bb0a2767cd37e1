package ledger

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSelectShortable(t *testing.T) {
	universe := []string{"AAPL", "MSFT", "TSLA", "NVDA", "AMZN", "GOOG", "META", "NFLX"}
	rng := rand.New(rand.NewSource(42))

	picks := SelectShortable(rng, universe, 5, d("0.02"), d("0.18"))
	require.Len(t, picks, 5)

	seen := make(map[string]bool)
	for _, pick := range picks {
		assert.False(t, seen[pick.Symbol], "symbol %s selected twice", pick.Symbol)
		seen[pick.Symbol] = true

		assert.True(t, pick.BorrowRateAnnual.GreaterThanOrEqual(d("0.02")),
			"rate %s below band", pick.BorrowRateAnnual)
		assert.True(t, pick.BorrowRateAnnual.LessThanOrEqual(d("0.18")),
			"rate %s above band", pick.BorrowRateAnnual)
	}
}

func TestSelectShortableClampsToUniverse(t *testing.T) {
	universe := []string{"AAPL", "MSFT"}
	rng := rand.New(rand.NewSource(1))

	picks := SelectShortable(rng, universe, 100, d("0.02"), d("0.18"))
	assert.Len(t, picks, 2)
}

func TestSelectShortableEmptyUniverse(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	assert.Empty(t, SelectShortable(rng, nil, 10, d("0.02"), d("0.18")))
}

func TestSelectShortableIndependentRates(t *testing.T) {
	// A fresh draw per symbol: with a fixed band and many symbols it is
	// vanishingly unlikely that all rates coincide.
	universe := make([]string, 50)
	for i := range universe {
		universe[i] = string(rune('A'+i%26)) + string(rune('A'+i/26))
	}
	rng := rand.New(rand.NewSource(7))

	picks := SelectShortable(rng, universe, 50, d("0.02"), d("0.18"))
	require.Len(t, picks, 50)

	distinct := make(map[string]bool)
	for _, pick := range picks {
		distinct[pick.BorrowRateAnnual.String()] = true
	}
	assert.Greater(t, len(distinct), 1)
}
