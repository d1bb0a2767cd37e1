package ledger

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"tradesphere/internal/models"
)

func fixedPrices(prices map[string]string) PriceFunc {
	return func(_ context.Context, symbol string, _ models.Market) (decimal.Decimal, error) {
		raw, ok := prices[symbol]
		if !ok {
			return decimal.Zero, errors.New("no quote")
		}
		return decimal.NewFromString(raw)
	}
}

func TestValuePortfolio(t *testing.T) {
	positions := []models.Position{
		{Symbol: "AAPL", Market: models.MarketUS, Shares: d("10"), AvgPrice: d("100")},
		{Symbol: "TSLA", Market: models.MarketUS, Shares: d("-5"), AvgPrice: d("200")},
	}
	prices := fixedPrices(map[string]string{
		"AAPL": "120",
		"TSLA": "180",
	})

	summary := ValuePortfolio(context.Background(), d("10000"), positions, prices, d("0.3"), zap.NewNop())

	// Long 10*120 = 1200; short |−5*180| = 900.
	// Equity = 10000 + 1200 − 900 = 10300; maintenance = 900*0.3 = 270.
	assertDecimalEqual(t, d("10000"), summary.CashBalance)
	assertDecimalEqual(t, d("10300"), summary.Equity)
	assertDecimalEqual(t, d("270"), summary.MaintenanceRequired)
	assertDecimalEqual(t, d("10030"), summary.MarginHeadroom)
	assert.False(t, summary.InMarginCall)

	require.Len(t, summary.Positions, 2)
	long := summary.Positions[0]
	assert.Equal(t, "AAPL", long.Symbol)
	assertDecimalEqual(t, d("1200"), long.CurrentValue)
	assertDecimalEqual(t, d("200"), long.UnrealizedPnL)
	assert.False(t, long.PriceStale)

	short := summary.Positions[1]
	assert.Equal(t, "TSLA", short.Symbol)
	assertDecimalEqual(t, d("-900"), short.CurrentValue)
	// (180 − 200) * −5 = +100: the short gained as the price fell.
	assertDecimalEqual(t, d("100"), short.UnrealizedPnL)
}

func TestValuePortfolioQuoteFailureFallsBackToAvgPrice(t *testing.T) {
	positions := []models.Position{
		{Symbol: "AAPL", Market: models.MarketUS, Shares: d("10"), AvgPrice: d("100")},
		{Symbol: "GONE", Market: models.MarketUS, Shares: d("2"), AvgPrice: d("40")},
	}
	prices := fixedPrices(map[string]string{"AAPL": "110"})

	summary := ValuePortfolio(context.Background(), d("1000"), positions, prices, d("0.3"), zap.NewNop())

	require.Len(t, summary.Positions, 2)
	degraded := summary.Positions[1]
	assert.True(t, degraded.PriceStale)
	assertDecimalEqual(t, d("40"), degraded.CurrentPrice)
	assertDecimalEqual(t, d("80"), degraded.CurrentValue)
	assert.True(t, degraded.UnrealizedPnL.IsZero())

	// 1000 + 10*110 + 80 = 2180; the valuation still completes.
	assertDecimalEqual(t, d("2180"), summary.Equity)
}

func TestMarginCallBoundaryIsStrict(t *testing.T) {
	// One short whose maintenance exactly equals equity: at the boundary
	// the account is NOT in a margin call.
	positions := []models.Position{
		{Symbol: "TSLA", Market: models.MarketUS, Shares: d("-10"), AvgPrice: d("100")},
	}
	prices := fixedPrices(map[string]string{"TSLA": "100"})

	// Short value 1000, maintenance 300. Cash 1300 → equity = 1300 − 1000 = 300.
	summary := ValuePortfolio(context.Background(), d("1300"), positions, prices, d("0.3"), zap.NewNop())
	assertDecimalEqual(t, summary.MaintenanceRequired, summary.Equity)
	assert.False(t, summary.InMarginCall)

	// One cent less and the account is under water.
	summary = ValuePortfolio(context.Background(), d("1299.99"), positions, prices, d("0.3"), zap.NewNop())
	assert.True(t, summary.InMarginCall)
}

func TestValuePortfolioEmpty(t *testing.T) {
	summary := ValuePortfolio(context.Background(), d("5000"), nil, fixedPrices(nil), d("0.3"), zap.NewNop())
	assertDecimalEqual(t, d("5000"), summary.Equity)
	assert.True(t, summary.MaintenanceRequired.IsZero())
	assert.False(t, summary.InMarginCall)
	assert.Empty(t, summary.Positions)
}
