package ledger

import (
	"context"
	"sync"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"tradesphere/internal/models"
)

// PriceFunc resolves a current price for a symbol on a market. Implemented by
// the marketdata router; callers inject stubs in tests.
type PriceFunc func(ctx context.Context, symbol string, market models.Market) (decimal.Decimal, error)

// PositionValue is the live valuation of one position.
type PositionValue struct {
	Symbol           string          `json:"symbol"`
	Market           models.Market   `json:"market"`
	Shares           decimal.Decimal `json:"shares"`
	AvgPrice         decimal.Decimal `json:"avg_price"`
	BorrowRateAnnual decimal.Decimal `json:"borrow_rate_annual,omitempty"`
	CurrentPrice     decimal.Decimal `json:"current_price"`
	CurrentValue     decimal.Decimal `json:"current_value"`
	UnrealizedPnL    decimal.Decimal `json:"unrealized_pnl"`
	// PriceStale is set when the quote fetch failed and the average price
	// was used instead.
	PriceStale bool `json:"price_stale,omitempty"`
}

// Summary is the live state of a whole portfolio.
type Summary struct {
	CashBalance         decimal.Decimal `json:"cash_balance"`
	Equity              decimal.Decimal `json:"equity"`
	MaintenanceRequired decimal.Decimal `json:"maintenance_required"`
	MarginHeadroom      decimal.Decimal `json:"margin_headroom"`
	InMarginCall        bool            `json:"in_margin_call"`
	Positions           []PositionValue `json:"positions"`
}

// ValuePortfolio computes live equity, exposure and margin state for a
// position set against current quotes. Quotes are fetched concurrently, one
// per position; a failed quote falls back to the position's average price so
// one bad symbol degrades the result instead of failing it.
//
// The computation is read-only and recomputed freshly on every call.
func ValuePortfolio(ctx context.Context, cash decimal.Decimal, positions []models.Position, price PriceFunc, maintenanceRate decimal.Decimal, log *zap.Logger) Summary {
	values := make([]PositionValue, len(positions))

	var wg sync.WaitGroup
	for i, p := range positions {
		wg.Add(1)
		go func(i int, p models.Position) {
			defer wg.Done()
			values[i] = valuePosition(ctx, p, price, log)
		}(i, p)
	}
	wg.Wait()

	totalLong := decimal.Zero
	totalShort := decimal.Zero
	for _, v := range values {
		if v.Shares.IsNegative() {
			totalShort = totalShort.Add(v.CurrentValue.Neg())
		} else {
			totalLong = totalLong.Add(v.CurrentValue)
		}
	}

	equity := cash.Add(totalLong).Sub(totalShort)
	maintenance := MaintenanceRequired(totalShort, maintenanceRate)

	return Summary{
		CashBalance:         cash,
		Equity:              equity,
		MaintenanceRequired: maintenance,
		MarginHeadroom:      equity.Sub(maintenance),
		InMarginCall:        equity.LessThan(maintenance),
		Positions:           values,
	}
}

func valuePosition(ctx context.Context, p models.Position, price PriceFunc, log *zap.Logger) PositionValue {
	current, err := price(ctx, p.Symbol, p.Market)
	stale := false
	if err != nil {
		log.Warn("quote unavailable, valuing at average price",
			zap.String("symbol", p.Symbol),
			zap.String("market", string(p.Market)),
			zap.Error(err),
		)
		current = p.AvgPrice
		stale = true
	}

	return PositionValue{
		Symbol:           p.Symbol,
		Market:           p.Market,
		Shares:           p.Shares,
		AvgPrice:         p.AvgPrice,
		BorrowRateAnnual: p.BorrowRateAnnual,
		CurrentPrice:     current,
		CurrentValue:     p.Shares.Mul(current),
		UnrealizedPnL:    current.Sub(p.AvgPrice).Mul(p.Shares),
		PriceStale:       stale,
	}
}
