package ledger

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"tradesphere/internal/models"
)

// InterestCharge is one day's borrow interest computed for a single short
// position.
type InterestCharge struct {
	UserID   uint            `json:"user_id"`
	Symbol   string          `json:"symbol"`
	Market   models.Market   `json:"market"`
	Interest decimal.Decimal `json:"interest"`
}

// DayKey formats a time as the UTC date key used for accrual idempotency.
func DayKey(t time.Time) string {
	return t.UTC().Format("2006-01-02")
}

// AccrueDailyInterest computes one day's borrow interest for every open short
// in positions. Positions that already accrued for asOfDay are skipped, so
// re-running the job within the same day is a no-op for them. A failed quote
// skips that position and continues; charges already computed stand.
//
// The caller is responsible for debiting each owner's cash and stamping the
// position's LastInterestDay.
func AccrueDailyInterest(ctx context.Context, positions []models.Position, price PriceFunc, dayCount int64, asOfDay string, log *zap.Logger) []InterestCharge {
	charges := make([]InterestCharge, 0, len(positions))

	for _, p := range positions {
		if !p.IsShort() {
			continue
		}
		if p.LastInterestDay == asOfDay {
			log.Debug("interest already accrued for day, skipping",
				zap.String("symbol", p.Symbol),
				zap.Uint("user_id", p.UserID),
				zap.String("day", asOfDay),
			)
			continue
		}

		current, err := price(ctx, p.Symbol, p.Market)
		if err != nil {
			log.Warn("quote unavailable, skipping interest accrual for position",
				zap.String("symbol", p.Symbol),
				zap.Uint("user_id", p.UserID),
				zap.Error(err),
			)
			continue
		}

		notional := p.Shares.Neg().Mul(current)
		charges = append(charges, InterestCharge{
			UserID:   p.UserID,
			Symbol:   p.Symbol,
			Market:   p.Market,
			Interest: DailyShortInterest(notional, p.BorrowRateAnnual, dayCount),
		})
	}

	return charges
}
