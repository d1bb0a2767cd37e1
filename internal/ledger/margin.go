package ledger

import "github.com/shopspring/decimal"

// InitialShortMargin is the cash an account must hold to open a short of the
// given notional, expressed as a multiple of that notional.
func InitialShortMargin(notional, multiplier decimal.Decimal) decimal.Decimal {
	return notional.Mul(multiplier)
}

// MaintenanceRequired is the minimum equity needed to keep short exposure of
// the given value open.
func MaintenanceRequired(shortValue, maintenanceRate decimal.Decimal) decimal.Decimal {
	return shortValue.Mul(maintenanceRate)
}

// DailyShortInterest prorates an annual borrow rate over one day:
// notional * rate / dayCount. Simple proration, not compounded.
func DailyShortInterest(notional, annualRate decimal.Decimal, dayCount int64) decimal.Decimal {
	return notional.Mul(annualRate).Div(decimal.NewFromInt(dayCount))
}
