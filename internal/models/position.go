package models

import (
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Position is a user's net holding in one symbol/market. Shares are signed:
// positive means long, negative means short. AvgPrice is only meaningful
// relative to the current sign of Shares; a sign flip resets it to the trade
// price instead of blending across the flip.
type Position struct {
	gorm.Model
	UserID           uint            `gorm:"index;uniqueIndex:idx_user_symbol_market" json:"user_id"`
	Symbol           string          `gorm:"index;uniqueIndex:idx_user_symbol_market;not null" json:"symbol"`
	Market           Market          `gorm:"uniqueIndex:idx_user_symbol_market;not null" json:"market"`
	Shares           decimal.Decimal `gorm:"type:decimal(20,8);not null" json:"shares"`
	AvgPrice         decimal.Decimal `gorm:"type:decimal(20,8);not null" json:"avg_price"`
	BorrowRateAnnual decimal.Decimal `gorm:"type:decimal(10,6)" json:"borrow_rate_annual"`
	// LastInterestDay holds the UTC date (YYYY-MM-DD) borrow interest was
	// last applied, so the daily accrual job can be re-run safely.
	LastInterestDay string `json:"last_interest_day,omitempty"`
}

// IsShort reports whether the position is net short.
func (p *Position) IsShort() bool {
	return p.Shares.IsNegative()
}

// IsFlat reports whether the position has netted out to zero shares.
func (p *Position) IsFlat() bool {
	return p.Shares.IsZero()
}
