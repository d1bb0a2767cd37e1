package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// ShortableStock marks a symbol as available for shorting, with the annual
// borrow rate assigned by the universe selector. Upserted by symbol.
type ShortableStock struct {
	Symbol           string          `gorm:"primaryKey" json:"symbol"`
	Market           Market          `gorm:"not null" json:"market"`
	BorrowRateAnnual decimal.Decimal `gorm:"type:decimal(10,6);not null" json:"borrow_rate_annual"`
	Available        bool            `gorm:"default:true" json:"available"`
	LastUpdated      time.Time       `json:"last_updated"`
}
