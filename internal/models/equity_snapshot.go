package models

import (
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// EquitySnapshot is a write-only audit record of a user's equity at a point
// in time. It is never read back into live margin calculations.
type EquitySnapshot struct {
	gorm.Model
	UserID              uint            `gorm:"index;not null" json:"user_id"`
	TotalEquity         decimal.Decimal `gorm:"type:decimal(20,4);not null" json:"total_equity"`
	MaintenanceRequired decimal.Decimal `gorm:"type:decimal(20,4);not null" json:"maintenance_required"`
}
