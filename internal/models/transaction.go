package models

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// TransactionType is the direction of an executed trade.
type TransactionType string

const (
	TxBuy   TransactionType = "BUY"
	TxSell  TransactionType = "SELL"
	TxShort TransactionType = "SHORT"
	TxCover TransactionType = "COVER"
)

// ParseTransactionType validates a trade type from a request.
func ParseTransactionType(s string) (TransactionType, error) {
	switch TransactionType(s) {
	case TxBuy, TxSell, TxShort, TxCover:
		return TransactionType(s), nil
	}
	return "", fmt.Errorf("invalid transaction type %q", s)
}

// Transaction is an immutable, append-only trade record. Quantity is always
// positive regardless of direction; Type carries the sign semantics.
type Transaction struct {
	gorm.Model
	UserID      uint            `gorm:"index;not null" json:"user_id"`
	Symbol      string          `gorm:"not null" json:"symbol"`
	Market      Market          `gorm:"not null" json:"market"`
	Type        TransactionType `gorm:"not null" json:"type"`
	Quantity    decimal.Decimal `gorm:"type:decimal(20,8);not null" json:"quantity"`
	Price       decimal.Decimal `gorm:"type:decimal(20,8);not null" json:"price"`
	Fees        decimal.Decimal `gorm:"type:decimal(20,8)" json:"fees"`
	TotalAmount decimal.Decimal `gorm:"type:decimal(20,8);not null" json:"total_amount"`
	Timestamp   time.Time       `gorm:"index" json:"timestamp"`
}
