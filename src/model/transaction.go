package model

import (
	"time"

	"github.com/shopspring/decimal"
)

type TransactionType string

const (
	TransactionTypeBuy  TransactionType = "BUY"
	TransactionTypeSell TransactionType = "SELL"
)

// Valid reports whether t is one of the known trade types.
func (t TransactionType) Valid() bool {
	return t == TransactionTypeBuy || t == TransactionTypeSell
}

// Transaction is an immutable record of an accepted trade. Rows are only ever inserted.
type Transaction struct {
	ID        uint   `gorm:"primaryKey" json:"id"`
	Reference string `gorm:"size:36;uniqueIndex" json:"reference"`

	UserID      uint            `gorm:"not null;index:idx_transactions_user_timestamp,priority:1;index:idx_transactions_user_symbol,priority:1;index:idx_transactions_user_type,priority:1" json:"user_id"`
	Type        TransactionType `gorm:"size:4;not null;index:idx_transactions_user_type,priority:2" json:"type"`
	Symbol      string          `gorm:"size:20;not null;index:idx_transactions_user_symbol,priority:2" json:"symbol"`
	Quantity    decimal.Decimal `gorm:"type:numeric(20,8);not null" json:"quantity"`
	Price       decimal.Decimal `gorm:"type:numeric(20,8);not null" json:"price"`
	TotalAmount decimal.Decimal `gorm:"type:numeric(20,2);not null" json:"total_amount"`
	Timestamp   time.Time       `gorm:"not null;index:idx_transactions_user_timestamp,priority:2" json:"timestamp"`
	CreatedAt   time.Time       `json:"created_at"`
}

func (Transaction) TableName() string {
	return "transactions"
}
