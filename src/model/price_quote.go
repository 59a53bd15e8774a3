package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// PriceQuote is the last price observed for a symbol during a valuation refresh.
type PriceQuote struct {
	ID        uint            `gorm:"primaryKey" json:"id"`
	Symbol    string          `gorm:"size:20;not null;uniqueIndex:ux_price_quotes_symbol" json:"symbol"`
	Price     decimal.Decimal `gorm:"type:numeric(20,8);not null" json:"price"`
	FetchedAt time.Time       `gorm:"not null" json:"fetched_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

func (PriceQuote) TableName() string {
	return "price_quotes"
}
