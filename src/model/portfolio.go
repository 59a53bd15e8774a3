package model

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Portfolio is the single portfolio owned by a user.
// The aggregate columns are a projection of Holdings and are rewritten
// on every trade and every valuation refresh.
type Portfolio struct {
	ID     uint `gorm:"primaryKey" json:"id"`
	UserID uint `gorm:"not null;uniqueIndex:ux_portfolios_user_id" json:"user_id"`

	Holdings []Holding `gorm:"foreignKey:PortfolioID;constraint:OnDelete:CASCADE" json:"holdings"`

	TotalValue           decimal.Decimal `gorm:"type:numeric(20,2);not null" json:"total_value"`
	TotalInvested        decimal.Decimal `gorm:"type:numeric(20,2);not null" json:"total_invested"`
	TotalProfitLoss      decimal.Decimal `gorm:"type:numeric(20,2);not null" json:"total_profit_loss"`
	ProfitLossPercentage decimal.Decimal `gorm:"type:numeric(20,2);not null" json:"profit_loss_percentage"`
	LastUpdated          time.Time       `json:"last_updated"`

	Version   int64     `gorm:"not null" json:"-"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (Portfolio) TableName() string {
	return "portfolios"
}

// FindHolding returns the index of the holding for symbol, or -1.
func (p *Portfolio) FindHolding(symbol string) int {
	for i := range p.Holdings {
		if p.Holdings[i].Symbol == symbol {
			return i
		}
	}
	return -1
}

// Holding is a position in one symbol. A holding with zero quantity is deleted.
type Holding struct {
	ID          uint   `gorm:"primaryKey" json:"id"`
	PortfolioID uint   `gorm:"not null;uniqueIndex:ux_holdings_portfolio_symbol,priority:1" json:"portfolio_id"`
	Symbol      string `gorm:"size:20;not null;uniqueIndex:ux_holdings_portfolio_symbol,priority:2" json:"symbol"`

	Quantity        decimal.Decimal `gorm:"type:numeric(20,8);not null" json:"quantity"`
	AverageBuyPrice decimal.Decimal `gorm:"type:numeric(20,2);not null" json:"average_buy_price"`
	TotalInvested   decimal.Decimal `gorm:"type:numeric(20,2);not null" json:"total_invested"`

	// Valuation snapshot, refreshed on read.
	CurrentPrice         decimal.Decimal `gorm:"type:numeric(20,2);not null" json:"current_price"`
	CurrentValue         decimal.Decimal `gorm:"type:numeric(20,2);not null" json:"current_value"`
	ProfitLoss           decimal.Decimal `gorm:"type:numeric(20,2);not null" json:"profit_loss"`
	ProfitLossPercentage decimal.Decimal `gorm:"type:numeric(20,2);not null" json:"profit_loss_percentage"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (Holding) TableName() string {
	return "holdings"
}

// NormalizeSymbol trims and upper-cases a ticker symbol.
func NormalizeSymbol(symbol string) string {
	return strings.ToUpper(strings.TrimSpace(symbol))
}
