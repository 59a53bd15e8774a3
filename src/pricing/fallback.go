package pricing

import "github.com/shopspring/decimal"

// FallbackTable is an immutable symbol -> last known price lookup.
// The zero value has no entries and answers every symbol with the default price.
type FallbackTable struct {
	prices       map[string]decimal.Decimal
	defaultPrice decimal.Decimal
}

// NewFallbackTable copies prices so later changes to the caller's map are not observed.
func NewFallbackTable(prices map[string]decimal.Decimal, defaultPrice decimal.Decimal) FallbackTable {
	copied := make(map[string]decimal.Decimal, len(prices))
	for symbol, price := range prices {
		copied[symbol] = price
	}
	return FallbackTable{prices: copied, defaultPrice: defaultPrice}
}

// DefaultFallbackTable returns the built-in last known prices with a default of 100.
func DefaultFallbackTable() FallbackTable {
	return NewFallbackTable(map[string]decimal.Decimal{
		"AAPL":  decimal.RequireFromString("150.25"),
		"GOOGL": decimal.RequireFromString("2750.80"),
		"TSLA":  decimal.RequireFromString("245.60"),
		"MSFT":  decimal.RequireFromString("305.15"),
		"AMZN":  decimal.RequireFromString("3400.25"),
		"META":  decimal.RequireFromString("325.75"),
		"NFLX":  decimal.RequireFromString("415.50"),
		"NVDA":  decimal.RequireFromString("225.30"),
	}, decimal.NewFromInt(100))
}

// Lookup returns the table price for symbol or the default price.
func (t FallbackTable) Lookup(symbol string) decimal.Decimal {
	if p, ok := t.prices[symbol]; ok {
		return p
	}
	if t.defaultPrice.IsPositive() {
		return t.defaultPrice
	}
	return decimal.NewFromInt(100)
}
