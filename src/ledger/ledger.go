// Package ledger holds the average-cost accounting used by the portfolio core.
// Every function is pure; money values are rounded to currency precision
// (half away from zero) before they are returned.
package ledger

import (
	"errors"

	"github.com/shopspring/decimal"
)

// MoneyPlaces is the number of decimal places kept for currency amounts.
const MoneyPlaces = 2

// QuantityPlaces is the number of decimal places stored for share quantities and prices.
const QuantityPlaces = 8

var (
	ErrInsufficientQuantity = errors.New("insufficient quantity")
	ErrNonPositiveQuantity  = errors.New("quantity must be positive")

	hundred = decimal.NewFromInt(100)
)

// Position is the authoritative state of a holding.
type Position struct {
	Quantity        decimal.Decimal
	AverageBuyPrice decimal.Decimal
	TotalInvested   decimal.Decimal
}

// Valuation is the derived view of a position at a given market price.
type Valuation struct {
	CurrentPrice         decimal.Decimal
	CurrentValue         decimal.Decimal
	ProfitLoss           decimal.Decimal
	ProfitLossPercentage decimal.Decimal
}

// Totals are the portfolio-wide aggregates.
type Totals struct {
	TotalInvested        decimal.Decimal
	TotalValue           decimal.Decimal
	TotalProfitLoss      decimal.Decimal
	ProfitLossPercentage decimal.Decimal
}

// Line is the per-holding input to AggregateTotals.
type Line struct {
	TotalInvested decimal.Decimal
	CurrentValue  decimal.Decimal
}

// Round rounds a money amount to MoneyPlaces.
func Round(d decimal.Decimal) decimal.Decimal {
	return d.Round(MoneyPlaces)
}

// TradeAmount is the cash value of a trade: quantity x price at currency precision.
// The same amount is debited/credited to the balance and recorded on the transaction.
func TradeAmount(quantity, price decimal.Decimal) decimal.Decimal {
	return Round(quantity.Mul(price))
}

// ApplyBuy merges a purchase into prior, or opens a new position when prior is nil.
func ApplyBuy(prior *Position, quantity, price decimal.Decimal) Position {
	cost := TradeAmount(quantity, price)
	if prior == nil || !prior.Quantity.IsPositive() {
		return Position{
			Quantity:        quantity,
			AverageBuyPrice: Round(price),
			TotalInvested:   cost,
		}
	}

	newQuantity := prior.Quantity.Add(quantity)
	newInvested := Round(prior.TotalInvested.Add(cost))

	return Position{
		Quantity:        newQuantity,
		AverageBuyPrice: Round(newInvested.Div(newQuantity)),
		TotalInvested:   newInvested,
	}
}

// ApplySell reduces pos by quantity. The average buy price is kept and the cost
// basis shrinks proportionally. removed is true when the quantity reaches zero,
// in which case the returned position is the zero value.
func ApplySell(pos Position, quantity decimal.Decimal) (next Position, removed bool, err error) {
	if !quantity.IsPositive() {
		return pos, false, ErrNonPositiveQuantity
	}
	if quantity.GreaterThan(pos.Quantity) {
		return pos, false, ErrInsufficientQuantity
	}

	remaining := pos.Quantity.Sub(quantity)
	if remaining.IsZero() {
		return Position{}, true, nil
	}

	// invested * remaining / quantity keeps precision better than dividing first.
	remainingInvested := Round(pos.TotalInvested.Mul(remaining).Div(pos.Quantity))

	return Position{
		Quantity:        remaining,
		AverageBuyPrice: pos.AverageBuyPrice,
		TotalInvested:   remainingInvested,
	}, false, nil
}

// Valuate prices a position at the given market price.
func Valuate(pos Position, price decimal.Decimal) Valuation {
	value := price.Mul(pos.Quantity)
	pl := value.Sub(pos.TotalInvested)

	return Valuation{
		CurrentPrice:         Round(price),
		CurrentValue:         Round(value),
		ProfitLoss:           Round(pl),
		ProfitLossPercentage: percentage(pl, pos.TotalInvested),
	}
}

// AggregateTotals sums invested and current value over all lines.
// The percentage is 0 when nothing is invested.
func AggregateTotals(lines []Line) Totals {
	invested := decimal.Zero
	value := decimal.Zero
	for _, l := range lines {
		invested = invested.Add(l.TotalInvested)
		value = value.Add(l.CurrentValue)
	}
	pl := value.Sub(invested)

	return Totals{
		TotalInvested:        Round(invested),
		TotalValue:           Round(value),
		TotalProfitLoss:      Round(pl),
		ProfitLossPercentage: percentage(pl, invested),
	}
}

func percentage(pl, invested decimal.Decimal) decimal.Decimal {
	if !invested.IsPositive() {
		return decimal.Zero
	}
	return Round(pl.Div(invested).Mul(hundred))
}
