package portfolio

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	logger "github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"stocksim/src/events"
	"stocksim/src/ledger"
	"stocksim/src/model"
)

const maxSymbolLength = 20

type BuyReceipt struct {
	Reference  string          `json:"reference"`
	Symbol     string          `json:"symbol"`
	Quantity   decimal.Decimal `json:"quantity"`
	Price      decimal.Decimal `json:"price"`
	TotalCost  decimal.Decimal `json:"totalCost"`
	NewBalance decimal.Decimal `json:"newBalance"`
	Timestamp  time.Time       `json:"timestamp"`
}

type SellReceipt struct {
	Reference  string          `json:"reference"`
	Symbol     string          `json:"symbol"`
	Quantity   decimal.Decimal `json:"quantity"`
	Price      decimal.Decimal `json:"price"`
	SaleValue  decimal.Decimal `json:"saleValue"`
	NewBalance decimal.Decimal `json:"newBalance"`
	Timestamp  time.Time       `json:"timestamp"`
}

// validateTrade lists every violated field at once.
func validateTrade(symbol string, quantity, price decimal.Decimal) error {
	var violations []string
	if symbol == "" {
		violations = append(violations, "Valid symbol is required")
	} else if len(symbol) > maxSymbolLength {
		violations = append(violations, "Symbol must be at most 20 characters")
	}
	if !quantity.IsPositive() {
		violations = append(violations, "Valid positive quantity is required")
	} else if !quantity.Equal(quantity.Truncate(ledger.QuantityPlaces)) {
		violations = append(violations, "Quantity must have at most 8 decimal places")
	}
	if !price.IsPositive() {
		violations = append(violations, "Valid positive price is required")
	} else if !price.Equal(price.Truncate(ledger.QuantityPlaces)) {
		violations = append(violations, "Price must have at most 8 decimal places")
	}
	if quantity.IsPositive() && price.IsPositive() && ledger.TradeAmount(quantity, price).IsZero() {
		violations = append(violations, "Trade amount must be at least 0.01")
	}
	if len(violations) > 0 {
		return invalidInput(violations...)
	}
	return nil
}

func positionOf(h *model.Holding) ledger.Position {
	return ledger.Position{
		Quantity:        h.Quantity,
		AverageBuyPrice: h.AverageBuyPrice,
		TotalInvested:   h.TotalInvested,
	}
}

func applyPosition(h *model.Holding, pos ledger.Position) {
	h.Quantity = pos.Quantity
	h.AverageBuyPrice = pos.AverageBuyPrice
	h.TotalInvested = pos.TotalInvested
}

func applyValuation(h *model.Holding, v ledger.Valuation) {
	h.CurrentPrice = v.CurrentPrice
	h.CurrentValue = v.CurrentValue
	h.ProfitLoss = v.ProfitLoss
	h.ProfitLossPercentage = v.ProfitLossPercentage
}

// applyTotals recomputes the cached aggregates from the holdings' current values.
func applyTotals(p *model.Portfolio, at time.Time) {
	lines := make([]ledger.Line, 0, len(p.Holdings))
	for _, h := range p.Holdings {
		lines = append(lines, ledger.Line{TotalInvested: h.TotalInvested, CurrentValue: h.CurrentValue})
	}
	totals := ledger.AggregateTotals(lines)

	p.TotalInvested = totals.TotalInvested
	p.TotalValue = totals.TotalValue
	p.TotalProfitLoss = totals.TotalProfitLoss
	p.ProfitLossPercentage = totals.ProfitLossPercentage
	p.LastUpdated = at
}

// Buy debits quantity x price from the balance, merges the purchase into the
// holding, appends a BUY transaction and refreshes the portfolio totals.
func (s *Service) Buy(ctx context.Context, userID uint, symbol string, quantity, price decimal.Decimal) (*BuyReceipt, error) {
	symbol = model.NormalizeSymbol(symbol)
	log := logger.WithFields(logger.Fields{
		"component": "portfolio",
		"op":        "Buy",
		"user_id":   userID,
		"symbol":    symbol,
		"qty":       quantity.String(),
		"price":     price.String(),
	})

	if err := validateTrade(symbol, quantity, price); err != nil {
		log.WithError(err).Info("Rejected invalid buy")
		return nil, err
	}

	receipt, err := s.buyLocked(ctx, log, userID, symbol, quantity, price)
	if err != nil {
		return nil, s.fail(ctx, log, "Buy", userID, symbol, err)
	}

	log.WithFields(logger.Fields{
		"reference":   receipt.Reference,
		"new_balance": receipt.NewBalance.String(),
	}).Info("Buy committed")

	s.publish(ctx, events.TradeEvent{
		Reference:   receipt.Reference,
		UserID:      userID,
		Type:        string(model.TransactionTypeBuy),
		Symbol:      symbol,
		Quantity:    quantity,
		Price:       price,
		TotalAmount: receipt.TotalCost,
		NewBalance:  receipt.NewBalance,
		Timestamp:   receipt.Timestamp,
	})
	return receipt, nil
}

func (s *Service) buyLocked(ctx context.Context, log *logger.Entry, userID uint, symbol string, quantity, price decimal.Decimal) (*BuyReceipt, error) {
	ctx, unlock, err := s.lockUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	marketPrice := s.oracle.GetPrice(ctx, symbol)
	cost := ledger.TradeAmount(quantity, price)

	var receipt *BuyReceipt
	err = s.commit(ctx, log, func(tx *gorm.DB) error {
		now := s.now()

		user, err := s.loadUser(ctx, tx, userID)
		if err != nil {
			return err
		}
		if user.Balance.LessThan(cost) {
			return insufficientBalance(cost, user.Balance)
		}

		portfolios := s.portfolios.WithDB(tx)
		p, err := portfolios.FindByUserID(ctx, userID)
		if err != nil {
			return err
		}
		if p == nil {
			p = &model.Portfolio{UserID: userID, LastUpdated: now}
			if err := portfolios.Create(ctx, p); err != nil {
				return err
			}
		}

		idx := p.FindHolding(symbol)
		var holding model.Holding
		var prior *ledger.Position
		if idx >= 0 {
			holding = p.Holdings[idx]
			pos := positionOf(&holding)
			prior = &pos
		} else {
			holding = model.Holding{PortfolioID: p.ID, Symbol: symbol}
		}

		next := ledger.ApplyBuy(prior, quantity, price)
		applyPosition(&holding, next)
		applyValuation(&holding, ledger.Valuate(next, marketPrice))
		if err := portfolios.SaveHolding(ctx, &holding); err != nil {
			return err
		}
		if idx >= 0 {
			p.Holdings[idx] = holding
		} else {
			p.Holdings = append(p.Holdings, holding)
		}

		user.Balance = ledger.Round(user.Balance.Sub(cost))
		if err := s.users.WithDB(tx).UpdateBalance(ctx, user); err != nil {
			return err
		}

		record := &model.Transaction{
			Reference:   uuid.NewString(),
			UserID:      userID,
			Type:        model.TransactionTypeBuy,
			Symbol:      symbol,
			Quantity:    quantity,
			Price:       price,
			TotalAmount: cost,
			Timestamp:   now,
		}
		if err := s.transactions.WithDB(tx).Append(ctx, record); err != nil {
			return err
		}

		applyTotals(p, now)
		if err := portfolios.UpdateAggregates(ctx, p); err != nil {
			return err
		}

		receipt = &BuyReceipt{
			Reference:  record.Reference,
			Symbol:     symbol,
			Quantity:   quantity,
			Price:      price,
			TotalCost:  cost,
			NewBalance: user.Balance,
			Timestamp:  now,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return receipt, nil
}

// Sell credits quantity x price to the balance, reduces or removes the holding,
// appends a SELL transaction and refreshes the portfolio totals.
func (s *Service) Sell(ctx context.Context, userID uint, symbol string, quantity, price decimal.Decimal) (*SellReceipt, error) {
	symbol = model.NormalizeSymbol(symbol)
	log := logger.WithFields(logger.Fields{
		"component": "portfolio",
		"op":        "Sell",
		"user_id":   userID,
		"symbol":    symbol,
		"qty":       quantity.String(),
		"price":     price.String(),
	})

	if err := validateTrade(symbol, quantity, price); err != nil {
		log.WithError(err).Info("Rejected invalid sell")
		return nil, err
	}

	receipt, err := s.sellLocked(ctx, log, userID, symbol, quantity, price)
	if err != nil {
		return nil, s.fail(ctx, log, "Sell", userID, symbol, err)
	}

	log.WithFields(logger.Fields{
		"reference":   receipt.Reference,
		"new_balance": receipt.NewBalance.String(),
	}).Info("Sell committed")

	s.publish(ctx, events.TradeEvent{
		Reference:   receipt.Reference,
		UserID:      userID,
		Type:        string(model.TransactionTypeSell),
		Symbol:      symbol,
		Quantity:    quantity,
		Price:       price,
		TotalAmount: receipt.SaleValue,
		NewBalance:  receipt.NewBalance,
		Timestamp:   receipt.Timestamp,
	})
	return receipt, nil
}

func (s *Service) sellLocked(ctx context.Context, log *logger.Entry, userID uint, symbol string, quantity, price decimal.Decimal) (*SellReceipt, error) {
	ctx, unlock, err := s.lockUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	marketPrice := s.oracle.GetPrice(ctx, symbol)
	proceeds := ledger.TradeAmount(quantity, price)

	var receipt *SellReceipt
	err = s.commit(ctx, log, func(tx *gorm.DB) error {
		now := s.now()

		user, err := s.loadUser(ctx, tx, userID)
		if err != nil {
			return err
		}

		portfolios := s.portfolios.WithDB(tx)
		p, err := portfolios.FindByUserID(ctx, userID)
		if err != nil {
			return err
		}
		if p == nil {
			return ErrPortfolioNotFound
		}

		idx := p.FindHolding(symbol)
		if idx < 0 {
			return holdingNotFound(symbol)
		}
		holding := p.Holdings[idx]

		next, removed, err := ledger.ApplySell(positionOf(&holding), quantity)
		if err != nil {
			return insufficientQuantity(symbol, quantity, holding.Quantity)
		}

		if removed {
			if err := portfolios.DeleteHolding(ctx, holding.ID); err != nil {
				return err
			}
			p.Holdings = append(p.Holdings[:idx], p.Holdings[idx+1:]...)
		} else {
			applyPosition(&holding, next)
			applyValuation(&holding, ledger.Valuate(next, marketPrice))
			if err := portfolios.SaveHolding(ctx, &holding); err != nil {
				return err
			}
			p.Holdings[idx] = holding
		}

		user.Balance = ledger.Round(user.Balance.Add(proceeds))
		if err := s.users.WithDB(tx).UpdateBalance(ctx, user); err != nil {
			return err
		}

		record := &model.Transaction{
			Reference:   uuid.NewString(),
			UserID:      userID,
			Type:        model.TransactionTypeSell,
			Symbol:      symbol,
			Quantity:    quantity,
			Price:       price,
			TotalAmount: proceeds,
			Timestamp:   now,
		}
		if err := s.transactions.WithDB(tx).Append(ctx, record); err != nil {
			return err
		}

		applyTotals(p, now)
		if err := portfolios.UpdateAggregates(ctx, p); err != nil {
			return err
		}

		receipt = &SellReceipt{
			Reference:  record.Reference,
			Symbol:     symbol,
			Quantity:   quantity,
			Price:      price,
			SaleValue:  proceeds,
			NewBalance: user.Balance,
			Timestamp:  now,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return receipt, nil
}
