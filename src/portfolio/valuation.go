package portfolio

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"
	logger "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"

	"stocksim/src/ledger"
	"stocksim/src/model"
	"stocksim/src/repository"
)

// recentTransactionsLimit is the number of trades returned with holding details.
const recentTransactionsLimit = 50

// maxConcurrentLookups bounds the parallel price lookups of one valuation.
const maxConcurrentLookups = 8

type HoldingDetails struct {
	Holding      model.Holding       `json:"holding"`
	Transactions []model.Transaction `json:"transactions"`
}

// quotePrices looks up every symbol in parallel. All lookups finish before it returns.
func (s *Service) quotePrices(ctx context.Context, symbols []string) map[string]decimal.Decimal {
	prices := make([]decimal.Decimal, len(symbols))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxConcurrentLookups)
	for i, symbol := range symbols {
		i, symbol := i, symbol
		g.Go(func() error {
			prices[i] = s.oracle.GetPrice(gctx, symbol)
			return nil
		})
	}
	_ = g.Wait() // the oracle never fails

	out := make(map[string]decimal.Decimal, len(symbols))
	for i, symbol := range symbols {
		out[symbol] = prices[i]
	}
	return out
}

// GetPortfolio revalues every holding at the current market price and returns
// the portfolio with refreshed totals. The refreshed snapshot and the quotes are
// persisted; a user without a portfolio gets an empty one.
func (s *Service) GetPortfolio(ctx context.Context, userID uint) (*model.Portfolio, error) {
	log := logger.WithFields(logger.Fields{
		"component": "portfolio",
		"op":        "GetPortfolio",
		"user_id":   userID,
	})

	p, err := s.getPortfolioLocked(ctx, log, userID)
	if err != nil {
		return nil, s.fail(ctx, log, "GetPortfolio", userID, "", err)
	}
	return p, nil
}

func (s *Service) getPortfolioLocked(ctx context.Context, log *logger.Entry, userID uint) (*model.Portfolio, error) {
	ctx, unlock, err := s.lockUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	p, err := s.portfolios.FindByUserID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if p == nil {
		p, err = s.createEmptyPortfolio(ctx, log, userID)
		if err != nil {
			return nil, err
		}
	}

	symbols := make([]string, 0, len(p.Holdings))
	for _, h := range p.Holdings {
		symbols = append(symbols, h.Symbol)
	}
	prices := s.quotePrices(ctx, symbols)

	now := s.now()
	for i := range p.Holdings {
		h := &p.Holdings[i]
		applyValuation(h, ledger.Valuate(positionOf(h), prices[h.Symbol]))
	}
	applyTotals(p, now)

	quotes := make([]model.PriceQuote, 0, len(symbols))
	for _, symbol := range symbols {
		quotes = append(quotes, model.PriceQuote{Symbol: symbol, Price: prices[symbol], FetchedAt: now, UpdatedAt: now})
	}

	// The aggregates go first so a concurrent writer is detected before any
	// holding row is touched.
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		portfolios := s.portfolios.WithDB(tx)
		if err := portfolios.UpdateAggregates(ctx, p); err != nil {
			return err
		}
		for i := range p.Holdings {
			if err := portfolios.UpdateValuation(ctx, &p.Holdings[i]); err != nil {
				return err
			}
		}
		return s.quotes.WithDB(tx).Upsert(ctx, quotes)
	})
	if errors.Is(err, repository.ErrStaleRecord) {
		// Another process committed a trade in between; the view is still
		// correct for the holdings we read, only the snapshot is not stored.
		log.Warn("Portfolio changed during valuation, snapshot not persisted")
		return p, nil
	}
	if err != nil {
		return nil, err
	}

	log.WithFields(logger.Fields{
		"holdings":    len(p.Holdings),
		"total_value": p.TotalValue.String(),
	}).Debug("Portfolio valuation refreshed")
	return p, nil
}

func (s *Service) createEmptyPortfolio(ctx context.Context, log *logger.Entry, userID uint) (*model.Portfolio, error) {
	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, ErrUserNotFound
	}

	p := &model.Portfolio{UserID: userID, LastUpdated: s.now()}
	err = s.portfolios.Create(ctx, p)
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		// created by another process meanwhile
		p, err = s.portfolios.FindByUserID(ctx, userID)
		if err == nil && p == nil {
			err = ErrConcurrentModification
		}
	}
	if err != nil {
		return nil, err
	}

	log.Info("Created empty portfolio")
	return p, nil
}

// GetHoldingDetails revalues one holding and returns it with its most recent
// transactions, newest first. Nothing is persisted.
func (s *Service) GetHoldingDetails(ctx context.Context, userID uint, symbol string) (*HoldingDetails, error) {
	symbol = model.NormalizeSymbol(symbol)
	log := logger.WithFields(logger.Fields{
		"component": "portfolio",
		"op":        "GetHoldingDetails",
		"user_id":   userID,
		"symbol":    symbol,
	})

	if symbol == "" {
		return nil, invalidInput("Valid symbol is required")
	}

	p, err := s.portfolios.WithDB(s.readDB).FindByUserID(ctx, userID)
	if err != nil {
		return nil, s.fail(ctx, log, "GetHoldingDetails", userID, symbol, err)
	}
	if p == nil {
		return nil, ErrPortfolioNotFound
	}

	idx := p.FindHolding(symbol)
	if idx < 0 {
		return nil, holdingNotFound(symbol)
	}
	holding := p.Holdings[idx]
	applyValuation(&holding, ledger.Valuate(positionOf(&holding), s.oracle.GetPrice(ctx, symbol)))

	txs, _, err := s.transactions.WithDB(s.readDB).Search(ctx, repository.TransactionSearchOptions{
		UserID: userID,
		Symbol: &symbol,
		Limit:  recentTransactionsLimit,
	})
	if err != nil {
		return nil, s.fail(ctx, log, "GetHoldingDetails", userID, symbol, err)
	}

	return &HoldingDetails{Holding: holding, Transactions: txs}, nil
}
