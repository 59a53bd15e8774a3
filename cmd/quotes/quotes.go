package quotes

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	logger "github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"stocksim/src/model"
	"stocksim/src/repository"
)

type priceOracle interface {
	GetPrice(ctx context.Context, symbol string) decimal.Decimal
}

// QuoteRefresher pulls the latest price of every held symbol into price_quotes.
type QuoteRefresher struct {
	Log    *logger.Entry
	DB     *gorm.DB
	Config *Config
	Oracle priceOracle
}

func (q *QuoteRefresher) Start(ctx context.Context) error {
	if q.Config == nil {
		q.Config = GetConfig()
	}

	if err := q.refreshAndSave(ctx); err != nil {
		return err
	}
	if !q.Config.AutoMode {
		return nil
	}

	ticker := time.NewTicker(q.Config.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			q.Log.Info("quote refresher stopped")
			return nil
		case <-ticker.C:
			if err := q.refreshAndSave(ctx); err != nil {
				q.Log.WithError(err).Error("refresh cycle failed")
			}
		}
	}
}

func (q *QuoteRefresher) symbols(ctx context.Context) ([]string, error) {
	if len(q.Config.Symbols) > 0 {
		out := make([]string, 0, len(q.Config.Symbols))
		for _, s := range q.Config.Symbols {
			if s = model.NormalizeSymbol(s); s != "" {
				out = append(out, s)
			}
		}
		return out, nil
	}
	return repository.NewPortfolioRepositoryWithDB(q.DB).HeldSymbols(ctx)
}

func (q *QuoteRefresher) refreshAndSave(ctx context.Context) error {
	symbols, err := q.symbols(ctx)
	if err != nil {
		q.Log.WithError(err).Error("refreshAndSave, symbols")
		return err
	}
	if len(symbols) == 0 {
		q.Log.Info("no symbols to refresh")
		return nil
	}

	now := time.Now().UTC()
	quotes := make([]model.PriceQuote, 0, len(symbols))
	for _, symbol := range symbols {
		price := q.Oracle.GetPrice(ctx, symbol)
		quotes = append(quotes, model.PriceQuote{
			Symbol:    symbol,
			Price:     price,
			FetchedAt: now,
			UpdatedAt: now,
		})
	}

	if err := repository.NewPriceQuoteRepositoryWithDB(q.DB).Upsert(ctx, quotes); err != nil {
		q.Log.WithError(err).Error("refreshAndSave, Upsert")
		return err
	}

	q.Log.WithFields(logger.Fields{
		"symbols":   len(quotes),
		"timestamp": now,
	}).Info("price quotes inserted or updated in database")

	return nil
}

// Quote is a live price next to the last snapshot stored for the same symbol.
type Quote struct {
	Symbol string
	Price  decimal.Decimal
	Stored *model.PriceQuote
}

// Lookup prices symbol through the oracle. Stored is nil without a DB or
// when the symbol was never refreshed.
func (q *QuoteRefresher) Lookup(ctx context.Context, symbol string) (*Quote, error) {
	quote := &Quote{Symbol: symbol, Price: q.Oracle.GetPrice(ctx, symbol)}
	if q.DB == nil {
		return quote, nil
	}

	stored, err := repository.NewPriceQuoteRepositoryWithDB(q.DB).FindBySymbol(ctx, symbol)
	if err != nil {
		q.Log.WithError(err).Error("Lookup, FindBySymbol")
		return nil, err
	}
	quote.Stored = stored
	return quote, nil
}
