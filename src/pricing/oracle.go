package pricing

import (
	"context"
	"time"

	"github.com/patrickmn/go-cache"
	"github.com/shopspring/decimal"
	logger "github.com/sirupsen/logrus"
)

// Feed is the upstream source of market prices.
type Feed interface {
	Fetch(ctx context.Context, symbol string) (decimal.Decimal, error)
}

// Oracle answers the current price of a symbol. It never fails: when the feed is
// slow, down or answers garbage, the fallback table is used instead.
type Oracle struct {
	feed     Feed
	fallback FallbackTable
	timeout  time.Duration
	cache    *cache.Cache
}

// NewOracle builds an oracle. A zero timeout disables the per-lookup deadline and
// a zero cacheTTL disables caching.
func NewOracle(feed Feed, fallback FallbackTable, timeout, cacheTTL time.Duration) *Oracle {
	o := &Oracle{
		feed:     feed,
		fallback: fallback,
		timeout:  timeout,
	}
	if cacheTTL > 0 {
		o.cache = cache.New(cacheTTL, 2*cacheTTL)
	}
	return o
}

// NewOracleFromConfig wires the HTTP feed client and the built-in fallback table.
func NewOracleFromConfig(cfg Config) *Oracle {
	defaultPrice, err := decimal.NewFromString(cfg.DefaultPrice)
	if err != nil || !defaultPrice.IsPositive() {
		defaultPrice = decimal.NewFromInt(100)
	}

	fallback := DefaultFallbackTable()
	fallback = NewFallbackTable(fallback.prices, defaultPrice)

	return NewOracle(
		NewFeedClient(cfg.FeedURL, cfg.FeedTimeout, cfg.FeedRetries),
		fallback,
		cfg.FeedTimeout,
		cfg.CacheTTL,
	)
}

// GetPrice returns a positive price for symbol.
func (o *Oracle) GetPrice(ctx context.Context, symbol string) decimal.Decimal {
	if o.cache != nil {
		if cached, ok := o.cache.Get(symbol); ok {
			return cached.(decimal.Decimal)
		}
	}

	if o.feed != nil {
		lookupCtx := ctx
		if o.timeout > 0 {
			var cancel context.CancelFunc
			lookupCtx, cancel = context.WithTimeout(ctx, o.timeout)
			defer cancel()
		}

		price, err := o.feed.Fetch(lookupCtx, symbol)
		if err == nil && price.IsPositive() {
			if o.cache != nil {
				o.cache.SetDefault(symbol, price)
			}
			return price
		}

		logger.WithFields(logger.Fields{
			"component": "pricing",
			"symbol":    symbol,
		}).WithError(err).Warn("price feed unavailable, using fallback price")
	}

	return o.fallback.Lookup(symbol)
}
