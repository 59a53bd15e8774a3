package pricing

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/PaesslerAG/jsonpath"
	"github.com/go-resty/resty/v2"
	"github.com/shopspring/decimal"
)

const (
	defaultRetryBaseDelay  = 100 * time.Millisecond
	defaultRetryMaxBackoff = 1 * time.Second
)

// ErrUpstreamPriceUnavailable is returned by the feed client when no usable price
// could be read. The oracle never lets it reach its callers.
var ErrUpstreamPriceUnavailable = errors.New("upstream price unavailable")

// pricePaths are the response shapes the feed is known to answer with, in priority order.
var pricePaths = []string{"$.price", "$.currentPrice", "$.data.price"}

// FeedClient queries the external HTTP price feed: GET <url>?symbol=<SYMBOL>.
type FeedClient struct {
	url  string
	http *resty.Client
}

func isRetryableResp(r *resty.Response, err error) bool {
	if err != nil {
		return !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded)
	}
	if r == nil {
		return false
	}

	code := r.StatusCode()
	return code >= 500 || code == http.StatusTooManyRequests || code == http.StatusRequestTimeout
}

func NewFeedClient(url string, timeout time.Duration, retries int) *FeedClient {
	if retries < 0 {
		retries = 0
	}

	httpClient := resty.New().
		SetTimeout(timeout).
		SetRetryCount(retries).
		SetRetryWaitTime(defaultRetryBaseDelay).
		SetRetryMaxWaitTime(defaultRetryMaxBackoff).
		AddRetryCondition(isRetryableResp)

	return &FeedClient{url: url, http: httpClient}
}

// Fetch returns the feed price for symbol. Any transport error, non-2xx status or
// unrecognised body is reported as ErrUpstreamPriceUnavailable.
func (c *FeedClient) Fetch(ctx context.Context, symbol string) (decimal.Decimal, error) {
	resp, err := c.http.R().
		SetContext(ctx).
		SetHeader("Accept", "application/json").
		SetQueryParam("symbol", symbol).
		Get(c.url)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: %s: %v", ErrUpstreamPriceUnavailable, symbol, err)
	}
	if resp.StatusCode() < 200 || resp.StatusCode() >= 300 {
		return decimal.Zero, fmt.Errorf("%w: %s: HTTP %d", ErrUpstreamPriceUnavailable, symbol, resp.StatusCode())
	}

	price, err := extractPrice(resp.Body())
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: %s: %v", ErrUpstreamPriceUnavailable, symbol, err)
	}
	return price, nil
}

// extractPrice reads the first positive price found at one of pricePaths.
func extractPrice(body []byte) (decimal.Decimal, error) {
	var jobj any
	if err := json.Unmarshal(body, &jobj); err != nil {
		return decimal.Zero, fmt.Errorf("decode json: %w", err)
	}

	for _, path := range pricePaths {
		jval, err := jsonpath.Get(path, jobj)
		if err != nil {
			continue
		}
		if price, ok := toDecimal(jval); ok && price.IsPositive() {
			return price, nil
		}
	}
	return decimal.Zero, fmt.Errorf("no price in response")
}

func toDecimal(v any) (decimal.Decimal, bool) {
	switch val := v.(type) {
	case float64:
		return decimal.NewFromFloat(val), true
	case string:
		d, err := decimal.NewFromString(val)
		return d, err == nil
	case json.Number:
		d, err := decimal.NewFromString(val.String())
		return d, err == nil
	default:
		return decimal.Zero, false
	}
}
