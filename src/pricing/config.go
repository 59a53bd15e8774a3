package pricing

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	FeedURL      string        `envconfig:"PRICE_FEED_URL" default:"https://akash5704-stock-api.hf.space/stock"`
	FeedTimeout  time.Duration `envconfig:"PRICE_FEED_TIMEOUT" default:"3s"`
	FeedRetries  int           `envconfig:"PRICE_FEED_RETRIES" default:"2"`
	CacheTTL     time.Duration `envconfig:"PRICE_CACHE_TTL" default:"15s"`
	DefaultPrice string        `envconfig:"PRICE_DEFAULT" default:"100"`
}

func GetConfig() Config {
	var config Config
	if err := envconfig.Process("", &config); err != nil {
		panic(fmt.Errorf("error processing env config: %w", err))
	}
	return config
}
