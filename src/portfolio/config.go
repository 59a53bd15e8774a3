package portfolio

import (
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	// MaxRetries bounds how many times a unit of work is replayed after a
	// version conflict before ConcurrentModification is returned.
	MaxRetries    int           `envconfig:"PORTFOLIO_MAX_RETRIES" default:"3"`
	CommitTimeout time.Duration `envconfig:"PORTFOLIO_COMMIT_TIMEOUT" default:"10s"`

	HistoryDefaultLimit int `envconfig:"HISTORY_DEFAULT_LIMIT" default:"20"`
	HistoryMaxLimit     int `envconfig:"HISTORY_MAX_LIMIT" default:"100"`
}

func GetConfig() Config {
	var config Config
	err := envconfig.Process("", &config)
	if err != nil {
		panic(err)
	}
	return config
}

func (c Config) withDefaults() Config {
	if c.MaxRetries < 0 {
		c.MaxRetries = 0
	}
	if c.CommitTimeout <= 0 {
		c.CommitTimeout = 10 * time.Second
	}
	if c.HistoryDefaultLimit <= 0 {
		c.HistoryDefaultLimit = 20
	}
	if c.HistoryMaxLimit <= 0 {
		c.HistoryMaxLimit = 100
	}
	if c.HistoryDefaultLimit > c.HistoryMaxLimit {
		c.HistoryDefaultLimit = c.HistoryMaxLimit
	}
	return c
}
