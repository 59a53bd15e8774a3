package quotes

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	// Symbols overrides the held-symbol lookup when set.
	Symbols  []string      `envconfig:"QUOTE_SYMBOLS"`
	AutoMode bool          `envconfig:"AUTO_MODE" default:"false"`
	Interval time.Duration `envconfig:"QUOTE_REFRESH_INTERVAL" default:"1m"`
}

func GetConfig() *Config {
	var config Config
	if err := envconfig.Process("", &config); err != nil {
		panic(fmt.Errorf("error processing env config: %w", err))
	}
	return &config
}
