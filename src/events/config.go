package events

import (
	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	KafkaBrokers []string `envconfig:"KAFKA_BROKERS"`
	TradesTopic  string   `envconfig:"KAFKA_TRADES_TOPIC" default:"stocksim.trades"`
}

func GetConfig() Config {
	var config Config
	err := envconfig.Process("", &config)
	if err != nil {
		panic(err)
	}
	return config
}
