package database

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

type Config struct {
	Driver              string        `envconfig:"DB_DRIVER" default:"postgres"` // "postgres" or "sqlite"
	DatabaseURLMain     string        `envconfig:"DATABASE_URL_MAIN"`
	DatabaseURLReadOnly string        `envconfig:"DATABASE_URL_READONLY"`
	SQLitePath          string        `envconfig:"SQLITE_PATH" default:"stocksim.db"`
	GormLogLevel        int           `envconfig:"GORM_LOG_LEVEL" default:"2"`
	MaxOpenConns        int           `envconfig:"DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns        int           `envconfig:"DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime     time.Duration `envconfig:"DB_CONN_MAX_LIFETIME" default:"1h"`
}

func GetConfig() Config {
	var config Config
	if err := envconfig.Process("", &config); err != nil {
		panic(fmt.Errorf("error processing env config: %w", err))
	}
	return config
}
