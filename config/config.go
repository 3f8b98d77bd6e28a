package config

import (
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Venue    VenueConfig    `mapstructure:"venue"`
	Feed     FeedConfig     `mapstructure:"feed"`
	Orders   OrdersConfig   `mapstructure:"orders"`
	Log      LogConfig      `mapstructure:"log"`
	Postgres PostgresConfig `mapstructure:"postgres"`
}

// VenueConfig describes the exchange session the coordinator trades against.
// SessionOpenHour/Minute parameterize the venue's market-open instant; the
// 9:15 default matches NSE equities and is venue-specific, not universal.
type VenueConfig struct {
	Exchange          string   `mapstructure:"exchange"`
	SessionOpenHour   int      `mapstructure:"session_open_hour"`
	SessionOpenMinute int      `mapstructure:"session_open_minute"`
	Timezone          string   `mapstructure:"timezone"`
	Intervals         []string `mapstructure:"intervals"`
	Symbols           []string `mapstructure:"symbols"`
}

type FeedConfig struct {
	WSURL       string        `mapstructure:"ws_url"`
	RESTBaseURL string        `mapstructure:"rest_base_url"`
	Timeout     time.Duration `mapstructure:"timeout"`
}

// OrdersConfig bounds the order-placement path.
type OrdersConfig struct {
	PlacementTimeout time.Duration `mapstructure:"placement_timeout"`
	FirstTickWait    time.Duration `mapstructure:"first_tick_wait"`
	ModificationPoll time.Duration `mapstructure:"modification_poll"`
}

// LogConfig defines the logger configuration options.
type LogConfig struct {
	Level       string `mapstructure:"level"`       // log level: "debug", "info", "warn", "error"
	Format      string `mapstructure:"format"`      // log format: "json" or "console"
	OutputFile  string `mapstructure:"output_file"` // file path to store logs (optional)
	Environment string `mapstructure:"environment"` // environment: "dev" or "prod"
}

// Load loads application configuration using Viper.
// It reads from config.yaml and overrides with environment variables.
func Load() *Config {
	v := viper.New()

	v.SetConfigName("config") // config.yaml
	v.SetConfigType("yaml")

	ex, _ := os.Executable()
	if strings.Contains(ex, "go-build") {
		pwd, _ := os.Getwd()
		v.AddConfigPath(filepath.Join(pwd, "../../config"))
	} else {
		v.AddConfigPath(filepath.Join(filepath.Dir(ex), "../config"))
	}

	// Support environment variables with dot notation (e.g., VENUE_EXCHANGE)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		log.Fatalf("failed to read config: %v", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		log.Fatalf("failed to unmarshal config: %v", err)
	}

	return &cfg
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("venue.session_open_hour", 9)
	v.SetDefault("venue.session_open_minute", 15)
	v.SetDefault("venue.timezone", "Asia/Kolkata")
	v.SetDefault("venue.intervals", []string{"minute", "5minute", "day"})
	v.SetDefault("feed.timeout", 10*time.Second)
	v.SetDefault("orders.placement_timeout", 5*time.Second)
	v.SetDefault("orders.first_tick_wait", 10*time.Second)
	v.SetDefault("orders.modification_poll", time.Second)
}
