package config

import (
	"strings"

	"github.com/spf13/viper"
)

// Config holds all configuration for the application.
type Config struct {
	Server     Server     `mapstructure:"server"`
	Database   Database   `mapstructure:"database"`
	Logger     Logger     `mapstructure:"logger"`
	Auth       Auth       `mapstructure:"auth"`
	Margin     Margin     `mapstructure:"margin"`
	Shortable  Shortable  `mapstructure:"shortable"`
	MarketData MarketData `mapstructure:"market_data"`
}

// Server holds the configuration for the HTTP server.
type Server struct {
	Port        int      `mapstructure:"port"`
	CORSOrigins []string `mapstructure:"cors_origins"`
}

// Database holds the configuration for the database.
type Database struct {
	DSN string `mapstructure:"dsn"`
}

// Logger holds the configuration for the logger.
type Logger struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Auth holds token and account-creation settings.
type Auth struct {
	JWTSecret       string  `mapstructure:"jwt_secret"`
	TokenTTLMinutes int     `mapstructure:"token_ttl_minutes"`
	InitialCash     float64 `mapstructure:"initial_cash"`
	SeedDemoUser    bool    `mapstructure:"seed_demo_user"`
}

// Margin holds the margin and interest accounting constants.
type Margin struct {
	// InitialShortMultiplier is the initial margin requirement for opening
	// a short, as a multiple of notional.
	InitialShortMultiplier float64 `mapstructure:"initial_short_multiplier"`
	// MaintenanceRate is the maintenance margin as a fraction of short
	// exposure.
	MaintenanceRate  float64 `mapstructure:"maintenance_rate"`
	InterestDayCount int     `mapstructure:"interest_day_count"`
	// PruneZeroPositions deletes positions that net out to zero instead of
	// retaining the zero row.
	PruneZeroPositions bool `mapstructure:"prune_zero_positions"`
}

// Shortable holds the shortable-universe selection settings.
type Shortable struct {
	MinRate        float64 `mapstructure:"min_rate"`
	MaxRate        float64 `mapstructure:"max_rate"`
	SelectionCount int     `mapstructure:"selection_count"`
}

// MarketData holds the configuration for the quote providers.
type MarketData struct {
	FinnhubAPIKey        string  `mapstructure:"finnhub_api_key"`
	StockGroClientID     string  `mapstructure:"stockgro_client_id"`
	StockGroClientSecret string  `mapstructure:"stockgro_client_secret"`
	QuoteCacheTTLSeconds int     `mapstructure:"quote_cache_ttl_seconds"`
	RateLimit            float64 `mapstructure:"rate_limit"`
	RateLimitBurst       int     `mapstructure:"rate_limit_burst"`
}

// LoadConfig reads configuration from file or environment variables.
func LoadConfig(path string) (config Config, err error) {
	viper.AddConfigPath(path)
	viper.SetConfigName("config")
	viper.SetConfigType("yml")

	// Allow environment variables to override config file
	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	viper.SetDefault("server.port", 8080)
	viper.SetDefault("database.dsn", "tradesphere.db")
	viper.SetDefault("logger.level", "info")
	viper.SetDefault("logger.format", "console")
	viper.SetDefault("auth.token_ttl_minutes", 60*24)
	viper.SetDefault("auth.initial_cash", 100000)
	viper.SetDefault("auth.seed_demo_user", false)
	viper.SetDefault("margin.initial_short_multiplier", 1.5)
	viper.SetDefault("margin.maintenance_rate", 0.3)
	viper.SetDefault("margin.interest_day_count", 365)
	viper.SetDefault("margin.prune_zero_positions", false)
	viper.SetDefault("shortable.min_rate", 0.02)
	viper.SetDefault("shortable.max_rate", 0.18)
	viper.SetDefault("shortable.selection_count", 100)
	viper.SetDefault("market_data.quote_cache_ttl_seconds", 5)
	viper.SetDefault("market_data.rate_limit", 20) // requests per second
	viper.SetDefault("market_data.rate_limit_burst", 5)

	err = viper.ReadInConfig()
	if err != nil {
		return
	}

	err = viper.Unmarshal(&config)
	return
}
