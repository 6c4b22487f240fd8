package config

import (
	"fmt"
	"time"

	"github.com/XavierBriggs/Apollo/pkg/models"
	"github.com/caarlos0/env/v11"
)

// Config holds all Apollo configuration parsed from environment variables.
// The recognised options are exactly these; there is no dynamic config.
type Config struct {
	// Scheduling
	RefreshInterval time.Duration `env:"REFRESH_INTERVAL" envDefault:"15m"`
	StaleThreshold  time.Duration `env:"STALE_THRESHOLD" envDefault:"30m"`

	// Activity tracking
	SessionHeartbeatTTL time.Duration `env:"SESSION_HEARTBEAT_TTL" envDefault:"5m"`

	// Upstream provider
	UpstreamTimeout time.Duration `env:"UPSTREAM_TIMEOUT" envDefault:"30s"`
	UpstreamAPIKey  string        `env:"UPSTREAM_API_KEY"`

	// Stores
	CacheURL string `env:"CACHE_URL"`
	DBURL    string `env:"DB_URL"`

	// EV scoring
	ExchangeFeeBps int      `env:"EXCHANGE_FEE_BPS" envDefault:"200"`
	ExchangeBooks  []string `env:"EXCHANGE_BOOKS" envDefault:"betfair_ex_eu"`

	// Sports polled each cycle
	SportKeys []string `env:"SPORT_KEYS" envDefault:"basketball_nba"`

	// HTTP server
	Port        string   `env:"PORT" envDefault:":8080"`
	CORSOrigins []string `env:"CORS_ORIGINS" envDefault:"http://localhost:3000"`

	// Identity
	JWTSecret string `env:"JWT_SECRET" envDefault:"change-me-in-production"`

	// Persistence writer
	PersistBatchSize int `env:"PERSIST_BATCH_SIZE" envDefault:"200"`
	PersistWorkers   int `env:"PERSIST_WORKERS" envDefault:"4"`
}

// Load parses environment variables into a Config struct.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	return cfg, nil
}

// Validate checks the required options. Startup must abort on error.
func (c *Config) Validate() error {
	if c.UpstreamAPIKey == "" {
		return fmt.Errorf("UPSTREAM_API_KEY is required")
	}
	if c.CacheURL == "" {
		return fmt.Errorf("CACHE_URL is required")
	}
	if c.DBURL == "" {
		return fmt.Errorf("DB_URL is required")
	}
	if c.RefreshInterval <= 0 {
		return fmt.Errorf("REFRESH_INTERVAL must be positive, got %v", c.RefreshInterval)
	}
	if c.StaleThreshold < c.RefreshInterval {
		return fmt.Errorf("STALE_THRESHOLD (%v) must not be shorter than REFRESH_INTERVAL (%v)",
			c.StaleThreshold, c.RefreshInterval)
	}
	if c.ExchangeFeeBps < 0 || c.ExchangeFeeBps >= 10000 {
		return fmt.Errorf("EXCHANGE_FEE_BPS must be in [0, 10000), got %d", c.ExchangeFeeBps)
	}
	if c.PersistBatchSize <= 0 {
		return fmt.Errorf("PERSIST_BATCH_SIZE must be positive, got %d", c.PersistBatchSize)
	}
	if c.PersistWorkers <= 0 {
		return fmt.Errorf("PERSIST_WORKERS must be positive, got %d", c.PersistWorkers)
	}
	return nil
}

// ExchangeFeeRate converts the configured basis points to a fraction.
func (c *Config) ExchangeFeeRate() float64 {
	return float64(c.ExchangeFeeBps) / 10000.0
}

// ExchangeBookSet returns the commission books as a lookup set.
func (c *Config) ExchangeBookSet() map[string]bool {
	set := make(map[string]bool, len(c.ExchangeBooks))
	for _, b := range c.ExchangeBooks {
		set[b] = true
	}
	return set
}

// MainLines is the closed set of market kinds every tier may see.
func (c *Config) MainLines() []models.MarketKind {
	return []models.MarketKind{models.MarketMoneyline, models.MarketSpread, models.MarketTotal}
}

// PolledMarkets returns every market kind the pipeline fetches.
func (c *Config) PolledMarkets() []models.MarketKind {
	return []models.MarketKind{
		models.MarketMoneyline,
		models.MarketSpread,
		models.MarketTotal,
		models.MarketPlayerProp,
	}
}
