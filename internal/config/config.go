package config

import (
	"errors"
	"fmt"
	"io/fs"
	"time"

	"github.com/damon-houk/bsi-rate-series/internal/domain/entity"
	"github.com/damon-houk/bsi-rate-series/internal/infrastructure/logger"
	"github.com/ilyakaznacheev/cleanenv"
	"github.com/joho/godotenv"
)

// Config holds every setting read from the environment
type Config struct {
	Feed       Feed
	Archive    Archive
	HTTPServer HTTPServer
	LogLevel   string `env:"LOG_LEVEL" env-default:"info" env-description:"debug, info, warn or error"`
}

// Feed configures where and how the rate feed is downloaded
type Feed struct {
	URL         string        `env:"FEED_URL" env-default:"https://www.bsi.si/_data/tecajnice/dtecbs-l.xml"`
	Timeout     time.Duration `env:"FEED_TIMEOUT" env-default:"60s"`
	MaxAttempts int           `env:"FEED_MAX_ATTEMPTS" env-default:"3"`
	Currency    string        `env:"FEED_CURRENCY" env-default:"USD"`
	CacheTTL    time.Duration `env:"CACHE_TTL" env-default:"1h"`
}

// Archive configures where raw copies of the feed are kept
type Archive struct {
	File      string        `env:"ARCHIVE_FILE" env-default:"logs/dtecbs-l.xml"`
	BadgerDir string        `env:"ARCHIVE_BADGER_DIR" env-default:""`
	TTL       time.Duration `env:"ARCHIVE_TTL" env-default:"168h"`
}

// HTTPServer configures the API server
type HTTPServer struct {
	Port          string        `env:"HTTP_PORT" env-default:"8080"`
	Timeout       time.Duration `env:"HTTP_TIMEOUT" env-default:"2m" env-description:"read timeout; the write timeout is raised to cover a full feed download"`
	IdleTimeout   time.Duration `env:"HTTP_IDLE_TIMEOUT" env-default:"60s"`
	MaxWindowDays int           `env:"HTTP_MAX_WINDOW_DAYS" env-default:"36600" env-description:"largest number of days one /series request may cover"`
}

// NewConfig loads an optional .env file and then reads the environment
func NewConfig() (*Config, error) {
	return Load(".env")
}

// Load reads envFiles (missing files are ignored) and then the environment.
// Variables already set in the environment win over file values.
func Load(envFiles ...string) (*Config, error) {
	for _, f := range envFiles {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("failed to load %s: %w", f, err)
		}
	}

	cfg := &Config{}
	if err := cleanenv.ReadEnv(cfg); err != nil {
		return nil, fmt.Errorf("failed to read environment: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks values cleanenv cannot check on its own and normalizes them
func (c *Config) Validate() error {
	if c.Feed.URL == "" {
		return fmt.Errorf("FEED_URL must not be empty")
	}
	if c.Feed.MaxAttempts < 1 {
		return fmt.Errorf("FEED_MAX_ATTEMPTS must be at least 1, got %d", c.Feed.MaxAttempts)
	}
	if c.Feed.Timeout <= 0 {
		return fmt.Errorf("FEED_TIMEOUT must be positive, got %s", c.Feed.Timeout)
	}

	if c.HTTPServer.MaxWindowDays < 1 {
		return fmt.Errorf("HTTP_MAX_WINDOW_DAYS must be at least 1, got %d", c.HTTPServer.MaxWindowDays)
	}

	currency, err := entity.NormalizeCurrency(c.Feed.Currency)
	if err != nil {
		return fmt.Errorf("FEED_CURRENCY: %w", err)
	}
	c.Feed.Currency = currency

	if _, err := logger.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("LOG_LEVEL: %w", err)
	}

	return nil
}

// Level returns the parsed log level
func (c *Config) Level() logger.Level {
	level, err := logger.ParseLevel(c.LogLevel)
	if err != nil {
		return logger.InfoLevel
	}
	return level
}

// Usage describes every supported environment variable
func Usage() string {
	desc, err := cleanenv.GetDescription(&Config{}, nil)
	if err != nil {
		return ""
	}
	return desc
}
