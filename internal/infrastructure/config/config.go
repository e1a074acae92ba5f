// Package config loads application settings from the environment and optional .env files.
package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/damon-houk/fx-rates-sync/internal/infrastructure/logger"
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Supported Store.Driver values
const (
	StoreDriverBadger = "badger"
	StoreDriverMemory = "memory"
)

// Fields below carry no envconfig tag on purpose: a tagged field makes
// envconfig fall back to the bare tag name (STORE_PATH would read PATH).

// Server holds HTTP listener settings
type Server struct {
	Port            int           `default:"8080"`
	ShutdownTimeout time.Duration `split_words:"true" default:"10s"`
}

// Log holds the minimum log level
type Log struct {
	Level string `default:"INFO"`
}

// Store selects the local cache backend and its on-disk location
type Store struct {
	Driver string `default:"badger"`
	Path   string `default:"./data"`
}

// RateSource configures the currencylayer-compatible client
type RateSource struct {
	BaseURL    string        `split_words:"true" default:"http://api.currencylayer.com"`
	AccessKey  string        `split_words:"true"`
	Timeout    time.Duration `default:"10s"`
	MaxRetries int           `split_words:"true" default:"3"`
	RetryDelay time.Duration `split_words:"true" default:"1s"`
}

// Refresh controls the in-process periodic rate refresh
type Refresh struct {
	Interval time.Duration `default:"30m"`
	Enabled  bool          `default:"true"`
}

// App is the complete application configuration
type App struct {
	Server     Server
	Log        Log
	Store      Store
	RateSource RateSource `split_words:"true"`
	Refresh    Refresh
}

// Load reads the first env file found among envFiles (or ./.env) and then
// fills the configuration from the environment. Variables already set in
// the environment take precedence over file values.
func Load(envFiles ...string) (*App, error) {
	log := logger.GetDefaultLogger().WithField("component", "config")

	if len(envFiles) == 0 {
		if err := godotenv.Load(); err != nil {
			log.Debug("No .env file found in current directory", nil)
		}
		return loadFromEnv(log)
	}

	for _, path := range envFiles {
		if err := godotenv.Load(path); err != nil {
			log.Debug("Environment file not loaded", map[string]interface{}{
				"path":  path,
				"error": err.Error(),
			})
			continue
		}

		log.Info("Loaded environment file", map[string]interface{}{
			"path": path,
		})
		return loadFromEnv(log)
	}

	log.Warn("No environment file found, using process environment", map[string]interface{}{
		"candidates": envFiles,
	})
	return loadFromEnv(log)
}

func loadFromEnv(log logger.Logger) (*App, error) {
	var cfg App
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to process environment: %w", err)
	}

	log.Info("App config loaded", cfg.LogFields())
	return &cfg, nil
}

// Validate checks the settings needed to run the server
func (c *App) Validate() error {
	var errs []error

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("invalid SERVER_PORT %d", c.Server.Port))
	}

	if _, err := logger.ParseLevel(c.Log.Level); err != nil {
		errs = append(errs, fmt.Errorf("invalid LOG_LEVEL: %w", err))
	}

	switch c.Store.Driver {
	case StoreDriverBadger:
		if c.Store.Path == "" {
			errs = append(errs, errors.New("STORE_PATH is required for the badger driver"))
		}
	case StoreDriverMemory:
	default:
		errs = append(errs, fmt.Errorf("unknown STORE_DRIVER %q", c.Store.Driver))
	}

	if c.RateSource.AccessKey == "" {
		errs = append(errs, errors.New("RATE_SOURCE_ACCESS_KEY is required"))
	}
	if c.RateSource.Timeout <= 0 {
		errs = append(errs, errors.New("RATE_SOURCE_TIMEOUT must be positive"))
	}
	if c.RateSource.MaxRetries <= 0 {
		errs = append(errs, errors.New("RATE_SOURCE_MAX_RETRIES must be positive"))
	}
	if c.RateSource.RetryDelay < 0 {
		errs = append(errs, errors.New("RATE_SOURCE_RETRY_DELAY must not be negative"))
	}

	if c.Refresh.Interval <= 0 {
		errs = append(errs, errors.New("REFRESH_INTERVAL must be positive"))
	}

	return errors.Join(errs...)
}

// LogFields returns the configuration as log fields with secrets masked
func (c *App) LogFields() map[string]interface{} {
	return map[string]interface{}{
		"server_port":             c.Server.Port,
		"log_level":               c.Log.Level,
		"store_driver":            c.Store.Driver,
		"store_path":              c.Store.Path,
		"rate_source_base_url":    c.RateSource.BaseURL,
		"rate_source_access_key":  maskValue(c.RateSource.AccessKey),
		"rate_source_timeout":     c.RateSource.Timeout.String(),
		"rate_source_max_retries": c.RateSource.MaxRetries,
		"refresh_interval":        c.Refresh.Interval.String(),
		"refresh_enabled":         c.Refresh.Enabled,
	}
}

func maskValue(key string) string {
	if len(key) <= 6 {
		return "****"
	}
	return key[:2] + "****" + key[len(key)-4:]
}
