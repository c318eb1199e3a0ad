// Package config loads application configuration from environment
// variables. Command-line flags in cmd/server override the environment.
package config

import (
	"context"
	"fmt"

	"github.com/sethvargo/go-envconfig"
)

// Config holds all application configuration.
type Config struct {
	Server   ServerConfig   `env:",prefix=SERVER_"`
	Database DatabaseConfig `env:",prefix=DB_"`
	App      AppConfig      `env:",prefix=APP_"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Port         int `env:"PORT,default=8080"`
	ReadTimeout  int `env:"READ_TIMEOUT,default=15"`  // seconds
	WriteTimeout int `env:"WRITE_TIMEOUT,default=15"` // seconds

	// RedeemRatePerSec throttles the redemption endpoint; RedeemBurst is
	// the bucket size. Generous defaults: redemption is user-triggered.
	RedeemRatePerSec float64 `env:"REDEEM_RATE,default=50"`
	RedeemBurst      int     `env:"REDEEM_BURST,default=100"`
}

// DatabaseConfig holds SQLite configuration.
type DatabaseConfig struct {
	// Path is the SQLite database file; ":memory:" for in-memory.
	Path string `env:"PATH,default=progression.db"`
}

// AppConfig holds application-level configuration.
type AppConfig struct {
	Environment string `env:"ENVIRONMENT,default=development"`

	// CatalogPath optionally points at a JSON level-catalog definition.
	// Empty means the built-in default ladder.
	CatalogPath string `env:"CATALOG,default="`

	// WelcomeBonus is granted to newly registered trainees.
	WelcomeBonus int `env:"WELCOME_BONUS,default=10"`
}

// Load reads configuration from the environment.
func Load(ctx context.Context) (*Config, error) {
	var cfg Config
	if err := envconfig.Process(ctx, &cfg); err != nil {
		return nil, fmt.Errorf("failed to process environment config: %w", err)
	}
	return &cfg, nil
}

// IsProduction reports whether the app runs in production.
func (c *AppConfig) IsProduction() bool { return c.Environment == "production" }
