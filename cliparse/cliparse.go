// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package cliparse

import (
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

type Config struct {
	Port         int
	DatabaseURL  string
	DatabaseType string
	TokenSecret  string
	TokenTTL     time.Duration
	SeedFile     string
	OTELEndpoint string

	// IssueOperatorToken, when set, prints an operator token for this actor
	// id and exits instead of serving.
	IssueOperatorToken string
}

// envConfig holds raw env values before merging with flags.
type envConfig struct {
	Port         int           `env:"PORT" envDefault:"3318"`
	DatabaseURL  string        `env:"DATABASE_URL"`
	DatabaseType string        `env:"DATABASE_TYPE" envDefault:"sqlite"`
	TokenSecret  string        `env:"TOKEN_SECRET"`
	TokenTTL     time.Duration `env:"TOKEN_TTL" envDefault:"12h"`
	SeedFile     string        `env:"SEED_FILE"`
	OTELEndpoint string        `env:"TALLYHALL_OTEL_ENDPOINT"`
}

// DriverName returns the database/sql driver for the configured type.
func (c Config) DriverName() string {
	if c.DatabaseType == "postgres" {
		return "postgres"
	}
	return "sqlite"
}

// ParseFlags parses CLI flags, then fills anything unset from the
// environment (and an optional .env file).
func ParseFlags(args []string) (Config, error) {
	var cfg Config
	var envFile string

	fs := flag.NewFlagSet("tallyhall", flag.ContinueOnError)

	fs.IntVar(&cfg.Port, "p", 0, "Server port")
	fs.StringVar(&cfg.DatabaseURL, "d", "", "Database URL")
	fs.StringVar(&cfg.DatabaseType, "t", "", "Database type (sqlite or postgres)")
	fs.StringVar(&cfg.SeedFile, "seed", "", "YAML seed file with runs, participants and sessions")
	fs.StringVar(&envFile, "env-file", ".env", "Optional dotenv file")

	// Secrets (prefer env variables, but allow CLI for dev)
	fs.StringVar(&cfg.TokenSecret, "token-secret", "", "Token signing secret (prefer env)")

	fs.StringVar(&cfg.IssueOperatorToken, "issue-operator-token", "", "Print an operator token for this actor id and exit")

	if err := fs.Parse(args); err != nil {
		return Config{}, err
	}

	// .env never overrides variables already set in the environment
	if err := godotenv.Load(envFile); err != nil && !isNotExist(err) {
		return Config{}, fmt.Errorf("load %s: %w", envFile, err)
	}

	var raw envConfig
	if err := env.Parse(&raw); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}

	// Fall back to environment variables
	if cfg.Port == 0 {
		cfg.Port = raw.Port
	}
	if cfg.DatabaseURL == "" {
		cfg.DatabaseURL = raw.DatabaseURL
	}
	if cfg.DatabaseType == "" {
		cfg.DatabaseType = raw.DatabaseType
	}
	if cfg.TokenSecret == "" {
		cfg.TokenSecret = raw.TokenSecret
	}
	if cfg.SeedFile == "" {
		cfg.SeedFile = raw.SeedFile
	}
	cfg.TokenTTL = raw.TokenTTL
	cfg.OTELEndpoint = raw.OTELEndpoint

	if cfg.Port <= 0 || cfg.Port > 65535 {
		return Config{}, fmt.Errorf("invalid port %d", cfg.Port)
	}
	if cfg.DatabaseType != "sqlite" && cfg.DatabaseType != "postgres" {
		return Config{}, fmt.Errorf("database type must be sqlite or postgres, got %q", cfg.DatabaseType)
	}
	if cfg.DatabaseURL == "" {
		return Config{}, errors.New("database URL required (use -d or DATABASE_URL env)")
	}
	if cfg.TokenTTL <= 0 {
		return Config{}, errors.New("TOKEN_TTL must be positive")
	}

	// Secrets - MUST be provided
	if cfg.TokenSecret == "" {
		return Config{}, errors.New("TOKEN_SECRET required")
	}

	return cfg, nil
}

func isNotExist(err error) bool {
	return errors.Is(err, fs.ErrNotExist)
}
