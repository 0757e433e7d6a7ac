// Package config defines the top-level configuration for the leverbet engine
// and provides validation helpers.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// Config is the root configuration structure. Fields are populated from a TOML
// file and then optionally overridden by LEVERBET_* environment variables.
type Config struct {
	Game     GameConfig     `toml:"game"`
	Enclave  EnclaveConfig  `toml:"enclave"`
	Pyth     PythConfig     `toml:"pyth"`
	Postgres PostgresConfig `toml:"postgres"`
	Redis    RedisConfig    `toml:"redis"`
	S3       S3Config       `toml:"s3"`
	Archive  ArchiveConfig  `toml:"archive"`
	Server   ServerConfig   `toml:"server"`
	LogLevel string         `toml:"log_level"`
}

// GameConfig holds the betting engine parameters. Amounts are denominated in
// the token's base units and times in seconds.
type GameConfig struct {
	ProgramID            string   `toml:"program_id"`
	Authority            string   `toml:"authority"`
	Escrow               string   `toml:"escrow"`
	MinBet               uint64   `toml:"min_bet"`
	MaxBet               uint64   `toml:"max_bet"`
	MaxUtilizedLiquidity uint64   `toml:"max_utilized_liquidity"`
	CancelBuffer         uint64   `toml:"cancel_buffer"`
	MinInterval          uint64   `toml:"min_interval"`
	MaxInterval          uint64   `toml:"max_interval"`
	Leverage             uint64   `toml:"leverage"`
	Pairs                []string `toml:"pairs"`
}

// EnclaveConfig holds the settlement signing key source.
type EnclaveConfig struct {
	PrivateKey       string `toml:"private_key"`
	EncryptedKeyPath string `toml:"encrypted_key_path"`
	KeyPassword      string `toml:"key_password"`
}

// PythConfig holds the historical price API parameters and the pair-prefix to
// feed-id mapping.
type PythConfig struct {
	BaseURL  string            `toml:"base_url"`
	Feeds    map[string]string `toml:"feeds"`
	CacheTTL duration          `toml:"cache_ttl"`
}

// PostgresConfig holds PostgreSQL connection parameters.
type PostgresConfig struct {
	DSN           string `toml:"dsn"`
	Host          string `toml:"host"`
	Port          int    `toml:"port"`
	Database      string `toml:"database"`
	User          string `toml:"user"`
	Password      string `toml:"password"`
	SSLMode       string `toml:"ssl_mode"`
	PoolMaxConns  int    `toml:"pool_max_conns"`
	PoolMinConns  int    `toml:"pool_min_conns"`
	RunMigrations bool   `toml:"run_migrations"`
}

// RedisConfig holds Redis connection parameters.
type RedisConfig struct {
	Addr       string `toml:"addr"`
	Password   string `toml:"password"`
	DB         int    `toml:"db"`
	PoolSize   int    `toml:"pool_size"`
	MaxRetries int    `toml:"max_retries"`
	TLSEnabled bool   `toml:"tls_enabled"`
}

// S3Config holds S3-compatible object storage parameters for the bet archive.
type S3Config struct {
	Enabled        bool   `toml:"enabled"`
	Endpoint       string `toml:"endpoint"`
	Region         string `toml:"region"`
	Bucket         string `toml:"bucket"`
	AccessKey      string `toml:"access_key"`
	SecretKey      string `toml:"secret_key"`
	UseSSL         bool   `toml:"use_ssl"`
	ForcePathStyle bool   `toml:"force_path_style"`
}

// ArchiveConfig controls the periodic cold-storage sweep of terminal bets.
type ArchiveConfig struct {
	RetentionDays int      `toml:"retention_days"`
	Interval      duration `toml:"interval"`
}

// ServerConfig holds the HTTP API parameters.
type ServerConfig struct {
	Enabled     bool     `toml:"enabled"`
	Port        int      `toml:"port"`
	CORSOrigins []string `toml:"cors_origins"`
	APIKey      string   `toml:"api_key"`
	// RateLimit caps requests per client IP per RateLimitWindow. Zero
	// disables rate limiting.
	RateLimit       int      `toml:"rate_limit"`
	RateLimitWindow duration `toml:"rate_limit_window"`
}

// duration is a wrapper around time.Duration that supports TOML string decoding
// (e.g. "5m", "30s").
type duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler so the TOML decoder can
// parse duration strings like "5m" or "30s".
func (d *duration) UnmarshalText(text []byte) error {
	var err error
	d.Duration, err = time.ParseDuration(string(text))
	return err
}

// MarshalText implements encoding.TextMarshaler for round-trip encoding.
func (d duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// maxPairs is the capacity of the accepted-pair set.
const maxPairs = 10

// pairLen is the fixed width of a pair symbol code.
const pairLen = 8

// Defaults returns the built-in configuration. Amount bounds and timing
// windows match the deployed engine parameters.
func Defaults() Config {
	return Config{
		Game: GameConfig{
			MinBet:               5_000_000,
			MaxBet:               50_000_000,
			MaxUtilizedLiquidity: 255_000_000,
			CancelBuffer:         86_400,
			MinInterval:          120,
			MaxInterval:          86_400,
			Leverage:             1_700,
			Pairs:                []string{"BTCUSDXX", "ETHUSDXX"},
		},
		Pyth: PythConfig{
			BaseURL: "https://hermes.pyth.network",
			Feeds: map[string]string{
				"BTCUSD": "e62df6c8b4a85fe1a67db44dc12de5db330f7ac66b72dc658afedf0f4a415b43",
				"ETHUSD": "ff61491a931112ddf1bd8147cd1b641375f79f5825126d665480874634fd0ace",
			},
			CacheTTL: duration{24 * time.Hour},
		},
		Postgres: PostgresConfig{
			Host:          "localhost",
			Port:          5432,
			Database:      "leverbet",
			User:          "postgres",
			SSLMode:       "disable",
			PoolMaxConns:  10,
			PoolMinConns:  2,
			RunMigrations: true,
		},
		Redis: RedisConfig{
			Addr:       "localhost:6379",
			PoolSize:   20,
			MaxRetries: 3,
		},
		S3: S3Config{
			Enabled: false,
			Region:  "us-east-1",
			UseSSL:  true,
		},
		Archive: ArchiveConfig{
			RetentionDays: 90,
			Interval:      duration{24 * time.Hour},
		},
		Server: ServerConfig{
			Enabled:         true,
			Port:            8000,
			CORSOrigins:     []string{"http://localhost:3000", "http://localhost:5173"},
			RateLimit:       120,
			RateLimitWindow: duration{time.Minute},
		},
		LogLevel: "info",
	}
}

// validLogLevels enumerates the accepted values for Config.LogLevel.
var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

// Validate checks Config for obviously invalid or missing values and returns a
// combined error describing every problem found.
func (c *Config) Validate() error {
	var errs []string

	if !validLogLevels[strings.ToLower(c.LogLevel)] {
		errs = append(errs, fmt.Sprintf("unknown log_level %q (valid: debug, info, warn, error)", c.LogLevel))
	}

	// Game
	if c.Game.ProgramID == "" || !common.IsHexAddress(c.Game.ProgramID) {
		errs = append(errs, fmt.Sprintf("game: program_id %q is not a valid address", c.Game.ProgramID))
	}
	if c.Game.Authority == "" || !common.IsHexAddress(c.Game.Authority) {
		errs = append(errs, fmt.Sprintf("game: authority %q is not a valid address", c.Game.Authority))
	}
	if c.Game.Escrow == "" || !common.IsHexAddress(c.Game.Escrow) {
		errs = append(errs, fmt.Sprintf("game: escrow %q is not a valid address", c.Game.Escrow))
	}
	if c.Game.MinBet == 0 || c.Game.MaxBet == 0 {
		errs = append(errs, "game: min_bet and max_bet must be non-zero")
	}
	if c.Game.MinBet >= c.Game.MaxBet {
		errs = append(errs, fmt.Sprintf("game: min_bet (%d) must be strictly below max_bet (%d)", c.Game.MinBet, c.Game.MaxBet))
	}
	if c.Game.MinInterval == 0 || c.Game.MinInterval > c.Game.MaxInterval {
		errs = append(errs, fmt.Sprintf("game: interval window [%d, %d] is invalid", c.Game.MinInterval, c.Game.MaxInterval))
	}
	if c.Game.Leverage == 0 {
		errs = append(errs, "game: leverage must be non-zero")
	}
	if len(c.Game.Pairs) == 0 {
		errs = append(errs, "game: at least one accepted pair is required")
	}
	if len(c.Game.Pairs) > maxPairs {
		errs = append(errs, fmt.Sprintf("game: at most %d pairs are accepted, got %d", maxPairs, len(c.Game.Pairs)))
	}
	for _, p := range c.Game.Pairs {
		if len(p) != pairLen {
			errs = append(errs, fmt.Sprintf("game: pair %q must be exactly %d characters", p, pairLen))
		}
	}

	// Enclave
	if c.Enclave.PrivateKey == "" && c.Enclave.EncryptedKeyPath == "" {
		errs = append(errs, "enclave: either private_key or encrypted_key_path must be set")
	}
	if c.Enclave.EncryptedKeyPath != "" && c.Enclave.KeyPassword == "" {
		errs = append(errs, "enclave: key_password is required when encrypted_key_path is set")
	}

	// Pyth
	if c.Pyth.BaseURL == "" {
		errs = append(errs, "pyth: base_url must not be empty")
	}
	if len(c.Pyth.Feeds) == 0 {
		errs = append(errs, "pyth: at least one feed mapping is required")
	}

	// Postgres
	if strings.TrimSpace(c.Postgres.DSN) == "" {
		if c.Postgres.Host == "" {
			errs = append(errs, "postgres: host must not be empty (or set postgres.dsn)")
		}
		if c.Postgres.Port <= 0 || c.Postgres.Port > 65535 {
			errs = append(errs, fmt.Sprintf("postgres: port must be 1-65535, got %d", c.Postgres.Port))
		}
		if c.Postgres.Database == "" {
			errs = append(errs, "postgres: database must not be empty")
		}
	}
	if c.Postgres.PoolMaxConns < 1 {
		errs = append(errs, "postgres: pool_max_conns must be >= 1")
	}
	if c.Postgres.PoolMinConns < 0 {
		errs = append(errs, "postgres: pool_min_conns must be >= 0")
	}
	if c.Postgres.PoolMinConns > c.Postgres.PoolMaxConns {
		errs = append(errs, "postgres: pool_min_conns must not exceed pool_max_conns")
	}

	// Redis
	if c.Redis.Addr == "" {
		errs = append(errs, "redis: addr must not be empty")
	}
	if c.Redis.PoolSize < 1 {
		errs = append(errs, "redis: pool_size must be >= 1")
	}

	// S3
	if c.S3.Enabled {
		if c.S3.Endpoint == "" {
			errs = append(errs, "s3: endpoint must not be empty when enabled")
		}
		if c.S3.Bucket == "" {
			errs = append(errs, "s3: bucket must not be empty when enabled")
		}
		if c.Archive.RetentionDays < 1 {
			errs = append(errs, "archive: retention_days must be >= 1 when s3 is enabled")
		}
		if c.Archive.Interval.Duration <= 0 {
			errs = append(errs, "archive: interval must be positive when s3 is enabled")
		}
	}

	// Server
	if c.Server.Enabled {
		if c.Server.Port <= 0 || c.Server.Port > 65535 {
			errs = append(errs, fmt.Sprintf("server: port must be 1-65535, got %d", c.Server.Port))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}
