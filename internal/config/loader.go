package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Load reads a TOML configuration file at path, merges it on top of the
// built-in defaults, applies LEVERBET_* environment variable overrides, and
// returns the final Config. The returned Config has NOT been validated; the
// caller should invoke Config.Validate() after Load.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return nil, err
	}

	// Load .env file if present (silently ignore if missing).
	_ = godotenv.Load()

	applyEnvOverrides(&cfg)

	return &cfg, nil
}

// applyEnvOverrides reads well-known LEVERBET_* environment variables and
// overwrites the corresponding Config fields when a variable is set (i.e. not
// empty). This lets operators inject secrets at deploy time without touching
// the TOML file.
func applyEnvOverrides(cfg *Config) {
	// ── Game ──
	setStr(&cfg.Game.ProgramID, "LEVERBET_GAME_PROGRAM_ID")
	setStr(&cfg.Game.Authority, "LEVERBET_GAME_AUTHORITY")
	setStr(&cfg.Game.Escrow, "LEVERBET_GAME_ESCROW")
	setUint64(&cfg.Game.MinBet, "LEVERBET_GAME_MIN_BET")
	setUint64(&cfg.Game.MaxBet, "LEVERBET_GAME_MAX_BET")
	setUint64(&cfg.Game.MaxUtilizedLiquidity, "LEVERBET_GAME_MAX_UTILIZED_LIQUIDITY")
	setUint64(&cfg.Game.CancelBuffer, "LEVERBET_GAME_CANCEL_BUFFER")
	setUint64(&cfg.Game.MinInterval, "LEVERBET_GAME_MIN_INTERVAL")
	setUint64(&cfg.Game.MaxInterval, "LEVERBET_GAME_MAX_INTERVAL")
	setUint64(&cfg.Game.Leverage, "LEVERBET_GAME_LEVERAGE")
	setStringSlice(&cfg.Game.Pairs, "LEVERBET_GAME_PAIRS")

	// ── Enclave ──
	setStr(&cfg.Enclave.PrivateKey, "LEVERBET_ENCLAVE_PRIVATE_KEY")
	setStr(&cfg.Enclave.EncryptedKeyPath, "LEVERBET_ENCLAVE_ENCRYPTED_KEY_PATH")
	setStr(&cfg.Enclave.KeyPassword, "LEVERBET_ENCLAVE_KEY_PASSWORD")

	// ── Pyth ──
	setStr(&cfg.Pyth.BaseURL, "LEVERBET_PYTH_BASE_URL")
	setDuration(&cfg.Pyth.CacheTTL, "LEVERBET_PYTH_CACHE_TTL")

	// ── Postgres ──
	setStr(&cfg.Postgres.DSN, "LEVERBET_POSTGRES_DSN")
	setStr(&cfg.Postgres.Host, "LEVERBET_POSTGRES_HOST")
	setInt(&cfg.Postgres.Port, "LEVERBET_POSTGRES_PORT")
	setStr(&cfg.Postgres.Database, "LEVERBET_POSTGRES_DATABASE")
	setStr(&cfg.Postgres.User, "LEVERBET_POSTGRES_USER")
	setStr(&cfg.Postgres.Password, "LEVERBET_POSTGRES_PASSWORD")
	setStr(&cfg.Postgres.SSLMode, "LEVERBET_POSTGRES_SSLMODE")
	setInt(&cfg.Postgres.PoolMaxConns, "LEVERBET_POSTGRES_POOL_MAX_CONNS")
	setInt(&cfg.Postgres.PoolMinConns, "LEVERBET_POSTGRES_POOL_MIN_CONNS")
	setBool(&cfg.Postgres.RunMigrations, "LEVERBET_POSTGRES_RUN_MIGRATIONS")

	// ── Redis ──
	setStr(&cfg.Redis.Addr, "LEVERBET_REDIS_ADDR")
	setStr(&cfg.Redis.Password, "LEVERBET_REDIS_PASSWORD")
	setInt(&cfg.Redis.DB, "LEVERBET_REDIS_DB")
	setInt(&cfg.Redis.PoolSize, "LEVERBET_REDIS_POOL_SIZE")
	setInt(&cfg.Redis.MaxRetries, "LEVERBET_REDIS_MAX_RETRIES")
	setBool(&cfg.Redis.TLSEnabled, "LEVERBET_REDIS_TLS_ENABLED")

	// ── S3 ──
	setBool(&cfg.S3.Enabled, "LEVERBET_S3_ENABLED")
	setStr(&cfg.S3.Endpoint, "LEVERBET_S3_ENDPOINT")
	setStr(&cfg.S3.Region, "LEVERBET_S3_REGION")
	setStr(&cfg.S3.Bucket, "LEVERBET_S3_BUCKET")
	setStr(&cfg.S3.AccessKey, "LEVERBET_S3_ACCESS_KEY")
	setStr(&cfg.S3.SecretKey, "LEVERBET_S3_SECRET_KEY")
	setBool(&cfg.S3.UseSSL, "LEVERBET_S3_USE_SSL")
	setBool(&cfg.S3.ForcePathStyle, "LEVERBET_S3_FORCE_PATH_STYLE")

	// ── Archive ──
	setInt(&cfg.Archive.RetentionDays, "LEVERBET_ARCHIVE_RETENTION_DAYS")
	setDuration(&cfg.Archive.Interval, "LEVERBET_ARCHIVE_INTERVAL")

	// ── Server ──
	setBool(&cfg.Server.Enabled, "LEVERBET_SERVER_ENABLED")
	setInt(&cfg.Server.Port, "LEVERBET_SERVER_PORT")
	setStringSlice(&cfg.Server.CORSOrigins, "LEVERBET_SERVER_CORS_ORIGINS")
	setStr(&cfg.Server.APIKey, "LEVERBET_SERVER_API_KEY")
	setInt(&cfg.Server.RateLimit, "LEVERBET_SERVER_RATE_LIMIT")
	setDuration(&cfg.Server.RateLimitWindow, "LEVERBET_SERVER_RATE_LIMIT_WINDOW")

	// ── Top-level ──
	setStr(&cfg.LogLevel, "LEVERBET_LOG_LEVEL")
}

// ---------------------------------------------------------------------------
// Typed env-var helpers. Each only mutates the target when the environment
// variable is present and non-empty.
// ---------------------------------------------------------------------------

func setStr(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setUint64(dst *uint64, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseUint(v, 10, 64); err == nil {
			*dst = n
		}
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func setDuration(dst *duration, key string) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			dst.Duration = d
		}
	}
}

func setStringSlice(dst *[]string, key string) {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		cleaned := make([]string, 0, len(parts))
		for _, p := range parts {
			p = strings.TrimSpace(p)
			if p != "" {
				cleaned = append(cleaned, p)
			}
		}
		if len(cleaned) > 0 {
			*dst = cleaned
		}
	}
}
