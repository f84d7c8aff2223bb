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
// built-in defaults, applies ARBENGINE_* environment variable overrides, and
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

// applyEnvOverrides reads well-known ARBENGINE_* environment variables and
// overwrites the corresponding Config fields when a variable is set (i.e. not
// empty). This lets operators inject secrets at deploy time without touching
// the TOML file.
func applyEnvOverrides(cfg *Config) {
	// ── Engine ──
	setStringSlice(&cfg.Engine.Symbols, "ARBENGINE_ENGINE_SYMBOLS")
	setInt(&cfg.Engine.TickQueueCapacity, "ARBENGINE_ENGINE_TICK_QUEUE_CAPACITY")

	// ── Feed ──
	setStr(&cfg.Feed.WSURL, "ARBENGINE_FEED_WS_URL")
	setStr(&cfg.Feed.RESTDiscoveryURL, "ARBENGINE_FEED_REST_DISCOVERY_URL")
	setDuration(&cfg.Feed.DiscoveryInterval, "ARBENGINE_FEED_DISCOVERY_INTERVAL")
	setStringSlice(&cfg.Feed.StaticSymbols, "ARBENGINE_FEED_STATIC_SYMBOLS")

	// ── Wallet ──
	setStr(&cfg.Wallet.PrivateKey, "ARBENGINE_WALLET_PRIVATE_KEY")
	setStr(&cfg.Wallet.EncryptedKeyPath, "ARBENGINE_WALLET_ENCRYPTED_KEY_PATH")
	setStr(&cfg.Wallet.KeyPassword, "ARBENGINE_WALLET_KEY_PASSWORD")
	setInt(&cfg.Wallet.ChainID, "ARBENGINE_WALLET_CHAIN_ID")

	// ── Exchange ──
	setStr(&cfg.Exchange.ApiKey, "ARBENGINE_EXCHANGE_API_KEY")
	setStr(&cfg.Exchange.ApiSecret, "ARBENGINE_EXCHANGE_API_SECRET")
	setStr(&cfg.Exchange.ApiPassphrase, "ARBENGINE_EXCHANGE_API_PASSPHRASE")

	// ── Postgres ──
	setStr(&cfg.Postgres.DSN, "ARBENGINE_POSTGRES_DSN")
	setStr(&cfg.Postgres.Host, "ARBENGINE_POSTGRES_HOST")
	setInt(&cfg.Postgres.Port, "ARBENGINE_POSTGRES_PORT")
	setStr(&cfg.Postgres.Database, "ARBENGINE_POSTGRES_DATABASE")
	setStr(&cfg.Postgres.User, "ARBENGINE_POSTGRES_USER")
	setStr(&cfg.Postgres.Password, "ARBENGINE_POSTGRES_PASSWORD")
	setStr(&cfg.Postgres.SSLMode, "ARBENGINE_POSTGRES_SSLMODE")
	setInt(&cfg.Postgres.PoolMaxConns, "ARBENGINE_POSTGRES_POOL_MAX_CONNS")
	setInt(&cfg.Postgres.PoolMinConns, "ARBENGINE_POSTGRES_POOL_MIN_CONNS")
	setBool(&cfg.Postgres.RunMigrations, "ARBENGINE_POSTGRES_RUN_MIGRATIONS")

	// ── Redis ──
	setStr(&cfg.Redis.Addr, "ARBENGINE_REDIS_ADDR")
	setStr(&cfg.Redis.Password, "ARBENGINE_REDIS_PASSWORD")
	setInt(&cfg.Redis.DB, "ARBENGINE_REDIS_DB")
	setInt(&cfg.Redis.PoolSize, "ARBENGINE_REDIS_POOL_SIZE")
	setInt(&cfg.Redis.MaxRetries, "ARBENGINE_REDIS_MAX_RETRIES")
	setBool(&cfg.Redis.TLSEnabled, "ARBENGINE_REDIS_TLS_ENABLED")

	// ── S3 ──
	setStr(&cfg.S3.Endpoint, "ARBENGINE_S3_ENDPOINT")
	setStr(&cfg.S3.Region, "ARBENGINE_S3_REGION")
	setStr(&cfg.S3.Bucket, "ARBENGINE_S3_BUCKET")
	setStr(&cfg.S3.AccessKey, "ARBENGINE_S3_ACCESS_KEY")
	setStr(&cfg.S3.SecretKey, "ARBENGINE_S3_SECRET_KEY")
	setBool(&cfg.S3.UseSSL, "ARBENGINE_S3_USE_SSL")
	setBool(&cfg.S3.ForcePathStyle, "ARBENGINE_S3_FORCE_PATH_STYLE")

	// ── Archiver ──
	setBool(&cfg.Archiver.Enabled, "ARBENGINE_ARCHIVER_ENABLED")
	setInt(&cfg.Archiver.RetentionDays, "ARBENGINE_ARCHIVER_RETENTION_DAYS")
	setDuration(&cfg.Archiver.RunInterval, "ARBENGINE_ARCHIVER_RUN_INTERVAL")

	// ── Server ──
	setBool(&cfg.Server.Enabled, "ARBENGINE_SERVER_ENABLED")
	setInt(&cfg.Server.Port, "ARBENGINE_SERVER_PORT")
	setStringSlice(&cfg.Server.CORSOrigins, "ARBENGINE_SERVER_CORS_ORIGINS")

	// ── Notify ──
	setStr(&cfg.Notify.TelegramToken, "ARBENGINE_NOTIFY_TELEGRAM_TOKEN")
	setStr(&cfg.Notify.TelegramChatID, "ARBENGINE_NOTIFY_TELEGRAM_CHAT_ID")
	setStr(&cfg.Notify.DiscordWebhookURL, "ARBENGINE_NOTIFY_DISCORD_WEBHOOK_URL")
	setStringSlice(&cfg.Notify.Events, "ARBENGINE_NOTIFY_EVENTS")

	// ── Top-level ──
	setStr(&cfg.Mode, "ARBENGINE_MODE")
	setStr(&cfg.LogLevel, "ARBENGINE_LOG_LEVEL")
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

func setInt64(dst *int64, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			*dst = n
		}
	}
}

func setFloat64(dst *float64, key string) {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			*dst = f
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
