package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Load merges the TOML file at path over Defaults, then applies B3STREAM_*
// environment overrides (a .env file in the working directory is loaded
// first if present). An empty path skips the file. The result is not
// validated.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if path != "" {
		// A file that sets symbols replaces the default table rather than
		// appending to it.
		var probe struct {
			Market struct {
				Symbols []SymbolConfig `toml:"symbols"`
			} `toml:"market"`
			Positions []PositionConfig `toml:"positions"`
		}
		md, err := toml.DecodeFile(path, &probe)
		if err != nil {
			return nil, fmt.Errorf("config: decode %s: %w", path, err)
		}
		if md.IsDefined("market", "symbols") {
			cfg.Market.Symbols = nil
		}
		if md.IsDefined("positions") {
			cfg.Positions = nil
		}
		if _, err := toml.DecodeFile(path, &cfg); err != nil {
			return nil, fmt.Errorf("config: decode %s: %w", path, err)
		}
	}

	_ = godotenv.Load()

	applyEnvOverrides(&cfg)
	return &cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	// ── Market ──
	setSymbols(&cfg.Market.Symbols, "B3STREAM_MARKET_SYMBOLS")
	setFloat64(&cfg.Market.MaxDelta, "B3STREAM_MARKET_MAX_DELTA")
	setFloat64(&cfg.Market.Spread, "B3STREAM_MARKET_SPREAD")
	setInt(&cfg.Market.VolumeMin, "B3STREAM_MARKET_VOLUME_MIN")
	setInt(&cfg.Market.VolumeMax, "B3STREAM_MARKET_VOLUME_MAX")
	setStr(&cfg.Market.DefaultSymbol, "B3STREAM_MARKET_DEFAULT_SYMBOL")

	// ── Stream ──
	setDuration(&cfg.Stream.Interval, "B3STREAM_STREAM_INTERVAL")
	setDuration(&cfg.Stream.WriteTimeout, "B3STREAM_STREAM_WRITE_TIMEOUT")
	setInt(&cfg.Stream.MaxParallelSends, "B3STREAM_STREAM_MAX_PARALLEL_SENDS")
	setDuration(&cfg.Stream.PingPeriod, "B3STREAM_STREAM_PING_PERIOD")
	setDuration(&cfg.Stream.SinkTimeout, "B3STREAM_STREAM_SINK_TIMEOUT")
	setDuration(&cfg.Stream.SnapshotInterval, "B3STREAM_STREAM_SNAPSHOT_INTERVAL")

	// ── Redis ──
	setBool(&cfg.Redis.Enabled, "B3STREAM_REDIS_ENABLED")
	setStr(&cfg.Redis.Addr, "B3STREAM_REDIS_ADDR")
	setStr(&cfg.Redis.Password, "B3STREAM_REDIS_PASSWORD")
	setInt(&cfg.Redis.DB, "B3STREAM_REDIS_DB")
	setInt(&cfg.Redis.PoolSize, "B3STREAM_REDIS_POOL_SIZE")
	setInt(&cfg.Redis.MaxRetries, "B3STREAM_REDIS_MAX_RETRIES")
	setBool(&cfg.Redis.TLSEnabled, "B3STREAM_REDIS_TLS_ENABLED")
	setDuration(&cfg.Redis.PriceTTL, "B3STREAM_REDIS_PRICE_TTL")
	setStr(&cfg.Redis.MarketDataChannel, "B3STREAM_REDIS_MARKET_DATA_CHANNEL")
	setDuration(&cfg.Redis.GeneratorLockTTL, "B3STREAM_REDIS_GENERATOR_LOCK_TTL")

	// ── Postgres ──
	setBool(&cfg.Postgres.Enabled, "B3STREAM_POSTGRES_ENABLED")
	setStr(&cfg.Postgres.DSN, "B3STREAM_POSTGRES_DSN")
	setStr(&cfg.Postgres.DSN, "DATABASE_URL") // compatibility alias
	setStr(&cfg.Postgres.Host, "B3STREAM_POSTGRES_HOST")
	setInt(&cfg.Postgres.Port, "B3STREAM_POSTGRES_PORT")
	setStr(&cfg.Postgres.Database, "B3STREAM_POSTGRES_DATABASE")
	setStr(&cfg.Postgres.User, "B3STREAM_POSTGRES_USER")
	setStr(&cfg.Postgres.Password, "B3STREAM_POSTGRES_PASSWORD")
	setStr(&cfg.Postgres.SSLMode, "B3STREAM_POSTGRES_SSL_MODE")
	setInt(&cfg.Postgres.MaxConns, "B3STREAM_POSTGRES_MAX_CONNS")
	setInt(&cfg.Postgres.MinConns, "B3STREAM_POSTGRES_MIN_CONNS")
	setBool(&cfg.Postgres.RunMigrations, "B3STREAM_POSTGRES_RUN_MIGRATIONS")

	// ── S3 ──
	setBool(&cfg.S3.Enabled, "B3STREAM_S3_ENABLED")
	setStr(&cfg.S3.Endpoint, "B3STREAM_S3_ENDPOINT")
	setStr(&cfg.S3.Region, "B3STREAM_S3_REGION")
	setStr(&cfg.S3.Bucket, "B3STREAM_S3_BUCKET")
	setStr(&cfg.S3.AccessKey, "B3STREAM_S3_ACCESS_KEY")
	setStr(&cfg.S3.SecretKey, "B3STREAM_S3_SECRET_KEY")
	setBool(&cfg.S3.UseSSL, "B3STREAM_S3_USE_SSL")
	setBool(&cfg.S3.ForcePathStyle, "B3STREAM_S3_FORCE_PATH_STYLE")
	setStr(&cfg.S3.SnapshotKey, "B3STREAM_S3_SNAPSHOT_KEY")

	// ── Server ──
	setInt(&cfg.Server.Port, "B3STREAM_SERVER_PORT")
	setStringSlice(&cfg.Server.CORSOrigins, "B3STREAM_SERVER_CORS_ORIGINS")
	setInt(&cfg.Server.RateLimit, "B3STREAM_SERVER_RATE_LIMIT")
	setDuration(&cfg.Server.RateWindow, "B3STREAM_SERVER_RATE_WINDOW")

	// ── Notify ──
	setStr(&cfg.Notify.TelegramToken, "B3STREAM_NOTIFY_TELEGRAM_TOKEN")
	setStr(&cfg.Notify.TelegramChatID, "B3STREAM_NOTIFY_TELEGRAM_CHAT_ID")
	setStr(&cfg.Notify.DiscordWebhookURL, "B3STREAM_NOTIFY_DISCORD_WEBHOOK_URL")
	setStringSlice(&cfg.Notify.Events, "B3STREAM_NOTIFY_EVENTS")

	// ── Top-level ──
	setStr(&cfg.Mode, "B3STREAM_MODE")
	setStr(&cfg.LogLevel, "B3STREAM_LOG_LEVEL")
}

// Typed env-var helpers. Each only mutates the target when the variable is
// set, non-empty and parses.

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
		if cleaned := splitList(v); len(cleaned) > 0 {
			*dst = cleaned
		}
	}
}

// setSymbols parses "WINFUT:118500,PETR4:32.5". The whole table is replaced
// only when every entry parses.
func setSymbols(dst *[]SymbolConfig, key string) {
	v := os.Getenv(key)
	if v == "" {
		return
	}
	var out []SymbolConfig
	for _, item := range splitList(v) {
		name, price, ok := strings.Cut(item, ":")
		if !ok {
			return
		}
		p, err := strconv.ParseFloat(strings.TrimSpace(price), 64)
		if err != nil {
			return
		}
		out = append(out, SymbolConfig{Name: strings.TrimSpace(name), BasePrice: p})
	}
	if len(out) > 0 {
		*dst = out
	}
}

func splitList(v string) []string {
	parts := strings.Split(v, ",")
	cleaned := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			cleaned = append(cleaned, p)
		}
	}
	return cleaned
}
