// Package config defines the b3stream configuration, its defaults and
// validation.
package config

import (
	"fmt"
	"strings"
	"time"
)

// Config is the root configuration. Fields are populated from a TOML file and
// then optionally overridden by B3STREAM_* environment variables.
type Config struct {
	Market    MarketConfig     `toml:"market"`
	Stream    StreamConfig     `toml:"stream"`
	Redis     RedisConfig      `toml:"redis"`
	Postgres  PostgresConfig   `toml:"postgres"`
	S3        S3Config         `toml:"s3"`
	Server    ServerConfig     `toml:"server"`
	Notify    NotifyConfig     `toml:"notify"`
	Account   AccountConfig    `toml:"account"`
	Positions []PositionConfig `toml:"positions"`
	Mode      string           `toml:"mode"`
	LogLevel  string           `toml:"log_level"`
}

// MarketConfig is the symbol table and random-walk parameters.
type MarketConfig struct {
	Symbols       []SymbolConfig `toml:"symbols"`
	MaxDelta      float64        `toml:"max_delta"`
	Spread        float64        `toml:"spread"`
	VolumeMin     int            `toml:"volume_min"`
	VolumeMax     int            `toml:"volume_max"`
	DefaultSymbol string         `toml:"default_symbol"`
}

// SymbolConfig is one tracked instrument.
type SymbolConfig struct {
	Name      string  `toml:"name"`
	BasePrice float64 `toml:"base_price"`
}

// StreamConfig controls the publication loop and subscriber delivery.
type StreamConfig struct {
	Interval         duration `toml:"interval"`
	WriteTimeout     duration `toml:"write_timeout"`
	MaxParallelSends int      `toml:"max_parallel_sends"`
	PingPeriod       duration `toml:"ping_period"`
	SinkTimeout      duration `toml:"sink_timeout"`
	SnapshotInterval duration `toml:"snapshot_interval"`
}

// RedisConfig holds the price cache and pub/sub connection.
type RedisConfig struct {
	Enabled           bool     `toml:"enabled"`
	Addr              string   `toml:"addr"`
	Password          string   `toml:"password"`
	DB                int      `toml:"db"`
	PoolSize          int      `toml:"pool_size"`
	MaxRetries        int      `toml:"max_retries"`
	TLSEnabled        bool     `toml:"tls_enabled"`
	PriceTTL          duration `toml:"price_ttl"`
	MarketDataChannel string   `toml:"market_data_channel"`
	GeneratorLockTTL  duration `toml:"generator_lock_ttl"` // lease that keeps a second generator from publishing
}

// PostgresConfig holds the positions database connection.
type PostgresConfig struct {
	Enabled       bool   `toml:"enabled"`
	DSN           string `toml:"dsn"`
	Host          string `toml:"host"`
	Port          int    `toml:"port"`
	Database      string `toml:"database"`
	User          string `toml:"user"`
	Password      string `toml:"password"`
	SSLMode       string `toml:"ssl_mode"`
	MaxConns      int    `toml:"max_conns"`
	MinConns      int    `toml:"min_conns"`
	RunMigrations bool   `toml:"run_migrations"`
}

// S3Config holds the ledger snapshot bucket.
type S3Config struct {
	Enabled        bool   `toml:"enabled"`
	Endpoint       string `toml:"endpoint"`
	Region         string `toml:"region"`
	Bucket         string `toml:"bucket"`
	AccessKey      string `toml:"access_key"`
	SecretKey      string `toml:"secret_key"`
	UseSSL         bool   `toml:"use_ssl"`
	ForcePathStyle bool   `toml:"force_path_style"`
	SnapshotKey    string `toml:"snapshot_key"`
}

// ServerConfig holds the HTTP and WebSocket listener settings.
type ServerConfig struct {
	Port        int      `toml:"port"`
	CORSOrigins []string `toml:"cors_origins"`
	RateLimit   int      `toml:"rate_limit"` // requests per window per client IP on POST endpoints; 0 disables
	RateWindow  duration `toml:"rate_window"`
}

// NotifyConfig holds the fill notification channels.
type NotifyConfig struct {
	TelegramToken     string   `toml:"telegram_token"`
	TelegramChatID    string   `toml:"telegram_chat_id"`
	DiscordWebhookURL string   `toml:"discord_webhook_url"`
	Events            []string `toml:"events"`
}

// AccountConfig holds the static account summary.
type AccountConfig struct {
	Balance     float64 `toml:"balance"`
	Equity      float64 `toml:"equity"`
	Margin      float64 `toml:"margin"`
	FreeMargin  float64 `toml:"free_margin"`
	MarginLevel float64 `toml:"margin_level"`
}

// PositionConfig seeds an open position.
type PositionConfig struct {
	Symbol   string  `toml:"symbol"`
	Quantity int     `toml:"quantity"`
	AvgPrice float64 `toml:"avg_price"`
}

// duration wraps time.Duration so TOML strings like "500ms" decode.
type duration struct {
	time.Duration
}

func (d *duration) UnmarshalText(text []byte) error {
	var err error
	d.Duration, err = time.ParseDuration(string(text))
	return err
}

func (d duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// Defaults returns the five-symbol B3 table and the local development
// endpoints.
func Defaults() Config {
	return Config{
		Market: MarketConfig{
			Symbols: []SymbolConfig{
				{Name: "WINFUT", BasePrice: 118500},
				{Name: "WDOFUT", BasePrice: 5.45},
				{Name: "PETR4", BasePrice: 32.50},
				{Name: "VALE3", BasePrice: 65.80},
				{Name: "ITUB4", BasePrice: 28.90},
			},
			MaxDelta:      0.5,
			Spread:        0.1,
			VolumeMin:     1000,
			VolumeMax:     10000,
			DefaultSymbol: "WINFUT",
		},
		Stream: StreamConfig{
			Interval:         duration{500 * time.Millisecond},
			WriteTimeout:     duration{2 * time.Second},
			MaxParallelSends: 64,
			PingPeriod:       duration{54 * time.Second},
			SinkTimeout:      duration{time.Second},
			SnapshotInterval: duration{time.Minute},
		},
		Redis: RedisConfig{
			Addr:              "localhost:6379",
			PoolSize:          10,
			MaxRetries:        3,
			PriceTTL:          duration{60 * time.Second},
			MarketDataChannel: "market_data",
			GeneratorLockTTL:  duration{15 * time.Second},
		},
		Postgres: PostgresConfig{
			Host:          "localhost",
			Port:          5432,
			Database:      "b3stream",
			User:          "b3stream",
			SSLMode:       "disable",
			MaxConns:      5,
			RunMigrations: true,
		},
		S3: S3Config{
			Region:      "us-east-1",
			SnapshotKey: "snapshots/ledger.json",
		},
		Server: ServerConfig{
			Port:       8000,
			RateLimit:  0,
			RateWindow: duration{time.Minute},
		},
		Notify: NotifyConfig{
			Events: []string{"trade_executed"},
		},
		Account: AccountConfig{
			Balance:     50000,
			Equity:      52500,
			Margin:      5000,
			FreeMargin:  47500,
			MarginLevel: 1050,
		},
		Positions: []PositionConfig{
			{Symbol: "WINFUT", Quantity: 2, AvgPrice: 118450},
		},
		Mode:     "full",
		LogLevel: "info",
	}
}

var (
	validModes     = []string{"full", "generator", "relay"}
	validLogLevels = []string{"debug", "info", "warn", "error"}
)

// Validate checks c and returns every problem in one error.
func (c *Config) Validate() error {
	var errs []string

	if !contains(validModes, c.Mode) {
		errs = append(errs, fmt.Sprintf("unknown mode %q (valid: %s)", c.Mode, strings.Join(validModes, ", ")))
	}
	if !contains(validLogLevels, strings.ToLower(c.LogLevel)) {
		errs = append(errs, fmt.Sprintf("unknown log_level %q (valid: %s)", c.LogLevel, strings.Join(validLogLevels, ", ")))
	}

	// Market
	if len(c.Market.Symbols) == 0 {
		errs = append(errs, "market: at least one symbol is required")
	}
	seen := make(map[string]bool, len(c.Market.Symbols))
	for i, s := range c.Market.Symbols {
		name := strings.ToUpper(strings.TrimSpace(s.Name))
		switch {
		case name == "":
			errs = append(errs, fmt.Sprintf("market: symbols[%d]: name must not be empty", i))
		case seen[name]:
			errs = append(errs, fmt.Sprintf("market: symbols[%d]: duplicate symbol %q", i, name))
		}
		if !(s.BasePrice > 0) {
			errs = append(errs, fmt.Sprintf("market: symbols[%d]: base_price must be > 0, got %v", i, s.BasePrice))
		}
		seen[name] = true
	}
	if c.Market.MaxDelta < 0 {
		errs = append(errs, "market: max_delta must be >= 0")
	}
	if c.Market.Spread < 0 {
		errs = append(errs, "market: spread must be >= 0")
	}
	if c.Market.VolumeMin < 0 || c.Market.VolumeMax < c.Market.VolumeMin {
		errs = append(errs, fmt.Sprintf("market: volume range [%d, %d] is invalid", c.Market.VolumeMin, c.Market.VolumeMax))
	}
	if d := strings.ToUpper(strings.TrimSpace(c.Market.DefaultSymbol)); d != "" && !seen[d] {
		errs = append(errs, fmt.Sprintf("market: default_symbol %q is not a tracked symbol", c.Market.DefaultSymbol))
	}

	// Stream
	if c.Stream.Interval.Duration <= 0 {
		errs = append(errs, "stream: interval must be > 0")
	}
	if c.Stream.WriteTimeout.Duration <= 0 {
		errs = append(errs, "stream: write_timeout must be > 0")
	}
	if c.Stream.MaxParallelSends < 1 {
		errs = append(errs, "stream: max_parallel_sends must be >= 1")
	}
	if c.Stream.PingPeriod.Duration <= 0 {
		errs = append(errs, "stream: ping_period must be > 0")
	}

	// Redis is required by the generator and relay variants.
	if (c.Mode == "generator" || c.Mode == "relay") && !c.Redis.Enabled {
		errs = append(errs, fmt.Sprintf("redis: must be enabled for mode %s", c.Mode))
	}
	if c.Redis.Enabled {
		if c.Redis.Addr == "" {
			errs = append(errs, "redis: addr must not be empty")
		}
		if c.Redis.PoolSize < 1 {
			errs = append(errs, "redis: pool_size must be >= 1")
		}
		if c.Mode == "generator" && c.Redis.GeneratorLockTTL.Duration < time.Second {
			errs = append(errs, "redis: generator_lock_ttl must be >= 1s")
		}
	}

	if c.Postgres.Enabled && strings.TrimSpace(c.Postgres.DSN) == "" {
		if c.Postgres.Host == "" {
			errs = append(errs, "postgres: host must not be empty (or set postgres.dsn)")
		}
		if c.Postgres.Port < 1 || c.Postgres.Port > 65535 {
			errs = append(errs, fmt.Sprintf("postgres: port must be 1-65535, got %d", c.Postgres.Port))
		}
		if c.Postgres.Database == "" {
			errs = append(errs, "postgres: database must not be empty")
		}
	}

	if c.S3.Enabled {
		if c.S3.Bucket == "" {
			errs = append(errs, "s3: bucket must not be empty")
		}
		if c.S3.Region == "" {
			errs = append(errs, "s3: region must not be empty")
		}
		if c.S3.SnapshotKey == "" {
			errs = append(errs, "s3: snapshot_key must not be empty")
		}
		if c.Stream.SnapshotInterval.Duration <= 0 {
			errs = append(errs, "stream: snapshot_interval must be > 0 when s3 is enabled")
		}
	}

	if c.Server.Port < 1 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Sprintf("server: port must be 1-65535, got %d", c.Server.Port))
	}
	if c.Server.RateLimit < 0 {
		errs = append(errs, "server: rate_limit must be >= 0")
	}
	if c.Server.RateLimit > 0 {
		if !c.Redis.Enabled {
			errs = append(errs, "server: rate_limit requires redis.enabled")
		}
		if c.Server.RateWindow.Duration <= 0 {
			errs = append(errs, "server: rate_window must be > 0")
		}
	}

	if (c.Notify.TelegramToken == "") != (c.Notify.TelegramChatID == "") {
		errs = append(errs, "notify: telegram_token and telegram_chat_id must be set together")
	}

	for i, p := range c.Positions {
		if p.Symbol == "" || p.AvgPrice <= 0 {
			errs = append(errs, fmt.Sprintf("positions[%d]: symbol and a positive avg_price are required", i))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}

func contains(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}
