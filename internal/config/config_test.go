package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTOML(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "b3stream.toml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestDefaultsValidate(t *testing.T) {
	cfg := Defaults()
	require.NoError(t, cfg.Validate())

	assert.Len(t, cfg.Market.Symbols, 5)
	assert.Equal(t, "WINFUT", cfg.Market.Symbols[0].Name)
	assert.Equal(t, 500*time.Millisecond, cfg.Stream.Interval.Duration)
	assert.Equal(t, 60*time.Second, cfg.Redis.PriceTTL.Duration)
	assert.Equal(t, 8000, cfg.Server.Port)
	assert.Equal(t, 50000.0, cfg.Account.Balance)
}

func TestLoadFileOverridesDefaults(t *testing.T) {
	path := writeTOML(t, `
mode = "full"
log_level = "debug"

[market]
max_delta = 0.25
default_symbol = "PETR4"

[[market.symbols]]
name = "PETR4"
base_price = 30.0

[[market.symbols]]
name = "VALE3"
base_price = 60.0

[stream]
interval = "1s"
ping_period = "20s"

[server]
port = 9090
cors_origins = ["http://localhost:3000"]
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, 0.25, cfg.Market.MaxDelta)
	require.Len(t, cfg.Market.Symbols, 2, "file symbols replace the default table")
	assert.Equal(t, SymbolConfig{Name: "PETR4", BasePrice: 30}, cfg.Market.Symbols[0])
	assert.Equal(t, time.Second, cfg.Stream.Interval.Duration)
	assert.Equal(t, 20*time.Second, cfg.Stream.PingPeriod.Duration)
	// Untouched keys keep their defaults.
	assert.Equal(t, 0.1, cfg.Market.Spread)
	assert.Equal(t, 2*time.Second, cfg.Stream.WriteTimeout.Duration)
	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, []string{"http://localhost:3000"}, cfg.Server.CORSOrigins)
}

func TestLoadEmptyPathUsesDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "full", cfg.Mode)
	assert.Len(t, cfg.Market.Symbols, 5)
}

func TestLoadBadFile(t *testing.T) {
	_, err := Load(writeTOML(t, "[stream]\ninterval = \"soon\"\n"))
	require.Error(t, err)

	_, err = Load(filepath.Join(t.TempDir(), "missing.toml"))
	require.Error(t, err)
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("B3STREAM_MODE", "generator")
	t.Setenv("B3STREAM_REDIS_ENABLED", "true")
	t.Setenv("B3STREAM_REDIS_ADDR", "redis:6379")
	t.Setenv("B3STREAM_STREAM_INTERVAL", "250ms")
	t.Setenv("B3STREAM_MARKET_SYMBOLS", "WINFUT:118500, PETR4:32.5")
	t.Setenv("B3STREAM_SERVER_CORS_ORIGINS", "http://a, ,http://b")
	t.Setenv("B3STREAM_SERVER_PORT", "not-a-number")

	cfg, err := Load("")
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, "generator", cfg.Mode)
	assert.True(t, cfg.Redis.Enabled)
	assert.Equal(t, "redis:6379", cfg.Redis.Addr)
	assert.Equal(t, 250*time.Millisecond, cfg.Stream.Interval.Duration)
	assert.Equal(t, []SymbolConfig{{Name: "WINFUT", BasePrice: 118500}, {Name: "PETR4", BasePrice: 32.5}}, cfg.Market.Symbols)
	assert.Equal(t, []string{"http://a", "http://b"}, cfg.Server.CORSOrigins)
	assert.Equal(t, 8000, cfg.Server.Port, "unparseable values are ignored")
}

func TestEnvSymbolsRejectedWhenMalformed(t *testing.T) {
	t.Setenv("B3STREAM_MARKET_SYMBOLS", "WINFUT:118500,PETR4")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Len(t, cfg.Market.Symbols, 5)
}

func TestValidateCollectsEveryProblem(t *testing.T) {
	cfg := Defaults()
	cfg.Mode = "turbo"
	cfg.Market.Symbols = []SymbolConfig{
		{Name: "WINFUT", BasePrice: 118500},
		{Name: "winfut", BasePrice: 1},
		{Name: "", BasePrice: 0},
	}
	cfg.Stream.Interval = duration{}
	cfg.Server.Port = 0

	err := cfg.Validate()
	require.Error(t, err)
	msg := err.Error()
	assert.Contains(t, msg, `unknown mode "turbo"`)
	assert.Contains(t, msg, `duplicate symbol "WINFUT"`)
	assert.Contains(t, msg, "symbols[2]: name must not be empty")
	assert.Contains(t, msg, "symbols[2]: base_price must be > 0")
	assert.Contains(t, msg, "stream: interval must be > 0")
	assert.Contains(t, msg, "server: port must be 1-65535")
}

func TestValidateModeDependencies(t *testing.T) {
	cfg := Defaults()
	cfg.Mode = "relay"
	require.ErrorContains(t, cfg.Validate(), "redis: must be enabled for mode relay")

	cfg = Defaults()
	cfg.Server.RateLimit = 10
	require.ErrorContains(t, cfg.Validate(), "rate_limit requires redis.enabled")

	cfg = Defaults()
	cfg.Market.DefaultSymbol = "BOVA11"
	require.ErrorContains(t, cfg.Validate(), `default_symbol "BOVA11"`)

	cfg = Defaults()
	cfg.Notify.TelegramToken = "tok"
	require.ErrorContains(t, cfg.Validate(), "telegram_token and telegram_chat_id")
}

func TestRedactedConfig(t *testing.T) {
	cfg := Defaults()
	cfg.Redis.Password = "hunter2"
	cfg.Postgres.DSN = "postgres://u:p@db/b3"
	cfg.S3.SecretKey = "secret"
	cfg.Notify.TelegramToken = "tok"

	out := RedactedConfig(&cfg)
	assert.Equal(t, "***", out.Redis.Password)
	assert.Equal(t, "***", out.Postgres.DSN)
	assert.Equal(t, "***", out.S3.SecretKey)
	assert.Equal(t, "***", out.Notify.TelegramToken)
	assert.Empty(t, out.S3.AccessKey, "empty secrets stay empty")

	assert.Equal(t, "hunter2", cfg.Redis.Password, "original untouched")
	out.Market.Symbols[0].Name = "CHANGED"
	assert.Equal(t, "WINFUT", cfg.Market.Symbols[0].Name)
}
