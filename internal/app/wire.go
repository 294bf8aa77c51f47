package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus"

	s3blob "github.com/alanyoungcy/b3stream/internal/blob/s3"
	"github.com/alanyoungcy/b3stream/internal/cache/redis"
	"github.com/alanyoungcy/b3stream/internal/config"
	"github.com/alanyoungcy/b3stream/internal/domain"
	"github.com/alanyoungcy/b3stream/internal/market"
	"github.com/alanyoungcy/b3stream/internal/metrics"
	"github.com/alanyoungcy/b3stream/internal/notify"
	"github.com/alanyoungcy/b3stream/internal/store/postgres"
	"github.com/alanyoungcy/b3stream/internal/trading"
)

// Dependencies bundles everything the modes need. It is constructed by Wire
// and torn down by the returned cleanup function. Optional backends are nil
// when disabled in the configuration.
type Dependencies struct {
	Clock clockwork.Clock

	// Market state
	Ledger      *market.Ledger
	Generator   *market.Generator
	Snapshotter *market.Snapshotter

	// Metrics
	Registry      *prometheus.Registry
	FanoutMetrics *metrics.FanoutMetrics
	StreamMetrics *metrics.StreamMetrics
	HTTPMetrics   *metrics.HTTPMetrics

	// Caches
	PriceCache  domain.PriceCache
	SignalBus   domain.SignalBus
	RateLimiter domain.RateLimiter
	LockManager domain.LockManager

	// Stores
	PositionStore domain.PositionStore

	// Notifications
	Notifier *notify.Notifier
}

// Wire constructs all concrete dependency implementations from the given
// configuration and returns them together with a cleanup function that should
// be called on shutdown to release resources.
func Wire(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Dependencies, func(), error) {
	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	deps := &Dependencies{Clock: clockwork.NewRealClock()}

	// --- Market ---
	symbols := make([]market.Symbol, 0, len(cfg.Market.Symbols))
	for _, s := range cfg.Market.Symbols {
		symbols = append(symbols, market.Symbol{Name: s.Name, BasePrice: s.BasePrice})
	}
	ledger, err := market.NewLedger(symbols, deps.Clock)
	if err != nil {
		return nil, nil, fmt.Errorf("wire: ledger: %w", err)
	}
	deps.Ledger = ledger
	deps.Generator = market.NewGenerator(ledger, market.GeneratorConfig{
		MaxDelta:  cfg.Market.MaxDelta,
		Spread:    cfg.Market.Spread,
		VolumeMin: cfg.Market.VolumeMin,
		VolumeMax: cfg.Market.VolumeMax,
	}, nil, deps.Clock)

	// --- Metrics ---
	deps.Registry = metrics.NewRegistry()
	deps.FanoutMetrics = metrics.NewFanoutMetrics(deps.Registry)
	deps.StreamMetrics = metrics.NewStreamMetrics(deps.Registry)
	deps.HTTPMetrics = metrics.NewHTTPMetrics(deps.Registry)

	// --- Redis ---
	if cfg.Redis.Enabled {
		redisClient, err := redis.New(ctx, redis.ClientConfig{
			Addr:       cfg.Redis.Addr,
			Password:   cfg.Redis.Password,
			DB:         cfg.Redis.DB,
			PoolSize:   cfg.Redis.PoolSize,
			MaxRetries: cfg.Redis.MaxRetries,
			TLSEnabled: cfg.Redis.TLSEnabled,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: redis: %w", err)
		}
		closers = append(closers, func() { _ = redisClient.Close() })

		deps.PriceCache = redis.NewPriceCache(redisClient, cfg.Redis.PriceTTL.Duration)
		deps.SignalBus = redis.NewSignalBus(redisClient)
		deps.RateLimiter = redis.NewRateLimiter(redisClient, deps.Clock)
		deps.LockManager = redis.NewLockManager(redisClient)
	}

	// --- PostgreSQL ---
	if cfg.Postgres.Enabled {
		pgClient, err := postgres.New(ctx, postgres.ClientConfig{
			DSN:      cfg.Postgres.DSN,
			Host:     cfg.Postgres.Host,
			Port:     cfg.Postgres.Port,
			Database: cfg.Postgres.Database,
			User:     cfg.Postgres.User,
			Password: cfg.Postgres.Password,
			SSLMode:  cfg.Postgres.SSLMode,
			MaxConns: cfg.Postgres.MaxConns,
			MinConns: cfg.Postgres.MinConns,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: postgres: %w", err)
		}
		closers = append(closers, pgClient.Close)

		if cfg.Postgres.RunMigrations {
			if err := pgClient.RunMigrations(ctx); err != nil {
				cleanup()
				return nil, nil, fmt.Errorf("wire: postgres migrations: %w", err)
			}
		}

		store := postgres.NewPositionStore(pgClient.Pool())
		if n, err := store.Seed(ctx, seedPositions(cfg)); err != nil {
			logger.WarnContext(ctx, "wire: seed positions failed", slog.String("error", err.Error()))
		} else if n > 0 {
			logger.InfoContext(ctx, "wire: seeded positions", slog.Int("count", n))
		}
		deps.PositionStore = store
	} else {
		deps.PositionStore = trading.StaticPositions(seedPositions(cfg))
	}

	// --- S3 snapshots ---
	if cfg.S3.Enabled {
		s3Client, err := s3blob.New(ctx, s3blob.ClientConfig{
			Endpoint:       cfg.S3.Endpoint,
			Region:         cfg.S3.Region,
			Bucket:         cfg.S3.Bucket,
			AccessKey:      cfg.S3.AccessKey,
			SecretKey:      cfg.S3.SecretKey,
			UseSSL:         cfg.S3.UseSSL,
			ForcePathStyle: cfg.S3.ForcePathStyle,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: s3: %w", err)
		}
		deps.Snapshotter = market.NewSnapshotter(ledger,
			s3blob.NewWriter(s3Client), s3blob.NewReader(s3Client),
			cfg.S3.SnapshotKey, deps.Clock, logger)
	}

	// --- Notifications ---
	var senders []notify.Sender
	if cfg.Notify.TelegramToken != "" && cfg.Notify.TelegramChatID != "" {
		senders = append(senders, notify.NewTelegramSender("", cfg.Notify.TelegramToken, cfg.Notify.TelegramChatID))
	}
	if cfg.Notify.DiscordWebhookURL != "" {
		senders = append(senders, notify.NewDiscordSender(cfg.Notify.DiscordWebhookURL))
	}
	deps.Notifier = notify.NewNotifier(senders, cfg.Notify.Events, logger)
	closers = append(closers, deps.Notifier.Wait)

	return deps, cleanup, nil
}

func seedPositions(cfg *config.Config) []domain.Position {
	out := make([]domain.Position, 0, len(cfg.Positions))
	for _, p := range cfg.Positions {
		out = append(out, domain.Position{
			Symbol:   market.NormalizeSymbol(p.Symbol),
			Quantity: p.Quantity,
			AvgPrice: p.AvgPrice,
		})
	}
	return out
}
