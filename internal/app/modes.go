package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/alanyoungcy/b3stream/internal/domain"
	"github.com/alanyoungcy/b3stream/internal/metrics"
	"github.com/alanyoungcy/b3stream/internal/server"
	"github.com/alanyoungcy/b3stream/internal/server/handler"
	"github.com/alanyoungcy/b3stream/internal/server/ws"
	"github.com/alanyoungcy/b3stream/internal/stream"
	"github.com/alanyoungcy/b3stream/internal/trading"
)

const (
	shutdownTimeout  = 10 * time.Second
	generatorLockKey = "b3stream:generator"
)

// FullMode runs the publication loop together with the HTTP API and the
// WebSocket subscriber channel.
func (a *App) FullMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting full mode")

	g, ctx := errgroup.WithContext(ctx)

	a.startSnapshots(ctx, g, deps)

	hub, bc := a.newFanout(deps)
	pub := stream.NewPublisher(deps.Generator, deps.Ledger, bc, a.sinks(deps), a.streamConfig(),
		deps.Clock, deps.StreamMetrics, a.logger)
	g.Go(func() error {
		return pub.Run(ctx)
	})

	a.startHTTPServer(ctx, g, deps, hub, bc)

	return g.Wait()
}

// GeneratorMode runs the publication loop with no subscribers. Ticks reach
// the outside world only through the Redis price cache and market data
// channel, where relay instances pick them up.
func (a *App) GeneratorMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting generator mode",
		slog.String("channel", a.cfg.Redis.MarketDataChannel),
	)

	g, ctx := errgroup.WithContext(ctx)

	if deps.LockManager != nil {
		ttl := a.cfg.Redis.GeneratorLockTTL.Duration
		lease, err := deps.LockManager.Acquire(ctx, generatorLockKey, ttl)
		if err != nil {
			return fmt.Errorf("generator mode: %w", err)
		}
		defer lease.Release()
		g.Go(func() error {
			return a.holdLease(ctx, deps, lease, ttl)
		})
	}

	a.startSnapshots(ctx, g, deps)

	pub := stream.NewPublisher(deps.Generator, deps.Ledger, nil, a.sinks(deps), a.streamConfig(),
		deps.Clock, deps.StreamMetrics, a.logger)
	g.Go(func() error {
		return pub.Run(ctx)
	})

	return g.Wait()
}

// RelayMode serves subscribers and the HTTP API from ticks published by a
// generator instance. The relay is the only writer of the local ledger.
func (a *App) RelayMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting relay mode",
		slog.String("channel", a.cfg.Redis.MarketDataChannel),
	)

	g, ctx := errgroup.WithContext(ctx)

	hub, bc := a.newFanout(deps)
	relay := stream.NewRelay(deps.SignalBus, a.cfg.Redis.MarketDataChannel, deps.Ledger, bc,
		deps.StreamMetrics, a.logger)
	g.Go(func() error {
		return relay.Run(ctx)
	})

	a.startHTTPServer(ctx, g, deps, hub, bc)

	return g.Wait()
}

// holdLease refreshes lease at a third of its TTL until ctx is done. Losing
// the lease stops the mode so two generators never publish at once.
func (a *App) holdLease(ctx context.Context, deps *Dependencies, lease domain.Lease, ttl time.Duration) error {
	ticker := deps.Clock.NewTicker(ttl / 3)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.Chan():
			if err := lease.Refresh(ctx); err != nil {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				return fmt.Errorf("generator lease: %w", err)
			}
		}
	}
}

func (a *App) newFanout(deps *Dependencies) (*ws.Hub, *ws.Broadcaster) {
	registry := ws.NewRegistry(deps.FanoutMetrics, a.logger)
	hub := ws.NewHub(registry, ws.HubConfig{
		PingPeriod:     a.cfg.Stream.PingPeriod.Duration,
		WriteTimeout:   a.cfg.Stream.WriteTimeout.Duration,
		AllowedOrigins: a.cfg.Server.CORSOrigins,
		Symbols:        deps.Ledger.Symbols(),
	}, a.logger)
	bc := ws.NewBroadcaster(registry, ws.BroadcasterConfig{
		SendTimeout: a.cfg.Stream.WriteTimeout.Duration,
		MaxParallel: a.cfg.Stream.MaxParallelSends,
	}, deps.FanoutMetrics, a.logger)
	return hub, bc
}

func (a *App) streamConfig() stream.Config {
	return stream.Config{
		Interval:    a.cfg.Stream.Interval.Duration,
		SinkTimeout: a.cfg.Stream.SinkTimeout.Duration,
	}
}

// sinks returns the side publications available with the wired backends.
func (a *App) sinks(deps *Dependencies) []stream.TickSink {
	var sinks []stream.TickSink
	if deps.PriceCache != nil {
		sinks = append(sinks, stream.NewPriceCacheSink(deps.PriceCache))
	}
	if deps.SignalBus != nil {
		sinks = append(sinks, stream.NewBusSink(deps.SignalBus, a.cfg.Redis.MarketDataChannel))
	}
	return sinks
}

// startSnapshots restores the ledger from the last snapshot and keeps saving
// it while the mode runs. It is a no-op without object storage.
func (a *App) startSnapshots(ctx context.Context, g *errgroup.Group, deps *Dependencies) {
	if deps.Snapshotter == nil {
		return
	}
	n, err := deps.Snapshotter.Restore(ctx)
	if err != nil {
		a.logger.WarnContext(ctx, "snapshot restore failed, starting from base prices",
			slog.String("error", err.Error()),
		)
	} else {
		a.logger.InfoContext(ctx, "snapshot restored", slog.Int("symbols", n))
	}
	g.Go(func() error {
		return deps.Snapshotter.Run(ctx, a.cfg.Stream.SnapshotInterval.Duration)
	})
}

// startHTTPServer adds the HTTP server and its shutdown watcher to g. On
// cancellation subscribers are closed first so the server does not wait on
// hijacked connections.
func (a *App) startHTTPServer(ctx context.Context, g *errgroup.Group, deps *Dependencies, hub *ws.Hub, fanout *ws.Broadcaster) {
	svc := trading.NewService(deps.Ledger, fanout, deps.SignalBus, deps.Notifier, trading.Config{
		DefaultSymbol: a.cfg.Market.DefaultSymbol,
	}, deps.Clock, deps.StreamMetrics, a.logger)

	handlers := server.Handlers{
		Health:    handler.NewHealthHandler(hub.Registry(), deps.Clock, a.logger),
		Market:    handler.NewMarketHandler(deps.Ledger, a.logger),
		Trade:     handler.NewTradeHandler(svc, a.logger),
		Positions: handler.NewPositionHandler(deps.PositionStore, deps.Ledger, a.logger),
		Account: handler.NewAccountHandler(domain.Account{
			Balance:     a.cfg.Account.Balance,
			Equity:      a.cfg.Account.Equity,
			Margin:      a.cfg.Account.Margin,
			FreeMargin:  a.cfg.Account.FreeMargin,
			MarginLevel: a.cfg.Account.MarginLevel,
		}),
	}

	srv := server.NewServer(server.Config{
		Port:        a.cfg.Server.Port,
		CORSOrigins: a.cfg.Server.CORSOrigins,
		RateLimit:   a.cfg.Server.RateLimit,
		RateWindow:  a.cfg.Server.RateWindow.Duration,
	}, handlers, server.Deps{
		Hub:            hub,
		Limiter:        deps.RateLimiter,
		Metrics:        metrics.Handler(deps.Registry),
		HTTPMiddleware: deps.HTTPMetrics.Middleware,
	}, a.logger)

	g.Go(func() error {
		return srv.Start()
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		hub.Shutdown(shutdownCtx)
		return srv.Shutdown(shutdownCtx)
	})
}
