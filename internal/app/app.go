// Package app provides the top-level application lifecycle. It wires the
// dependencies (ledger, caches, stores, snapshots and notifications) and
// starts the goroutines of the configured operating mode.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/alanyoungcy/b3stream/internal/config"
	"github.com/alanyoungcy/b3stream/internal/notify"
)

// App is the root application object. It owns the configuration, logger, and a
// list of cleanup functions that are called in reverse order on shutdown.
type App struct {
	cfg     *config.Config
	logger  *slog.Logger
	closers []func()
}

// New creates a new App from the given configuration and logger.
func New(cfg *config.Config, logger *slog.Logger) *App {
	return &App{
		cfg:    cfg,
		logger: logger.With(slog.String("component", "app")),
	}
}

// Run wires all dependencies, selects the operating mode and blocks until the
// context is cancelled.
func (a *App) Run(ctx context.Context) error {
	a.logger.InfoContext(ctx, "starting application",
		slog.String("mode", a.cfg.Mode),
		slog.String("log_level", a.cfg.LogLevel),
		slog.Int("symbols", len(a.cfg.Market.Symbols)),
	)

	deps, cleanup, err := Wire(ctx, a.cfg, a.logger)
	if err != nil {
		return fmt.Errorf("app: wire dependencies: %w", err)
	}
	a.closers = append(a.closers, cleanup)

	a.announce(ctx, deps.Notifier, notify.EventStartup, "b3stream started")
	defer a.announce(context.WithoutCancel(ctx), deps.Notifier, notify.EventShutdown, "b3stream stopped")

	switch strings.ToLower(a.cfg.Mode) {
	case "full":
		return a.FullMode(ctx, deps)
	case "generator":
		return a.GeneratorMode(ctx, deps)
	case "relay":
		return a.RelayMode(ctx, deps)
	default:
		return fmt.Errorf("app: unsupported mode %q", a.cfg.Mode)
	}
}

// Close tears down all resources in reverse registration order. It is safe to
// call multiple times; subsequent calls are no-ops.
func (a *App) Close() {
	a.logger.Info("shutting down application")
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}

func (a *App) announce(ctx context.Context, n *notify.Notifier, event, title string) {
	if !n.Enabled() {
		return
	}
	msg := fmt.Sprintf("mode %s, %d symbols", a.cfg.Mode, len(a.cfg.Market.Symbols))
	if err := n.Notify(ctx, event, title, msg); err != nil {
		a.logger.WarnContext(ctx, "notify failed",
			slog.String("event", event),
			slog.String("error", err.Error()),
		)
	}
}
