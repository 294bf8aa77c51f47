package stream

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/alanyoungcy/b3stream/internal/domain"
	"github.com/alanyoungcy/b3stream/internal/metrics"
	"github.com/alanyoungcy/b3stream/internal/server/ws"
)

const (
	defaultInterval    = 500 * time.Millisecond
	defaultSinkTimeout = time.Second
)

// TickSource produces the next tick of a symbol.
type TickSource interface {
	Next(symbol string) (domain.Tick, error)
}

// PriceStore is the slice of the ledger the loop needs.
type PriceStore interface {
	Symbols() []string
	Set(symbol string, price float64) error
}

// Fanout delivers an envelope to every subscriber.
type Fanout interface {
	Broadcast(ctx context.Context, env domain.Envelope) ws.Report
}

// Config controls the loop cadence.
type Config struct {
	Interval    time.Duration
	SinkTimeout time.Duration
}

// Publisher is the single writer of the ledger. Each cycle generates one tick
// per symbol, stores it, broadcasts it and mirrors it to the sinks.
type Publisher struct {
	source  TickSource
	prices  PriceStore
	fanout  Fanout
	sinks   []TickSink
	cfg     Config
	clock   clockwork.Clock
	metrics *metrics.StreamMetrics
	logger  *slog.Logger
}

// NewPublisher creates a Publisher. fanout may be nil when no subscribers are
// served, m may be nil.
func NewPublisher(source TickSource, prices PriceStore, fanout Fanout, sinks []TickSink, cfg Config, clock clockwork.Clock, m *metrics.StreamMetrics, logger *slog.Logger) *Publisher {
	if cfg.Interval <= 0 {
		cfg.Interval = defaultInterval
	}
	if cfg.SinkTimeout <= 0 {
		cfg.SinkTimeout = defaultSinkTimeout
	}
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Publisher{
		source:  source,
		prices:  prices,
		fanout:  fanout,
		sinks:   sinks,
		cfg:     cfg,
		clock:   clock,
		metrics: m,
		logger:  logger.With(slog.String("component", "publisher")),
	}
}

// Run publishes a cycle on every interval until ctx is cancelled.
func (p *Publisher) Run(ctx context.Context) error {
	ticker := p.clock.NewTicker(p.cfg.Interval)
	defer ticker.Stop()

	p.logger.InfoContext(ctx, "publication loop started",
		slog.Duration("interval", p.cfg.Interval),
		slog.Int("symbols", len(p.prices.Symbols())),
		slog.Int("sinks", len(p.sinks)),
	)

	for {
		select {
		case <-ctx.Done():
			p.logger.Info("publication loop stopped")
			return ctx.Err()
		case <-ticker.Chan():
			p.RunCycle(ctx)
		}
	}
}

// RunCycle publishes one tick per symbol in ledger order and returns how many
// were published. A failing symbol is skipped for this cycle only.
func (p *Publisher) RunCycle(ctx context.Context) int {
	start := p.clock.Now()
	published := 0
	for _, symbol := range p.prices.Symbols() {
		if ctx.Err() != nil {
			break
		}
		if err := p.publish(ctx, symbol); err != nil {
			p.logger.WarnContext(ctx, "tick skipped",
				slog.String("symbol", symbol),
				slog.String("error", err.Error()),
			)
			if p.metrics != nil {
				p.metrics.GenerationFaults.WithLabelValues(symbol).Inc()
			}
			continue
		}
		published++
	}
	if p.metrics != nil {
		p.metrics.CycleDuration.Observe(p.clock.Since(start).Seconds())
	}
	return published
}

func (p *Publisher) publish(ctx context.Context, symbol string) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %s: panic: %v", domain.ErrGenerationFault, symbol, r)
		}
	}()

	tick, err := p.source.Next(symbol)
	if err != nil {
		return fmt.Errorf("%w: %s: %w", domain.ErrGenerationFault, symbol, err)
	}
	if err := p.prices.Set(symbol, tick.Price); err != nil {
		return fmt.Errorf("%w: %s: %w", domain.ErrGenerationFault, symbol, err)
	}

	if p.fanout != nil {
		p.fanout.Broadcast(ctx, domain.NewEnvelope(domain.EnvelopeMarketData, tick))
	}
	p.mirror(ctx, tick)

	if p.metrics != nil {
		p.metrics.TicksPublished.WithLabelValues(symbol).Inc()
	}
	return nil
}

// mirror hands the tick to every sink. Sink failures are logged only.
func (p *Publisher) mirror(ctx context.Context, tick domain.Tick) {
	if len(p.sinks) == 0 {
		return
	}
	payload, err := json.Marshal(tick)
	if err != nil {
		p.logger.ErrorContext(ctx, "encode tick", slog.String("error", err.Error()))
		return
	}

	sinkCtx, cancel := context.WithTimeout(ctx, p.cfg.SinkTimeout)
	defer cancel()
	for _, s := range p.sinks {
		if err := s.Publish(sinkCtx, tick, payload); err != nil {
			p.logger.DebugContext(ctx, "sink publish failed",
				slog.String("sink", s.Name()),
				slog.String("symbol", tick.Symbol),
				slog.String("error", err.Error()),
			)
			if p.metrics != nil {
				p.metrics.SinkErrors.WithLabelValues(s.Name()).Inc()
			}
		}
	}
}
