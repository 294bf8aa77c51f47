package stream

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/alanyoungcy/b3stream/internal/domain"
	"github.com/alanyoungcy/b3stream/internal/metrics"
)

// Relay serves subscribers from ticks a separate generator process publishes
// on the bus. It applies each tick to the local ledger and broadcasts it, so
// it takes the place of the Publisher as the ledger's single writer.
type Relay struct {
	bus     domain.SignalBus
	channel string
	prices  PriceStore
	fanout  Fanout
	metrics *metrics.StreamMetrics
	logger  *slog.Logger
}

// NewRelay creates a Relay reading channel. m may be nil.
func NewRelay(bus domain.SignalBus, channel string, prices PriceStore, fanout Fanout, m *metrics.StreamMetrics, logger *slog.Logger) *Relay {
	if channel == "" {
		channel = MarketDataChannel
	}
	return &Relay{
		bus:     bus,
		channel: channel,
		prices:  prices,
		fanout:  fanout,
		metrics: m,
		logger:  logger.With(slog.String("component", "relay")),
	}
}

// Run consumes the channel until ctx is cancelled or the subscription ends.
func (r *Relay) Run(ctx context.Context) error {
	msgs, err := r.bus.Subscribe(ctx, r.channel)
	if err != nil {
		return fmt.Errorf("relay: subscribe %s: %w", r.channel, err)
	}
	r.logger.InfoContext(ctx, "relay started", slog.String("channel", r.channel))

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case payload, ok := <-msgs:
			if !ok {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				return fmt.Errorf("relay: subscription to %s closed", r.channel)
			}
			if err := r.Apply(ctx, payload); err != nil {
				r.logger.WarnContext(ctx, "relay: tick dropped",
					slog.String("error", err.Error()),
				)
			}
		}
	}
}

// Apply decodes one published tick, stores its price and broadcasts it.
func (r *Relay) Apply(ctx context.Context, payload []byte) error {
	var tick domain.Tick
	if err := json.Unmarshal(payload, &tick); err != nil {
		return fmt.Errorf("relay: decode tick: %w", err)
	}
	if tick.Symbol == "" {
		return errors.New("relay: tick without symbol")
	}
	if err := r.prices.Set(tick.Symbol, tick.Price); err != nil {
		return fmt.Errorf("relay: apply %s: %w", tick.Symbol, err)
	}

	r.fanout.Broadcast(ctx, domain.NewEnvelope(domain.EnvelopeMarketData, tick))
	if r.metrics != nil {
		r.metrics.TicksPublished.WithLabelValues(tick.Symbol).Inc()
	}
	return nil
}
