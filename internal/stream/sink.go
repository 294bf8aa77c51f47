package stream

import (
	"context"
	"fmt"

	"github.com/alanyoungcy/b3stream/internal/domain"
)

// MarketDataChannel is the pub/sub topic ticks are mirrored to.
const MarketDataChannel = "market_data"

// TickSink receives every published tick on a best-effort basis. payload is
// the JSON encoding of tick.
type TickSink interface {
	Name() string
	Publish(ctx context.Context, tick domain.Tick, payload []byte) error
}

// PriceCacheSink stores the last price of each symbol.
type PriceCacheSink struct {
	cache domain.PriceCache
}

// NewPriceCacheSink wraps cache as a TickSink.
func NewPriceCacheSink(cache domain.PriceCache) *PriceCacheSink {
	return &PriceCacheSink{cache: cache}
}

func (s *PriceCacheSink) Name() string { return "price_cache" }

func (s *PriceCacheSink) Publish(ctx context.Context, tick domain.Tick, _ []byte) error {
	if err := s.cache.SetPrice(ctx, tick.Symbol, tick.Price); err != nil {
		return fmt.Errorf("price cache sink: %w", err)
	}
	return nil
}

// BusSink publishes the tick JSON on a pub/sub channel.
type BusSink struct {
	bus     domain.SignalBus
	channel string
}

// NewBusSink publishes to channel, or MarketDataChannel when empty.
func NewBusSink(bus domain.SignalBus, channel string) *BusSink {
	if channel == "" {
		channel = MarketDataChannel
	}
	return &BusSink{bus: bus, channel: channel}
}

func (s *BusSink) Name() string { return "bus:" + s.channel }

func (s *BusSink) Publish(ctx context.Context, _ domain.Tick, payload []byte) error {
	if err := s.bus.Publish(ctx, s.channel, payload); err != nil {
		return fmt.Errorf("bus sink: %w", err)
	}
	return nil
}
