package ws

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/alanyoungcy/b3stream/internal/domain"
	"github.com/alanyoungcy/b3stream/internal/metrics"
)

const (
	defaultSendTimeout = 2 * time.Second
	defaultMaxParallel = 64
)

// BroadcasterConfig bounds one broadcast pass.
type BroadcasterConfig struct {
	SendTimeout time.Duration // per-handle wait
	MaxParallel int           // concurrent sends
}

// Report summarises one broadcast pass.
type Report struct {
	Attempted int
	Delivered int
	Evicted   int
}

// Broadcaster delivers one envelope to every registered subscriber.
type Broadcaster struct {
	registry *Registry
	cfg      BroadcasterConfig
	metrics  *metrics.FanoutMetrics
	logger   *slog.Logger
}

// NewBroadcaster creates a Broadcaster over registry. m may be nil.
func NewBroadcaster(registry *Registry, cfg BroadcasterConfig, m *metrics.FanoutMetrics, logger *slog.Logger) *Broadcaster {
	if cfg.SendTimeout <= 0 {
		cfg.SendTimeout = defaultSendTimeout
	}
	if cfg.MaxParallel <= 0 {
		cfg.MaxParallel = defaultMaxParallel
	}
	return &Broadcaster{
		registry: registry,
		cfg:      cfg,
		metrics:  m,
		logger:   logger.With(slog.String("component", "broadcaster")),
	}
}

// Broadcast serialises env once and sends it to a snapshot of the registry.
// Handles added after the snapshot miss this message. Handles whose send
// fails are evicted once every handle has been attempted. A failing handle
// never stops delivery to the others.
func (b *Broadcaster) Broadcast(ctx context.Context, env domain.Envelope) Report {
	start := time.Now()

	data, err := env.Encode()
	if err != nil {
		b.logger.ErrorContext(ctx, "encode envelope",
			slog.String("type", string(env.Type)),
			slog.String("error", err.Error()),
		)
		return Report{}
	}

	subs := b.registry.Snapshot()
	if len(subs) == 0 {
		return Report{}
	}

	var (
		mu     sync.Mutex
		failed []Subscriber
	)
	var g errgroup.Group
	g.SetLimit(b.cfg.MaxParallel)
	for _, sub := range subs {
		g.Go(func() error {
			sendCtx, cancel := context.WithTimeout(ctx, b.cfg.SendTimeout)
			defer cancel()

			if err := sub.Send(sendCtx, data); err != nil {
				b.logger.DebugContext(ctx, "delivery failed",
					slog.String("subscriber", sub.ID()),
					slog.String("error", err.Error()),
				)
				mu.Lock()
				failed = append(failed, sub)
				mu.Unlock()
			}
			return nil
		})
	}
	_ = g.Wait()

	report := Report{Attempted: len(subs), Delivered: len(subs) - len(failed)}

	// A cancelled pass is not the subscribers' fault.
	if ctx.Err() == nil {
		for _, sub := range failed {
			if b.registry.Remove(sub) {
				report.Evicted++
			}
		}
	}
	if report.Evicted > 0 {
		b.logger.InfoContext(ctx, "evicted subscribers",
			slog.Int("evicted", report.Evicted),
			slog.Int("remaining", b.registry.Len()),
		)
	}

	if b.metrics != nil {
		b.metrics.Deliveries.WithLabelValues("ok").Add(float64(report.Delivered))
		b.metrics.Deliveries.WithLabelValues("failed").Add(float64(len(failed)))
		b.metrics.Evictions.Add(float64(report.Evicted))
		b.metrics.BroadcastDuration.Observe(time.Since(start).Seconds())
	}
	return report
}
