// Package trading turns external signals into synthetic fills at the current
// ledger price and announces them to subscribers.
package trading

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"

	"github.com/alanyoungcy/b3stream/internal/domain"
	"github.com/alanyoungcy/b3stream/internal/market"
	"github.com/alanyoungcy/b3stream/internal/metrics"
	"github.com/alanyoungcy/b3stream/internal/server/ws"
)

// TradesChannel is the pub/sub topic fills are mirrored to.
const TradesChannel = "trades"

const (
	ackStatus  = "signal_received"
	ackMessage = "Signal processed"
)

// PriceReader is the ledger read path.
type PriceReader interface {
	Get(symbol string) (float64, error)
}

// Fanout delivers an envelope to every subscriber.
type Fanout interface {
	Broadcast(ctx context.Context, env domain.Envelope) ws.Report
}

// FillNotifier is told about every fill.
type FillNotifier interface {
	NotifyFill(res domain.ExecutionResult)
}

// Config holds the defaults applied to partial requests.
type Config struct {
	DefaultSymbol   string
	DefaultQuantity int
}

// Service executes signals and trade requests.
type Service struct {
	prices   PriceReader
	fanout   Fanout
	bus      domain.SignalBus
	notifier FillNotifier
	cfg      Config
	clock    clockwork.Clock
	metrics  *metrics.StreamMetrics
	logger   *slog.Logger
}

// NewService creates a Service. bus, notifier and m may be nil.
func NewService(
	prices PriceReader,
	fanout Fanout,
	bus domain.SignalBus,
	notifier FillNotifier,
	cfg Config,
	clock clockwork.Clock,
	m *metrics.StreamMetrics,
	logger *slog.Logger,
) *Service {
	if cfg.DefaultSymbol == "" {
		cfg.DefaultSymbol = "WINFUT"
	}
	if cfg.DefaultQuantity <= 0 {
		cfg.DefaultQuantity = 1
	}
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Service{
		prices:   prices,
		fanout:   fanout,
		bus:      bus,
		notifier: notifier,
		cfg:      cfg,
		clock:    clock,
		metrics:  m,
		logger:   logger.With(slog.String("component", "trading")),
	}
}

// Submit handles a bot signal. BUY and SELL fill; any other action, a
// malformed signal or a non-positive volume is acknowledged without a trade.
func (s *Service) Submit(ctx context.Context, sig domain.Signal) (domain.Outcome, error) {
	side, ok := domain.ParseSide(sig.Action)
	if !ok || sig.Malformed || (sig.Volume != nil && *sig.Volume <= 0) {
		s.logger.InfoContext(ctx, "signal acknowledged",
			slog.String("action", sig.Action),
			slog.String("symbol", sig.Symbol),
			slog.Bool("malformed", sig.Malformed),
		)
		return domain.Outcome{Ack: &domain.Ack{Status: ackStatus, Message: ackMessage}}, nil
	}

	res, err := s.Execute(ctx, domain.TradeRequest{
		Symbol:   sig.Symbol,
		Side:     string(side),
		Quantity: sig.Volume,
	})
	if err != nil {
		return domain.Outcome{}, err
	}
	return domain.Outcome{Execution: &res}, nil
}

// Execute fills req at the current ledger price and broadcasts exactly one
// trade_executed envelope. An empty side means BUY.
func (s *Service) Execute(ctx context.Context, req domain.TradeRequest) (domain.ExecutionResult, error) {
	symbol := req.Symbol
	if symbol == "" {
		symbol = s.cfg.DefaultSymbol
	}

	side := domain.SideBuy
	if req.Side != "" {
		var ok bool
		if side, ok = domain.ParseSide(req.Side); !ok {
			return domain.ExecutionResult{}, fmt.Errorf("trading: execute: side %q: %w", req.Side, domain.ErrMalformedSignal)
		}
	}

	qty := s.cfg.DefaultQuantity
	if req.Quantity != nil {
		qty = *req.Quantity
	}
	if qty <= 0 {
		return domain.ExecutionResult{}, fmt.Errorf("trading: execute: quantity %d: %w", qty, domain.ErrMalformedSignal)
	}

	price, err := s.prices.Get(symbol)
	if err != nil {
		return domain.ExecutionResult{}, fmt.Errorf("trading: execute: %w", err)
	}

	res := domain.ExecutionResult{
		TradeID:   uuid.NewString(),
		Symbol:    market.NormalizeSymbol(symbol),
		Side:      side,
		Quantity:  qty,
		Price:     price,
		Status:    domain.TradeStatusFilled,
		Timestamp: s.clock.Now(),
	}

	// A built fill is always announced, even if the caller goes away.
	pubCtx := context.WithoutCancel(ctx)
	report := s.fanout.Broadcast(pubCtx, domain.NewEnvelope(domain.EnvelopeTradeExecuted, res))
	s.mirror(pubCtx, res)
	if s.notifier != nil {
		s.notifier.NotifyFill(res)
	}
	if s.metrics != nil {
		s.metrics.TradesExecuted.WithLabelValues(string(side)).Inc()
	}

	s.logger.InfoContext(ctx, "trade executed",
		slog.String("trade_id", res.TradeID),
		slog.String("symbol", res.Symbol),
		slog.String("side", string(res.Side)),
		slog.Int("quantity", res.Quantity),
		slog.Float64("price", res.Price),
		slog.Int("delivered", report.Delivered),
	)
	return res, nil
}

func (s *Service) mirror(ctx context.Context, res domain.ExecutionResult) {
	if s.bus == nil {
		return
	}
	payload, err := json.Marshal(res)
	if err != nil {
		return
	}
	if err := s.bus.Publish(ctx, TradesChannel, payload); err != nil {
		s.logger.WarnContext(ctx, "publish trade failed",
			slog.String("trade_id", res.TradeID),
			slog.String("error", err.Error()),
		)
	}
}
