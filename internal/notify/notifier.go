// Package notify fans operator alerts out to chat webhooks. Events are
// filtered by type so operators receive only the alerts they care about.
package notify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/alanyoungcy/b3stream/internal/domain"
)

// Event types understood by the notifier.
const (
	EventTradeExecuted = "trade_executed"
	EventStartup       = "startup"
	EventShutdown      = "shutdown"
)

const asyncTimeout = 10 * time.Second

// Sender is one notification channel.
type Sender interface {
	Send(ctx context.Context, title, message string) error
	Name() string
}

// Notifier dispatches notifications to every Sender whose event type is
// allowed. If no events are configured every event passes.
type Notifier struct {
	senders []Sender
	events  map[string]bool
	logger  *slog.Logger
	wg      sync.WaitGroup
}

// NewNotifier creates a Notifier delivering to senders.
func NewNotifier(senders []Sender, events []string, logger *slog.Logger) *Notifier {
	allowed := make(map[string]bool, len(events))
	for _, e := range events {
		if e = strings.TrimSpace(e); e != "" {
			allowed[e] = true
		}
	}
	return &Notifier{
		senders: senders,
		events:  allowed,
		logger:  logger.With(slog.String("component", "notifier")),
	}
}

// Enabled reports whether any sender is configured.
func (n *Notifier) Enabled() bool {
	return n != nil && len(n.senders) > 0
}

// Notify sends synchronously when event is allowed.
func (n *Notifier) Notify(ctx context.Context, event, title, message string) error {
	if !n.allowed(event) {
		n.logger.DebugContext(ctx, "event filtered out", slog.String("event", event))
		return nil
	}
	return n.dispatch(ctx, title, message)
}

// NotifyFill reports a synthetic execution without blocking the caller.
func (n *Notifier) NotifyFill(res domain.ExecutionResult) {
	if !n.Enabled() || !n.allowed(EventTradeExecuted) {
		return
	}
	title := fmt.Sprintf("%s %d %s", res.Side, res.Quantity, res.Symbol)
	msg := fmt.Sprintf("Filled at %.2f (trade %s, %s)", res.Price, res.TradeID, res.Timestamp.UTC().Format(time.RFC3339))

	n.wg.Add(1)
	go func() {
		defer n.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), asyncTimeout)
		defer cancel()
		_ = n.dispatch(ctx, title, msg)
	}()
}

// Wait blocks until every asynchronous notification has finished.
func (n *Notifier) Wait() {
	n.wg.Wait()
}

func (n *Notifier) allowed(event string) bool {
	return len(n.events) == 0 || n.events[event]
}

// dispatch sends to every sender; one failure does not stop the rest.
func (n *Notifier) dispatch(ctx context.Context, title, message string) error {
	var errs []error
	for _, s := range n.senders {
		if err := s.Send(ctx, title, message); err != nil {
			n.logger.ErrorContext(ctx, "sender failed",
				slog.String("sender", s.Name()),
				slog.String("error", err.Error()),
			)
			errs = append(errs, fmt.Errorf("%s: %w", s.Name(), err))
			continue
		}
		n.logger.DebugContext(ctx, "notification sent",
			slog.String("sender", s.Name()),
			slog.String("title", title),
		)
	}
	if len(errs) > 0 {
		return fmt.Errorf("notify: %d sender(s) failed: %w", len(errs), errors.Join(errs...))
	}
	return nil
}
