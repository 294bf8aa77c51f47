package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/alanyoungcy/b3stream/internal/domain"
)

// TradeService is what the trade endpoints need from the trading layer.
type TradeService interface {
	Submit(ctx context.Context, sig domain.Signal) (domain.Outcome, error)
	Execute(ctx context.Context, req domain.TradeRequest) (domain.ExecutionResult, error)
}

// TradeHandler serves trade submission and bot signal intake.
type TradeHandler struct {
	trades TradeService
	logger *slog.Logger
}

// NewTradeHandler creates a TradeHandler.
func NewTradeHandler(trades TradeService, logger *slog.Logger) *TradeHandler {
	return &TradeHandler{trades: trades, logger: logger}
}

// Execute fills a trade at the current price.
// POST /api/v1/trade
func (h *TradeHandler) Execute(w http.ResponseWriter, r *http.Request) {
	var req domain.TradeRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	res, err := h.trades.Execute(r.Context(), req)
	if err != nil {
		h.fail(w, r, "execute", err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// Signal accepts a trading-bot signal. A body that cannot be read is
// acknowledged without a trade.
// POST /api/v1/mt5/signal
func (h *TradeHandler) Signal(w http.ResponseWriter, r *http.Request) {
	var sig domain.Signal
	if err := decodeJSON(r, &sig); err != nil {
		h.logger.DebugContext(r.Context(), "handler: unreadable signal",
			slog.String("error", err.Error()),
		)
		sig = domain.Signal{Malformed: true}
	}

	out, err := h.trades.Submit(r.Context(), sig)
	if err != nil {
		h.fail(w, r, "signal", err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *TradeHandler) fail(w http.ResponseWriter, r *http.Request, op string, err error) {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		writeError(w, http.StatusNotFound, "Symbol not found")
	case errors.Is(err, domain.ErrMalformedSignal):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, domain.ErrRateLimited):
		writeError(w, http.StatusTooManyRequests, "rate limited")
	default:
		h.logger.ErrorContext(r.Context(), "handler: "+op+" failed",
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to process trade")
	}
}
