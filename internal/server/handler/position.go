package handler

import (
	"log/slog"
	"net/http"

	"github.com/shopspring/decimal"

	"github.com/alanyoungcy/b3stream/internal/domain"
)

// PriceReader reads the current ledger price of a symbol.
type PriceReader interface {
	Get(symbol string) (float64, error)
}

// PositionHandler serves open positions marked to the current price.
type PositionHandler struct {
	positions domain.PositionStore
	prices    PriceReader
	logger    *slog.Logger
}

// NewPositionHandler creates a PositionHandler.
func NewPositionHandler(positions domain.PositionStore, prices PriceReader, logger *slog.Logger) *PositionHandler {
	return &PositionHandler{positions: positions, prices: prices, logger: logger}
}

// ListPositions returns every open position with current_price and pnl
// filled from the ledger.
// GET /api/v1/positions
func (h *PositionHandler) ListPositions(w http.ResponseWriter, r *http.Request) {
	positions, err := h.positions.ListOpen(r.Context())
	if err != nil {
		h.logger.ErrorContext(r.Context(), "handler: list positions failed",
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to list positions")
		return
	}

	out := make([]domain.Position, 0, len(positions))
	for _, p := range positions {
		out = append(out, h.mark(r, p))
	}
	writeJSON(w, http.StatusOK, out)
}

// mark sets CurrentPrice and PnL. A position in an untracked symbol is
// marked at its average price.
func (h *PositionHandler) mark(r *http.Request, p domain.Position) domain.Position {
	price, err := h.prices.Get(p.Symbol)
	if err != nil {
		h.logger.WarnContext(r.Context(), "handler: position in untracked symbol",
			slog.String("symbol", p.Symbol),
		)
		price = p.AvgPrice
	}
	p.CurrentPrice = price
	p.PnL = decimal.NewFromFloat(price).
		Sub(decimal.NewFromFloat(p.AvgPrice)).
		Mul(decimal.NewFromInt(int64(p.Quantity))).
		Round(2).
		InexactFloat64()
	return p
}
