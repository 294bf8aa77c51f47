package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/alanyoungcy/b3stream/internal/domain"
	"github.com/alanyoungcy/b3stream/internal/market"
)

// QuoteReader reads the current ledger view of a symbol.
type QuoteReader interface {
	Quote(symbol string) (domain.Quote, error)
}

// MarketHandler serves market-data queries. It never mutates prices.
type MarketHandler struct {
	quotes QuoteReader
	logger *slog.Logger
}

// NewMarketHandler creates a MarketHandler.
func NewMarketHandler(quotes QuoteReader, logger *slog.Logger) *MarketHandler {
	return &MarketHandler{quotes: quotes, logger: logger}
}

// GetQuote returns the current quote of a symbol. The lookup is
// case-insensitive.
// GET /api/v1/market/{symbol}
func (h *MarketHandler) GetQuote(w http.ResponseWriter, r *http.Request) {
	symbol := market.NormalizeSymbol(pathParam(r, "symbol"))

	q, err := h.quotes.Quote(symbol)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Symbol not found")
			return
		}
		h.logger.ErrorContext(r.Context(), "handler: get quote failed",
			slog.String("symbol", symbol),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to get quote")
		return
	}

	writeJSON(w, http.StatusOK, q)
}
