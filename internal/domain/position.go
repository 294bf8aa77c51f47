package domain

import "context"

// Position is an open holding shown to the positions endpoint. CurrentPrice
// and PnL are filled in from the ledger at read time.
type Position struct {
	Symbol       string  `json:"symbol"`
	Quantity     int     `json:"quantity"`
	AvgPrice     float64 `json:"avg_price"`
	CurrentPrice float64 `json:"current_price"`
	PnL          float64 `json:"pnl"`
}

// PositionStore lists open positions.
type PositionStore interface {
	ListOpen(ctx context.Context) ([]Position, error)
}

// Account is the static account summary.
type Account struct {
	Balance     float64 `json:"balance"`
	Equity      float64 `json:"equity"`
	Margin      float64 `json:"margin"`
	FreeMargin  float64 `json:"free_margin"`
	MarginLevel float64 `json:"margin_level"`
}
