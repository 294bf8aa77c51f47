package domain

import "time"

// Tick is one generated price observation for a symbol. It is a value: once
// built it is serialised independently for every subscriber.
type Tick struct {
	Symbol        string    `json:"symbol"`
	Price         float64   `json:"price"`
	Change        float64   `json:"change"`
	ChangePercent float64   `json:"change_percent"`
	Volume        int       `json:"volume"`
	Bid           float64   `json:"bid"`
	Ask           float64   `json:"ask"`
	Timestamp     time.Time `json:"timestamp"`
}

// Quote is the read view of a ledger entry served to query collaborators.
type Quote struct {
	Symbol    string    `json:"symbol"`
	Price     float64   `json:"price"`
	BasePrice float64   `json:"base_price"`
	Change    float64   `json:"change"`
	UpdatedAt time.Time `json:"timestamp"`
}
