package domain

import (
	"encoding/json"
	"math"
	"strings"
	"time"
)

// Side is the direction of a trade.
type Side string

const (
	SideBuy  Side = "BUY"
	SideSell Side = "SELL"
)

// ParseSide normalises s and reports whether it names a trading action.
func ParseSide(s string) (Side, bool) {
	switch Side(strings.ToUpper(strings.TrimSpace(s))) {
	case SideBuy:
		return SideBuy, true
	case SideSell:
		return SideSell, true
	default:
		return "", false
	}
}

// TradeStatusFilled is the only status a synthetic execution can have.
const TradeStatusFilled = "FILLED"

// Signal is an inbound trading-bot instruction. Only Action is required.
// Malformed is set when the payload could not be read as a signal; such a
// signal is acknowledged and never traded.
type Signal struct {
	Action    string `json:"action"`
	Symbol    string `json:"symbol,omitempty"`
	Volume    *int   `json:"volume,omitempty"`
	Malformed bool   `json:"-"`
}

// UnmarshalJSON reads a signal leniently. Fields of the wrong type mark the
// signal Malformed instead of failing. Volume accepts whole-number floats
// such as 1.0, the way MT5 reports lot sizes.
func (s *Signal) UnmarshalJSON(b []byte) error {
	var raw struct {
		Action json.RawMessage `json:"action"`
		Symbol json.RawMessage `json:"symbol"`
		Volume json.RawMessage `json:"volume"`
	}
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}

	*s = Signal{}
	if !decodeString(raw.Action, &s.Action) || !decodeString(raw.Symbol, &s.Symbol) {
		s.Malformed = true
	}
	if len(raw.Volume) > 0 && string(raw.Volume) != "null" {
		var f float64
		if err := json.Unmarshal(raw.Volume, &f); err != nil ||
			f != math.Trunc(f) || f > math.MaxInt32 || f < math.MinInt32 {
			s.Malformed = true
		} else {
			v := int(f)
			s.Volume = &v
		}
	}
	return nil
}

func decodeString(raw json.RawMessage, dst *string) bool {
	if len(raw) == 0 {
		return true
	}
	return json.Unmarshal(raw, dst) == nil
}

// TradeRequest asks for an immediate synthetic fill at the ledger price.
type TradeRequest struct {
	Symbol   string `json:"symbol"`
	Side     string `json:"side"`
	Quantity *int   `json:"quantity,omitempty"`
}

// ExecutionResult is the trade_executed payload.
type ExecutionResult struct {
	TradeID   string    `json:"trade_id"`
	Symbol    string    `json:"symbol"`
	Side      Side      `json:"side"`
	Quantity  int       `json:"quantity"`
	Price     float64   `json:"price"`
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
}

// Ack is the neutral reply for signals that do not name a trading action.
type Ack struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

// Outcome is the result of submitting a signal: either a fill or an ack.
type Outcome struct {
	Execution *ExecutionResult
	Ack       *Ack
}

// Filled reports whether the signal produced an execution.
func (o Outcome) Filled() bool {
	return o.Execution != nil
}

// MarshalJSON emits whichever branch is set.
func (o Outcome) MarshalJSON() ([]byte, error) {
	if o.Execution != nil {
		return json.Marshal(o.Execution)
	}
	return json.Marshal(o.Ack)
}
