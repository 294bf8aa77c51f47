package domain

import "encoding/json"

// EnvelopeType tags the payload carried on the subscriber channel.
type EnvelopeType string

const (
	EnvelopeMarketData    EnvelopeType = "market_data"
	EnvelopeTradeExecuted EnvelopeType = "trade_executed"
	EnvelopeStatus        EnvelopeType = "status"
)

// Envelope is the wire message written to every subscriber: {type, data}.
type Envelope struct {
	Type EnvelopeType `json:"type"`
	Data any          `json:"data"`
}

// NewEnvelope wraps data with the given type tag.
func NewEnvelope(t EnvelopeType, data any) Envelope {
	return Envelope{Type: t, Data: data}
}

// Encode serialises the envelope as JSON text.
func (e Envelope) Encode() ([]byte, error) {
	return json.Marshal(e)
}

// StatusPayload is sent once to a subscriber right after the handshake.
type StatusPayload struct {
	Connections int      `json:"connections"`
	Symbols     []string `json:"symbols"`
}
