package types

import "encoding/json"

// ValidateAction is the action name the remote service routes WS envelopes on
const ValidateAction = "validateDiscountRuleset"

// OutboundEnvelope is the frame sent over the WebSocket for one validation
type OutboundEnvelope struct {
	Action        string            `json:"action"`
	CorrelationID int64             `json:"credenzaRequestId"`
	Authorization string            `json:"authorization"`
	Body          ValidationPayload `json:"body"`
}

// InboundFrame is a frame received from the remote service.
// CorrelationID is kept raw so matching can be strict about its JSON type.
type InboundFrame struct {
	CorrelationID json.RawMessage `json:"credenzaRequestId,omitempty"`
	Body          json.RawMessage `json:"body,omitempty"`
}

// ConnectionState tracks one WebSocket session through its lifecycle
type ConnectionState string

const (
	StateIdle          ConnectionState = "idle"
	StateConnecting    ConnectionState = "connecting"
	StateOpen          ConnectionState = "open"
	StateAwaitingMatch ConnectionState = "awaiting-match"
	StateMatched       ConnectionState = "matched"
	StateErrored       ConnectionState = "errored"
	StateProtocolError ConnectionState = "protocol-error"
	StateTimedOut      ConnectionState = "timed-out"
	StateClosed        ConnectionState = "closed"
)
