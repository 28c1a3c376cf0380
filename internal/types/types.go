package types

import "encoding/json"

// Transport selects how a validation request reaches the remote service
type Transport string

const (
	TransportHTTP Transport = "http"
	TransportWS   Transport = "ws"
)

// ValidationRequest carries everything needed for one validation call.
// It is built per call and never mutated afterwards.
type ValidationRequest struct {
	NetworkID    string `json:"networkId" yaml:"networkId"`
	ClientID     string `json:"clientId" yaml:"clientId"`
	ClientSecret string `json:"-" yaml:"-"`
	RulesetID    string `json:"rulesetId" yaml:"rulesetId"`
	ScannedID    string `json:"scannedId" yaml:"scannedId"`
}

// EndpointSet holds the base URLs of one network environment
type EndpointSet struct {
	HTTPBase string `json:"httpBase" yaml:"httpBase"`
	WSBase   string `json:"wsBase" yaml:"wsBase"`
}

// Result is the verdict body returned by the remote service, kept verbatim.
// A nil Result means the service gave no verdict.
type Result = json.RawMessage

// ValidationPayload is the body shared by the HTTP request and the WS envelope.
// Field names are fixed by the remote contract.
type ValidationPayload struct {
	RuleSetID  string `json:"ruleSetId"`
	PassportID string `json:"passportId"`
}

// NewValidationPayload maps a request onto the remote body shape
func NewValidationPayload(req *ValidationRequest) ValidationPayload {
	return ValidationPayload{
		RuleSetID:  req.RulesetID,
		PassportID: req.ScannedID,
	}
}

// Session represents ephemeral session state
type Session struct {
	ActiveProfile  string `json:"activeProfile,omitempty"`
	HistoryEnabled *bool  `json:"historyEnabled,omitempty"`
}

// Profile holds reusable connection settings for a terminal
type Profile struct {
	Name           string     `json:"name"`
	NetworkID      string     `json:"networkId,omitempty"`
	ClientID       string     `json:"clientId,omitempty"`
	ClientSecret   string     `json:"clientSecret,omitempty"`
	RulesetID      string     `json:"rulesetId,omitempty"`
	Transport      Transport  `json:"transport,omitempty"`
	Timeout        string     `json:"timeout,omitempty"`        // Go duration, bounds the whole call
	ConnectTimeout string     `json:"connectTimeout,omitempty"` // Go duration, bounds the WS dial
	HTTPBase       string     `json:"httpBase,omitempty"`       // Overrides the network table
	WSBase         string     `json:"wsBase,omitempty"`         // Overrides the network table
	Output         string     `json:"output,omitempty"`         // json, yaml, text, body
	TLS            *TLSConfig `json:"tls,omitempty"`
}

// Outcome classifies how a validation call ended
type Outcome string

const (
	OutcomeResult   Outcome = "result"
	OutcomeNoResult Outcome = "no-result"
	OutcomeError    Outcome = "error"
)

// HistoryEntry represents one recorded validation call
type HistoryEntry struct {
	ID            int64     `json:"id,omitempty" yaml:"id,omitempty"`
	CallID        string    `json:"callId" yaml:"callId"`
	Timestamp     string    `json:"timestamp" yaml:"timestamp"`
	Transport     Transport `json:"transport" yaml:"transport"`
	NetworkID     string    `json:"networkId" yaml:"networkId"`
	RulesetID     string    `json:"rulesetId" yaml:"rulesetId"`
	ScannedID     string    `json:"scannedId" yaml:"scannedId"`
	CorrelationID int64     `json:"correlationId,omitempty" yaml:"correlationId,omitempty"`
	Outcome       Outcome   `json:"outcome" yaml:"outcome"`
	ResultBody    string    `json:"result,omitempty" yaml:"result,omitempty"`
	Duration      int64     `json:"duration" yaml:"duration"` // milliseconds
	Error         string    `json:"error,omitempty" yaml:"error,omitempty"`
	ProfileName   string    `json:"profile,omitempty" yaml:"profile,omitempty"`
}

// TLSConfig configures custom trust and client certificates for both transports
type TLSConfig struct {
	CertFile           string `json:"certFile,omitempty" yaml:"certFile,omitempty"`
	KeyFile            string `json:"keyFile,omitempty" yaml:"keyFile,omitempty"`
	CAFile             string `json:"caFile,omitempty" yaml:"caFile,omitempty"`
	InsecureSkipVerify bool   `json:"insecureSkipVerify,omitempty" yaml:"insecureSkipVerify,omitempty"`
}
