package mock

import "time"

// Config represents the mock validation service configuration
type Config struct {
	Port        int         `json:"port" yaml:"port"`                                   // Server port (default: 8080)
	Host        string      `json:"host" yaml:"host"`                                   // Server host (default: localhost)
	Credentials *Credential `json:"credentials,omitempty" yaml:"credentials,omitempty"` // Required client credentials, if any
	Rulesets    []Ruleset   `json:"rulesets" yaml:"rulesets"`                           // Known rulesets
	NoiseFrames bool        `json:"noiseFrames,omitempty" yaml:"noiseFrames,omitempty"` // Send a frame for another request before each WS answer
	Delay       int         `json:"delay,omitempty" yaml:"delay,omitempty"`             // Response delay in milliseconds
	Logging     bool        `json:"logging" yaml:"logging"`                             // Keep a request log
}

// Credential is the client id/secret pair the service accepts
type Credential struct {
	ClientID     string `json:"clientId" yaml:"clientId"`
	ClientSecret string `json:"clientSecret" yaml:"clientSecret"`
}

// Ruleset is a named allow-list of passports. "*" allows everything.
type Ruleset struct {
	ID          string   `json:"id" yaml:"id"`
	Allow       []string `json:"allow" yaml:"allow"`
	Description string   `json:"description,omitempty" yaml:"description,omitempty"`
}

// Verdict is the body the mock service answers with
type Verdict struct {
	RuleSetID  string `json:"ruleSetId"`
	PassportID string `json:"passportId"`
	Valid      bool   `json:"valid"`
}

// RequestLog represents a logged validation request
type RequestLog struct {
	Timestamp     time.Time     `json:"timestamp"`
	Transport     string        `json:"transport"`
	RulesetID     string        `json:"rulesetId"`
	PassportID    string        `json:"passportId"`
	CorrelationID int64         `json:"correlationId,omitempty"`
	Status        int           `json:"status"`
	Duration      time.Duration `json:"duration"`
}
