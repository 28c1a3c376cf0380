package mock

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"slices"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/studiowebux/rulesetcheck/internal/auth"
	"github.com/studiowebux/rulesetcheck/internal/executor"
	"github.com/studiowebux/rulesetcheck/internal/types"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
}

// Server is a stand-in for the remote validation service. It answers the
// HTTP endpoint and WebSocket envelopes with the same verdicts.
type Server struct {
	config     *Config
	httpServer *http.Server
	listener   net.Listener
	logger     zerolog.Logger
	logs       []RequestLog
	logsMutex  sync.RWMutex
}

// NewServer creates a new mock server
func NewServer(config *Config, logger zerolog.Logger) *Server {
	if config.Port == 0 {
		config.Port = 8080
	}
	if config.Host == "" {
		config.Host = "localhost"
	}

	return &Server{
		config: config,
		logger: logger,
		logs:   make([]RequestLog, 0),
	}
}

// Handler returns the HTTP handler serving both transports
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc(executor.ValidatePath, s.handleHTTP)
	mux.HandleFunc("/", s.handleWebSocket)
	return mux
}

// Start listens and serves in the background
func (s *Server) Start() error {
	addr := net.JoinHostPort(s.config.Host, fmt.Sprint(s.config.Port))

	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}
	s.listener = listener

	s.httpServer = &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		if err := s.httpServer.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error().Err(err).Msg("mock server error")
		}
	}()

	return nil
}

// Stop stops the mock server
func (s *Server) Stop() error {
	if s.httpServer == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	return s.httpServer.Shutdown(ctx)
}

// HTTPAddress returns the base URL for the HTTP transport
func (s *Server) HTTPAddress() string {
	return "http://" + s.address()
}

// WSAddress returns the base URL for the WebSocket transport
func (s *Server) WSAddress() string {
	return "ws://" + s.address()
}

func (s *Server) address() string {
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return net.JoinHostPort(s.config.Host, fmt.Sprint(s.config.Port))
}

// handleHTTP answers POST {base}/discounts/rulesets/validate
func (s *Server) handleHTTP(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var payload types.ValidationPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		http.Error(w, "invalid JSON body", http.StatusBadRequest)
		return
	}

	s.delay()

	status, body := s.evaluate(r.Header.Get("Authorization"), payload)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)

	s.logRequest(RequestLog{
		Timestamp:  start,
		Transport:  string(types.TransportHTTP),
		RulesetID:  payload.RuleSetID,
		PassportID: payload.PassportID,
		Status:     status,
		Duration:   time.Since(start),
	})
}

// handleWebSocket answers validateDiscountRuleset envelopes, echoing the
// correlation id of each
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	if !websocket.IsWebSocketUpgrade(r) {
		http.NotFound(w, r)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	for {
		_, message, err := conn.ReadMessage()
		if err != nil {
			return
		}
		start := time.Now()

		var envelope types.OutboundEnvelope
		if err := json.Unmarshal(message, &envelope); err != nil || envelope.Action != types.ValidateAction {
			s.logger.Debug().Msg("ignoring unknown frame")
			continue
		}

		s.delay()

		status, body := s.evaluate(envelope.Authorization, envelope.Body)

		if s.config.NoiseFrames {
			noise := map[string]any{"credenzaRequestId": envelope.CorrelationID + 1_000_000, "body": map[string]any{"valid": false}}
			if err := conn.WriteJSON(noise); err != nil {
				return
			}
		}

		reply := map[string]any{"credenzaRequestId": envelope.CorrelationID, "body": body}
		if err := conn.WriteJSON(reply); err != nil {
			return
		}

		s.logRequest(RequestLog{
			Timestamp:     start,
			Transport:     string(types.TransportWS),
			RulesetID:     envelope.Body.RuleSetID,
			PassportID:    envelope.Body.PassportID,
			CorrelationID: envelope.CorrelationID,
			Status:        status,
			Duration:      time.Since(start),
		})
	}
}

// evaluate returns an HTTP-style status and the body for a request
func (s *Server) evaluate(authorization string, payload types.ValidationPayload) (int, any) {
	if creds := s.config.Credentials; creds != nil {
		if authorization != auth.BasicToken(creds.ClientID, creds.ClientSecret) {
			return http.StatusUnauthorized, map[string]string{"error": "unauthorized"}
		}
	}

	ruleset := s.findRuleset(payload.RuleSetID)
	if ruleset == nil {
		return http.StatusNotFound, map[string]string{"error": "ruleset not found"}
	}

	valid := slices.Contains(ruleset.Allow, "*") || slices.Contains(ruleset.Allow, payload.PassportID)
	return http.StatusOK, Verdict{
		RuleSetID:  ruleset.ID,
		PassportID: payload.PassportID,
		Valid:      valid,
	}
}

func (s *Server) findRuleset(id string) *Ruleset {
	for i := range s.config.Rulesets {
		if s.config.Rulesets[i].ID == id {
			return &s.config.Rulesets[i]
		}
	}
	return nil
}

func (s *Server) delay() {
	if s.config.Delay > 0 {
		time.Sleep(time.Duration(s.config.Delay) * time.Millisecond)
	}
}

// logRequest adds a request to the log
func (s *Server) logRequest(entry RequestLog) {
	s.logger.Info().
		Str("transport", entry.Transport).
		Str("ruleset", entry.RulesetID).
		Int("status", entry.Status).
		Dur("duration", entry.Duration).
		Msg("validation request")

	if !s.config.Logging {
		return
	}

	s.logsMutex.Lock()
	defer s.logsMutex.Unlock()

	s.logs = append(s.logs, entry)

	// Keep only last 1000 logs
	if len(s.logs) > 1000 {
		s.logs = s.logs[len(s.logs)-1000:]
	}
}

// GetLogs returns all logged requests
func (s *Server) GetLogs() []RequestLog {
	s.logsMutex.RLock()
	defer s.logsMutex.RUnlock()

	logs := make([]RequestLog, len(s.logs))
	copy(logs, s.logs)
	return logs
}

// ClearLogs clears all logged requests
func (s *Server) ClearLogs() {
	s.logsMutex.Lock()
	defer s.logsMutex.Unlock()

	s.logs = make([]RequestLog, 0)
}
