package executor

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/studiowebux/rulesetcheck/internal/auth"
	"github.com/studiowebux/rulesetcheck/internal/correlation"
	"github.com/studiowebux/rulesetcheck/internal/network"
	"github.com/studiowebux/rulesetcheck/internal/types"
)

// Conn is the part of a WebSocket session the validator uses.
// *websocket.Conn satisfies it.
type Conn interface {
	WriteMessage(messageType int, data []byte) error
	ReadMessage() (messageType int, p []byte, err error)
	Close() error
}

// Dialer opens a WebSocket session
type Dialer interface {
	Dial(ctx context.Context, url string, header http.Header) (Conn, error)
}

// GorillaDialer adapts a gorilla websocket.Dialer to Dialer
type GorillaDialer struct {
	Dialer *websocket.Dialer
}

// Dial connects and returns once the handshake completed
func (d *GorillaDialer) Dial(ctx context.Context, url string, header http.Header) (Conn, error) {
	dialer := d.Dialer
	if dialer == nil {
		dialer = websocket.DefaultDialer
	}

	conn, resp, err := dialer.DialContext(ctx, url, header)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("connection failed (HTTP %d): %w", resp.StatusCode, err)
		}
		return nil, fmt.Errorf("connection failed: %w", err)
	}
	return conn, nil
}

// WSValidator sends one correlated envelope over a fresh connection and
// waits for the frame carrying the same correlation id
type WSValidator struct {
	Dialer          Dialer
	Resolver        *network.Resolver
	IDs             correlation.IDGenerator
	ConnectTimeout  time.Duration
	ResponseTimeout time.Duration
	Logger          zerolog.Logger
}

// WSExchange describes one WebSocket validation
type WSExchange struct {
	URL           string
	CorrelationID int64
	Result        types.Result
	Discarded     int                   // frames ignored because their id did not match
	State         types.ConnectionState // terminal state reached before close
	Closed        bool
}

// NewWSValidator creates a WSValidator backed by gorilla/websocket
func NewWSValidator(opts Options) (*WSValidator, error) {
	dialer := &websocket.Dialer{
		Proxy:            http.ProxyFromEnvironment,
		HandshakeTimeout: DefaultHandshakeTimeout,
	}

	if opts.TLS != nil {
		tlsClientConfig, err := buildTLSConfig(opts.TLS)
		if err != nil {
			return nil, fmt.Errorf("TLS configuration error: %w", err)
		}
		dialer.TLSClientConfig = tlsClientConfig
	}

	return &WSValidator{
		Dialer:          &GorillaDialer{Dialer: dialer},
		Resolver:        opts.Resolver,
		IDs:             correlation.Default(),
		ConnectTimeout:  opts.ConnectTimeout,
		ResponseTimeout: opts.ResponseTimeout,
		Logger:          loggerOrNop(opts.Logger),
	}, nil
}

// Validate returns the body of the first frame matching the request's
// correlation id
func (v *WSValidator) Validate(ctx context.Context, req *types.ValidationRequest) (types.Result, error) {
	exchange, err := v.Exchange(ctx, req)
	if err != nil {
		return nil, err
	}
	return exchange.Result, nil
}

// Exchange runs the full connect/send/match cycle. The connection is
// closed exactly once before Exchange returns, whatever the outcome.
func (v *WSValidator) Exchange(ctx context.Context, req *types.ValidationRequest) (*WSExchange, error) {
	endpoints, err := v.Resolver.Resolve(req.NetworkID)
	if err != nil {
		return nil, err
	}

	exchange := &WSExchange{URL: endpoints.WSBase, State: types.StateConnecting}
	log := v.Logger.With().Str("url", endpoints.WSBase).Logger()

	dialCtx := ctx
	if v.ConnectTimeout > 0 {
		var cancel context.CancelFunc
		dialCtx, cancel = context.WithTimeout(ctx, v.ConnectTimeout)
		defer cancel()
	}

	dialer := v.Dialer
	if dialer == nil {
		dialer = &GorillaDialer{}
	}

	log.Debug().Msg("dialing")
	conn, err := dialer.Dial(dialCtx, endpoints.WSBase, nil)
	if err != nil {
		exchange.State = types.StateErrored
		if dialCtx.Err() != nil {
			exchange.State = types.StateTimedOut
			return exchange, timeoutError(dialCtx.Err(), "connect")
		}
		return exchange, fmt.Errorf("%w: %w", ErrWsConnection, err)
	}

	session := &scopedConn{conn: conn}
	defer func() {
		session.Close(exchange.State == types.StateMatched)
		exchange.Closed = true
		log.Debug().Str("state", string(exchange.State)).Int("discarded", exchange.Discarded).Msg("connection closed")
	}()
	exchange.State = types.StateOpen

	exchange.CorrelationID = v.ids().Next()
	envelope := types.OutboundEnvelope{
		Action:        types.ValidateAction,
		CorrelationID: exchange.CorrelationID,
		Authorization: auth.BasicToken(req.ClientID, req.ClientSecret),
		Body:          types.NewValidationPayload(req),
	}

	data, err := json.Marshal(envelope)
	if err != nil {
		exchange.State = types.StateErrored
		return exchange, fmt.Errorf("failed to encode envelope: %w", err)
	}

	// Listener goroutine. It stops when the connection is closed or when
	// done is closed, so nothing outlives the call.
	frames := make(chan []byte)
	readErr := make(chan error, 1)
	done := make(chan struct{})
	defer close(done)
	go receiveFrames(conn, frames, readErr, done)

	if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
		exchange.State = types.StateErrored
		return exchange, fmt.Errorf("%w: failed to send envelope: %w", ErrWsConnection, err)
	}
	exchange.State = types.StateAwaitingMatch
	log.Debug().Int64("correlation_id", exchange.CorrelationID).Msg("envelope sent")

	var deadline <-chan time.Time
	if v.ResponseTimeout > 0 {
		timer := time.NewTimer(v.ResponseTimeout)
		defer timer.Stop()
		deadline = timer.C
	}

	for {
		select {
		case <-ctx.Done():
			exchange.State = types.StateTimedOut
			return exchange, timeoutError(ctx.Err(), "response")

		case <-deadline:
			exchange.State = types.StateTimedOut
			return exchange, fmt.Errorf("%w: no matching response within %s", ErrTimeout, v.ResponseTimeout)

		case err := <-readErr:
			exchange.State = types.StateErrored
			return exchange, fmt.Errorf("%w: %w", ErrWsConnection, err)

		case payload := <-frames:
			frame, err := correlation.Parse(payload)
			if err != nil {
				exchange.State = types.StateProtocolError
				return exchange, fmt.Errorf("%w: %w", ErrWsProtocol, err)
			}

			if !correlation.Matches(exchange.CorrelationID, frame) {
				exchange.Discarded++
				log.Debug().RawJSON("frame_id", rawOrNull(frame.CorrelationID)).Msg("discarding frame for another request")
				continue
			}

			exchange.State = types.StateMatched
			exchange.Result = types.Result(rawOrNull(frame.Body))
			log.Debug().Int64("correlation_id", exchange.CorrelationID).Msg("matched response")
			return exchange, nil
		}
	}
}

func (v *WSValidator) ids() correlation.IDGenerator {
	if v.IDs == nil {
		return correlation.Default()
	}
	return v.IDs
}

// receiveFrames forwards data frames until the connection fails or the
// call is over
func receiveFrames(conn Conn, frames chan<- []byte, errChan chan<- error, done <-chan struct{}) {
	for {
		messageType, message, err := conn.ReadMessage()
		if err != nil {
			select {
			case errChan <- err:
			case <-done:
			}
			return
		}

		if messageType != websocket.TextMessage && messageType != websocket.BinaryMessage {
			continue
		}

		select {
		case frames <- message:
		case <-done:
			return
		}
	}
}

// scopedConn closes the underlying connection once, no matter how many
// exit paths ask for it
type scopedConn struct {
	conn Conn
	once sync.Once
}

func (s *scopedConn) Close(graceful bool) {
	s.once.Do(func() {
		if graceful {
			_ = s.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		}
		_ = s.conn.Close()
	})
}

func timeoutError(err error, phase string) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %s phase: %w", ErrTimeout, phase, err)
	}
	return fmt.Errorf("validation aborted during %s phase: %w", phase, err)
}

func rawOrNull(raw json.RawMessage) json.RawMessage {
	if len(raw) == 0 {
		return json.RawMessage("null")
	}
	return raw
}
