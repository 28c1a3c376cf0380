package executor

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/studiowebux/rulesetcheck/internal/auth"
	"github.com/studiowebux/rulesetcheck/internal/network"
	"github.com/studiowebux/rulesetcheck/internal/types"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
}

type fakeRead struct {
	data []byte
	err  error
}

// fakeConn is an in-memory Conn. Frames queued with emit/fail are handed
// to ReadMessage in order; Close unblocks pending reads.
type fakeConn struct {
	mu          sync.Mutex
	writes      [][]byte
	closes      int
	closeFrames int
	inbox       chan fakeRead
	closed      chan struct{}
	writeErr    error
	onWrite     func(c *fakeConn, data []byte)
}

func newFakeConn(onWrite func(c *fakeConn, data []byte)) *fakeConn {
	return &fakeConn{
		inbox:   make(chan fakeRead, 16),
		closed:  make(chan struct{}),
		onWrite: onWrite,
	}
}

func (c *fakeConn) WriteMessage(messageType int, data []byte) error {
	if messageType == websocket.CloseMessage {
		c.mu.Lock()
		c.closeFrames++
		c.mu.Unlock()
		return nil
	}
	if c.writeErr != nil {
		return c.writeErr
	}

	c.mu.Lock()
	c.writes = append(c.writes, data)
	c.mu.Unlock()

	if c.onWrite != nil {
		c.onWrite(c, data)
	}
	return nil
}

func (c *fakeConn) ReadMessage() (int, []byte, error) {
	select {
	case r := <-c.inbox:
		if r.err != nil {
			return 0, nil, r.err
		}
		return websocket.TextMessage, r.data, nil
	case <-c.closed:
		return 0, nil, errors.New("use of closed network connection")
	}
}

func (c *fakeConn) Close() error {
	c.mu.Lock()
	c.closes++
	first := c.closes == 1
	c.mu.Unlock()
	if first {
		close(c.closed)
	}
	return nil
}

func (c *fakeConn) emit(data string) {
	c.inbox <- fakeRead{data: []byte(data)}
}

func (c *fakeConn) fail(err error) {
	c.inbox <- fakeRead{err: err}
}

func (c *fakeConn) closeCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closes
}

func (c *fakeConn) sent(t *testing.T) types.OutboundEnvelope {
	t.Helper()
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.writes) != 1 {
		t.Fatalf("Expected exactly 1 envelope sent, got %d", len(c.writes))
	}
	var env types.OutboundEnvelope
	if err := json.Unmarshal(c.writes[0], &env); err != nil {
		t.Fatalf("Sent envelope is not JSON: %v", err)
	}
	return env
}

type fakeDialer struct {
	conn  Conn
	err   error
	calls int
	url   string
}

func (d *fakeDialer) Dial(ctx context.Context, url string, header http.Header) (Conn, error) {
	d.calls++
	d.url = url
	if d.err != nil {
		return nil, d.err
	}
	return d.conn, nil
}

type fixedIDs struct {
	id int64
}

func (f *fixedIDs) Next() int64 {
	return f.id
}

func testRequest() *types.ValidationRequest {
	return &types.ValidationRequest{
		NetworkID:    network.TestnetID,
		ClientID:     "client",
		ClientSecret: "secret",
		RulesetID:    "vip-2024",
		ScannedID:    "0xabc",
	}
}

func newFakeValidator(conn Conn) (*WSValidator, *fakeDialer) {
	dialer := &fakeDialer{conn: conn}
	return &WSValidator{Dialer: dialer, IDs: &fixedIDs{id: 42}}, dialer
}

// replyWith answers every envelope with a frame carrying the same id
func replyWith(body string) func(c *fakeConn, data []byte) {
	return func(c *fakeConn, data []byte) {
		var env types.OutboundEnvelope
		if err := json.Unmarshal(data, &env); err != nil {
			return
		}
		c.emit(fmt.Sprintf(`{"credenzaRequestId":%d,"body":%s}`, env.CorrelationID, body))
	}
}

// TestWSValidator_MatchingFrameResolves covers the happy path
func TestWSValidator_MatchingFrameResolves(t *testing.T) {
	conn := newFakeConn(replyWith(`{"verdict":"pass"}`))
	v, dialer := newFakeValidator(conn)

	exchange, err := v.Exchange(context.Background(), testRequest())
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	if string(exchange.Result) != `{"verdict":"pass"}` {
		t.Errorf("Expected verdict body, got: %s", exchange.Result)
	}
	if exchange.State != types.StateMatched {
		t.Errorf("Expected state matched, got: %s", exchange.State)
	}
	if !exchange.Closed || conn.closeCount() != 1 {
		t.Errorf("Expected connection closed once, got %d closes", conn.closeCount())
	}
	if conn.closeFrames != 1 {
		t.Errorf("Expected a close frame on the matched path, got %d", conn.closeFrames)
	}
	if dialer.url != network.Testnet.WSBase {
		t.Errorf("Expected dial to %s, got %s", network.Testnet.WSBase, dialer.url)
	}

	env := conn.sent(t)
	if env.Action != "validateDiscountRuleset" {
		t.Errorf("Unexpected action: %s", env.Action)
	}
	if env.CorrelationID != 42 || exchange.CorrelationID != 42 {
		t.Errorf("Expected correlation id 42, got %d / %d", env.CorrelationID, exchange.CorrelationID)
	}
	if env.Authorization != auth.BasicToken("client", "secret") {
		t.Errorf("Unexpected authorization: %s", env.Authorization)
	}
	if env.Body.RuleSetID != "vip-2024" || env.Body.PassportID != "0xabc" {
		t.Errorf("Unexpected body: %+v", env.Body)
	}
}

func TestWSValidator_EnvelopeWireFormat(t *testing.T) {
	conn := newFakeConn(replyWith(`true`))
	v, _ := newFakeValidator(conn)

	if _, err := v.Validate(context.Background(), testRequest()); err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	var raw map[string]any
	if err := json.Unmarshal(conn.writes[0], &raw); err != nil {
		t.Fatalf("Sent envelope is not JSON: %v", err)
	}
	for _, key := range []string{"action", "credenzaRequestId", "authorization", "body"} {
		if _, ok := raw[key]; !ok {
			t.Errorf("Expected key %q in envelope %s", key, conn.writes[0])
		}
	}
	body, _ := raw["body"].(map[string]any)
	if body["ruleSetId"] != "vip-2024" || body["passportId"] != "0xabc" {
		t.Errorf("Unexpected envelope body: %v", raw["body"])
	}
}

// TestWSValidator_MismatchedFrameIgnored checks that foreign ids neither
// resolve nor reject the call
func TestWSValidator_MismatchedFrameIgnored(t *testing.T) {
	conn := newFakeConn(func(c *fakeConn, data []byte) {
		c.emit(`{"credenzaRequestId":41,"body":{"verdict":"fail"}}`)
		c.emit(`{"credenzaRequestId":"42","body":{"verdict":"fail"}}`)
		c.emit(`{"body":{"verdict":"fail"}}`)
		c.emit(`{"credenzaRequestId":42,"body":{"verdict":"pass"}}`)
	})
	v, _ := newFakeValidator(conn)

	exchange, err := v.Exchange(context.Background(), testRequest())
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if string(exchange.Result) != `{"verdict":"pass"}` {
		t.Errorf("Expected matching body, got: %s", exchange.Result)
	}
	if exchange.Discarded != 3 {
		t.Errorf("Expected 3 discarded frames, got %d", exchange.Discarded)
	}
	if conn.closeCount() != 1 {
		t.Errorf("Expected 1 close, got %d", conn.closeCount())
	}
}

// TestWSValidator_TransportErrorClosesOnce covers the error path cleanup
func TestWSValidator_TransportErrorClosesOnce(t *testing.T) {
	conn := newFakeConn(nil)
	conn.fail(errors.New("connection reset by peer"))
	v, _ := newFakeValidator(conn)

	result, err := v.Validate(context.Background(), testRequest())
	if err == nil {
		t.Fatal("Expected error, got none")
	}
	if !errors.Is(err, ErrWsConnection) {
		t.Errorf("Expected ErrWsConnection, got: %v", err)
	}
	if !strings.Contains(err.Error(), "connection reset by peer") {
		t.Errorf("Expected transport cause in error, got: %v", err)
	}
	if result != nil {
		t.Errorf("Expected no result, got: %s", result)
	}
	if conn.closeCount() != 1 {
		t.Errorf("Expected close invoked exactly once, got %d", conn.closeCount())
	}
	if conn.closeFrames != 0 {
		t.Errorf("Expected no close frame on a broken connection, got %d", conn.closeFrames)
	}
}

func TestWSValidator_MalformedFrameFails(t *testing.T) {
	conn := newFakeConn(func(c *fakeConn, data []byte) {
		c.emit(`this is not json`)
	})
	v, _ := newFakeValidator(conn)

	exchange, err := v.Exchange(context.Background(), testRequest())
	if !errors.Is(err, ErrWsProtocol) {
		t.Fatalf("Expected ErrWsProtocol, got: %v", err)
	}
	if exchange.State != types.StateProtocolError {
		t.Errorf("Expected protocol-error state, got %s", exchange.State)
	}
	if conn.closeCount() != 1 {
		t.Errorf("Expected close invoked exactly once, got %d", conn.closeCount())
	}
}

func TestWSValidator_EmptyFrameIgnored(t *testing.T) {
	conn := newFakeConn(func(c *fakeConn, data []byte) {
		c.emit(``)
		c.emit(`[1,2,3]`)
		c.emit(`{"credenzaRequestId":42}`)
	})
	v, _ := newFakeValidator(conn)

	exchange, err := v.Exchange(context.Background(), testRequest())
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if exchange.Discarded != 2 {
		t.Errorf("Expected 2 discarded frames, got %d", exchange.Discarded)
	}
	if string(exchange.Result) != "null" {
		t.Errorf("Expected null body for a match without body, got %s", exchange.Result)
	}
}

func TestWSValidator_ResponseTimeout(t *testing.T) {
	conn := newFakeConn(nil)
	v, _ := newFakeValidator(conn)
	v.ResponseTimeout = 50 * time.Millisecond

	start := time.Now()
	exchange, err := v.Exchange(context.Background(), testRequest())
	if !errors.Is(err, ErrTimeout) {
		t.Fatalf("Expected ErrTimeout, got: %v", err)
	}
	if time.Since(start) > 2*time.Second {
		t.Errorf("Timeout took too long: %v", time.Since(start))
	}
	if exchange.State != types.StateTimedOut {
		t.Errorf("Expected timed-out state, got %s", exchange.State)
	}
	if conn.closeCount() != 1 {
		t.Errorf("Expected close invoked exactly once, got %d", conn.closeCount())
	}
}

func TestWSValidator_ContextDeadline(t *testing.T) {
	conn := newFakeConn(nil)
	v, _ := newFakeValidator(conn)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := v.Validate(ctx, testRequest())
	if !errors.Is(err, ErrTimeout) || !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("Expected ErrTimeout wrapping DeadlineExceeded, got: %v", err)
	}
	if conn.closeCount() != 1 {
		t.Errorf("Expected close invoked exactly once, got %d", conn.closeCount())
	}
}

func TestWSValidator_ContextCancellation(t *testing.T) {
	conn := newFakeConn(nil)
	v, _ := newFakeValidator(conn)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(50 * time.Millisecond)
		cancel()
	}()

	_, err := v.Validate(ctx, testRequest())
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("Expected context.Canceled, got: %v", err)
	}
	if errors.Is(err, ErrTimeout) {
		t.Errorf("Expected cancellation not to be reported as timeout: %v", err)
	}
	if conn.closeCount() != 1 {
		t.Errorf("Expected close invoked exactly once, got %d", conn.closeCount())
	}
}

func TestWSValidator_UnsupportedNetworkSkipsDial(t *testing.T) {
	conn := newFakeConn(nil)
	v, dialer := newFakeValidator(conn)

	req := testRequest()
	req.NetworkID = "1"

	_, err := v.Validate(context.Background(), req)
	if !errors.Is(err, network.ErrUnsupportedNetwork) {
		t.Fatalf("Expected ErrUnsupportedNetwork, got: %v", err)
	}
	if dialer.calls != 0 {
		t.Errorf("Expected no dial, got %d", dialer.calls)
	}
}

func TestWSValidator_DialFailure(t *testing.T) {
	dialer := &fakeDialer{err: errors.New("connection refused")}
	v := &WSValidator{Dialer: dialer}

	exchange, err := v.Exchange(context.Background(), testRequest())
	if !errors.Is(err, ErrWsConnection) {
		t.Fatalf("Expected ErrWsConnection, got: %v", err)
	}
	if exchange.Closed {
		t.Error("Expected no close when no connection was opened")
	}
}

func TestWSValidator_SendFailure(t *testing.T) {
	conn := newFakeConn(nil)
	conn.writeErr = errors.New("broken pipe")
	v, _ := newFakeValidator(conn)

	_, err := v.Validate(context.Background(), testRequest())
	if !errors.Is(err, ErrWsConnection) {
		t.Fatalf("Expected ErrWsConnection, got: %v", err)
	}
	if conn.closeCount() != 1 {
		t.Errorf("Expected close invoked exactly once, got %d", conn.closeCount())
	}
}

// TestWSValidator_GorillaRoundTrip runs the validator against a real
// WebSocket server
func TestWSValidator_GorillaRoundTrip(t *testing.T) {
	authCh := make(chan string, 1)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		_, message, err := conn.ReadMessage()
		if err != nil {
			return
		}
		var env types.OutboundEnvelope
		if err := json.Unmarshal(message, &env); err != nil {
			return
		}
		authCh <- env.Authorization

		// Noise for another request first
		conn.WriteMessage(websocket.TextMessage, []byte(fmt.Sprintf(`{"credenzaRequestId":%d,"body":{"verdict":"fail"}}`, env.CorrelationID+1)))
		conn.WriteMessage(websocket.TextMessage, []byte(fmt.Sprintf(`{"credenzaRequestId":%d,"body":{"verdict":"pass"}}`, env.CorrelationID)))

		// Wait for close
		_, _, _ = conn.ReadMessage()
	}))
	defer server.Close()

	wsURL := "ws" + strings.TrimPrefix(server.URL, "http")

	v, err := NewWSValidator(Options{
		Resolver:        &network.Resolver{WSBase: wsURL},
		ConnectTimeout:  2 * time.Second,
		ResponseTimeout: 5 * time.Second,
	})
	if err != nil {
		t.Fatalf("Failed to create validator: %v", err)
	}

	exchange, err := v.Exchange(context.Background(), testRequest())
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if string(exchange.Result) != `{"verdict":"pass"}` {
		t.Errorf("Expected pass verdict, got: %s", exchange.Result)
	}
	if exchange.Discarded != 1 {
		t.Errorf("Expected 1 discarded frame, got %d", exchange.Discarded)
	}
	if gotAuth := <-authCh; gotAuth != auth.BasicToken("client", "secret") {
		t.Errorf("Unexpected authorization: %s", gotAuth)
	}
}

func TestWSValidator_GorillaServerClosesEarly(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		_, _, _ = conn.ReadMessage()
		conn.Close()
	}))
	defer server.Close()

	wsURL := "ws" + strings.TrimPrefix(server.URL, "http")

	v, err := NewWSValidator(Options{Resolver: &network.Resolver{WSBase: wsURL}})
	if err != nil {
		t.Fatalf("Failed to create validator: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	_, err = v.Validate(ctx, testRequest())
	if !errors.Is(err, ErrWsConnection) {
		t.Fatalf("Expected ErrWsConnection, got: %v", err)
	}
}

func TestWSValidator_GorillaConnectionRefused(t *testing.T) {
	v, err := NewWSValidator(Options{
		Resolver:       &network.Resolver{WSBase: "ws://127.0.0.1:1"},
		ConnectTimeout: 2 * time.Second,
	})
	if err != nil {
		t.Fatalf("Failed to create validator: %v", err)
	}

	_, err = v.Validate(context.Background(), testRequest())
	if err == nil {
		t.Fatal("Expected connection error, got none")
	}
	if !errors.Is(err, ErrWsConnection) && !errors.Is(err, ErrTimeout) {
		t.Errorf("Expected connection or timeout error, got: %v", err)
	}
}
