package executor

import (
	"bytes"
	"context"
	"crypto/tls"
	"crypto/x509"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/studiowebux/rulesetcheck/internal/auth"
	"github.com/studiowebux/rulesetcheck/internal/network"
	"github.com/studiowebux/rulesetcheck/internal/types"
)

const (
	// ValidatePath is appended to the HTTP base of a network
	ValidatePath = "/discounts/rulesets/validate"

	// DefaultHTTPTimeout bounds a single HTTP validation when no deadline is set
	DefaultHTTPTimeout = 30 * time.Second

	// DefaultHandshakeTimeout bounds the WebSocket handshake
	DefaultHandshakeTimeout = 45 * time.Second

	// maxResponseSize caps how much of a response body is read
	maxResponseSize = 4 << 20
)

// Validator validates a scanned identifier against a ruleset.
// Both transports implement it and are interchangeable.
type Validator interface {
	Validate(ctx context.Context, req *types.ValidationRequest) (types.Result, error)
}

// Options configures a validator built by New
type Options struct {
	Resolver        *network.Resolver
	TLS             *types.TLSConfig
	HTTPTimeout     time.Duration // HTTP only; 0 uses DefaultHTTPTimeout
	ConnectTimeout  time.Duration // WS only; 0 leaves the dial bounded by ctx and the handshake timeout
	ResponseTimeout time.Duration // WS only; 0 waits for a match until ctx ends
	StrictStatus    bool          // HTTP only; surface non-2xx as HTTPStatusError
	Logger          *zerolog.Logger
}

// New builds the validator for a transport
func New(transport types.Transport, opts Options) (Validator, error) {
	switch transport {
	case types.TransportHTTP, "":
		return NewHTTPValidator(opts)
	case types.TransportWS:
		return NewWSValidator(opts)
	default:
		return nil, fmt.Errorf("unsupported transport: %s (use http or ws)", transport)
	}
}

// HTTPClient is the subset of *http.Client the validator needs
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// HTTPValidator performs one authenticated POST per call
type HTTPValidator struct {
	Client       HTTPClient
	Resolver     *network.Resolver
	StrictStatus bool
	Logger       zerolog.Logger
}

// HTTPExchange describes one completed HTTP validation
type HTTPExchange struct {
	URL        string
	StatusCode int
	Result     types.Result
}

// NewHTTPValidator creates an HTTPValidator with a TLS-aware client
func NewHTTPValidator(opts Options) (*HTTPValidator, error) {
	client, err := buildHTTPClient(opts.TLS, opts.HTTPTimeout)
	if err != nil {
		return nil, fmt.Errorf("failed to configure HTTP client: %w", err)
	}

	return &HTTPValidator{
		Client:       client,
		Resolver:     opts.Resolver,
		StrictStatus: opts.StrictStatus,
		Logger:       loggerOrNop(opts.Logger),
	}, nil
}

// Validate returns the verdict body, or nil when the service answered
// with a non-2xx status and StrictStatus is off
func (v *HTTPValidator) Validate(ctx context.Context, req *types.ValidationRequest) (types.Result, error) {
	exchange, err := v.Exchange(ctx, req)
	if err != nil {
		return nil, err
	}
	return exchange.Result, nil
}

// Exchange performs the POST and reports the status alongside the result
func (v *HTTPValidator) Exchange(ctx context.Context, req *types.ValidationRequest) (*HTTPExchange, error) {
	endpoints, err := v.Resolver.Resolve(req.NetworkID)
	if err != nil {
		return nil, err
	}

	payload, err := json.Marshal(types.NewValidationPayload(req))
	if err != nil {
		return nil, fmt.Errorf("failed to encode validation request: %w", err)
	}

	url := strings.TrimRight(endpoints.HTTPBase, "/") + ValidatePath
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", auth.BasicToken(req.ClientID, req.ClientSecret))

	v.Logger.Debug().Str("url", url).Str("ruleset", req.RulesetID).Msg("sending validation request")

	client := v.Client
	if client == nil {
		client = http.DefaultClient
	}

	resp, err := client.Do(httpReq)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, fmt.Errorf("%w: %w", ErrTimeout, err)
		}
		return nil, fmt.Errorf("failed to send validation request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	exchange := &HTTPExchange{URL: url, StatusCode: resp.StatusCode}

	if !IsSuccessStatus(resp.StatusCode) {
		v.Logger.Debug().Int("status", resp.StatusCode).Msg("validation request returned no verdict")
		if v.StrictStatus {
			return exchange, &HTTPStatusError{StatusCode: resp.StatusCode, Body: string(bytes.TrimSpace(body))}
		}
		return exchange, nil
	}

	if !json.Valid(body) {
		return exchange, fmt.Errorf("failed to parse validation response: body is not valid JSON")
	}

	exchange.Result = types.Result(body)
	v.Logger.Debug().Int("status", resp.StatusCode).Msg("validation request succeeded")
	return exchange, nil
}

// buildHTTPClient creates an HTTP client with optional TLS/mTLS configuration
func buildHTTPClient(tlsConfig *types.TLSConfig, timeout time.Duration) (*http.Client, error) {
	transport := &http.Transport{Proxy: http.ProxyFromEnvironment}

	if tlsConfig != nil {
		tlsCfg, err := buildTLSConfig(tlsConfig)
		if err != nil {
			return nil, err
		}
		transport.TLSClientConfig = tlsCfg
	}

	if timeout <= 0 {
		timeout = DefaultHTTPTimeout
	}

	return &http.Client{
		Timeout:   timeout,
		Transport: transport,
	}, nil
}

// buildTLSConfig creates a TLS configuration shared by both transports
func buildTLSConfig(tlsConfig *types.TLSConfig) (*tls.Config, error) {
	config := &tls.Config{
		InsecureSkipVerify: tlsConfig.InsecureSkipVerify,
	}

	// Load client certificate if provided (for mTLS)
	if tlsConfig.CertFile != "" && tlsConfig.KeyFile != "" {
		cert, err := tls.LoadX509KeyPair(tlsConfig.CertFile, tlsConfig.KeyFile)
		if err != nil {
			return nil, fmt.Errorf("failed to load client certificate: %w", err)
		}
		config.Certificates = []tls.Certificate{cert}
	}

	// Load CA certificate if provided (for server verification)
	if tlsConfig.CAFile != "" {
		caCert, err := os.ReadFile(tlsConfig.CAFile)
		if err != nil {
			return nil, fmt.Errorf("failed to read CA certificate: %w", err)
		}
		caCertPool := x509.NewCertPool()
		if !caCertPool.AppendCertsFromPEM(caCert) {
			return nil, fmt.Errorf("failed to parse CA certificate")
		}
		config.RootCAs = caCertPool
	}

	return config, nil
}

func loggerOrNop(l *zerolog.Logger) zerolog.Logger {
	if l == nil {
		return zerolog.Nop()
	}
	return *l
}

// FormatDuration formats duration in milliseconds to human-readable string
func FormatDuration(ms int64) string {
	if ms < 1000 {
		return fmt.Sprintf("%dms", ms)
	}
	seconds := float64(ms) / 1000.0
	return fmt.Sprintf("%.2fs", seconds)
}

// IsSuccessStatus returns true if status code is 2xx
func IsSuccessStatus(status int) bool {
	return status >= 200 && status < 300
}
