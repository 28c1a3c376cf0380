package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/studiowebux/rulesetcheck/internal/config"
	"github.com/studiowebux/rulesetcheck/internal/executor"
	"github.com/studiowebux/rulesetcheck/internal/filter"
	"github.com/studiowebux/rulesetcheck/internal/history"
	"github.com/studiowebux/rulesetcheck/internal/network"
	"github.com/studiowebux/rulesetcheck/internal/session"
	"github.com/studiowebux/rulesetcheck/internal/types"
)

// ErrNoVerdict is returned when a validation finished without a verdict.
// The caller maps it to exit code 1.
var ErrNoVerdict = errors.New("no verdict")

// RunOptions contains options for validating one scanned id in CLI mode.
// Zero values fall back to the active profile.
type RunOptions struct {
	ScannedID      string
	Profile        string
	Transport      string
	NetworkID      string
	ClientID       string
	ClientSecret   string
	RulesetID      string
	HTTPBase       string
	WSBase         string
	OutputFormat   string // json, yaml, text, body
	SavePath       string
	Timeout        time.Duration
	ConnectTimeout time.Duration
	Strict         bool
	Filter         string // JMESPath filter expression
	Query          string // JMESPath query or $(bash command)
	NoHistory      bool

	Logger *zerolog.Logger
	Stdout io.Writer
}

// settings is the merged view of flags over a profile
type settings struct {
	request        types.ValidationRequest
	transport      types.Transport
	resolver       *network.Resolver
	tls            *types.TLSConfig
	timeout        time.Duration
	connectTimeout time.Duration
	output         string
	profileName    string
}

// Run validates one scanned id and writes the verdict
func Run(opts RunOptions) error {
	mgr := session.NewManager()
	if err := mgr.Load(); err != nil {
		return fmt.Errorf("failed to load session: %w", err)
	}

	s, err := resolveSettings(mgr, &opts)
	if err != nil {
		return err
	}
	s.request.ScannedID = strings.TrimSpace(opts.ScannedID)
	if s.request.ScannedID == "" {
		return fmt.Errorf("scanned id is required")
	}

	log := loggerOrNop(opts.Logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	report := execute(ctx, s, opts.Strict, log)

	if shouldSaveHistory(mgr, opts.NoHistory) {
		saveHistory([]*Report{report}, s.profileName, log)
	}

	body := string(report.Result)
	if report.Result != nil && (opts.Filter != "" || opts.Query != "") {
		filtered, err := filter.Apply(body, opts.Filter, opts.Query)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Warning: filter/query error: %v\n", err)
		} else {
			report.Filtered = filtered
		}
	}

	outputFormat := s.output
	if outputFormat == "" {
		if isPiped(os.Stdout) {
			outputFormat = "body"
		} else {
			outputFormat = "text"
		}
	}

	output, err := formatOutput(report, outputFormat)
	if err != nil {
		return fmt.Errorf("failed to format output: %w", err)
	}

	if opts.SavePath != "" {
		if err := os.WriteFile(opts.SavePath, []byte(output), config.FilePermissions); err != nil {
			return fmt.Errorf("failed to save verdict: %w", err)
		}
		fmt.Fprintf(os.Stderr, "Verdict saved to %s\n", opts.SavePath)
	} else {
		fmt.Fprint(writerOr(opts.Stdout), output)
	}

	if report.err != nil {
		return report.err
	}
	if report.Outcome != types.OutcomeResult {
		return ErrNoVerdict
	}
	return nil
}

// resolveSettings merges flags over the selected profile. Flags win;
// the secret falls back to the environment, then to a prompt.
func resolveSettings(mgr *session.Manager, opts *RunOptions) (*settings, error) {
	var profile *types.Profile
	if opts.Profile != "" {
		if err := mgr.SetActiveProfile(opts.Profile); err != nil {
			return nil, fmt.Errorf("failed to set profile: %w", err)
		}
		profile = mgr.GetActiveProfile()
	} else {
		profile = mgr.GetActiveProfile()
	}
	if profile == nil {
		profile = &types.Profile{}
	}

	s := &settings{
		request: types.ValidationRequest{
			NetworkID:    firstNonEmpty(opts.NetworkID, profile.NetworkID),
			ClientID:     firstNonEmpty(opts.ClientID, profile.ClientID),
			ClientSecret: firstNonEmpty(opts.ClientSecret, profile.ClientSecret, os.Getenv(config.SecretEnvVar)),
			RulesetID:    firstNonEmpty(opts.RulesetID, profile.RulesetID),
		},
		transport: types.Transport(strings.ToLower(firstNonEmpty(opts.Transport, string(profile.Transport), string(types.TransportHTTP)))),
		resolver: &network.Resolver{
			HTTPBase: firstNonEmpty(opts.HTTPBase, profile.HTTPBase),
			WSBase:   firstNonEmpty(opts.WSBase, profile.WSBase),
		},
		tls:            profile.TLS,
		timeout:        opts.Timeout,
		connectTimeout: opts.ConnectTimeout,
		output:         firstNonEmpty(opts.OutputFormat, profile.Output),
		profileName:    profile.Name,
	}

	if s.transport != types.TransportHTTP && s.transport != types.TransportWS {
		return nil, fmt.Errorf("unsupported transport: %s (use http or ws)", s.transport)
	}

	if s.timeout == 0 && profile.Timeout != "" {
		d, err := time.ParseDuration(profile.Timeout)
		if err != nil {
			return nil, fmt.Errorf("invalid timeout in profile %s: %w", profile.Name, err)
		}
		s.timeout = d
	}
	if s.connectTimeout == 0 && profile.ConnectTimeout != "" {
		d, err := time.ParseDuration(profile.ConnectTimeout)
		if err != nil {
			return nil, fmt.Errorf("invalid connectTimeout in profile %s: %w", profile.Name, err)
		}
		s.connectTimeout = d
	}

	var missing []string
	if s.request.NetworkID == "" {
		missing = append(missing, "network")
	}
	if s.request.ClientID == "" {
		missing = append(missing, "client-id")
	}
	if s.request.RulesetID == "" {
		missing = append(missing, "ruleset")
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("missing required values: %s (set them with flags or a profile)", strings.Join(missing, ", "))
	}

	if s.request.ClientSecret == "" && isInteractive() {
		secret, err := promptForValue(os.Stdin, "client-secret")
		if err != nil {
			return nil, fmt.Errorf("failed to read client secret: %w", err)
		}
		s.request.ClientSecret = secret
	}

	return s, nil
}

// newValidator builds the validator for the merged settings
func newValidator(s *settings, strict bool, log zerolog.Logger) (executor.Validator, error) {
	return executor.New(s.transport, executor.Options{
		Resolver:       s.resolver,
		TLS:            s.tls,
		HTTPTimeout:    s.timeout,
		ConnectTimeout: s.connectTimeout,
		StrictStatus:   strict,
		Logger:         &log,
	})
}

// execute runs one validation and captures everything the report needs
func execute(ctx context.Context, s *settings, strict bool, log zerolog.Logger) *Report {
	report := newReport(s)

	v, err := newValidator(s, strict, log)
	if err != nil {
		report.fail(err)
		return report
	}

	start := time.Now()
	switch validator := v.(type) {
	case *executor.HTTPValidator:
		exchange, err := validator.Exchange(ctx, &s.request)
		if exchange != nil {
			report.StatusCode = exchange.StatusCode
			report.Result = exchange.Result
		}
		report.fail(err)
	case *executor.WSValidator:
		exchange, err := validator.Exchange(ctx, &s.request)
		if exchange != nil {
			report.CorrelationID = exchange.CorrelationID
			report.Result = exchange.Result
		}
		report.fail(err)
	default:
		result, err := v.Validate(ctx, &s.request)
		report.Result = result
		report.fail(err)
	}
	report.Duration = time.Since(start).Milliseconds()
	report.settle()

	log.Info().
		Str("call_id", report.CallID).
		Str("transport", string(report.Transport)).
		Str("outcome", string(report.Outcome)).
		Int64("duration_ms", report.Duration).
		Msg("validation finished")

	return report
}

func newReport(s *settings) *Report {
	return &Report{
		CallID:    uuid.NewString(),
		Transport: s.transport,
		NetworkID: s.request.NetworkID,
		Network:   network.Name(s.request.NetworkID),
		RulesetID: s.request.RulesetID,
		ScannedID: s.request.ScannedID,
	}
}

// shouldSaveHistory honors --no-history and the session switch
func shouldSaveHistory(mgr *session.Manager, noHistory bool) bool {
	return !noHistory && mgr.IsHistoryEnabled() && config.DatabasePath != ""
}

// saveHistory records reports; failures only warn
func saveHistory(reports []*Report, profileName string, log zerolog.Logger) {
	hist, err := history.NewManager(config.DatabasePath)
	if err != nil {
		log.Warn().Err(err).Msg("failed to open history")
		return
	}
	defer hist.Close()

	for _, report := range reports {
		entry := report.historyEntry(profileName)
		if err := hist.Save(&entry); err != nil {
			log.Warn().Err(err).Str("call_id", report.CallID).Msg("failed to save history")
		}
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}

func loggerOrNop(l *zerolog.Logger) zerolog.Logger {
	if l == nil {
		return zerolog.Nop()
	}
	return *l
}

func writerOr(w io.Writer) io.Writer {
	if w == nil {
		return os.Stdout
	}
	return w
}

// compactJSON returns raw on one line, or unchanged when it is not JSON
func compactJSON(raw []byte) string {
	var buf bytes.Buffer
	if err := json.Compact(&buf, raw); err != nil {
		return string(raw)
	}
	return buf.String()
}
