package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/studiowebux/rulesetcheck/internal/batch"
	"github.com/studiowebux/rulesetcheck/internal/config"
	"github.com/studiowebux/rulesetcheck/internal/executor"
	"github.com/studiowebux/rulesetcheck/internal/session"
	"github.com/studiowebux/rulesetcheck/internal/types"
	"gopkg.in/yaml.v3"
)

// BatchOptions validates many scanned ids with one set of settings
type BatchOptions struct {
	RunOptions
	Source      string // file path, or "-" for stdin
	Concurrency int
}

// RunBatch validates every id in the source and prints one line per id.
// Returns ErrNoVerdict when any id failed or had no verdict.
func RunBatch(opts BatchOptions) error {
	ids, err := readSource(opts.Source)
	if err != nil {
		return err
	}
	if len(ids) == 0 {
		return fmt.Errorf("no scanned ids found in %s", opts.Source)
	}

	mgr := session.NewManager()
	if err := mgr.Load(); err != nil {
		return fmt.Errorf("failed to load session: %w", err)
	}

	s, err := resolveSettings(mgr, &opts.RunOptions)
	if err != nil {
		return err
	}

	log := loggerOrNop(opts.Logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	validator, err := newValidator(s, opts.Strict, log)
	if err != nil {
		return err
	}

	// The per-call timeout bounds each id, not the whole batch
	timed := &timeoutValidator{Validator: validator, timeout: s.timeout}
	outcomes := batch.Run(ctx, timed, s.request, ids, opts.Concurrency)

	reports := make([]*Report, len(outcomes))
	failed := 0
	for i, outcome := range outcomes {
		item := *s
		item.request.ScannedID = outcome.ScannedID
		report := newReport(&item)
		report.Result = outcome.Result
		report.fail(outcome.Err)
		report.Duration = outcome.Duration.Milliseconds()
		report.settle()
		reports[i] = report

		if report.Outcome != types.OutcomeResult {
			failed++
		}
	}

	if shouldSaveHistory(mgr, opts.NoHistory) {
		saveHistory(reports, s.profileName, log)
	}

	format := s.output
	if format == "" {
		format = "text"
	}
	output, err := formatBatch(reports, format)
	if err != nil {
		return fmt.Errorf("failed to format output: %w", err)
	}

	if opts.SavePath != "" {
		if err := os.WriteFile(opts.SavePath, []byte(output), config.FilePermissions); err != nil {
			return fmt.Errorf("failed to save verdicts: %w", err)
		}
		fmt.Fprintf(os.Stderr, "Verdicts saved to %s\n", opts.SavePath)
	} else {
		fmt.Fprint(writerOr(opts.Stdout), output)
	}

	log.Info().Int("total", len(reports)).Int("failed", failed).Msg("batch finished")

	if failed > 0 {
		return fmt.Errorf("%d of %d validations without a verdict: %w", failed, len(reports), ErrNoVerdict)
	}
	return nil
}

// timeoutValidator applies a per-call deadline
type timeoutValidator struct {
	executor.Validator
	timeout time.Duration
}

func (t *timeoutValidator) Validate(ctx context.Context, req *types.ValidationRequest) (types.Result, error) {
	if t.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, t.timeout)
		defer cancel()
	}
	return t.Validator.Validate(ctx, req)
}

func readSource(source string) ([]string, error) {
	var r io.Reader
	if source == "" || source == "-" {
		r = os.Stdin
	} else {
		f, err := os.Open(source)
		if err != nil {
			return nil, fmt.Errorf("failed to open %s: %w", source, err)
		}
		defer f.Close()
		r = f
	}
	return batch.ReadIDs(r)
}

// formatBatch renders all reports. Text is one line per id.
func formatBatch(reports []*Report, format string) (string, error) {
	switch format {
	case "json":
		data, err := json.MarshalIndent(reports, "", "  ")
		if err != nil {
			return "", err
		}
		return string(data) + "\n", nil

	case "yaml":
		items := make([]yamlReport, len(reports))
		for i, report := range reports {
			items[i] = yamlReport{Report: *report}
			if report.Result != nil {
				if err := json.Unmarshal(report.Result, &items[i].Verdict); err != nil {
					return "", fmt.Errorf("failed to decode result for %s: %w", report.ScannedID, err)
				}
			}
		}
		data, err := yaml.Marshal(items)
		if err != nil {
			return "", err
		}
		return string(data), nil

	case "body":
		var sb strings.Builder
		for _, report := range reports {
			sb.WriteString(report.ScannedID)
			sb.WriteString("\t")
			sb.WriteString(compactJSON(report.Result))
			sb.WriteString("\n")
		}
		return sb.String(), nil

	case "text":
		var sb strings.Builder
		for _, report := range reports {
			line := fmt.Sprintf("%s %s", outcomeLabel(report.Outcome), report.ScannedID)
			if report.Result != nil {
				line += " " + compactJSON(report.Result)
			}
			if report.err != nil {
				line += " " + errorStyle.Render(fmt.Sprintf("[%s] %s", errorKind(report.err), report.Error))
			}
			sb.WriteString(line)
			sb.WriteString("\n")
		}
		return sb.String(), nil

	default:
		return "", fmt.Errorf("unsupported output format: %s (use json, yaml, text or body)", format)
	}
}
