package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/studiowebux/rulesetcheck/internal/executor"
	"github.com/studiowebux/rulesetcheck/internal/types"
	"gopkg.in/yaml.v3"
)

var (
	resultStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("10"))
	noResultStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("11"))
	errorStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("9"))
	mutedStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
)

// Report is the printable record of one validation call
type Report struct {
	CallID        string          `json:"callId" yaml:"callId"`
	Transport     types.Transport `json:"transport" yaml:"transport"`
	NetworkID     string          `json:"networkId" yaml:"networkId"`
	Network       string          `json:"network,omitempty" yaml:"network,omitempty"`
	RulesetID     string          `json:"rulesetId" yaml:"rulesetId"`
	ScannedID     string          `json:"scannedId" yaml:"scannedId"`
	CorrelationID int64           `json:"correlationId,omitempty" yaml:"correlationId,omitempty"`
	StatusCode    int             `json:"statusCode,omitempty" yaml:"statusCode,omitempty"`
	Outcome       types.Outcome   `json:"outcome" yaml:"outcome"`
	Result        types.Result    `json:"result,omitempty" yaml:"-"`
	Filtered      string          `json:"filtered,omitempty" yaml:"filtered,omitempty"`
	Error         string          `json:"error,omitempty" yaml:"error,omitempty"`
	Duration      int64           `json:"duration" yaml:"duration"` // milliseconds

	err error
}

// fail records err, keeping the first one
func (r *Report) fail(err error) {
	if err == nil || r.err != nil {
		return
	}
	r.err = err
	r.Error = err.Error()
}

// settle derives the outcome from the result and error
func (r *Report) settle() {
	switch {
	case r.err != nil:
		r.Outcome = types.OutcomeError
	case r.Result != nil:
		r.Outcome = types.OutcomeResult
	default:
		r.Outcome = types.OutcomeNoResult
	}
}

// body is what -o body prints: the filtered output if any, else the raw result
func (r *Report) body() string {
	if r.Filtered != "" {
		return r.Filtered
	}
	return string(r.Result)
}

func (r *Report) historyEntry(profileName string) types.HistoryEntry {
	entry := types.HistoryEntry{
		CallID:        r.CallID,
		Transport:     r.Transport,
		NetworkID:     r.NetworkID,
		RulesetID:     r.RulesetID,
		ScannedID:     r.ScannedID,
		CorrelationID: r.CorrelationID,
		Outcome:       r.Outcome,
		Duration:      r.Duration,
		Error:         r.Error,
		ProfileName:   profileName,
	}
	if r.Result != nil {
		entry.ResultBody = compactJSON(r.Result)
	}
	return entry
}

// yamlReport carries the result as a decoded value so yaml renders it as a
// mapping instead of a byte list
type yamlReport struct {
	Report  `yaml:",inline"`
	Verdict any `yaml:"result,omitempty"`
}

// formatOutput formats the report based on the output format
func formatOutput(report *Report, format string) (string, error) {
	switch format {
	case "json":
		data, err := json.MarshalIndent(report, "", "  ")
		if err != nil {
			return "", err
		}
		return string(data) + "\n", nil

	case "yaml":
		out := yamlReport{Report: *report}
		if report.Result != nil {
			if err := json.Unmarshal(report.Result, &out.Verdict); err != nil {
				return "", fmt.Errorf("failed to decode result: %w", err)
			}
		}
		data, err := yaml.Marshal(out)
		if err != nil {
			return "", err
		}
		return string(data), nil

	case "body":
		body := report.body()
		if body == "" {
			return "", nil
		}
		return body + "\n", nil

	case "text":
		return formatText(report), nil

	default:
		return "", fmt.Errorf("unsupported output format: %s (use json, yaml, text or body)", format)
	}
}

func formatText(report *Report) string {
	var sb strings.Builder

	sb.WriteString(outcomeLabel(report.Outcome))
	sb.WriteString(" ")
	sb.WriteString(fmt.Sprintf("%s %s via %s", report.RulesetID, report.ScannedID, report.Transport))
	sb.WriteString("\n")

	details := []string{
		"network " + networkLabel(report.NetworkID, report.Network),
		"duration " + executor.FormatDuration(report.Duration),
	}
	if report.StatusCode != 0 {
		details = append(details, fmt.Sprintf("status %d", report.StatusCode))
	}
	if report.CorrelationID != 0 {
		details = append(details, fmt.Sprintf("request %d", report.CorrelationID))
	}
	sb.WriteString(mutedStyle.Render(strings.Join(details, " | ")))
	sb.WriteString("\n")

	if body := report.body(); body != "" {
		sb.WriteString("\n")
		sb.WriteString(body)
		sb.WriteString("\n")
	}

	if report.Error != "" {
		sb.WriteString("\n")
		sb.WriteString(errorStyle.Render("Error: " + report.Error))
		sb.WriteString("\n")
	}

	return sb.String()
}

func outcomeLabel(outcome types.Outcome) string {
	switch outcome {
	case types.OutcomeResult:
		return resultStyle.Render("VERDICT")
	case types.OutcomeNoResult:
		return noResultStyle.Render("NO RESULT")
	default:
		return errorStyle.Render("ERROR")
	}
}

func networkLabel(id, name string) string {
	if name == "" {
		return id
	}
	return fmt.Sprintf("%s (%s)", id, name)
}

// errorKind names the failure class for batch summaries
func errorKind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, executor.ErrTimeout):
		return "timeout"
	case errors.Is(err, executor.ErrWsProtocol):
		return "protocol"
	case errors.Is(err, executor.ErrWsConnection):
		return "connection"
	case errors.Is(err, executor.ErrHTTPRequestFailed):
		return "http"
	default:
		return "error"
	}
}
