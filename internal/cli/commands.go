package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/studiowebux/rulesetcheck/internal/config"
	"github.com/studiowebux/rulesetcheck/internal/executor"
	"github.com/studiowebux/rulesetcheck/internal/history"
	"github.com/studiowebux/rulesetcheck/internal/mock"
	"github.com/studiowebux/rulesetcheck/internal/network"
	"github.com/studiowebux/rulesetcheck/internal/session"
	"gopkg.in/yaml.v3"
)

// HistoryOptions controls the history command
type HistoryOptions struct {
	Profile      string
	Limit        int
	Clear        bool
	Stats        bool
	OutputFormat string
	Stdout       io.Writer
}

// ShowHistory lists stored validations, newest first, or clears them
func ShowHistory(opts HistoryOptions) error {
	hist, err := history.NewManager(config.DatabasePath)
	if err != nil {
		return fmt.Errorf("failed to open history: %w", err)
	}
	defer hist.Close()

	out := writerOr(opts.Stdout)

	if opts.Clear {
		count, err := hist.GetCount()
		if err != nil {
			return err
		}
		if err := hist.Clear(); err != nil {
			return err
		}
		fmt.Fprintf(out, "Cleared %d entries\n", count)
		return nil
	}

	if opts.Stats {
		return showStats(out, hist, opts)
	}

	entries, err := hist.Load(opts.Profile, opts.Limit)
	if err != nil {
		return err
	}

	switch opts.OutputFormat {
	case "json":
		data, err := json.MarshalIndent(entries, "", "  ")
		if err != nil {
			return err
		}
		fmt.Fprintln(out, string(data))
	case "yaml":
		data, err := yaml.Marshal(entries)
		if err != nil {
			return err
		}
		fmt.Fprint(out, string(data))
	case "", "text", "body":
		if len(entries) == 0 {
			fmt.Fprintln(out, "No history")
			return nil
		}
		for _, e := range entries {
			line := fmt.Sprintf("%s  %-9s %-4s %s %s/%s", e.Timestamp, e.Outcome, e.Transport, networkLabel(e.NetworkID, network.Name(e.NetworkID)), e.RulesetID, e.ScannedID)
			if e.ResultBody != "" {
				line += "  " + e.ResultBody
			}
			if e.Error != "" {
				line += "  " + e.Error
			}
			fmt.Fprintln(out, line)
		}
	default:
		return fmt.Errorf("unsupported output format: %s (use json, yaml or text)", opts.OutputFormat)
	}
	return nil
}

// showStats prints per-ruleset aggregates
func showStats(out io.Writer, hist *history.Manager, opts HistoryOptions) error {
	stats, err := hist.GetStats(opts.Profile)
	if err != nil {
		return err
	}

	switch opts.OutputFormat {
	case "json":
		data, err := json.MarshalIndent(stats, "", "  ")
		if err != nil {
			return err
		}
		fmt.Fprintln(out, string(data))
	case "yaml":
		data, err := yaml.Marshal(stats)
		if err != nil {
			return err
		}
		fmt.Fprint(out, string(data))
	default:
		if len(stats) == 0 {
			fmt.Fprintln(out, "No history")
			return nil
		}
		for _, s := range stats {
			fmt.Fprintf(out, "%-20s %-4s calls=%d result=%d no-result=%d error=%d avg=%s min=%s max=%s\n",
				s.RulesetID, s.Transport, s.TotalCalls, s.ResultCount, s.NoResultCount, s.ErrorCount,
				executor.FormatDuration(int64(s.AvgDurationMs)),
				executor.FormatDuration(s.MinDurationMs),
				executor.FormatDuration(s.MaxDurationMs))
		}
	}
	return nil
}

// ListNetworks prints the endpoint table
func ListNetworks(out io.Writer, format string) error {
	out = writerOr(out)

	type row struct {
		ID       string `json:"id" yaml:"id"`
		Name     string `json:"name" yaml:"name"`
		HTTPBase string `json:"httpBase" yaml:"httpBase"`
		WSBase   string `json:"wsBase" yaml:"wsBase"`
	}

	var rows []row
	for _, id := range network.IDs() {
		endpoints, err := network.Resolve(id)
		if err != nil {
			return err
		}
		rows = append(rows, row{ID: id, Name: network.Name(id), HTTPBase: endpoints.HTTPBase, WSBase: endpoints.WSBase})
	}

	switch format {
	case "json":
		data, err := json.MarshalIndent(rows, "", "  ")
		if err != nil {
			return err
		}
		fmt.Fprintln(out, string(data))
	case "yaml":
		data, err := yaml.Marshal(rows)
		if err != nil {
			return err
		}
		fmt.Fprint(out, string(data))
	default:
		for _, r := range rows {
			fmt.Fprintf(out, "%-6s %-8s %s  %s\n", r.ID, r.Name, r.HTTPBase, r.WSBase)
		}
	}
	return nil
}

// ListProfiles prints profile names, marking the active one
func ListProfiles(out io.Writer) error {
	mgr := session.NewManager()
	if err := mgr.Load(); err != nil {
		return fmt.Errorf("failed to load session: %w", err)
	}

	out = writerOr(out)
	profiles := mgr.GetProfiles()
	if len(profiles) == 0 {
		fmt.Fprintf(out, "No profiles defined in %s\n", config.GetProfilesFilePath())
		return nil
	}

	active := mgr.GetActiveProfile()
	for _, p := range profiles {
		marker := " "
		if active != nil && active.Name == p.Name {
			marker = "*"
		}
		transport := string(p.Transport)
		if transport == "" {
			transport = "http"
		}
		fmt.Fprintf(out, "%s %s\t%s\t%s\t%s\n", marker, p.Name, networkLabel(p.NetworkID, network.Name(p.NetworkID)), transport, p.RulesetID)
	}
	return nil
}

// UseProfile makes name the active profile
func UseProfile(name string) error {
	mgr := session.NewManager()
	if err := mgr.Load(); err != nil {
		return fmt.Errorf("failed to load session: %w", err)
	}
	if err := mgr.SetActiveProfile(strings.TrimSpace(name)); err != nil {
		return err
	}
	fmt.Fprintf(os.Stderr, "Active profile: %s\n", name)
	return nil
}

// MockOptions controls the mock validation service
type MockOptions struct {
	ConfigPath string
	Host       string
	Port       int
	Logger     *zerolog.Logger
}

// RunMock serves the mock validation service until interrupted
func RunMock(opts MockOptions) error {
	cfg := mock.DefaultConfig()
	if opts.ConfigPath != "" {
		loaded, err := mock.LoadConfig(opts.ConfigPath)
		if err != nil {
			return err
		}
		cfg = loaded
	}
	if opts.Host != "" {
		cfg.Host = opts.Host
	}
	if opts.Port != 0 {
		cfg.Port = opts.Port
	}

	server := mock.NewServer(cfg, loggerOrNop(opts.Logger))
	if err := server.Start(); err != nil {
		return err
	}

	fmt.Fprintf(os.Stderr, "Mock validation service on %s (ws: %s)\n", server.HTTPAddress(), server.WSAddress())
	fmt.Fprintf(os.Stderr, "Use --http-base %s --ws-base %s with a supported --network\n", server.HTTPAddress(), server.WSAddress())

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	fmt.Fprintln(os.Stderr, "\nStopping mock service")
	return server.Stop()
}
