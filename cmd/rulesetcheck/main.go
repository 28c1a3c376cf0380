package main

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/studiowebux/rulesetcheck/internal/cli"
	"github.com/studiowebux/rulesetcheck/internal/config"
	"github.com/studiowebux/rulesetcheck/internal/logger"
	update "github.com/studiowebux/rulesetcheck/internal/version"
)

var (
	version = "0.1.0"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		if !errors.Is(err, cli.ErrNoVerdict) {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		}
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "rulesetcheck",
	Short: "Validate scanned passports against discount rulesets",
	Long: `rulesetcheck asks the remote validation service whether a scanned
passport satisfies a discount ruleset, over HTTP or WebSocket.

Values come from flags, then the active profile, then the environment
(` + config.SecretEnvVar + ` for the client secret).

Examples:
  rulesetcheck validate 0xabc --network 80001 --client-id id --ruleset vip
  rulesetcheck validate 0xabc -p testnet --transport ws -o json
  rulesetcheck batch ids.txt -p testnet --concurrency 8
  rulesetcheck history --limit 20
  rulesetcheck mock --config mock.yaml`,
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := config.Initialize(); err != nil {
			return fmt.Errorf("failed to initialize config: %w", err)
		}
		l, err := logger.New(flagLogEnv, flagLogLevel)
		if err != nil {
			return fmt.Errorf("invalid log level: %w", err)
		}
		log = l
		return nil
	},
}

var validateCmd = &cobra.Command{
	Use:   "validate <scannedId>",
	Short: "Validate one scanned id",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return cli.Run(runOptions(args[0]))
	},
}

var batchCmd = &cobra.Command{
	Use:   "batch <file|->",
	Short: "Validate newline-separated scanned ids concurrently",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return cli.RunBatch(cli.BatchOptions{
			RunOptions:  runOptions(""),
			Source:      args[0],
			Concurrency: flagConcurrency,
		})
	},
}

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List stored validations",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return cli.ShowHistory(cli.HistoryOptions{
			Profile:      flagProfile,
			Limit:        flagLimit,
			Clear:        flagClear,
			Stats:        flagStats,
			OutputFormat: flagOutput,
		})
	},
}

var networksCmd = &cobra.Command{
	Use:   "networks",
	Short: "Print the supported networks and their endpoints",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return cli.ListNetworks(os.Stdout, flagOutput)
	},
}

var profilesCmd = &cobra.Command{
	Use:   "profiles",
	Short: "List profiles",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return cli.ListProfiles(os.Stdout)
	},
}

var profilesUseCmd = &cobra.Command{
	Use:   "use <name>",
	Short: "Set the active profile",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return cli.UseProfile(args[0])
	},
}

var mockCmd = &cobra.Command{
	Use:   "mock",
	Short: "Run a local mock validation service",
	Long: `Run a local stand-in for the validation service. It answers the HTTP
endpoint and WebSocket envelopes from rulesets in a YAML or JSON file.
Without --config a single "demo" ruleset accepts every passport.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return cli.RunMock(cli.MockOptions{
			ConfigPath: flagMockConfig,
			Host:       flagMockHost,
			Port:       flagMockPort,
			Logger:     &log,
		})
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version, optionally checking for a newer release",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		fmt.Println(version)
		if !flagCheck {
			return nil
		}
		available, latest, url, err := update.CheckForUpdate(cmd.Context(), update.ReleasesURL, version)
		if err != nil {
			return fmt.Errorf("failed to check for updates: %w", err)
		}
		if available {
			fmt.Printf("A newer version is available: %s (%s)\n", latest, url)
		} else {
			fmt.Println("Up to date")
		}
		return nil
	},
}

var log = zerolog.Nop()

// Global flags
var (
	flagProfile  string
	flagOutput   string
	flagLogLevel string
	flagLogEnv   string
)

// Flags for validate/batch
var (
	flagTransport      string
	flagNetwork        string
	flagClientID       string
	flagClientSecret   string
	flagRuleset        string
	flagHTTPBase       string
	flagWSBase         string
	flagSave           string
	flagTimeout        time.Duration
	flagConnectTimeout time.Duration
	flagStrict         bool
	flagFilter         string
	flagQuery          string
	flagNoHistory      bool
	flagConcurrency    int
)

// Flags for history
var (
	flagLimit int
	flagClear bool
	flagStats bool
)

var flagCheck bool

// Flags for mock
var (
	flagMockConfig string
	flagMockHost   string
	flagMockPort   int
)

func init() {
	rootCmd.PersistentFlags().StringVarP(&flagProfile, "profile", "p", "", "Profile to use")
	rootCmd.PersistentFlags().StringVarP(&flagOutput, "output", "o", "", "Output format (json/yaml/text/body)")
	rootCmd.PersistentFlags().StringVar(&flagLogLevel, "log-level", os.Getenv("RULESETCHECK_LOG_LEVEL"), "Log level (debug/info/warn/error)")
	rootCmd.PersistentFlags().StringVar(&flagLogEnv, "log-env", envOr("RULESETCHECK_ENV", "dev"), "Log environment (dev for console output, anything else for JSON)")

	for _, cmd := range []*cobra.Command{validateCmd, batchCmd} {
		cmd.Flags().StringVarP(&flagTransport, "transport", "t", "", "Transport (http/ws)")
		cmd.Flags().StringVarP(&flagNetwork, "network", "n", "", "Network id (137 mainnet, 80001 testnet)")
		cmd.Flags().StringVar(&flagClientID, "client-id", "", "Client id")
		cmd.Flags().StringVar(&flagClientSecret, "client-secret", "", "Client secret (or "+config.SecretEnvVar+")")
		cmd.Flags().StringVarP(&flagRuleset, "ruleset", "r", "", "Ruleset id")
		cmd.Flags().StringVar(&flagHTTPBase, "http-base", "", "Override the HTTP base URL of the network")
		cmd.Flags().StringVar(&flagWSBase, "ws-base", "", "Override the WebSocket base URL of the network")
		cmd.Flags().StringVarP(&flagSave, "save", "s", "", "Save output to file")
		cmd.Flags().DurationVar(&flagTimeout, "timeout", 0, "Bound each validation (e.g. 10s)")
		cmd.Flags().DurationVar(&flagConnectTimeout, "connect-timeout", 0, "Bound the WebSocket dial")
		cmd.Flags().BoolVar(&flagStrict, "strict", false, "Treat non-2xx HTTP answers as errors")
		cmd.Flags().BoolVar(&flagNoHistory, "no-history", false, "Do not record this call in history")
	}
	validateCmd.Flags().StringVar(&flagFilter, "filter", "", "JMESPath filter applied to the verdict")
	validateCmd.Flags().StringVar(&flagQuery, "query", "", "JMESPath query or $(shell command) applied to the verdict")
	batchCmd.Flags().IntVarP(&flagConcurrency, "concurrency", "c", 4, "Validations in flight")

	historyCmd.Flags().IntVarP(&flagLimit, "limit", "l", 50, "Entries to show (0 for all)")
	historyCmd.Flags().BoolVar(&flagClear, "clear", false, "Delete all history")
	historyCmd.Flags().BoolVar(&flagStats, "stats", false, "Show per-ruleset aggregates instead of entries")

	mockCmd.Flags().StringVar(&flagMockConfig, "config", "", "Mock config file (.yaml/.yml/.json)")
	mockCmd.Flags().StringVar(&flagMockHost, "host", "", "Host to bind (default localhost)")
	mockCmd.Flags().IntVar(&flagMockPort, "port", 0, "Port to bind (default 8080)")

	versionCmd.Flags().BoolVar(&flagCheck, "check", false, "Check for a newer release")

	profilesCmd.AddCommand(profilesUseCmd)

	rootCmd.AddCommand(validateCmd)
	rootCmd.AddCommand(batchCmd)
	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(networksCmd)
	rootCmd.AddCommand(profilesCmd)
	rootCmd.AddCommand(mockCmd)
	rootCmd.AddCommand(versionCmd)
}

// runOptions collects the validate/batch flags
func runOptions(scannedID string) cli.RunOptions {
	return cli.RunOptions{
		ScannedID:      scannedID,
		Profile:        flagProfile,
		Transport:      flagTransport,
		NetworkID:      flagNetwork,
		ClientID:       flagClientID,
		ClientSecret:   flagClientSecret,
		RulesetID:      flagRuleset,
		HTTPBase:       flagHTTPBase,
		WSBase:         flagWSBase,
		OutputFormat:   flagOutput,
		SavePath:       flagSave,
		Timeout:        flagTimeout,
		ConnectTimeout: flagConnectTimeout,
		Strict:         flagStrict,
		Filter:         flagFilter,
		Query:          flagQuery,
		NoHistory:      flagNoHistory,
		Logger:         &log,
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
