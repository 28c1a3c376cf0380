package mock

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// LoadConfig loads a mock configuration from a file
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config

	ext := strings.ToLower(filepath.Ext(path))
	switch ext {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &config); err != nil {
			return nil, fmt.Errorf("failed to parse YAML config: %w", err)
		}
	case ".json":
		if err := json.Unmarshal(data, &config); err != nil {
			return nil, fmt.Errorf("failed to parse JSON config: %w", err)
		}
	default:
		return nil, fmt.Errorf("unsupported config file format: %s (use .yaml, .yml, or .json)", ext)
	}

	if err := validateConfig(&config); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &config, nil
}

// validateConfig validates the mock configuration
func validateConfig(config *Config) error {
	if len(config.Rulesets) == 0 {
		return fmt.Errorf("no rulesets defined")
	}

	seen := make(map[string]bool, len(config.Rulesets))
	for i, ruleset := range config.Rulesets {
		if ruleset.ID == "" {
			return fmt.Errorf("ruleset %d: id is required", i)
		}
		if seen[ruleset.ID] {
			return fmt.Errorf("ruleset %d: duplicate id %q", i, ruleset.ID)
		}
		seen[ruleset.ID] = true
	}

	if config.Credentials != nil && config.Credentials.ClientID == "" {
		return fmt.Errorf("credentials: clientId is required")
	}

	return nil
}

// DefaultConfig returns a config with one permissive ruleset
func DefaultConfig() *Config {
	return &Config{
		Host:    "localhost",
		Port:    8080,
		Logging: true,
		Rulesets: []Ruleset{
			{ID: "demo", Allow: []string{"*"}, Description: "Accepts every passport"},
		},
	}
}
