package config

import (
	"fmt"
	"os"
	"path/filepath"
)

const (
	// FilePermissions is the default permission mode for regular files (owner read/write only, profiles hold secrets)
	FilePermissions = 0600
	// DirPermissions is the default permission mode for directories (rwx for owner)
	DirPermissions = 0700

	// AppName names the configuration directory and database
	AppName = "rulesetcheck"

	// SecretEnvVar fills a missing client secret
	SecretEnvVar = "RULESETCHECK_CLIENT_SECRET"
)

var (
	// ConfigDir is the global configuration directory (~/.rulesetcheck)
	ConfigDir string

	// DatabasePath is the SQLite database file for validation history
	DatabasePath string

	// SessionFile is the session state file
	SessionFile string

	// ProfilesFile is the profiles configuration file
	ProfilesFile string
)

// Initialize sets up the configuration directory and files
// It creates ~/.rulesetcheck/ if it doesn't exist
func Initialize() error {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return fmt.Errorf("failed to get home directory: %w", err)
	}
	return InitializeAt(filepath.Join(homeDir, "."+AppName))
}

// InitializeAt sets up the configuration under dir
func InitializeAt(dir string) error {
	ConfigDir = dir
	DatabasePath = filepath.Join(ConfigDir, AppName+".db")
	SessionFile = filepath.Join(ConfigDir, ".session.json")
	ProfilesFile = filepath.Join(ConfigDir, ".profiles.json")

	if err := os.MkdirAll(ConfigDir, DirPermissions); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", ConfigDir, err)
	}

	// Create empty session file if it doesn't exist
	if _, err := os.Stat(SessionFile); os.IsNotExist(err) {
		defaultSession := []byte(`{"historyEnabled":true}`)
		if err := os.WriteFile(SessionFile, defaultSession, FilePermissions); err != nil {
			return fmt.Errorf("failed to create session file: %w", err)
		}
	}

	// Create a starter profiles file if it doesn't exist
	if _, err := os.Stat(ProfilesFile); os.IsNotExist(err) {
		defaultProfiles := []byte(`[
  // Fill in clientId and rulesetId; keep the secret in ` + SecretEnvVar + ` if you prefer
  {"name": "testnet", "networkId": "80001", "transport": "http", "timeout": "30s"}
]
`)
		if err := os.WriteFile(ProfilesFile, defaultProfiles, FilePermissions); err != nil {
			return fmt.Errorf("failed to create profiles file: %w", err)
		}
	}

	return nil
}

// LocalConfigExists checks if there's a local .session.json or .profiles.json
func LocalConfigExists() bool {
	_, sessionErr := os.Stat(".session.json")
	_, profilesErr := os.Stat(".profiles.json")
	return sessionErr == nil || profilesErr == nil
}

// GetSessionFilePath returns the session file path (local or global)
func GetSessionFilePath() string {
	if _, err := os.Stat(".session.json"); err == nil {
		return ".session.json"
	}
	return SessionFile
}

// GetProfilesFilePath returns the profiles file path (local or global)
func GetProfilesFilePath() string {
	if _, err := os.Stat(".profiles.json"); err == nil {
		return ".profiles.json"
	}
	return ProfilesFile
}
