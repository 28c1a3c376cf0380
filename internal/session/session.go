package session

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/studiowebux/rulesetcheck/internal/config"
	"github.com/studiowebux/rulesetcheck/internal/types"
	"github.com/tidwall/jsonc"
)

// Manager handles session and profile management
type Manager struct {
	session  *types.Session
	profiles []types.Profile
}

// NewManager creates a new session manager
func NewManager() *Manager {
	return &Manager{
		session:  &types.Session{},
		profiles: []types.Profile{},
	}
}

// Load loads session and profiles from disk
func (m *Manager) Load() error {
	if err := m.LoadSession(); err != nil {
		return fmt.Errorf("failed to load session: %w", err)
	}

	if err := m.LoadProfiles(); err != nil {
		return fmt.Errorf("failed to load profiles: %w", err)
	}

	return nil
}

// LoadSession loads the session file
func (m *Manager) LoadSession() error {
	data, err := os.ReadFile(config.GetSessionFilePath())
	if err != nil {
		// If file doesn't exist, use default session
		enabled := true
		m.session = &types.Session{HistoryEnabled: &enabled}
		return nil
	}

	var session types.Session
	if err := json.Unmarshal(jsonc.ToJSON(data), &session); err != nil {
		return fmt.Errorf("failed to parse session file: %w", err)
	}

	if session.HistoryEnabled == nil {
		enabled := true
		session.HistoryEnabled = &enabled
	}

	m.session = &session
	return nil
}

// SaveSession saves the session to disk
func (m *Manager) SaveSession() error {
	data, err := json.MarshalIndent(m.session, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal session: %w", err)
	}

	if err := os.WriteFile(config.GetSessionFilePath(), data, config.FilePermissions); err != nil {
		return fmt.Errorf("failed to write session file: %w", err)
	}

	return nil
}

// LoadProfiles loads the profiles file. Comments and trailing commas are
// allowed, so operators can annotate terminal settings in place.
func (m *Manager) LoadProfiles() error {
	data, err := os.ReadFile(config.GetProfilesFilePath())
	if err != nil {
		m.profiles = []types.Profile{}
		return nil
	}

	var profiles []types.Profile
	if err := json.Unmarshal(jsonc.ToJSON(data), &profiles); err != nil {
		return fmt.Errorf("failed to parse profiles file: %w", err)
	}

	seen := make(map[string]bool, len(profiles))
	for _, p := range profiles {
		if p.Name == "" {
			return fmt.Errorf("profile without a name in %s", config.GetProfilesFilePath())
		}
		if seen[p.Name] {
			return fmt.Errorf("duplicate profile name: %s", p.Name)
		}
		seen[p.Name] = true

		if p.Transport != "" && p.Transport != types.TransportHTTP && p.Transport != types.TransportWS {
			fmt.Fprintf(os.Stderr, "warning: profile '%s': unknown transport %q\n", p.Name, p.Transport)
		}
	}

	m.profiles = profiles
	return nil
}

// GetSession returns the current session
func (m *Manager) GetSession() *types.Session {
	return m.session
}

// GetProfiles returns all profiles
func (m *Manager) GetProfiles() []types.Profile {
	return m.profiles
}

// GetProfile returns the named profile
func (m *Manager) GetProfile(name string) (*types.Profile, error) {
	for i := range m.profiles {
		if m.profiles[i].Name == name {
			return &m.profiles[i], nil
		}
	}
	return nil, fmt.Errorf("profile not found: %s", name)
}

// GetActiveProfile returns the currently active profile, or nil when no
// profile is active and none is defined
func (m *Manager) GetActiveProfile() *types.Profile {
	if m.session.ActiveProfile != "" {
		if p, err := m.GetProfile(m.session.ActiveProfile); err == nil {
			return p
		}
	}
	if len(m.profiles) > 0 {
		return &m.profiles[0]
	}
	return nil
}

// SetActiveProfile sets the active profile by name
func (m *Manager) SetActiveProfile(name string) error {
	if _, err := m.GetProfile(name); err != nil {
		return err
	}

	m.session.ActiveProfile = name
	return m.SaveSession()
}

// IsHistoryEnabled returns whether history tracking is enabled
func (m *Manager) IsHistoryEnabled() bool {
	if m.session.HistoryEnabled == nil {
		return true
	}
	return *m.session.HistoryEnabled
}

// SetHistoryEnabled sets whether history tracking is enabled
func (m *Manager) SetHistoryEnabled(enabled bool) error {
	m.session.HistoryEnabled = &enabled
	return m.SaveSession()
}
