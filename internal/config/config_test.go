package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestInitializeAt_CreatesFiles(t *testing.T) {
	dir := filepath.Join(t.TempDir(), ".rulesetcheck")

	if err := InitializeAt(dir); err != nil {
		t.Fatalf("InitializeAt failed: %v", err)
	}

	for _, path := range []string{SessionFile, ProfilesFile} {
		info, err := os.Stat(path)
		if err != nil {
			t.Fatalf("Expected %s to exist: %v", path, err)
		}
		if info.Mode().Perm() != FilePermissions {
			t.Errorf("Expected %s to have mode %o, got %o", path, FilePermissions, info.Mode().Perm())
		}
	}

	if DatabasePath != filepath.Join(dir, "rulesetcheck.db") {
		t.Errorf("Unexpected database path: %s", DatabasePath)
	}
}

func TestInitializeAt_KeepsExistingProfiles(t *testing.T) {
	dir := t.TempDir()
	custom := []byte(`[{"name":"mine"}]`)
	if err := os.WriteFile(filepath.Join(dir, ".profiles.json"), custom, FilePermissions); err != nil {
		t.Fatal(err)
	}

	if err := InitializeAt(dir); err != nil {
		t.Fatalf("InitializeAt failed: %v", err)
	}

	data, err := os.ReadFile(ProfilesFile)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != string(custom) {
		t.Errorf("Expected existing profiles to be kept, got %s", data)
	}
}
