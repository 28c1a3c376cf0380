package migrations

import (
	"database/sql"
	"fmt"
)

// Migration represents a single database migration
type Migration struct {
	Version int
	Name    string
	Up      string
	Down    string
}

// AllMigrations contains all database migrations in order
var AllMigrations = []Migration{
	{
		Version: 1,
		Name:    "Add profile and outcome indices",
		Up: `
			CREATE INDEX IF NOT EXISTS idx_validations_profile ON validations(profile_name);
			CREATE INDEX IF NOT EXISTS idx_validations_outcome ON validations(outcome);
		`,
		Down: `
			DROP INDEX IF EXISTS idx_validations_profile;
			DROP INDEX IF EXISTS idx_validations_outcome;
		`,
	},
	{
		Version: 2,
		Name:    "Add composite index for per-profile listing",
		Up: `
			-- Profile filtering + timestamp ordering (Load ORDER BY)
			CREATE INDEX IF NOT EXISTS idx_validations_profile_timestamp ON validations(profile_name, timestamp DESC);
		`,
		Down: `
			DROP INDEX IF EXISTS idx_validations_profile_timestamp;
		`,
	},
}

// InitSchema creates all tables required across all modules
// This must be called before running migrations to ensure all tables exist
func InitSchema(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS validations (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		call_id TEXT NOT NULL UNIQUE,
		timestamp DATETIME NOT NULL,
		transport TEXT NOT NULL,
		network_id TEXT NOT NULL,
		ruleset_id TEXT NOT NULL,
		scanned_id TEXT NOT NULL,
		correlation_id INTEGER,
		outcome TEXT NOT NULL,
		result_body TEXT,
		duration_ms INTEGER NOT NULL,
		error TEXT,
		profile_name TEXT
	);

	CREATE INDEX IF NOT EXISTS idx_validations_timestamp ON validations(timestamp DESC);
	CREATE INDEX IF NOT EXISTS idx_validations_ruleset ON validations(ruleset_id);
	CREATE INDEX IF NOT EXISTS idx_validations_scanned ON validations(scanned_id);
	`

	_, err := db.Exec(schema)
	if err != nil {
		return fmt.Errorf("failed to initialize schema: %w", err)
	}

	return nil
}

// Run executes all pending migrations on the database
func Run(db *sql.DB) error {
	// Initialize schema first to ensure all tables exist
	if err := InitSchema(db); err != nil {
		return fmt.Errorf("failed to initialize schema: %w", err)
	}

	// Create migrations tracking table if it doesn't exist
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			name TEXT NOT NULL,
			applied_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to create migrations table: %w", err)
	}

	currentVersion, err := GetCurrentVersion(db)
	if err != nil {
		return fmt.Errorf("failed to get current migration version: %w", err)
	}

	// Apply pending migrations
	for _, migration := range AllMigrations {
		if migration.Version <= currentVersion {
			continue
		}

		if _, err := db.Exec(migration.Up); err != nil {
			return fmt.Errorf("failed to apply migration %d (%s): %w", migration.Version, migration.Name, err)
		}

		_, err = db.Exec(
			"INSERT INTO schema_migrations (version, name) VALUES (?, ?)",
			migration.Version,
			migration.Name,
		)
		if err != nil {
			return fmt.Errorf("failed to record migration %d: %w", migration.Version, err)
		}
	}

	return nil
}

// GetCurrentVersion returns the current database schema version
func GetCurrentVersion(db *sql.DB) (int, error) {
	var version int
	err := db.QueryRow(`
		SELECT COALESCE(MAX(version), 0)
		FROM schema_migrations
	`).Scan(&version)
	if err != nil && err != sql.ErrNoRows {
		return 0, err
	}
	return version, nil
}
