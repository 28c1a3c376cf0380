package history

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
	"github.com/studiowebux/rulesetcheck/internal/config"
	"github.com/studiowebux/rulesetcheck/internal/migrations"
	"github.com/studiowebux/rulesetcheck/internal/types"
)

const timestampLayout = "2006-01-02 15:04:05"

// Manager stores validation calls in SQLite
type Manager struct {
	db *sql.DB
}

func NewManager(dbPath string) (*Manager, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, config.DirPermissions); err != nil {
		return nil, fmt.Errorf("failed to create history directory: %w", err)
	}

	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open history database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to history database: %w", err)
	}

	if err := migrations.Run(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return &Manager{db: db}, nil
}

// Save records one validation call. A missing CallID or Timestamp is filled in.
func (m *Manager) Save(entry *types.HistoryEntry) error {
	if entry.CallID == "" {
		entry.CallID = uuid.NewString()
	}

	timestamp := time.Now()
	if entry.Timestamp != "" {
		if parsed, err := time.Parse(time.RFC3339, entry.Timestamp); err == nil {
			timestamp = parsed
		}
	}
	entry.Timestamp = timestamp.Format(time.RFC3339)

	var correlationID sql.NullInt64
	if entry.CorrelationID != 0 {
		correlationID = sql.NullInt64{Int64: entry.CorrelationID, Valid: true}
	}

	query := `
		INSERT INTO validations (
			call_id, timestamp, transport, network_id, ruleset_id, scanned_id,
			correlation_id, outcome, result_body, duration_ms, error, profile_name
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	res, err := m.db.Exec(query,
		entry.CallID,
		timestamp.Local().Format(timestampLayout),
		string(entry.Transport),
		entry.NetworkID,
		entry.RulesetID,
		entry.ScannedID,
		correlationID,
		string(entry.Outcome),
		entry.ResultBody,
		entry.Duration,
		entry.Error,
		entry.ProfileName,
	)
	if err != nil {
		return fmt.Errorf("failed to save history entry: %w", err)
	}

	if id, err := res.LastInsertId(); err == nil {
		entry.ID = id
	}
	return nil
}

// Load returns the newest entries first. An empty profileName returns
// entries from every profile; limit <= 0 returns everything.
func (m *Manager) Load(profileName string, limit int) ([]types.HistoryEntry, error) {
	query := `
		SELECT id, call_id, timestamp, transport, network_id, ruleset_id, scanned_id,
		       correlation_id, outcome, result_body, duration_ms, error, COALESCE(profile_name, '')
		FROM validations
		WHERE ? = '' OR profile_name = ?
		ORDER BY timestamp DESC, id DESC
	`
	args := []any{profileName, profileName}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := m.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to load history: %w", err)
	}
	defer rows.Close()

	return m.scanEntries(rows)
}

func (m *Manager) scanEntries(rows *sql.Rows) ([]types.HistoryEntry, error) {
	var entries []types.HistoryEntry

	for rows.Next() {
		var entry types.HistoryEntry
		var timestamp string
		var transport string
		var outcome string
		var correlationID sql.NullInt64
		var resultBody sql.NullString
		var errorMsg sql.NullString

		err := rows.Scan(
			&entry.ID,
			&entry.CallID,
			&timestamp,
			&transport,
			&entry.NetworkID,
			&entry.RulesetID,
			&entry.ScannedID,
			&correlationID,
			&outcome,
			&resultBody,
			&entry.Duration,
			&errorMsg,
			&entry.ProfileName,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan history entry: %w", err)
		}

		// Parse timestamp as local time
		parsedTime, err := time.ParseInLocation(timestampLayout, timestamp, time.Local)
		if err != nil {
			// Try RFC3339 format as fallback
			parsedTime, err = time.Parse(time.RFC3339, timestamp)
			if err != nil {
				parsedTime = time.Time{}
			}
		}

		entry.Timestamp = parsedTime.Format(time.RFC3339)
		entry.Transport = types.Transport(transport)
		entry.Outcome = types.Outcome(outcome)
		entry.CorrelationID = correlationID.Int64
		entry.ResultBody = resultBody.String
		entry.Error = errorMsg.String

		entries = append(entries, entry)
	}

	return entries, rows.Err()
}

func (m *Manager) Clear() error {
	_, err := m.db.Exec("DELETE FROM validations")
	if err != nil {
		return fmt.Errorf("failed to clear history: %w", err)
	}
	return nil
}

func (m *Manager) Delete(id int64) error {
	_, err := m.db.Exec("DELETE FROM validations WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("failed to delete history entry: %w", err)
	}
	return nil
}

func (m *Manager) GetCount() (int, error) {
	var count int
	err := m.db.QueryRow("SELECT COUNT(*) FROM validations").Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to get history count: %w", err)
	}
	return count, nil
}

func (m *Manager) Close() error {
	if m.db != nil {
		return m.db.Close()
	}
	return nil
}
