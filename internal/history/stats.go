package history

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/studiowebux/rulesetcheck/internal/types"
)

// Stats aggregates stored validations for one ruleset over one transport
type Stats struct {
	RulesetID     string          `json:"rulesetId" yaml:"rulesetId"`
	Transport     types.Transport `json:"transport" yaml:"transport"`
	TotalCalls    int             `json:"totalCalls" yaml:"totalCalls"`
	ResultCount   int             `json:"resultCount" yaml:"resultCount"`
	NoResultCount int             `json:"noResultCount" yaml:"noResultCount"`
	ErrorCount    int             `json:"errorCount" yaml:"errorCount"`
	AvgDurationMs float64         `json:"avgDurationMs" yaml:"avgDurationMs"`
	MinDurationMs int64           `json:"minDurationMs" yaml:"minDurationMs"`
	MaxDurationMs int64           `json:"maxDurationMs" yaml:"maxDurationMs"`
	LastCalled    time.Time       `json:"lastCalled" yaml:"lastCalled"`
}

// GetStats groups validations by ruleset and transport, most recent first.
// An empty profileName covers every profile.
func (m *Manager) GetStats(profileName string) ([]Stats, error) {
	query := `
		SELECT
			ruleset_id,
			transport,
			COUNT(*) as total_calls,
			SUM(CASE WHEN outcome = 'result' THEN 1 ELSE 0 END) as result_count,
			SUM(CASE WHEN outcome = 'no-result' THEN 1 ELSE 0 END) as no_result_count,
			SUM(CASE WHEN outcome = 'error' THEN 1 ELSE 0 END) as error_count,
			AVG(duration_ms) as avg_duration,
			MIN(duration_ms) as min_duration,
			MAX(duration_ms) as max_duration,
			MAX(timestamp) as last_called
		FROM validations
		WHERE ? = '' OR profile_name = ?
		GROUP BY ruleset_id, transport
		ORDER BY last_called DESC
	`

	rows, err := m.db.Query(query, profileName, profileName)
	if err != nil {
		return nil, fmt.Errorf("failed to get history stats: %w", err)
	}
	defer rows.Close()

	var statsList []Stats
	for rows.Next() {
		var s Stats
		var transport string
		var lastCalled sql.NullString

		err := rows.Scan(
			&s.RulesetID,
			&transport,
			&s.TotalCalls,
			&s.ResultCount,
			&s.NoResultCount,
			&s.ErrorCount,
			&s.AvgDurationMs,
			&s.MinDurationMs,
			&s.MaxDurationMs,
			&lastCalled,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan stats: %w", err)
		}

		s.Transport = types.Transport(transport)
		if lastCalled.Valid {
			// SQLite stores local time without a zone
			if parsed, err := time.ParseInLocation(timestampLayout, lastCalled.String, time.Local); err == nil {
				s.LastCalled = parsed
			}
		}

		statsList = append(statsList, s)
	}

	return statsList, rows.Err()
}
