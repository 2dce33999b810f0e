package journal

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"
)

// MethodStats aggregates journaled calls per method.
type MethodStats struct {
	Method        string
	Category      string
	TotalCalls    int
	ErrorCount    int
	AvgDurationMs float64
	MinDurationMs int64
	MaxDurationMs int64
	LastCalled    time.Time
	ErrorKinds    map[string]int
}

// SuccessRate is the share of calls that did not fail, 0..1.
func (s MethodStats) SuccessRate() float64 {
	if s.TotalCalls == 0 {
		return 0
	}
	return float64(s.TotalCalls-s.ErrorCount) / float64(s.TotalCalls)
}

// Stats returns per-method aggregates, most recently called first. An empty
// category includes every call.
func (m *Manager) Stats(category string) ([]MethodStats, error) {
	query := `
		WITH error_kinds_agg AS (
			SELECT
				method,
				json_group_object(error_kind, count) as error_kinds_json
			FROM (
				SELECT method, error_kind, COUNT(*) as count
				FROM calls
				WHERE error_kind IS NOT NULL AND (category = ? OR ? = '')
				GROUP BY method, error_kind
			)
			GROUP BY method
		)
		SELECT
			c.method,
			MAX(c.category),
			COUNT(*) as total_calls,
			SUM(CASE WHEN c.error_kind IS NOT NULL THEN 1 ELSE 0 END) as error_count,
			AVG(c.duration_ms) as avg_duration,
			MIN(c.duration_ms) as min_duration,
			MAX(c.duration_ms) as max_duration,
			MAX(c.timestamp) as last_called,
			COALESCE(e.error_kinds_json, '{}') as error_kinds_json
		FROM calls c
		LEFT JOIN error_kinds_agg e ON c.method = e.method
		WHERE c.category = ? OR ? = ''
		GROUP BY c.method
		ORDER BY last_called DESC, c.method
	`

	rows, err := m.db.Query(query, category, category, category, category)
	if err != nil {
		return nil, fmt.Errorf("failed to get stats per method: %w", err)
	}
	defer rows.Close()

	var statsList []MethodStats
	for rows.Next() {
		var s MethodStats
		var lastCalled sql.NullString
		var errorKindsJSON string

		err := rows.Scan(
			&s.Method,
			&s.Category,
			&s.TotalCalls,
			&s.ErrorCount,
			&s.AvgDurationMs,
			&s.MinDurationMs,
			&s.MaxDurationMs,
			&lastCalled,
			&errorKindsJSON,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan stats: %w", err)
		}

		if lastCalled.Valid {
			s.LastCalled = parseTimestamp(lastCalled.String)
		}

		s.ErrorKinds = make(map[string]int)
		if errorKindsJSON != "{}" {
			if err := json.Unmarshal([]byte(errorKindsJSON), &s.ErrorKinds); err != nil {
				return nil, fmt.Errorf("failed to unmarshal error kinds: %w", err)
			}
		}

		statsList = append(statsList, s)
	}

	return statsList, rows.Err()
}
