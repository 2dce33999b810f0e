// Package journal records completed RPC calls and saved result filters in SQLite.
package journal

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/studiowebux/bitcoin-tui/internal/migrations"
)

const timestampLayout = "2006-01-02 15:04:05"

// Entry is one dispatched call.
type Entry struct {
	ID           int64
	Timestamp    time.Time
	Method       string
	Category     string
	Wallet       string
	Args         string
	DurationMs   int64
	ErrorKind    string
	ErrorCode    int
	ErrorMessage string
}

// Failed reports whether the call ended in an error.
func (e Entry) Failed() bool {
	return e.ErrorKind != ""
}

type Manager struct {
	db *sql.DB
}

func NewManager(dbPath string) (*Manager, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("failed to create journal directory: %w", err)
	}

	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open journal database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to journal database: %w", err)
	}

	if err := migrations.Run(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return &Manager{db: db}, nil
}

// Save appends an entry. A zero Timestamp means now.
func (m *Manager) Save(e Entry) error {
	ts := e.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}

	var code sql.NullInt64
	if e.ErrorKind != "" {
		code = sql.NullInt64{Int64: int64(e.ErrorCode), Valid: true}
	}

	_, err := m.db.Exec(`
		INSERT INTO calls (
			timestamp, method, category, wallet, args, duration_ms,
			error_kind, error_code, error_message
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		ts.Local().Format(timestampLayout),
		e.Method,
		e.Category,
		nullString(e.Wallet),
		e.Args,
		e.DurationMs,
		nullString(e.ErrorKind),
		code,
		nullString(e.ErrorMessage),
	)
	if err != nil {
		return fmt.Errorf("failed to save journal entry: %w", err)
	}
	return nil
}

// Query selects entries newest first. Empty fields match everything; limit <= 0 means no limit.
type Query struct {
	Method   string
	Category string
	Limit    int
}

func (m *Manager) Load(q Query) ([]Entry, error) {
	var where []string
	var args []any
	if q.Method != "" {
		where = append(where, "method = ?")
		args = append(args, q.Method)
	}
	if q.Category != "" {
		where = append(where, "category = ?")
		args = append(args, q.Category)
	}

	query := `
		SELECT id, timestamp, method, category, COALESCE(wallet, ''), args, duration_ms,
		       COALESCE(error_kind, ''), COALESCE(error_code, 0), COALESCE(error_message, '')
		FROM calls`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY timestamp DESC, id DESC"
	if q.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, q.Limit)
	}

	rows, err := m.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to load journal: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		var timestamp string
		if err := rows.Scan(&e.ID, &timestamp, &e.Method, &e.Category, &e.Wallet, &e.Args,
			&e.DurationMs, &e.ErrorKind, &e.ErrorCode, &e.ErrorMessage); err != nil {
			return nil, fmt.Errorf("failed to scan journal entry: %w", err)
		}
		e.Timestamp = parseTimestamp(timestamp)
		entries = append(entries, e)
	}

	return entries, rows.Err()
}

func (m *Manager) Clear() error {
	if _, err := m.db.Exec("DELETE FROM calls"); err != nil {
		return fmt.Errorf("failed to clear journal: %w", err)
	}
	return nil
}

func (m *Manager) GetCount() (int, error) {
	var count int
	if err := m.db.QueryRow("SELECT COUNT(*) FROM calls").Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to get journal count: %w", err)
	}
	return count, nil
}

// SaveFilter stores a JMESPath expression; returns false if it already existed.
func (m *Manager) SaveFilter(expression string) (bool, error) {
	expression = strings.TrimSpace(expression)
	if expression == "" {
		return false, fmt.Errorf("expression cannot be empty")
	}

	res, err := m.db.Exec(`INSERT OR IGNORE INTO filters (expression) VALUES (?)`, expression)
	if err != nil {
		return false, fmt.Errorf("failed to save filter: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to check filter insert: %w", err)
	}
	return n > 0, nil
}

// Filters returns saved expressions newest first.
func (m *Manager) Filters(limit int) ([]string, error) {
	rows, err := m.db.Query(`SELECT expression FROM filters ORDER BY created_at DESC, id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query filters: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var expr string
		if err := rows.Scan(&expr); err != nil {
			return nil, fmt.Errorf("failed to scan filter: %w", err)
		}
		out = append(out, expr)
	}
	return out, rows.Err()
}

func (m *Manager) Close() error {
	if m.db != nil {
		return m.db.Close()
	}
	return nil
}

func parseTimestamp(s string) time.Time {
	if t, err := time.ParseInLocation(timestampLayout, s, time.Local); err == nil {
		return t
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t
	}
	return time.Time{}
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
