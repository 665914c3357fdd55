// Package logs persists warning-and-above log events so they can be
// inspected from the logs page.
package logs

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/rs/zerolog"
)

// LogEntry is one persisted log event.
type LogEntry struct {
	ID        int64  `json:"id"`
	Timestamp int64  `json:"timestamp"`
	Level     string `json:"level"`
	Category  string `json:"category"`
	Message   string `json:"message"`
	Details   string `json:"details"`
}

// Filter narrows log listings. Zero values mean "no constraint".
type Filter struct {
	Level    string
	Category string
	From     int64 // unix seconds, inclusive
	To       int64 // unix seconds, inclusive
	Limit    int
	Offset   int
}

// Repository handles log database operations.
type Repository struct {
	db  *sql.DB // cache.db - logs table
	log zerolog.Logger
}

// NewRepository creates a new log repository.
func NewRepository(db *sql.DB, log zerolog.Logger) *Repository {
	return &Repository{
		db:  db,
		log: log.With().Str("repo", "logs").Logger(),
	}
}

// Insert stores one log entry.
func (r *Repository) Insert(entry LogEntry) error {
	if entry.Timestamp == 0 {
		entry.Timestamp = time.Now().Unix()
	}
	_, err := r.db.Exec(`
		INSERT INTO logs (timestamp, level, category, message, details) VALUES (?, ?, ?, ?, ?)
	`, entry.Timestamp, entry.Level, entry.Category, entry.Message, entry.Details)
	if err != nil {
		return fmt.Errorf("failed to insert log entry: %w", err)
	}
	return nil
}

// List returns log entries matching the filter, newest first.
func (r *Repository) List(filter Filter) ([]LogEntry, error) {
	query := "SELECT id, timestamp, level, category, message, details FROM logs WHERE 1=1"
	var args []interface{}

	if filter.Level != "" {
		query += " AND level = ?"
		args = append(args, filter.Level)
	}
	if filter.Category != "" {
		query += " AND category = ?"
		args = append(args, filter.Category)
	}
	if filter.From > 0 {
		query += " AND timestamp >= ?"
		args = append(args, filter.From)
	}
	if filter.To > 0 {
		query += " AND timestamp <= ?"
		args = append(args, filter.To)
	}

	query += " ORDER BY timestamp DESC, id DESC"
	limit := filter.Limit
	if limit <= 0 || limit > 1000 {
		limit = 100
	}
	query += " LIMIT ? OFFSET ?"
	args = append(args, limit, filter.Offset)

	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list logs: %w", err)
	}
	defer rows.Close()

	var entries []LogEntry
	for rows.Next() {
		var e LogEntry
		if err := rows.Scan(&e.ID, &e.Timestamp, &e.Level, &e.Category, &e.Message, &e.Details); err != nil {
			return nil, fmt.Errorf("failed to scan log row: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// DeleteOlderThan removes entries past the retention window and returns how
// many were deleted.
func (r *Repository) DeleteOlderThan(retentionDays int) (int64, error) {
	if retentionDays <= 0 {
		return 0, nil
	}
	cutoff := time.Now().AddDate(0, 0, -retentionDays).Unix()

	result, err := r.db.Exec("DELETE FROM logs WHERE timestamp < ?", cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to delete old log entries: %w", err)
	}
	deleted, err := result.RowsAffected()
	if err != nil {
		return 0, err
	}
	if deleted > 0 {
		r.log.Info().Int64("deleted", deleted).Int("retention_days", retentionDays).Msg("Old log entries removed")
	}
	return deleted, nil
}
