// Package settings stores application configuration as key/value pairs in
// the config database.
package settings

import (
	"database/sql"
	"fmt"
	"strconv"
	"time"

	"github.com/rs/zerolog"
)

// Well-known setting keys.
const (
	KeyFlexToken    = "flex_token"
	KeyFlexQueryID  = "flex_query_id"
	KeyFlexSchedule = "flex_schedule"
	KeyLogRetention = "log_retention_days"
)

// Setting is one stored configuration value.
type Setting struct {
	Key         string  `json:"key"`
	Value       string  `json:"value"`
	Description *string `json:"description,omitempty"`
	UpdatedAt   int64   `json:"updatedAt"`
}

// Repository handles settings database operations.
type Repository struct {
	db  *sql.DB // config.db - settings table
	log zerolog.Logger
}

// NewRepository creates a new settings repository.
func NewRepository(db *sql.DB, log zerolog.Logger) *Repository {
	return &Repository{
		db:  db,
		log: log.With().Str("repo", "settings").Logger(),
	}
}

// Get returns a setting value, nil when the key is not set.
func (r *Repository) Get(key string) (*string, error) {
	var value string
	err := r.db.QueryRow("SELECT value FROM settings WHERE key = ?", key).Scan(&value)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get setting %s: %w", key, err)
	}
	return &value, nil
}

// GetInt returns a setting as an integer, or the fallback when unset or
// not a number.
func (r *Repository) GetInt(key string, fallback int) (int, error) {
	value, err := r.Get(key)
	if err != nil {
		return fallback, err
	}
	if value == nil {
		return fallback, nil
	}
	n, err := strconv.Atoi(*value)
	if err != nil {
		r.log.Warn().Str("key", key).Str("value", *value).Msg("Setting is not a number, using fallback")
		return fallback, nil
	}
	return n, nil
}

// Set stores a setting value, optionally with a description.
func (r *Repository) Set(key, value string, description *string) error {
	_, err := r.db.Exec(`
		INSERT INTO settings (key, value, description, updated_at) VALUES (?, ?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value,
			description = COALESCE(excluded.description, settings.description),
			updated_at = excluded.updated_at
	`, key, value, description, time.Now().Unix())
	if err != nil {
		return fmt.Errorf("failed to set setting %s: %w", key, err)
	}
	return nil
}

// List returns all settings ordered by key.
func (r *Repository) List() ([]Setting, error) {
	rows, err := r.db.Query("SELECT key, value, description, updated_at FROM settings ORDER BY key")
	if err != nil {
		return nil, fmt.Errorf("failed to list settings: %w", err)
	}
	defer rows.Close()

	var list []Setting
	for rows.Next() {
		var s Setting
		if err := rows.Scan(&s.Key, &s.Value, &s.Description, &s.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan setting row: %w", err)
		}
		list = append(list, s)
	}
	return list, rows.Err()
}

// Delete removes a setting.
func (r *Repository) Delete(key string) error {
	if _, err := r.db.Exec("DELETE FROM settings WHERE key = ?", key); err != nil {
		return fmt.Errorf("failed to delete setting %s: %w", key, err)
	}
	return nil
}
