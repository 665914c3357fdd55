package allocation

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/ndewijer/investment-portfolio-manager/internal/database"
)

// PresetRepository stores the default-allocation preset in config.db.
// The preset is a validated row set applied when opening a create-mode
// allocation form, so recurring imports land in the same portfolios without
// re-entering percentages.
type PresetRepository struct {
	db  *sql.DB // config.db - allocation_presets table
	log zerolog.Logger
}

// NewPresetRepository creates a new preset repository.
func NewPresetRepository(db *sql.DB, log zerolog.Logger) *PresetRepository {
	return &PresetRepository{
		db:  db,
		log: log.With().Str("repo", "allocation_presets").Logger(),
	}
}

// Get returns the stored preset as a row set, empty when no preset exists.
func (r *PresetRepository) Get() (RowSet, error) {
	rows, err := r.db.Query("SELECT portfolio_id, percentage FROM allocation_presets ORDER BY portfolio_id")
	if err != nil {
		return nil, fmt.Errorf("failed to query allocation presets: %w", err)
	}
	defer rows.Close()

	var preset RowSet
	for rows.Next() {
		var row Row
		if err := rows.Scan(&row.PortfolioID, &row.Percentage); err != nil {
			return nil, fmt.Errorf("failed to scan allocation preset row: %w", err)
		}
		preset = append(preset, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating allocation presets: %w", err)
	}

	return preset, nil
}

// Save validates and replaces the stored preset atomically.
func (r *PresetRepository) Save(preset RowSet) error {
	if err := Validate(preset); err != nil {
		return err
	}

	now := time.Now().Unix()
	return database.WithTransaction(r.db, func(tx *sql.Tx) error {
		if _, err := tx.Exec("DELETE FROM allocation_presets"); err != nil {
			return fmt.Errorf("failed to clear allocation presets: %w", err)
		}
		for _, row := range preset {
			if _, err := tx.Exec(
				"INSERT INTO allocation_presets (portfolio_id, percentage, updated_at) VALUES (?, ?, ?)",
				row.PortfolioID, row.Percentage, now,
			); err != nil {
				return fmt.Errorf("failed to insert allocation preset for %s: %w", row.PortfolioID, err)
			}
		}
		return nil
	})
}

// Clear removes the stored preset.
func (r *PresetRepository) Clear() error {
	if _, err := r.db.Exec("DELETE FROM allocation_presets"); err != nil {
		return fmt.Errorf("failed to clear allocation presets: %w", err)
	}
	return nil
}
