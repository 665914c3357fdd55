package portfolios

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Repository handles portfolio and fund-membership database operations.
type Repository struct {
	db  *sql.DB // portfolio.db - portfolios, portfolio_funds tables
	log zerolog.Logger
}

// NewRepository creates a new portfolio repository.
func NewRepository(db *sql.DB, log zerolog.Logger) *Repository {
	return &Repository{
		db:  db,
		log: log.With().Str("repo", "portfolios").Logger(),
	}
}

const portfolioColumns = `id, name, description, is_archived, created_at`

func scanPortfolio(row interface{ Scan(...interface{}) error }) (*Portfolio, error) {
	var p Portfolio
	var archived int
	if err := row.Scan(&p.ID, &p.Name, &p.Description, &archived, &p.CreatedAt); err != nil {
		return nil, err
	}
	p.IsArchived = archived != 0
	return &p, nil
}

// Create inserts a new portfolio and returns it with a generated ID.
func (r *Repository) Create(p Portfolio) (*Portfolio, error) {
	p.ID = uuid.NewString()
	p.CreatedAt = time.Now().Unix()
	_, err := r.db.Exec(`
		INSERT INTO portfolios (id, name, description, is_archived, created_at)
		VALUES (?, ?, ?, 0, ?)
	`, p.ID, p.Name, p.Description, p.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to create portfolio: %w", err)
	}
	return &p, nil
}

// GetByID returns a portfolio by ID, nil when not found.
func (r *Repository) GetByID(id string) (*Portfolio, error) {
	p, err := scanPortfolio(r.db.QueryRow("SELECT "+portfolioColumns+" FROM portfolios WHERE id = ?", id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get portfolio %s: %w", id, err)
	}
	return p, nil
}

// List returns portfolios ordered by name, optionally including archived ones.
func (r *Repository) List(includeArchived bool) ([]Portfolio, error) {
	query := "SELECT " + portfolioColumns + " FROM portfolios"
	if !includeArchived {
		query += " WHERE is_archived = 0"
	}
	query += " ORDER BY name"

	rows, err := r.db.Query(query)
	if err != nil {
		return nil, fmt.Errorf("failed to list portfolios: %w", err)
	}
	defer rows.Close()

	var portfolios []Portfolio
	for rows.Next() {
		p, err := scanPortfolio(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan portfolio row: %w", err)
		}
		portfolios = append(portfolios, *p)
	}
	return portfolios, rows.Err()
}

// Update modifies name and description of an existing portfolio.
func (r *Repository) Update(p Portfolio) error {
	result, err := r.db.Exec(
		"UPDATE portfolios SET name = ?, description = ? WHERE id = ?",
		p.Name, p.Description, p.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update portfolio %s: %w", p.ID, err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return fmt.Errorf("portfolio %s not found: %w", p.ID, sql.ErrNoRows)
	}
	return nil
}

// SetArchived archives or unarchives a portfolio.
func (r *Repository) SetArchived(id string, archived bool) error {
	flag := 0
	if archived {
		flag = 1
	}
	if _, err := r.db.Exec("UPDATE portfolios SET is_archived = ? WHERE id = ?", flag, id); err != nil {
		return fmt.Errorf("failed to set archived for portfolio %s: %w", id, err)
	}
	return nil
}

// Delete removes a portfolio and, via foreign keys, its memberships,
// transactions and dividends.
func (r *Repository) Delete(id string) error {
	if _, err := r.db.Exec("DELETE FROM portfolios WHERE id = ?", id); err != nil {
		return fmt.Errorf("failed to delete portfolio %s: %w", id, err)
	}
	return nil
}

// AddFund links a fund to a portfolio. Adding an existing link is a no-op.
func (r *Repository) AddFund(portfolioID, fundID string) error {
	_, err := r.db.Exec(`
		INSERT INTO portfolio_funds (portfolio_id, fund_id) VALUES (?, ?)
		ON CONFLICT(portfolio_id, fund_id) DO NOTHING
	`, portfolioID, fundID)
	if err != nil {
		return fmt.Errorf("failed to add fund %s to portfolio %s: %w", fundID, portfolioID, err)
	}
	return nil
}

// RemoveFund unlinks a fund from a portfolio.
func (r *Repository) RemoveFund(portfolioID, fundID string) error {
	_, err := r.db.Exec(
		"DELETE FROM portfolio_funds WHERE portfolio_id = ? AND fund_id = ?",
		portfolioID, fundID,
	)
	if err != nil {
		return fmt.Errorf("failed to remove fund %s from portfolio %s: %w", fundID, portfolioID, err)
	}
	return nil
}

// FundIDs returns the funds linked to a portfolio.
func (r *Repository) FundIDs(portfolioID string) ([]string, error) {
	rows, err := r.db.Query("SELECT fund_id FROM portfolio_funds WHERE portfolio_id = ?", portfolioID)
	if err != nil {
		return nil, fmt.Errorf("failed to get funds for portfolio %s: %w", portfolioID, err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan fund id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// HoldingFund returns the active (non-archived) portfolios that hold a fund.
// Archived portfolios are excluded because they are no longer valid
// allocation targets.
func (r *Repository) HoldingFund(fundID string) ([]Portfolio, error) {
	rows, err := r.db.Query(`
		SELECT `+portfolioColumns+` FROM portfolios p
		JOIN portfolio_funds pf ON pf.portfolio_id = p.id
		WHERE pf.fund_id = ? AND p.is_archived = 0
		ORDER BY p.name
	`, fundID)
	if err != nil {
		return nil, fmt.Errorf("failed to get portfolios holding fund %s: %w", fundID, err)
	}
	defer rows.Close()

	var portfolios []Portfolio
	for rows.Next() {
		p, err := scanPortfolio(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan portfolio row: %w", err)
		}
		portfolios = append(portfolios, *p)
	}
	return portfolios, rows.Err()
}
