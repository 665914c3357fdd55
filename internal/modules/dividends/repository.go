package dividends

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// Repository handles dividend database operations.
type Repository struct {
	db  *sql.DB // portfolio.db - dividends table
	log zerolog.Logger
}

// NewRepository creates a new dividend repository.
func NewRepository(db *sql.DB, log zerolog.Logger) *Repository {
	return &Repository{
		db:  db,
		log: log.With().Str("repo", "dividends").Logger(),
	}
}

const dividendColumns = `id, portfolio_id, fund_id, record_date, ex_dividend_date,
shares_owned, dividend_per_share, total_amount, reinvested_transaction_id, created_at`

func scanDividend(row interface{ Scan(...interface{}) error }) (*Dividend, error) {
	var d Dividend
	err := row.Scan(&d.ID, &d.PortfolioID, &d.FundID, &d.RecordDate, &d.ExDividendDate,
		&d.SharesOwned, &d.DividendPerShare, &d.TotalAmount, &d.ReinvestedTransactionID, &d.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &d, nil
}

// Create inserts a new dividend. The total is derived from shares owned and
// dividend per share with decimal math.
func (r *Repository) Create(d Dividend) (*Dividend, error) {
	d.ID = uuid.NewString()
	d.CreatedAt = time.Now().Unix()
	d.TotalAmount, _ = decimal.NewFromFloat(d.SharesOwned).
		Mul(decimal.NewFromFloat(d.DividendPerShare)).
		Round(2).
		Float64()

	_, err := r.db.Exec(`
		INSERT INTO dividends (id, portfolio_id, fund_id, record_date, ex_dividend_date,
			shares_owned, dividend_per_share, total_amount, reinvested_transaction_id, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, d.ID, d.PortfolioID, d.FundID, d.RecordDate, d.ExDividendDate,
		d.SharesOwned, d.DividendPerShare, d.TotalAmount, d.ReinvestedTransactionID, d.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to create dividend: %w", err)
	}
	return &d, nil
}

// GetByID returns a dividend by ID, nil when not found.
func (r *Repository) GetByID(id string) (*Dividend, error) {
	d, err := scanDividend(r.db.QueryRow("SELECT "+dividendColumns+" FROM dividends WHERE id = ?", id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get dividend %s: %w", id, err)
	}
	return d, nil
}

// List returns dividends, optionally restricted to one portfolio, newest first.
func (r *Repository) List(portfolioID string) ([]Dividend, error) {
	query := "SELECT " + dividendColumns + " FROM dividends"
	var args []interface{}
	if portfolioID != "" {
		query += " WHERE portfolio_id = ?"
		args = append(args, portfolioID)
	}
	query += " ORDER BY record_date DESC"

	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list dividends: %w", err)
	}
	defer rows.Close()

	var dividends []Dividend
	for rows.Next() {
		d, err := scanDividend(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan dividend row: %w", err)
		}
		dividends = append(dividends, *d)
	}
	return dividends, rows.Err()
}

// Update modifies an existing dividend, re-deriving the total.
func (r *Repository) Update(d Dividend) error {
	d.TotalAmount, _ = decimal.NewFromFloat(d.SharesOwned).
		Mul(decimal.NewFromFloat(d.DividendPerShare)).
		Round(2).
		Float64()

	result, err := r.db.Exec(`
		UPDATE dividends SET portfolio_id = ?, fund_id = ?, record_date = ?, ex_dividend_date = ?,
			shares_owned = ?, dividend_per_share = ?, total_amount = ?, reinvested_transaction_id = ?
		WHERE id = ?
	`, d.PortfolioID, d.FundID, d.RecordDate, d.ExDividendDate,
		d.SharesOwned, d.DividendPerShare, d.TotalAmount, d.ReinvestedTransactionID, d.ID)
	if err != nil {
		return fmt.Errorf("failed to update dividend %s: %w", d.ID, err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return fmt.Errorf("dividend %s not found: %w", d.ID, sql.ErrNoRows)
	}
	return nil
}

// MarkReinvested links the buy transaction created by reinvesting a dividend.
func (r *Repository) MarkReinvested(id, transactionID string) error {
	if _, err := r.db.Exec(
		"UPDATE dividends SET reinvested_transaction_id = ? WHERE id = ?",
		transactionID, id,
	); err != nil {
		return fmt.Errorf("failed to mark dividend %s reinvested: %w", id, err)
	}
	return nil
}

// Delete removes a dividend.
func (r *Repository) Delete(id string) error {
	if _, err := r.db.Exec("DELETE FROM dividends WHERE id = ?", id); err != nil {
		return fmt.Errorf("failed to delete dividend %s: %w", id, err)
	}
	return nil
}
