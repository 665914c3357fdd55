package transactions

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// Repository handles transaction database operations.
type Repository struct {
	db  *sql.DB // portfolio.db - transactions table
	log zerolog.Logger
}

// NewRepository creates a new transaction repository.
func NewRepository(db *sql.DB, log zerolog.Logger) *Repository {
	return &Repository{
		db:  db,
		log: log.With().Str("repo", "transactions").Logger(),
	}
}

const transactionColumns = `id, portfolio_id, fund_id, date, type, shares, price_per_share, cost, created_at`

func scanTransaction(row interface{ Scan(...interface{}) error }) (*Transaction, error) {
	var t Transaction
	err := row.Scan(&t.ID, &t.PortfolioID, &t.FundID, &t.Date, &t.Type,
		&t.Shares, &t.PricePerShare, &t.Cost, &t.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// Cost computes shares * price per share with decimal math, rounded to cents.
func Cost(shares, pricePerShare float64) float64 {
	cost, _ := decimal.NewFromFloat(shares).
		Mul(decimal.NewFromFloat(pricePerShare)).
		Round(2).
		Float64()
	return cost
}

// Create inserts a new transaction. Cost is always derived from shares and
// price so stored amounts never drift from their inputs.
func (r *Repository) Create(t Transaction) (*Transaction, error) {
	t.ID = uuid.NewString()
	t.CreatedAt = time.Now().Unix()
	t.Cost = Cost(t.Shares, t.PricePerShare)

	_, err := r.db.Exec(`
		INSERT INTO transactions (id, portfolio_id, fund_id, date, type, shares, price_per_share, cost, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, t.ID, t.PortfolioID, t.FundID, t.Date, t.Type, t.Shares, t.PricePerShare, t.Cost, t.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to create transaction: %w", err)
	}
	return &t, nil
}

// GetByID returns a transaction by ID, nil when not found.
func (r *Repository) GetByID(id string) (*Transaction, error) {
	t, err := scanTransaction(r.db.QueryRow("SELECT "+transactionColumns+" FROM transactions WHERE id = ?", id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get transaction %s: %w", id, err)
	}
	return t, nil
}

// List returns transactions matching the filter, newest first.
func (r *Repository) List(filter Filter) ([]Transaction, error) {
	query := "SELECT " + transactionColumns + " FROM transactions WHERE 1=1"
	var args []interface{}
	if filter.PortfolioID != "" {
		query += " AND portfolio_id = ?"
		args = append(args, filter.PortfolioID)
	}
	if filter.FundID != "" {
		query += " AND fund_id = ?"
		args = append(args, filter.FundID)
	}
	if filter.Type != "" {
		query += " AND type = ?"
		args = append(args, filter.Type)
	}
	if filter.FromDate != "" {
		query += " AND date >= ?"
		args = append(args, filter.FromDate)
	}
	if filter.ToDate != "" {
		query += " AND date <= ?"
		args = append(args, filter.ToDate)
	}
	query += " ORDER BY date DESC, created_at DESC"

	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list transactions: %w", err)
	}
	defer rows.Close()

	var transactions []Transaction
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan transaction row: %w", err)
		}
		transactions = append(transactions, *t)
	}
	return transactions, rows.Err()
}

// Update modifies an existing transaction, re-deriving the cost.
func (r *Repository) Update(t Transaction) error {
	t.Cost = Cost(t.Shares, t.PricePerShare)
	result, err := r.db.Exec(`
		UPDATE transactions SET portfolio_id = ?, fund_id = ?, date = ?, type = ?,
			shares = ?, price_per_share = ?, cost = ?
		WHERE id = ?
	`, t.PortfolioID, t.FundID, t.Date, t.Type, t.Shares, t.PricePerShare, t.Cost, t.ID)
	if err != nil {
		return fmt.Errorf("failed to update transaction %s: %w", t.ID, err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return fmt.Errorf("transaction %s not found: %w", t.ID, sql.ErrNoRows)
	}
	return nil
}

// Delete removes a transaction.
func (r *Repository) Delete(id string) error {
	if _, err := r.db.Exec("DELETE FROM transactions WHERE id = ?", id); err != nil {
		return fmt.Errorf("failed to delete transaction %s: %w", id, err)
	}
	return nil
}
