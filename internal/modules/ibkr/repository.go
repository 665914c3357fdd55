package ibkr

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/ndewijer/investment-portfolio-manager/internal/database"
)

// Repository handles inbox and allocation database operations on ibkr.db.
type Repository struct {
	db  *sql.DB // ibkr.db - ibkr_transactions, ibkr_allocations
	log zerolog.Logger
}

// NewRepository creates a new IBKR repository.
func NewRepository(db *sql.DB, log zerolog.Logger) *Repository {
	return &Repository{
		db:  db,
		log: log.With().Str("repo", "ibkr").Logger(),
	}
}

const inboxColumns = `id, source, transaction_id, symbol, isin, description, trade_date,
type, quantity, price, amount, commission, currency, status, created_at`

func scanInbox(row interface{ Scan(...interface{}) error }) (*InboxTransaction, error) {
	var t InboxTransaction
	err := row.Scan(&t.ID, &t.Source, &t.TransactionID, &t.Symbol, &t.ISIN, &t.Description,
		&t.TradeDate, &t.Type, &t.Quantity, &t.Price, &t.Amount, &t.Commission,
		&t.Currency, &t.Status, &t.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// Insert adds an imported transaction to the inbox. Returns false when a row
// with the same source and broker transaction ID already exists.
func (r *Repository) Insert(t InboxTransaction) (bool, error) {
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	if t.Source == "" {
		t.Source = SourceFlex
	}
	if t.Status == "" {
		t.Status = StatusPending
	}
	t.CreatedAt = time.Now().Unix()

	result, err := r.db.Exec(`
		INSERT OR IGNORE INTO ibkr_transactions (id, source, transaction_id, symbol, isin,
			description, trade_date, type, quantity, price, amount, commission, currency, status, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, t.ID, t.Source, t.TransactionID, t.Symbol, t.ISIN, t.Description,
		t.TradeDate, t.Type, t.Quantity, t.Price, t.Amount, t.Commission,
		t.Currency, t.Status, t.CreatedAt)
	if err != nil {
		return false, fmt.Errorf("failed to insert inbox transaction %s: %w", t.TransactionID, err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected > 0, nil
}

// GetByID returns an inbox transaction, nil when not found.
func (r *Repository) GetByID(id string) (*InboxTransaction, error) {
	t, err := scanInbox(r.db.QueryRow("SELECT "+inboxColumns+" FROM ibkr_transactions WHERE id = ?", id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get inbox transaction %s: %w", id, err)
	}
	return t, nil
}

// List returns inbox transactions, optionally filtered by status, newest first.
func (r *Repository) List(status string) ([]InboxTransaction, error) {
	query := "SELECT " + inboxColumns + " FROM ibkr_transactions"
	var args []interface{}
	if status != "" {
		query += " WHERE status = ?"
		args = append(args, status)
	}
	query += " ORDER BY trade_date DESC, created_at DESC"

	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list inbox transactions: %w", err)
	}
	defer rows.Close()

	var list []InboxTransaction
	for rows.Next() {
		t, err := scanInbox(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan inbox row: %w", err)
		}
		list = append(list, *t)
	}
	return list, rows.Err()
}

// SetStatus transitions an inbox transaction's status.
func (r *Repository) SetStatus(id, status string) error {
	result, err := r.db.Exec("UPDATE ibkr_transactions SET status = ? WHERE id = ?", status, id)
	if err != nil {
		return fmt.Errorf("failed to set status for inbox transaction %s: %w", id, err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return fmt.Errorf("inbox transaction %s not found: %w", id, sql.ErrNoRows)
	}
	return nil
}

// Delete removes an inbox transaction; its allocations cascade.
func (r *Repository) Delete(id string) error {
	if _, err := r.db.Exec("DELETE FROM ibkr_transactions WHERE id = ?", id); err != nil {
		return fmt.Errorf("failed to delete inbox transaction %s: %w", id, err)
	}
	return nil
}

// AllocationsFor returns the persisted allocation lines of one inbox
// transaction, in the order the rows were submitted.
func (r *Repository) AllocationsFor(ibkrTransactionID string) ([]Allocation, error) {
	rows, err := r.db.Query(`
		SELECT id, ibkr_transaction_id, position, portfolio_id, portfolio_name, allocation_percentage,
			allocated_amount, allocated_shares, allocated_commission, created_transaction_id, created_at
		FROM ibkr_allocations WHERE ibkr_transaction_id = ? ORDER BY position
	`, ibkrTransactionID)
	if err != nil {
		return nil, fmt.Errorf("failed to query allocations for %s: %w", ibkrTransactionID, err)
	}
	defer rows.Close()

	var allocations []Allocation
	for rows.Next() {
		var a Allocation
		if err := rows.Scan(&a.ID, &a.IbkrTransactionID, &a.Position, &a.PortfolioID, &a.PortfolioName,
			&a.Percentage, &a.Amount, &a.Shares, &a.Commission, &a.CreatedTransactionID, &a.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan allocation row: %w", err)
		}
		allocations = append(allocations, a)
	}
	return allocations, rows.Err()
}

// SaveAllocations replaces the allocation lines of an inbox transaction and
// marks it processed, atomically within ibkr.db.
func (r *Repository) SaveAllocations(ibkrTransactionID string, allocations []Allocation) error {
	now := time.Now().Unix()
	return database.WithTransaction(r.db, func(tx *sql.Tx) error {
		if _, err := tx.Exec("DELETE FROM ibkr_allocations WHERE ibkr_transaction_id = ?", ibkrTransactionID); err != nil {
			return fmt.Errorf("failed to clear allocations for %s: %w", ibkrTransactionID, err)
		}
		for i, a := range allocations {
			if a.ID == "" {
				a.ID = uuid.NewString()
			}
			if _, err := tx.Exec(`
				INSERT INTO ibkr_allocations (id, ibkr_transaction_id, position, portfolio_id, portfolio_name,
					allocation_percentage, allocated_amount, allocated_shares, allocated_commission,
					created_transaction_id, created_at)
				VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
			`, a.ID, ibkrTransactionID, i, a.PortfolioID, a.PortfolioName,
				a.Percentage, a.Amount, a.Shares, a.Commission, a.CreatedTransactionID, now); err != nil {
				return fmt.Errorf("failed to insert allocation for portfolio %s: %w", a.PortfolioID, err)
			}
		}
		if _, err := tx.Exec("UPDATE ibkr_transactions SET status = ? WHERE id = ?",
			StatusProcessed, ibkrTransactionID); err != nil {
			return fmt.Errorf("failed to mark inbox transaction %s processed: %w", ibkrTransactionID, err)
		}
		return nil
	})
}

// ClearAllocations removes the allocation lines of an inbox transaction and
// returns it to pending, atomically within ibkr.db.
func (r *Repository) ClearAllocations(ibkrTransactionID string) error {
	return database.WithTransaction(r.db, func(tx *sql.Tx) error {
		if _, err := tx.Exec("DELETE FROM ibkr_allocations WHERE ibkr_transaction_id = ?", ibkrTransactionID); err != nil {
			return fmt.Errorf("failed to clear allocations for %s: %w", ibkrTransactionID, err)
		}
		if _, err := tx.Exec("UPDATE ibkr_transactions SET status = ? WHERE id = ?",
			StatusPending, ibkrTransactionID); err != nil {
			return fmt.Errorf("failed to mark inbox transaction %s pending: %w", ibkrTransactionID, err)
		}
		return nil
	})
}
