package funds

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Repository handles fund and fund-price database operations.
// Funds are stored in portfolio.db.
type Repository struct {
	db  *sql.DB // portfolio.db - funds, fund_prices tables
	log zerolog.Logger
}

// NewRepository creates a new fund repository.
func NewRepository(db *sql.DB, log zerolog.Logger) *Repository {
	return &Repository{
		db:  db,
		log: log.With().Str("repo", "funds").Logger(),
	}
}

const fundColumns = `id, name, isin, symbol, currency, type, dividend_type, created_at`

func scanFund(row interface{ Scan(...interface{}) error }) (*Fund, error) {
	var f Fund
	err := row.Scan(&f.ID, &f.Name, &f.ISIN, &f.Symbol, &f.Currency, &f.Type, &f.DividendType, &f.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &f, nil
}

// Create inserts a new fund and returns it with a generated ID.
func (r *Repository) Create(fund Fund) (*Fund, error) {
	fund.ID = uuid.NewString()
	fund.CreatedAt = time.Now().Unix()
	if fund.Type == "" {
		fund.Type = TypeFund
	}
	if fund.DividendType == "" {
		fund.DividendType = DividendNone
	}
	if fund.Currency == "" {
		fund.Currency = "EUR"
	}

	_, err := r.db.Exec(`
		INSERT INTO funds (id, name, isin, symbol, currency, type, dividend_type, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, fund.ID, fund.Name, fund.ISIN, fund.Symbol, fund.Currency, fund.Type, fund.DividendType, fund.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to create fund: %w", err)
	}
	return &fund, nil
}

// GetByID returns a fund by ID, nil when not found.
func (r *Repository) GetByID(id string) (*Fund, error) {
	fund, err := scanFund(r.db.QueryRow("SELECT "+fundColumns+" FROM funds WHERE id = ?", id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get fund %s: %w", id, err)
	}
	return fund, nil
}

// GetByISIN returns a fund by ISIN, nil when not found.
func (r *Repository) GetByISIN(isin string) (*Fund, error) {
	fund, err := scanFund(r.db.QueryRow("SELECT "+fundColumns+" FROM funds WHERE isin = ?", isin))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get fund by ISIN %s: %w", isin, err)
	}
	return fund, nil
}

// GetBySymbol returns a fund by symbol, nil when not found.
func (r *Repository) GetBySymbol(symbol string) (*Fund, error) {
	fund, err := scanFund(r.db.QueryRow("SELECT "+fundColumns+" FROM funds WHERE symbol = ?", symbol))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get fund by symbol %s: %w", symbol, err)
	}
	return fund, nil
}

// List returns all funds ordered by name.
func (r *Repository) List() ([]Fund, error) {
	rows, err := r.db.Query("SELECT " + fundColumns + " FROM funds ORDER BY name")
	if err != nil {
		return nil, fmt.Errorf("failed to list funds: %w", err)
	}
	defer rows.Close()

	var funds []Fund
	for rows.Next() {
		fund, err := scanFund(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan fund row: %w", err)
		}
		funds = append(funds, *fund)
	}
	return funds, rows.Err()
}

// Update modifies an existing fund. Returns sql.ErrNoRows via a wrapped error
// when the fund does not exist.
func (r *Repository) Update(fund Fund) error {
	result, err := r.db.Exec(`
		UPDATE funds SET name = ?, isin = ?, symbol = ?, currency = ?, type = ?, dividend_type = ?
		WHERE id = ?
	`, fund.Name, fund.ISIN, fund.Symbol, fund.Currency, fund.Type, fund.DividendType, fund.ID)
	if err != nil {
		return fmt.Errorf("failed to update fund %s: %w", fund.ID, err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return fmt.Errorf("fund %s not found: %w", fund.ID, sql.ErrNoRows)
	}
	return nil
}

// Delete removes a fund and, via foreign keys, its price history.
func (r *Repository) Delete(id string) error {
	if _, err := r.db.Exec("DELETE FROM funds WHERE id = ?", id); err != nil {
		return fmt.Errorf("failed to delete fund %s: %w", id, err)
	}
	return nil
}

// AddPrice upserts a price point for a fund on a given date.
func (r *Repository) AddPrice(fundID, date string, price float64) (*Price, error) {
	p := Price{ID: uuid.NewString(), FundID: fundID, Date: date, Price: price}
	_, err := r.db.Exec(`
		INSERT INTO fund_prices (id, fund_id, date, price)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(fund_id, date) DO UPDATE SET price = excluded.price
	`, p.ID, p.FundID, p.Date, p.Price)
	if err != nil {
		return nil, fmt.Errorf("failed to add price for fund %s: %w", fundID, err)
	}
	return &p, nil
}

// LatestPrice returns the most recent price for a fund, nil when none exists.
func (r *Repository) LatestPrice(fundID string) (*Price, error) {
	var p Price
	err := r.db.QueryRow(`
		SELECT id, fund_id, date, price FROM fund_prices
		WHERE fund_id = ? ORDER BY date DESC LIMIT 1
	`, fundID).Scan(&p.ID, &p.FundID, &p.Date, &p.Price)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get latest price for fund %s: %w", fundID, err)
	}
	return &p, nil
}

// PriceHistory returns prices for a fund, optionally bounded by from/to dates
// (inclusive, YYYY-MM-DD, empty string means unbounded).
func (r *Repository) PriceHistory(fundID, from, to string) ([]Price, error) {
	query := "SELECT id, fund_id, date, price FROM fund_prices WHERE fund_id = ?"
	args := []interface{}{fundID}
	if from != "" {
		query += " AND date >= ?"
		args = append(args, from)
	}
	if to != "" {
		query += " AND date <= ?"
		args = append(args, to)
	}
	query += " ORDER BY date"

	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to get price history for fund %s: %w", fundID, err)
	}
	defer rows.Close()

	var prices []Price
	for rows.Next() {
		var p Price
		if err := rows.Scan(&p.ID, &p.FundID, &p.Date, &p.Price); err != nil {
			return nil, fmt.Errorf("failed to scan price row: %w", err)
		}
		prices = append(prices, p)
	}
	return prices, rows.Err()
}
