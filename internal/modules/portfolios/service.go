package portfolios

import (
	"database/sql"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/ndewijer/investment-portfolio-manager/internal/modules/funds"
)

// Service computes portfolio valuations from transactions and latest prices.
type Service struct {
	repo     *Repository
	fundRepo *funds.Repository
	db       *sql.DB // portfolio.db, for the position aggregation query
	log      zerolog.Logger
}

// NewService creates a new portfolio service.
func NewService(repo *Repository, fundRepo *funds.Repository, db *sql.DB, log zerolog.Logger) *Service {
	return &Service{
		repo:     repo,
		fundRepo: fundRepo,
		db:       db,
		log:      log.With().Str("service", "portfolios").Logger(),
	}
}

// GetSummary values one portfolio: per-fund net shares and cost from the
// transaction history, market value from the latest fund price.
func (s *Service) GetSummary(portfolioID string) (*Summary, error) {
	portfolio, err := s.repo.GetByID(portfolioID)
	if err != nil {
		return nil, err
	}
	if portfolio == nil {
		return nil, fmt.Errorf("portfolio %s not found: %w", portfolioID, sql.ErrNoRows)
	}

	rows, err := s.db.Query(`
		SELECT f.id, f.name,
			SUM(CASE t.type WHEN 'buy' THEN t.shares WHEN 'sell' THEN -t.shares ELSE 0 END) AS shares,
			SUM(CASE t.type WHEN 'buy' THEN t.cost WHEN 'sell' THEN -t.cost ELSE t.cost END) AS cost
		FROM transactions t
		JOIN funds f ON f.id = t.fund_id
		WHERE t.portfolio_id = ?
		GROUP BY f.id, f.name
		ORDER BY f.name
	`, portfolioID)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate positions for portfolio %s: %w", portfolioID, err)
	}
	defer rows.Close()

	// Drain the cursor before the price lookups so only one connection is
	// held at a time.
	var positions []FundPosition
	for rows.Next() {
		var pos FundPosition
		if err := rows.Scan(&pos.FundID, &pos.FundName, &pos.Shares, &pos.Cost); err != nil {
			return nil, fmt.Errorf("failed to scan position row: %w", err)
		}
		positions = append(positions, pos)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating position rows: %w", err)
	}
	rows.Close()

	summary := &Summary{PortfolioID: portfolio.ID, Name: portfolio.Name, Positions: []FundPosition{}}
	for _, pos := range positions {
		price, err := s.fundRepo.LatestPrice(pos.FundID)
		if err != nil {
			return nil, err
		}
		if price != nil {
			pos.LatestNAV = price.Price
			pos.Value = pos.Shares * price.Price
			pos.Unrealized = pos.Value - pos.Cost
		}

		summary.TotalCost += pos.Cost
		summary.TotalValue += pos.Value
		summary.Positions = append(summary.Positions, pos)
	}

	return summary, nil
}
