package transactions

import (
	"fmt"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// Service implements transaction business rules on top of the repository.
type Service struct {
	repo *Repository
	log  zerolog.Logger
}

// NewService creates a new transaction service.
func NewService(repo *Repository, log zerolog.Logger) *Service {
	return &Service{
		repo: repo,
		log:  log.With().Str("service", "transactions").Logger(),
	}
}

// ComputeRealizedGain values a prospective sell against the average cost
// basis built up by buys in the portfolio so far. All money math uses
// decimals and rounds to cents only at the edges.
func (s *Service) ComputeRealizedGain(portfolioID, fundID string, shares, pricePerShare float64) (*RealizedGain, error) {
	history, err := s.repo.List(Filter{PortfolioID: portfolioID, FundID: fundID})
	if err != nil {
		return nil, err
	}

	heldShares := decimal.Zero
	heldCost := decimal.Zero
	// Replay oldest-first; List returns newest first
	for i := len(history) - 1; i >= 0; i-- {
		t := history[i]
		switch t.Type {
		case TypeBuy:
			heldShares = heldShares.Add(decimal.NewFromFloat(t.Shares))
			heldCost = heldCost.Add(decimal.NewFromFloat(t.Cost))
		case TypeSell:
			if heldShares.IsZero() {
				continue
			}
			// Selling removes cost proportionally to shares sold
			sold := decimal.NewFromFloat(t.Shares)
			heldCost = heldCost.Sub(heldCost.Div(heldShares).Mul(sold))
			heldShares = heldShares.Sub(sold)
		}
	}

	sellShares := decimal.NewFromFloat(shares)
	if heldShares.LessThan(sellShares) {
		return nil, fmt.Errorf("cannot sell %s shares, only %s held", sellShares, heldShares)
	}

	avgCost := decimal.Zero
	if !heldShares.IsZero() {
		avgCost = heldCost.Div(heldShares)
	}
	costBasis := avgCost.Mul(sellShares).Round(2)
	proceeds := sellShares.Mul(decimal.NewFromFloat(pricePerShare)).Round(2)

	gain := &RealizedGain{FundID: fundID, SharesSold: shares}
	gain.Proceeds, _ = proceeds.Float64()
	gain.CostBasis, _ = costBasis.Float64()
	gain.Gain, _ = proceeds.Sub(costBasis).Float64()
	gain.AvgCostShare, _ = avgCost.Round(4).Float64()
	return gain, nil
}
