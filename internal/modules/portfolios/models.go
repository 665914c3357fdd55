// Package portfolios manages portfolios and their fund membership.
package portfolios

// Portfolio groups transactions and dividends under one investment account.
// Archived portfolios are kept for history but are no longer valid
// allocation targets.
type Portfolio struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	IsArchived  bool   `json:"isArchived"`
	CreatedAt   int64  `json:"createdAt"`
}

// FundPosition is one fund's aggregate position inside a portfolio summary.
type FundPosition struct {
	FundID     string  `json:"fundId"`
	FundName   string  `json:"fundName"`
	Shares     float64 `json:"shares"`
	Cost       float64 `json:"cost"`
	LatestNAV  float64 `json:"latestNav"`
	Value      float64 `json:"value"`
	Unrealized float64 `json:"unrealizedGain"`
}

// Summary is the valuation of one portfolio from its transactions and the
// latest fund prices.
type Summary struct {
	PortfolioID string         `json:"portfolioId"`
	Name        string         `json:"name"`
	TotalCost   float64        `json:"totalCost"`
	TotalValue  float64        `json:"totalValue"`
	Positions   []FundPosition `json:"positions"`
}
