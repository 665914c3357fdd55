// Package transactions manages buy/sell/fee transactions inside portfolios.
package transactions

// Transaction types
const (
	TypeBuy  = "buy"
	TypeSell = "sell"
	TypeFee  = "fee"
)

// Transaction is one dated fund transaction inside a portfolio.
// Cost is shares * price per share, kept to two decimals.
type Transaction struct {
	ID            string  `json:"id"`
	PortfolioID   string  `json:"portfolioId"`
	FundID        string  `json:"fundId"`
	Date          string  `json:"date"` // YYYY-MM-DD
	Type          string  `json:"type"` // buy | sell | fee
	Shares        float64 `json:"shares"`
	PricePerShare float64 `json:"pricePerShare"`
	Cost          float64 `json:"cost"`
	CreatedAt     int64   `json:"createdAt"`
}

// Filter narrows transaction listings. Zero values mean "no constraint".
type Filter struct {
	PortfolioID string
	FundID      string
	Type        string
	FromDate    string
	ToDate      string
}

// RealizedGain is the outcome of selling shares against the average cost
// basis accumulated by prior buys.
type RealizedGain struct {
	FundID       string  `json:"fundId"`
	SharesSold   float64 `json:"sharesSold"`
	Proceeds     float64 `json:"proceeds"`
	CostBasis    float64 `json:"costBasis"`
	Gain         float64 `json:"gain"`
	AvgCostShare float64 `json:"avgCostPerShare"`
}
