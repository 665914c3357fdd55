// Package dividends manages dividend records per portfolio and fund.
package dividends

// Dividend is one dividend payment received on a fund held in a portfolio.
// ReinvestedTransactionID links the buy transaction created when the payment
// was reinvested; nil means the dividend was paid out in cash.
type Dividend struct {
	ID                      string  `json:"id"`
	PortfolioID             string  `json:"portfolioId"`
	FundID                  string  `json:"fundId"`
	RecordDate              string  `json:"recordDate"`     // YYYY-MM-DD
	ExDividendDate          string  `json:"exDividendDate"` // YYYY-MM-DD
	SharesOwned             float64 `json:"sharesOwned"`
	DividendPerShare        float64 `json:"dividendPerShare"`
	TotalAmount             float64 `json:"totalAmount"`
	ReinvestedTransactionID *string `json:"reinvestedTransactionId,omitempty"`
	CreatedAt               int64   `json:"createdAt"`
}
