// Package funds manages the fund/stock catalogue and price history.
package funds

// Fund is a tradable instrument (mutual fund or stock) tracked by the app.
type Fund struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	ISIN         string `json:"isin"`
	Symbol       string `json:"symbol"`
	Currency     string `json:"currency"`
	Type         string `json:"type"`         // fund | stock
	DividendType string `json:"dividendType"` // none | cash | stock
	CreatedAt    int64  `json:"createdAt"`
}

// Fund types
const (
	TypeFund  = "fund"
	TypeStock = "stock"
)

// Dividend types
const (
	DividendNone  = "none"
	DividendCash  = "cash"
	DividendStock = "stock"
)

// Price is one historical price point for a fund.
type Price struct {
	ID     string  `json:"id"`
	FundID string  `json:"fundId"`
	Date   string  `json:"date"` // YYYY-MM-DD
	Price  float64 `json:"price"`
}
