// Package ibkr manages the broker-import inbox: transactions pulled from the
// IBKR Flex Web Service that wait to be allocated into portfolios.
package ibkr

// Inbox transaction statuses
const (
	StatusPending   = "pending"
	StatusProcessed = "processed"
	StatusIgnored   = "ignored"
)

// Inbox transaction types
const (
	TypeBuy      = "buy"
	TypeSell     = "sell"
	TypeDividend = "dividend"
)

// SourceFlex identifies rows imported through the Flex Web Service.
const SourceFlex = "flex"

// InboxTransaction is one imported broker transaction awaiting allocation.
// TransactionID is the broker-side identifier and the dedup key per source.
type InboxTransaction struct {
	ID            string  `json:"id"`
	Source        string  `json:"source"`
	TransactionID string  `json:"transactionId"`
	Symbol        string  `json:"symbol"`
	ISIN          string  `json:"isin"`
	Description   string  `json:"description"`
	TradeDate     string  `json:"tradeDate"` // YYYY-MM-DD
	Type          string  `json:"type"`      // buy | sell | dividend
	Quantity      float64 `json:"quantity"`
	Price         float64 `json:"price"`
	Amount        float64 `json:"amount"`
	Commission    float64 `json:"commission"`
	Currency      string  `json:"currency"`
	Status        string  `json:"status"` // pending | processed | ignored
	CreatedAt     int64   `json:"createdAt"`
}

// Allocation is one persisted allocation line: the slice of an inbox
// transaction assigned to a portfolio, with the portfolio transaction it
// created (when the inbox row is a trade). Position is the row's place in
// the submitted set; retrieval orders by it so the residual-absorbing last
// row stays last across the round-trip.
type Allocation struct {
	ID                   string  `json:"id"`
	IbkrTransactionID    string  `json:"ibkrTransactionId"`
	Position             int     `json:"-"`
	PortfolioID          string  `json:"portfolioId"`
	PortfolioName        string  `json:"portfolioName"`
	Percentage           float64 `json:"allocationPercentage"`
	Amount               float64 `json:"allocatedAmount"`
	Shares               float64 `json:"allocatedShares"`
	Commission           float64 `json:"allocatedCommission"`
	CreatedTransactionID *string `json:"createdTransactionId,omitempty"`
	CreatedAt            int64   `json:"createdAt"`
}

// BulkResult summarizes a bulk allocation: per-item failures do not abort
// the batch.
type BulkResult struct {
	Success   bool     `json:"success"`
	Processed int      `json:"processed"`
	Failed    int      `json:"failed"`
	Errors    []string `json:"errors,omitempty"`
}

// ImportResult summarizes one Flex import run.
type ImportResult struct {
	Fetched    int `json:"fetched"`
	Imported   int `json:"imported"`
	Duplicates int `json:"duplicates"`
}
